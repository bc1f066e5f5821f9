package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// UnphasedBucket indexes recommendations whose classification produced no
// phase. They are kept and reported, never dropped.
const UnphasedBucket = -1

// Store is the canonical recommendation collection. Callers own its
// lifecycle and persistence; nothing here is process-global.
type Store struct {
	mu           sync.RWMutex
	recs         map[string]*CanonicalRecommendation
	fingerprints map[string]string
	phaseIndex   map[int][]string
}

// snapshot is the persisted JSON shape of a store.
type snapshot struct {
	Version         string                     `json:"version"`
	UpdatedAt       time.Time                  `json:"updated_at"`
	Recommendations []*CanonicalRecommendation `json:"recommendations"`
}

// New creates an empty store.
func New() *Store {
	return &Store{
		recs:         make(map[string]*CanonicalRecommendation),
		fingerprints: make(map[string]string),
		phaseIndex:   make(map[int][]string),
	}
}

// Load reads a store from a JSON file. A missing file yields an empty
// store so first runs need no setup step.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal store file: %w", err)
	}

	s := New()
	for _, rec := range snap.Recommendations {
		if err := s.Insert(rec); err != nil {
			return nil, fmt.Errorf("corrupt store file %s: %w", path, err)
		}
	}
	return s, nil
}

// Save persists the store to a JSON file.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	snap := snapshot{
		Version:         "1.0",
		UpdatedAt:       time.Now().UTC(),
		Recommendations: s.sortedLocked(),
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	return nil
}

// Insert adds a new canonical recommendation. The ID must be unique and
// every fingerprint unowned.
func (s *Store) Insert(rec *CanonicalRecommendation) error {
	if rec == nil {
		return fmt.Errorf("recommendation is nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("recommendation ID is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.recs[rec.ID]; exists {
		return fmt.Errorf("duplicate recommendation ID: %s", rec.ID)
	}
	for _, fp := range rec.Fingerprints {
		if owner, owned := s.fingerprints[fp]; owned {
			return fmt.Errorf("fingerprint already owned by %s", owner)
		}
	}

	stored := rec.Clone()
	s.recs[stored.ID] = stored
	for _, fp := range stored.Fingerprints {
		s.fingerprints[fp] = stored.ID
	}
	s.indexLocked(stored)
	return nil
}

// Update replaces an existing recommendation, enforcing the merge
// invariants: confidence never decreases and provenance never shrinks.
func (s *Store) Update(rec *CanonicalRecommendation) error {
	if rec == nil {
		return fmt.Errorf("recommendation is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, exists := s.recs[rec.ID]
	if !exists {
		return fmt.Errorf("unknown recommendation ID: %s", rec.ID)
	}
	if rec.Confidence < old.Confidence {
		return fmt.Errorf("confidence may not decrease (%.3f -> %.3f)", old.Confidence, rec.Confidence)
	}
	if len(rec.SourceBatchIDs) < len(old.SourceBatchIDs) {
		return fmt.Errorf("source batches may not be removed")
	}
	for i, id := range old.SourceBatchIDs {
		if rec.SourceBatchIDs[i] != id {
			return fmt.Errorf("source batch order may not change")
		}
	}

	s.unindexLocked(old)
	for _, fp := range old.Fingerprints {
		delete(s.fingerprints, fp)
	}

	stored := rec.Clone()
	s.recs[stored.ID] = stored
	for _, fp := range stored.Fingerprints {
		s.fingerprints[fp] = stored.ID
	}
	s.indexLocked(stored)
	return nil
}

// Get returns a copy of the recommendation with the given ID.
func (s *Store) Get(id string) (*CanonicalRecommendation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recs[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// OwnerOf returns the ID of the recommendation owning the given
// (batch_id, raw-text) fingerprint, if any.
func (s *Store) OwnerOf(fingerprint string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.fingerprints[fingerprint]
	return id, ok
}

// ByPhase returns copies of all recommendations in the given phase bucket,
// in insertion order. Use UnphasedBucket for unclassified recommendations.
func (s *Store) ByPhase(phaseID int) []*CanonicalRecommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.phaseIndex[phaseID]
	out := make([]*CanonicalRecommendation, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.recs[id]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out
}

// All returns copies of every recommendation, ordered by creation time then ID.
func (s *Store) All() []*CanonicalRecommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked()
}

// Len returns the number of canonical recommendations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

// Clone returns a deep copy of the store. The consolidation engine stages
// merges on a clone and commits only on success.
func (s *Store) Clone() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dup := New()
	for id, rec := range s.recs {
		dup.recs[id] = rec.Clone()
	}
	for fp, id := range s.fingerprints {
		dup.fingerprints[fp] = id
	}
	for phase, ids := range s.phaseIndex {
		dup.phaseIndex[phase] = append([]string(nil), ids...)
	}
	return dup
}

func (s *Store) indexLocked(rec *CanonicalRecommendation) {
	if len(rec.PhaseIDs) == 0 {
		s.phaseIndex[UnphasedBucket] = append(s.phaseIndex[UnphasedBucket], rec.ID)
		return
	}
	for _, phase := range rec.PhaseIDs {
		s.phaseIndex[phase] = append(s.phaseIndex[phase], rec.ID)
	}
}

func (s *Store) unindexLocked(rec *CanonicalRecommendation) {
	buckets := rec.PhaseIDs
	if len(buckets) == 0 {
		buckets = []int{UnphasedBucket}
	}
	for _, phase := range buckets {
		ids := s.phaseIndex[phase]
		for i, id := range ids {
			if id == rec.ID {
				s.phaseIndex[phase] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
}

func (s *Store) sortedLocked() []*CanonicalRecommendation {
	out := make([]*CanonicalRecommendation, 0, len(s.recs))
	for _, rec := range s.recs {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
