// Package consolidate ingests raw recommendation batches and folds them into
// the canonical store: classify, find the best same-phase match, merge above
// the threshold, insert otherwise. Re-ingesting a batch is a no-op.
package consolidate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/planmerge/internal/log"
	"github.com/felixgeelhaar/planmerge/internal/metrics"
	"github.com/felixgeelhaar/planmerge/internal/phase"
	"github.com/felixgeelhaar/planmerge/internal/similarity"
	"github.com/felixgeelhaar/planmerge/internal/store"
)

const (
	// DefaultMergeThreshold is the similarity score at or above which two
	// recommendations are treated as duplicates.
	DefaultMergeThreshold = 0.80
	// baseConfidenceDelta is the confidence gain of the first corroborating
	// merge; the gain decays as more batches corroborate.
	baseConfidenceDelta = 0.15
	// minConcreteTokenLen filters out glue words when deciding whether an
	// incoming text adds a new concrete term.
	minConcreteTokenLen = 4
)

var wordRegex = regexp.MustCompile(`[a-z0-9]+`)

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	MergeThreshold float64
}

// Report summarizes the outcome of one batch ingest.
type Report struct {
	Added             int `json:"added"`
	Merged            int `json:"merged"`
	SkippedDuplicates int `json:"skipped_duplicates"`
}

// Engine consolidates recommendation batches into a store. A given phase is
// processed by at most one ingest at a time; merge decisions read-then-write
// the store non-atomically, so per-phase serialization is required.
type Engine struct {
	store   *store.Store
	table   *phase.Table
	opts    Options
	logger  *log.Logger
	metrics *metrics.Metrics

	lockMu     sync.Mutex
	phaseLocks map[int]*sync.Mutex
}

// New creates a consolidation engine. The caller owns the store's lifecycle
// and persistence. Logger and metrics may be nil.
func New(s *store.Store, table *phase.Table, opts Options, logger *log.Logger) *Engine {
	if opts.MergeThreshold <= 0 {
		opts.MergeThreshold = DefaultMergeThreshold
	}
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &Engine{
		store:      s,
		table:      table,
		opts:       opts,
		logger:     logger,
		metrics:    metrics.GetDefault(),
		phaseLocks: make(map[int]*sync.Mutex),
	}
}

// WithMetrics attaches a metrics instance (used by tests with private
// registries; production wiring uses the default instance).
func (e *Engine) WithMetrics(m *metrics.Metrics) *Engine {
	e.metrics = m
	return e
}

// Ingest consolidates one batch of raw recommendations. Processing is in
// array order: the first of two near-duplicates becomes canonical and the
// second merges into it. An empty batch yields a zero report.
//
// All merges run against a staged copy of the store, committed only when
// the whole batch succeeds; a failure leaves the store untouched.
func (e *Engine) Ingest(batch []store.Recommendation) (Report, error) {
	start := time.Now()
	var report Report
	if len(batch) == 0 {
		return report, nil
	}

	// Serialize against other ingests touching the same phases.
	phases := e.batchPhases(batch)
	unlock := e.lockPhases(phases)
	defer unlock()

	// The batch runs against a staged copy; the live store is only touched
	// after every recommendation in the batch has succeeded. Concurrent
	// ingests for other phases keep their buckets, so the commit applies
	// this batch's deltas rather than replacing the store wholesale.
	staged := e.store.Clone()
	var ops []stagedOp
	touched := make(map[string]bool)

	for _, rec := range batch {
		if e.metrics != nil {
			e.metrics.RecommendationsIn.Inc()
		}
		decision, recID, inserted, err := e.ingestOne(staged, rec)
		if err != nil {
			if e.metrics != nil {
				e.metrics.BatchesIngested.WithLabelValues("false").Inc()
			}
			return Report{}, fmt.Errorf("ingest %q from batch %s: %w", rec.Title, rec.BatchID, err)
		}
		if recID != "" && !touched[recID] {
			touched[recID] = true
			ops = append(ops, stagedOp{id: recID, inserted: inserted})
		}
		switch decision {
		case decisionAdded:
			report.Added++
		case decisionMerged:
			report.Merged++
		case decisionSkipped:
			report.SkippedDuplicates++
		}
		if e.metrics != nil {
			e.metrics.MergeDecisions.WithLabelValues(string(decision)).Inc()
		}
	}

	if err := e.commit(staged, ops); err != nil {
		if e.metrics != nil {
			e.metrics.BatchesIngested.WithLabelValues("false").Inc()
		}
		return Report{}, err
	}

	if e.metrics != nil {
		e.metrics.BatchesIngested.WithLabelValues("true").Inc()
		e.metrics.StoreSize.Set(float64(e.store.Len()))
		e.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}
	e.logger.Info("batch consolidated",
		"batch_size", len(batch),
		"added", report.Added,
		"merged", report.Merged,
		"skipped_duplicates", report.SkippedDuplicates,
	)
	return report, nil
}

type decision string

const (
	decisionAdded   decision = "added"
	decisionMerged  decision = "merged"
	decisionSkipped decision = "skipped_duplicate"
)

// stagedOp records which canonical recommendation a batch touched and
// whether it was first created by this batch.
type stagedOp struct {
	id       string
	inserted bool
}

// commit applies the staged deltas to the live store in first-touch order.
func (e *Engine) commit(staged *store.Store, ops []stagedOp) error {
	for _, op := range ops {
		final, ok := staged.Get(op.id)
		if !ok {
			return fmt.Errorf("staged recommendation %s vanished before commit", op.id)
		}
		var err error
		if op.inserted {
			err = e.store.Insert(final)
		} else {
			err = e.store.Update(final)
		}
		if err != nil {
			return fmt.Errorf("commit staged recommendation %s: %w", op.id, err)
		}
	}
	return nil
}

// ingestOne applies the consolidation algorithm to a single recommendation
// against the staged store. It returns the decision and, for added/merged
// outcomes, the ID of the canonical recommendation it touched.
func (e *Engine) ingestOne(staged *store.Store, rec store.Recommendation) (decision, string, bool, error) {
	text := rec.Text()
	fingerprint := rec.Fingerprint()

	// Exact (batch_id, raw-text) pair already owned: idempotent no-op.
	if _, owned := staged.OwnerOf(fingerprint); owned {
		return decisionSkipped, "", false, nil
	}

	// Classification ambiguity is not an error; unphased recommendations
	// land in their own bucket.
	phaseIDs := e.table.Classify(text)
	if len(phaseIDs) == 0 {
		e.logger.Debug("recommendation unclassified", "title", rec.Title, "batch_id", rec.BatchID)
	}

	best, bestScore := e.bestMatch(staged, phaseIDs, text)
	if e.metrics != nil && best != nil {
		e.metrics.SimilarityScores.Observe(bestScore)
	}

	if best != nil && bestScore >= e.opts.MergeThreshold {
		if best.HasBatch(rec.BatchID) {
			// Same batch corroborating the same suggestion twice: no-op.
			return decisionSkipped, "", false, nil
		}
		if err := e.merge(staged, best, rec, fingerprint, phaseIDs); err != nil {
			return "", "", false, err
		}
		return decisionMerged, best.ID, false, nil
	}

	id, err := e.insert(staged, rec, fingerprint, phaseIDs)
	if err != nil {
		return "", "", false, err
	}
	return decisionAdded, id, true, nil
}

// bestMatch scans only the phase buckets the incoming recommendation was
// classified into; this bounds work to the matched buckets instead of the
// whole store. Ties resolve to the earliest-inserted candidate.
func (e *Engine) bestMatch(staged *store.Store, phaseIDs []int, text string) (*store.CanonicalRecommendation, float64) {
	buckets := phaseIDs
	if len(buckets) == 0 {
		buckets = []int{store.UnphasedBucket}
	}

	seen := make(map[string]bool)
	var best *store.CanonicalRecommendation
	bestScore := -1.0

	for _, phaseID := range buckets {
		for _, candidate := range staged.ByPhase(phaseID) {
			if seen[candidate.ID] {
				continue
			}
			seen[candidate.ID] = true

			score := similarity.Score(text, candidate.CanonicalText)
			if score > bestScore {
				best = candidate
				bestScore = score
			}
		}
	}
	return best, bestScore
}

// merge folds the incoming recommendation into an existing canonical one:
// provenance is appended, confidence grows with decaying gain, priority
// upgrades, and a meaningfully more specific text replaces the canonical one.
func (e *Engine) merge(staged *store.Store, target *store.CanonicalRecommendation, rec store.Recommendation, fingerprint string, phaseIDs []int) error {
	delta := baseConfidenceDelta / float64(1+len(target.SourceBatchIDs))
	target.Confidence = min(1.0, target.Confidence+delta)
	target.SourceBatchIDs = append(target.SourceBatchIDs, rec.BatchID)
	target.Fingerprints = append(target.Fingerprints, fingerprint)

	incoming := rec.Text()
	upgraded := false
	if rec.Priority.Rank() > target.Priority.Rank() {
		target.Priority = rec.Priority
		upgraded = true
	}
	if moreSpecific(incoming, target.CanonicalText) {
		target.CanonicalText = incoming
		upgraded = true
	}
	if upgraded {
		target.Status = store.StatusEnhanced
	} else if target.Status != store.StatusEnhanced {
		target.Status = store.StatusMerged
	}

	// Cross-phase classification on the incoming text extends membership.
	for _, phaseID := range phaseIDs {
		if !target.HasPhase(phaseID) {
			target.PhaseIDs = append(target.PhaseIDs, phaseID)
		}
	}
	sort.Ints(target.PhaseIDs)
	target.UpdatedAt = time.Now().UTC()

	return staged.Update(target)
}

func (e *Engine) insert(staged *store.Store, rec store.Recommendation, fingerprint string, phaseIDs []int) (string, error) {
	now := time.Now().UTC()
	id := uuid.NewString()
	return id, staged.Insert(&store.CanonicalRecommendation{
		ID:             id,
		CanonicalText:  rec.Text(),
		PhaseIDs:       append([]int(nil), phaseIDs...),
		Priority:       rec.Priority,
		Confidence:     rec.Priority.InitialConfidence(),
		SourceBatchIDs: []string{rec.BatchID},
		Fingerprints:   []string{fingerprint},
		Status:         store.StatusNew,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// batchPhases returns the sorted union of phases the batch classifies into,
// including the unphased bucket when any recommendation is unclassified.
func (e *Engine) batchPhases(batch []store.Recommendation) []int {
	set := make(map[int]bool)
	for _, rec := range batch {
		ids := e.table.Classify(rec.Text())
		if len(ids) == 0 {
			set[store.UnphasedBucket] = true
		}
		for _, id := range ids {
			set[id] = true
		}
	}

	phases := make([]int, 0, len(set))
	for id := range set {
		phases = append(phases, id)
	}
	sort.Ints(phases)
	return phases
}

// lockPhases acquires the per-phase locks in ascending order (consistent
// ordering prevents deadlock between concurrent ingests) and returns a
// release function.
func (e *Engine) lockPhases(phaseIDs []int) func() {
	locks := make([]*sync.Mutex, 0, len(phaseIDs))
	for _, id := range phaseIDs {
		locks = append(locks, e.phaseLock(id))
	}
	for _, l := range locks {
		l.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

func (e *Engine) phaseLock(phaseID int) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()

	l, ok := e.phaseLocks[phaseID]
	if !ok {
		l = &sync.Mutex{}
		e.phaseLocks[phaseID] = l
	}
	return l
}

// moreSpecific reports whether the incoming text should replace the current
// canonical text: it must be longer and contribute at least one new concrete
// term rather than just restating the same words.
func moreSpecific(incoming, current string) bool {
	if len(incoming) <= len(current) {
		return false
	}

	currentTokens := make(map[string]bool)
	for _, tok := range wordRegex.FindAllString(strings.ToLower(current), -1) {
		currentTokens[tok] = true
	}

	for _, tok := range wordRegex.FindAllString(strings.ToLower(incoming), -1) {
		if len(tok) >= minConcreteTokenLen && !currentTokens[tok] {
			return true
		}
	}
	return false
}
