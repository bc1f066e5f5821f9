// Package store holds the canonical, deduplicated recommendation set with
// provenance and confidence tracking. The consolidation engine is the only
// writer; reports and the resolver read from it.
package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// Priority weights a recommendation's importance.
type Priority string

const (
	PriorityCritical   Priority = "critical"
	PriorityImportant  Priority = "important"
	PriorityNiceToHave Priority = "nice_to_have"
)

// ParsePriority parses a priority string, accepting common spellings.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return PriorityCritical, nil
	case "important":
		return PriorityImportant, nil
	case "nice_to_have", "nice-to-have", "nice to have":
		return PriorityNiceToHave, nil
	default:
		return "", fmt.Errorf("unknown priority: %q", s)
	}
}

// Rank orders priorities for comparison; higher is more important.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityImportant:
		return 2
	case PriorityNiceToHave:
		return 1
	default:
		return 0
	}
}

// InitialConfidence is the confidence assigned to a freshly inserted
// canonical recommendation, derived from its priority.
func (p Priority) InitialConfidence() float64 {
	switch p {
	case PriorityCritical:
		return 0.9
	case PriorityImportant:
		return 0.7
	case PriorityNiceToHave:
		return 0.5
	default:
		return 0.5
	}
}

// Status describes how a canonical recommendation reached its current form.
type Status string

const (
	// StatusNew marks a recommendation inserted without a merge partner.
	StatusNew Status = "new"
	// StatusEnhanced marks a recommendation upgraded by a higher-priority
	// or more specific incoming duplicate.
	StatusEnhanced Status = "enhanced"
	// StatusMerged marks a recommendation corroborated by another batch
	// without changing its text or priority.
	StatusMerged Status = "merged"
)

// Recommendation is one raw recommendation from an analysis batch.
// Immutable once ingested.
type Recommendation struct {
	Title       string            `yaml:"title" json:"title"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Priority    Priority          `yaml:"priority" json:"priority"`
	BatchID     string            `yaml:"batch_id" json:"batch_id"`
	Metadata    map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Text returns the combined title and description used for classification
// and similarity scoring.
func (r Recommendation) Text() string {
	if strings.TrimSpace(r.Description) == "" {
		return r.Title
	}
	return r.Title + " " + r.Description
}

// Fingerprint returns a stable hash of the (batch_id, raw-text) pair. The
// store uses it to detect exact re-ingestion regardless of similarity scores.
func (r Recommendation) Fingerprint() string {
	hasher := blake3.New()
	hasher.Write([]byte(r.BatchID))
	hasher.Write([]byte{0})
	hasher.Write([]byte(r.Text()))
	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// CanonicalRecommendation is the deduplicated, merged representation of one
// or more raw recommendations judged to refer to the same suggestion.
type CanonicalRecommendation struct {
	ID            string   `json:"id"`
	CanonicalText string   `json:"canonical_text"`
	PhaseIDs      []int    `json:"phase_ids"`
	Priority      Priority `json:"priority"`
	Confidence    float64  `json:"confidence"`
	// SourceBatchIDs records provenance in discovery order. Merges only
	// ever append; no entry is removed.
	SourceBatchIDs []string  `json:"source_batch_ids"`
	Fingerprints   []string  `json:"fingerprints"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HasBatch reports whether the given batch already corroborates this
// recommendation.
func (c *CanonicalRecommendation) HasBatch(batchID string) bool {
	for _, id := range c.SourceBatchIDs {
		if id == batchID {
			return true
		}
	}
	return false
}

// HasPhase reports whether the recommendation belongs to the given phase.
func (c *CanonicalRecommendation) HasPhase(phaseID int) bool {
	for _, id := range c.PhaseIDs {
		if id == phaseID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (c *CanonicalRecommendation) Clone() *CanonicalRecommendation {
	dup := *c
	dup.PhaseIDs = append([]int(nil), c.PhaseIDs...)
	dup.SourceBatchIDs = append([]string(nil), c.SourceBatchIDs...)
	dup.Fingerprints = append([]string(nil), c.Fingerprints...)
	return &dup
}
