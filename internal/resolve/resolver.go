// Package resolve compares consolidated recommendations against an existing
// plan and decides which updates are safe to apply automatically.
package resolve

import (
	"fmt"

	"github.com/felixgeelhaar/planmerge/internal/plan"
	"github.com/felixgeelhaar/planmerge/internal/similarity"
	"github.com/felixgeelhaar/planmerge/internal/store"
)

// Classification is the resolver's verdict for one recommendation.
type Classification string

const (
	// ClassificationConflict contradicts an explicit plan decision and
	// must never be auto-applied.
	ClassificationConflict Classification = "conflict"
	// ClassificationEnhancement refines an existing section with no
	// contradicting pattern.
	ClassificationEnhancement Classification = "enhancement"
	// ClassificationNewAddition has no matching section in the phase.
	ClassificationNewAddition Classification = "new_addition"
)

// DefaultRelatednessThreshold is the minimum similarity between a
// recommendation and a plan section for the resolver to treat them as
// covering the same topic. Well below the merge threshold: a section only
// loosely about the same area is still the right place for a refinement.
const DefaultRelatednessThreshold = 0.30

// ConflictRecord is one resolution verdict. Records are rebuilt fresh on
// every pass and live only as long as the report they feed.
type ConflictRecord struct {
	PhaseID         int            `json:"phase_id"`
	CanonicalRecID  string         `json:"canonical_rec_id"`
	PlanSectionID   string         `json:"plan_section_id,omitempty"`
	Classification  Classification `json:"classification"`
	Rationale       string         `json:"rationale"`
	RecommendedText string         `json:"recommended_text"`
}

// Options configures a Resolver.
type Options struct {
	// Exclusivity overrides the default mutual-exclusion table.
	Exclusivity *Exclusivity
	// RelatednessThreshold overrides DefaultRelatednessThreshold.
	RelatednessThreshold float64
}

// Resolver classifies recommendations against plan sections. Resolution is
// pure: the same inputs always produce the same records in the same order.
type Resolver struct {
	exclusivity *Exclusivity
	threshold   float64
}

// New creates a resolver. A nil or zero Options falls back to the default
// exclusivity table and relatedness threshold.
func New(opts Options) (*Resolver, error) {
	excl := opts.Exclusivity
	if excl == nil {
		var err error
		excl, err = NewExclusivity(DefaultGroups())
		if err != nil {
			return nil, err
		}
	}
	threshold := opts.RelatednessThreshold
	if threshold <= 0 {
		threshold = DefaultRelatednessThreshold
	}
	return &Resolver{exclusivity: excl, threshold: threshold}, nil
}

// Resolve classifies every recommendation against the phase's plan sections.
// One record per recommendation, in input order:
//
//   - conflict when any section names a mutually exclusive technology
//   - enhancement when the closest section is related and nothing collides
//   - new_addition when no section in the phase is related
func (r *Resolver) Resolve(phaseID int, recs []*store.CanonicalRecommendation, sections []plan.Section) []ConflictRecord {
	records := make([]ConflictRecord, 0, len(recs))
	for _, rec := range recs {
		records = append(records, r.resolveOne(phaseID, rec, sections))
	}
	return records
}

func (r *Resolver) resolveOne(phaseID int, rec *store.CanonicalRecommendation, sections []plan.Section) ConflictRecord {
	record := ConflictRecord{
		PhaseID:         phaseID,
		CanonicalRecID:  rec.ID,
		RecommendedText: rec.CanonicalText,
	}

	// Collision scan first: a contradiction anywhere in the phase outranks
	// relatedness to some other section.
	for _, section := range sections {
		if section.PhaseID != phaseID {
			continue
		}
		sectionText := section.Title + " " + section.Body
		if recTerm, planTerm, found := r.exclusivity.Collision(rec.CanonicalText, sectionText); found {
			record.PlanSectionID = section.ID
			record.Classification = ClassificationConflict
			record.Rationale = fmt.Sprintf(
				"recommendation names %q but section %q already commits to %q",
				recTerm, section.ID, planTerm)
			return record
		}
	}

	var bestSection *plan.Section
	var bestScore float64
	for i := range sections {
		section := &sections[i]
		if section.PhaseID != phaseID {
			continue
		}
		score := similarity.Score(rec.CanonicalText, section.Title+" "+section.Body)
		if score > bestScore {
			bestScore = score
			bestSection = section
		}
	}

	if bestSection != nil && bestScore >= r.threshold {
		record.PlanSectionID = bestSection.ID
		record.Classification = ClassificationEnhancement
		record.Rationale = fmt.Sprintf(
			"refines section %q (similarity %.2f) with no contradicting pattern",
			bestSection.ID, bestScore)
		return record
	}

	record.Classification = ClassificationNewAddition
	record.Rationale = "no matching plan section in this phase"
	return record
}
