// Package phase maps recommendation text to the ordinal project phases it
// belongs to. Classification is keyword-driven and deterministic: each phase
// carries a keyword set, and any word-boundary hit places the recommendation
// in that phase. A recommendation may belong to several phases, or to none.
package phase

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Phase is static reference data describing one stage of the target
// project's roadmap. Read-only at runtime.
type Phase struct {
	ID          int      `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Keywords    []string `yaml:"keywords" json:"keywords"`
	DependsOn   []int    `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// Table holds the full phase set with compiled keyword matchers.
type Table struct {
	phases   []Phase
	matchers map[int][]*regexp.Regexp
}

// NewTable builds a Table from the given phases. Phase IDs must be unique
// and non-negative, and every phase needs at least one keyword.
func NewTable(phases []Phase) (*Table, error) {
	if len(phases) == 0 {
		return nil, fmt.Errorf("phase table must declare at least one phase")
	}

	seen := make(map[int]bool, len(phases))
	matchers := make(map[int][]*regexp.Regexp, len(phases))

	for _, p := range phases {
		if p.ID < 0 {
			return nil, fmt.Errorf("phase %q has negative ID %d", p.Name, p.ID)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate phase ID %d", p.ID)
		}
		seen[p.ID] = true

		if len(p.Keywords) == 0 {
			return nil, fmt.Errorf("phase %d (%s) has no keywords", p.ID, p.Name)
		}
		for _, dep := range p.DependsOn {
			if dep == p.ID {
				return nil, fmt.Errorf("phase %d depends on itself", p.ID)
			}
		}

		compiled := make([]*regexp.Regexp, 0, len(p.Keywords))
		for _, kw := range p.Keywords {
			kw = strings.TrimSpace(strings.ToLower(kw))
			if kw == "" {
				return nil, fmt.Errorf("phase %d has an empty keyword", p.ID)
			}
			re, err := regexp.Compile(`\b` + regexp.QuoteMeta(kw) + `\b`)
			if err != nil {
				return nil, fmt.Errorf("compile keyword %q for phase %d: %w", kw, p.ID, err)
			}
			compiled = append(compiled, re)
		}
		matchers[p.ID] = compiled
	}

	sorted := make([]Phase, len(phases))
	copy(sorted, phases)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	// Dependencies must reference declared phases.
	for _, p := range sorted {
		for _, dep := range p.DependsOn {
			if !seen[dep] {
				return nil, fmt.Errorf("phase %d depends on undeclared phase %d", p.ID, dep)
			}
		}
	}

	return &Table{phases: sorted, matchers: matchers}, nil
}

// Classify returns the IDs of every phase with at least one keyword hit in
// the text, in ascending order. The match score for a phase is the fraction
// of its keywords present; any hit qualifies since recommendations are short
// and precise. An empty result means "unclassified" and is not an error.
func (t *Table) Classify(text string) []int {
	lowered := strings.ToLower(text)
	if strings.TrimSpace(lowered) == "" {
		return nil
	}

	var ids []int
	for _, p := range t.phases {
		for _, re := range t.matchers[p.ID] {
			if re.MatchString(lowered) {
				ids = append(ids, p.ID)
				break
			}
		}
	}
	return ids
}

// MatchScore returns the fraction of the phase's keywords found in the text.
// Unknown phase IDs score 0.
func (t *Table) MatchScore(phaseID int, text string) float64 {
	matchers, ok := t.matchers[phaseID]
	if !ok || len(matchers) == 0 {
		return 0.0
	}

	lowered := strings.ToLower(text)
	hits := 0
	for _, re := range matchers {
		if re.MatchString(lowered) {
			hits++
		}
	}
	return float64(hits) / float64(len(matchers))
}

// Phase looks up a phase by ID.
func (t *Table) Phase(id int) (Phase, bool) {
	for _, p := range t.phases {
		if p.ID == id {
			return p, true
		}
	}
	return Phase{}, false
}

// Phases returns all phases in ascending ID order.
func (t *Table) Phases() []Phase {
	out := make([]Phase, len(t.phases))
	copy(out, t.phases)
	return out
}

// IDs returns all declared phase IDs in ascending order.
func (t *Table) IDs() []int {
	ids := make([]int, len(t.phases))
	for i, p := range t.phases {
		ids[i] = p.ID
	}
	return ids
}
