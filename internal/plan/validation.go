package plan

import (
	"fmt"
	"strings"
)

// Validate checks if the Section is valid
func (s *Section) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("section ID cannot be empty")
	}
	if strings.TrimSpace(s.Title) == "" {
		return fmt.Errorf("section title cannot be empty")
	}
	if s.PhaseID < 0 {
		return fmt.Errorf("section phase ID must be non-negative, got %d", s.PhaseID)
	}
	return nil
}

// Validate checks if the Document is valid: every section must validate,
// carry the document's phase, and have a unique ID.
func (d *Document) Validate() error {
	if d.PhaseID < 0 {
		return fmt.Errorf("document phase ID must be non-negative, got %d", d.PhaseID)
	}

	seen := make(map[string]bool, len(d.Sections))
	for i, section := range d.Sections {
		if err := section.Validate(); err != nil {
			return fmt.Errorf("section at index %d (%s) is invalid: %w", i, section.ID, err)
		}
		if section.PhaseID != d.PhaseID {
			return fmt.Errorf("section %s belongs to phase %d, document is phase %d",
				section.ID, section.PhaseID, d.PhaseID)
		}
		if seen[section.ID] {
			return fmt.Errorf("duplicate section ID %q at index %d", section.ID, i)
		}
		seen[section.ID] = true
	}
	return nil
}
