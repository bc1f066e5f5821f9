package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DocumentPath returns the conventional file location for a phase's plan
// document inside a plan directory.
func DocumentPath(planDir string, phaseID int) string {
	return filepath.Join(planDir, fmt.Sprintf("phase-%d.yaml", phaseID))
}

// LoadDocument reads a phase plan from a YAML file. A missing file yields
// an empty document for that phase: phases without a plan yet are normal.
func LoadDocument(planDir string, phaseID int) (*Document, error) {
	path := DocumentPath(planDir, phaseID)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{PhaseID: phaseID}, nil
		}
		return nil, fmt.Errorf("read plan file: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}

	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("validate plan %s: %w", path, err)
	}
	return &doc, nil
}

// SaveDocument writes a phase plan to its YAML file, validating first.
func SaveDocument(planDir string, doc *Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("validate plan: %w", err)
	}

	if err := os.MkdirAll(planDir, 0755); err != nil {
		return fmt.Errorf("create plan directory: %w", err)
	}

	doc.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	if err := os.WriteFile(DocumentPath(planDir, doc.PhaseID), data, 0644); err != nil {
		return fmt.Errorf("write plan file: %w", err)
	}
	return nil
}
