package phase

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// tableFile is the on-disk YAML shape of a phase table.
type tableFile struct {
	Phases []Phase `yaml:"phases"`
}

// LoadTable reads a phase table from a YAML file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phase table: %w", err)
	}

	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unmarshal phase table: %w", err)
	}

	table, err := NewTable(file.Phases)
	if err != nil {
		return nil, fmt.Errorf("invalid phase table %s: %w", path, err)
	}
	return table, nil
}

// SaveTable writes a phase table to a YAML file.
func SaveTable(table *Table, path string) error {
	data, err := yaml.Marshal(tableFile{Phases: table.Phases()})
	if err != nil {
		return fmt.Errorf("marshal phase table: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write phase table: %w", err)
	}
	return nil
}

// DefaultTable returns the built-in phase set for a machine-learning
// platform roadmap. Projects with different phase structures supply their
// own table via LoadTable.
func DefaultTable() *Table {
	table, err := NewTable([]Phase{
		{
			ID:       0,
			Name:     "foundations",
			Keywords: []string{"repository", "ci", "tooling", "environment", "scaffolding", "linting"},
		},
		{
			ID:        1,
			Name:      "data-ingestion",
			Keywords:  []string{"etl", "pipeline", "ingestion", "extract", "source", "connector"},
			DependsOn: []int{0},
		},
		{
			ID:        2,
			Name:      "data-quality",
			Keywords:  []string{"validation", "quality", "schema", "cleaning", "profiling", "anomaly"},
			DependsOn: []int{1},
		},
		{
			ID:        3,
			Name:      "feature-engineering",
			Keywords:  []string{"feature", "transformation", "encoding", "embedding"},
			DependsOn: []int{2},
		},
		{
			ID:        4,
			Name:      "model-training",
			Keywords:  []string{"training", "hyperparameter", "experiment", "evaluation", "baseline"},
			DependsOn: []int{3},
		},
		{
			ID:        5,
			Name:      "model-management",
			Keywords:  []string{"versioning", "registry", "artifact", "lineage", "reproducibility"},
			DependsOn: []int{4},
		},
		{
			ID:        6,
			Name:      "deployment",
			Keywords:  []string{"deployment", "serving", "inference", "endpoint", "rollout", "canary"},
			DependsOn: []int{5},
		},
		{
			ID:        7,
			Name:      "monitoring",
			Keywords:  []string{"monitoring", "drift", "alerting", "observability", "dashboard", "retraining"},
			DependsOn: []int{6},
		},
		{
			ID:        8,
			Name:      "governance",
			Keywords:  []string{"security", "compliance", "access", "audit", "privacy", "governance"},
			DependsOn: []int{0},
		},
		{
			ID:        9,
			Name:      "documentation",
			Keywords:  []string{"documentation", "runbook", "onboarding", "guide", "handbook"},
			DependsOn: []int{0},
		},
	})
	if err != nil {
		// The built-in table is validated by tests; a failure here is a
		// programming error.
		panic(fmt.Sprintf("invalid default phase table: %v", err))
	}
	return table
}
