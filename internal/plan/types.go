// Package plan reads and writes the existing project plan the resolver
// reconciles recommendations against. Plan sections are foreign state: the
// engine reads them, proposes changes, and writes back only approved
// categories through the override resolver.
package plan

import "time"

// Section is one titled block of the existing plan, assigned to a phase.
type Section struct {
	ID      string `yaml:"id" json:"id"`
	Title   string `yaml:"title" json:"title"`
	Body    string `yaml:"body" json:"body"`
	PhaseID int    `yaml:"phase_id" json:"phase_id"`
}

// Document is the on-disk plan for a single phase.
type Document struct {
	PhaseID   int       `yaml:"phase_id" json:"phase_id"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
	Sections  []Section `yaml:"sections" json:"sections"`
}
