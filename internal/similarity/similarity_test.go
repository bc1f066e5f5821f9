package similarity

import (
	"math"
	"testing"
)

func TestScoreReflexive(t *testing.T) {
	inputs := []string{
		"",
		"versioning",
		"Add model versioning",
		"Implement data validation for the ETL pipeline",
		"  punctuation, only!!  ",
	}

	for _, in := range inputs {
		if got := Score(in, in); got != 1.0 {
			t.Errorf("Score(%q, %q) = %v, want 1.0", in, in, got)
		}
	}
}

func TestScoreSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Add model versioning", "Implement model versioning system"},
		{"data validation", "schema migration"},
		{"", "x"},
		{"one two three", "three two one"},
	}

	for _, p := range pairs {
		ab := Score(p[0], p[1])
		ba := Score(p[1], p[0])
		if math.Abs(ab-ba) > 1e-12 {
			t.Errorf("Score(%q, %q) = %v but Score(%q, %q) = %v", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestScoreEmptyInputs(t *testing.T) {
	if got := Score("", ""); got != 1.0 {
		t.Errorf("Score(\"\", \"\") = %v, want 1.0", got)
	}
	if got := Score("x", ""); got != 0.0 {
		t.Errorf("Score(\"x\", \"\") = %v, want 0.0", got)
	}
	if got := Score("", "x"); got != 0.0 {
		t.Errorf("Score(\"\", \"x\") = %v, want 0.0", got)
	}
}

func TestScoreRange(t *testing.T) {
	pairs := [][2]string{
		{"Add model versioning", "Implement model versioning system"},
		{"completely unrelated text", "nothing in common here"},
		{"a b c", "a b c d e f g"},
	}

	for _, p := range pairs {
		got := Score(p[0], p[1])
		if got < 0.0 || got > 1.0 {
			t.Errorf("Score(%q, %q) = %v, out of [0,1]", p[0], p[1], got)
		}
	}
}

func TestScoreNearDuplicates(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		min  float64
	}{
		{
			name: "reworded versioning recommendation",
			a:    "Add model versioning",
			b:    "Implement model versioning system",
			min:  0.80,
		},
		{
			name: "verbosity difference",
			a:    "Set up data validation",
			b:    "Set up data validation checks",
			min:  0.80,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.a, tt.b); got < tt.min {
				t.Errorf("Score(%q, %q) = %v, want >= %v", tt.a, tt.b, got, tt.min)
			}
		})
	}
}

func TestScoreDistinctRecommendations(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		max  float64
	}{
		{
			name: "different subjects",
			a:    "Add model versioning",
			b:    "Migrate the feature store to Redis",
			max:  0.50,
		},
		{
			name: "no shared vocabulary",
			a:    "Introduce canary deployments",
			b:    "Document the annotation guidelines",
			max:  0.30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.a, tt.b); got > tt.max {
				t.Errorf("Score(%q, %q) = %v, want <= %v", tt.a, tt.b, got, tt.max)
			}
		})
	}
}

func TestScoreCaseInsensitive(t *testing.T) {
	if got := Score("MODEL VERSIONING", "model versioning"); got != 1.0 {
		t.Errorf("case difference should not affect score, got %v", got)
	}
}
