package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistry(t *testing.T) {
	reg, m := NewRegistry()
	if reg == nil || m == nil {
		t.Fatal("NewRegistry returned nil")
	}

	m.MergeDecisions.WithLabelValues("added").Inc()
	m.MergeDecisions.WithLabelValues("merged").Add(2)

	if got := testutil.ToFloat64(m.MergeDecisions.WithLabelValues("added")); got != 1 {
		t.Errorf("added counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.MergeDecisions.WithLabelValues("merged")); got != 2 {
		t.Errorf("merged counter = %v, want 2", got)
	}
}

func TestIndependentRegistries(t *testing.T) {
	_, m1 := NewRegistry()
	_, m2 := NewRegistry()

	m1.RecommendationsIn.Inc()

	if got := testutil.ToFloat64(m2.RecommendationsIn); got != 0 {
		t.Errorf("registries should be independent, got %v", got)
	}
}

func TestDefaultLifecycle(t *testing.T) {
	Reset()
	defer Reset()

	first := GetDefault()
	second := GetDefault()
	if first != second {
		t.Error("GetDefault should return the same instance")
	}
}
