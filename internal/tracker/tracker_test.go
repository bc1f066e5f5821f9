package tracker

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/planmerge/internal/errors"
	"github.com/felixgeelhaar/planmerge/internal/metrics"
	"github.com/felixgeelhaar/planmerge/internal/phase"
)

func testTable(t *testing.T) *phase.Table {
	t.Helper()
	table, err := phase.NewTable([]phase.Phase{
		{ID: 0, Name: "foundations", Keywords: []string{"setup"}},
		{ID: 1, Name: "data-ingestion", Keywords: []string{"etl"}, DependsOn: []int{0}},
		{ID: 2, Name: "data-quality", Keywords: []string{"validation"}, DependsOn: []int{1}},
	})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	return table
}

func newTestTracker(t *testing.T) (*Tracker, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "phase-status.json")
	tr, err := New(path, testTable(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, m := metrics.NewRegistry()
	return tr.WithMetrics(m), path
}

func TestNewInitializesPending(t *testing.T) {
	tr, _ := newTestTracker(t)

	snap := tr.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot() len = %d, want 3", len(snap))
	}
	for _, rec := range snap {
		if rec.State != StatePending {
			t.Errorf("phase %d state = %s, want PENDING", rec.PhaseID, rec.State)
		}
	}
	if got := snap[1].DependsOn; len(got) != 1 || got[0] != 0 {
		t.Errorf("phase 1 DependsOn = %v, want [0]", got)
	}
}

func TestLifecycle(t *testing.T) {
	tr, _ := newTestTracker(t)

	result, err := tr.Start(0)
	if err != nil {
		t.Fatalf("Start(0) error = %v", err)
	}
	if result.Record.State != StateInProgress {
		t.Errorf("state = %s, want IN_PROGRESS", result.Record.State)
	}
	if result.Warning != nil {
		t.Errorf("Warning = %v, want nil for phase with no dependencies", result.Warning)
	}
	if result.Record.StartedAt == nil {
		t.Error("StartedAt not set")
	}

	rec, err := tr.Complete(0)
	if err != nil {
		t.Fatalf("Complete(0) error = %v", err)
	}
	if rec.State != StateComplete {
		t.Errorf("state = %s, want COMPLETE", rec.State)
	}
	if rec.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if rec.DurationSeconds < 0 {
		t.Errorf("DurationSeconds = %v, want >= 0", rec.DurationSeconds)
	}
}

func TestStartWarnsOnUnmetDependency(t *testing.T) {
	tr, _ := newTestTracker(t)

	// Phase 1 depends on phase 0, which is still PENDING.
	result, err := tr.Start(1)
	if err != nil {
		t.Fatalf("Start(1) error = %v", err)
	}
	if result.Warning == nil {
		t.Fatal("Start(1) Warning = nil, want dependency warning")
	}
	if !errors.HasCode(result.Warning, errors.ErrCodePhaseDependencyUnmet) {
		t.Errorf("Warning code = %v, want %s", result.Warning, errors.ErrCodePhaseDependencyUnmet)
	}
	// The warning is advisory; the phase still started.
	if result.Record.State != StateInProgress {
		t.Errorf("state = %s, want IN_PROGRESS", result.Record.State)
	}
}

func TestFail(t *testing.T) {
	tr, _ := newTestTracker(t)

	if _, err := tr.Start(0); err != nil {
		t.Fatalf("Start(0) error = %v", err)
	}
	rec, err := tr.Fail(0, "budget denied for phase 0")
	if err != nil {
		t.Fatalf("Fail(0) error = %v", err)
	}
	if rec.State != StateFailed {
		t.Errorf("state = %s, want FAILED", rec.State)
	}
	if rec.ErrorMessage != "budget denied for phase 0" {
		t.Errorf("ErrorMessage = %q", rec.ErrorMessage)
	}
}

func TestNoPendingToComplete(t *testing.T) {
	tr, _ := newTestTracker(t)

	if _, err := tr.Complete(0); err == nil {
		t.Fatal("Complete(0) on PENDING phase succeeded, want error")
	} else if !errors.HasCode(err, errors.ErrCodePhaseBadTransition) {
		t.Errorf("error = %v, want %s", err, errors.ErrCodePhaseBadTransition)
	}
}

func TestRerun(t *testing.T) {
	tr, _ := newTestTracker(t)

	if _, err := tr.Rerun(0); err == nil {
		t.Fatal("Rerun on PENDING phase succeeded, want error")
	}

	mustStart(t, tr, 0)
	if _, err := tr.Complete(0); err != nil {
		t.Fatalf("Complete(0) error = %v", err)
	}

	rec, err := tr.Rerun(0)
	if err != nil {
		t.Fatalf("Rerun(0) error = %v", err)
	}
	if rec.State != StateNeedsRerun {
		t.Errorf("state = %s, want NEEDS_RERUN", rec.State)
	}
	if rec.CompletedAt != nil {
		t.Error("CompletedAt not cleared")
	}

	// NEEDS_RERUN phases can start again.
	result, err := tr.Start(0)
	if err != nil {
		t.Fatalf("Start after rerun error = %v", err)
	}
	if result.Record.State != StateInProgress {
		t.Errorf("state = %s, want IN_PROGRESS", result.Record.State)
	}
}

func TestRerunFromFailed(t *testing.T) {
	tr, _ := newTestTracker(t)

	mustStart(t, tr, 0)
	if _, err := tr.Fail(0, "boom"); err != nil {
		t.Fatalf("Fail(0) error = %v", err)
	}
	rec, err := tr.Rerun(0)
	if err != nil {
		t.Fatalf("Rerun(0) error = %v", err)
	}
	if rec.State != StateNeedsRerun {
		t.Errorf("state = %s, want NEEDS_RERUN", rec.State)
	}
}

func TestSkip(t *testing.T) {
	tr, _ := newTestTracker(t)

	if _, err := tr.Skip(2, ""); err == nil {
		t.Fatal("Skip with empty reason succeeded, want error")
	} else if !errors.HasCode(err, errors.ErrCodePhaseReasonRequired) {
		t.Errorf("error = %v, want %s", err, errors.ErrCodePhaseReasonRequired)
	}

	rec, err := tr.Skip(2, "covered by existing tooling")
	if err != nil {
		t.Fatalf("Skip(2) error = %v", err)
	}
	if rec.State != StateSkipped {
		t.Errorf("state = %s, want SKIPPED", rec.State)
	}
	if rec.SkipReason != "covered by existing tooling" {
		t.Errorf("SkipReason = %q", rec.SkipReason)
	}

	// Any state may be skipped, including IN_PROGRESS.
	mustStart(t, tr, 0)
	if _, err := tr.Skip(0, "descoped mid-run"); err != nil {
		t.Fatalf("Skip(0) from IN_PROGRESS error = %v", err)
	}
}

func TestUnknownPhase(t *testing.T) {
	tr, _ := newTestTracker(t)

	if _, err := tr.Start(99); err == nil {
		t.Fatal("Start(99) succeeded, want error")
	}
	if _, err := tr.Record(99); err == nil {
		t.Fatal("Record(99) succeeded, want error")
	}
}

func TestPersistenceAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "phase-status.json")
	_, m := metrics.NewRegistry()

	tr, err := New(path, testTable(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	tr = tr.WithMetrics(m)

	mustStart(t, tr, 0)
	if _, err := tr.Complete(0); err != nil {
		t.Fatalf("Complete(0) error = %v", err)
	}
	mustStart(t, tr, 1)

	// Restart: a fresh tracker over the same file must reload state, not
	// reset phases to PENDING.
	reloaded, err := New(path, testTable(t))
	if err != nil {
		t.Fatalf("New() after restart error = %v", err)
	}
	reloaded = reloaded.WithMetrics(m)

	rec, err := reloaded.Record(0)
	if err != nil {
		t.Fatalf("Record(0) error = %v", err)
	}
	if rec.State != StateComplete {
		t.Errorf("phase 0 state after restart = %s, want COMPLETE", rec.State)
	}
	rec, err = reloaded.Record(1)
	if err != nil {
		t.Fatalf("Record(1) error = %v", err)
	}
	if rec.State != StateInProgress {
		t.Errorf("phase 1 state after restart = %s, want IN_PROGRESS", rec.State)
	}
	if rec.StartedAt == nil {
		t.Error("phase 1 StartedAt lost across restart")
	}
}

func TestDuration(t *testing.T) {
	tr, _ := newTestTracker(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base
	tr.now = func() time.Time { return current }

	mustStart(t, tr, 0)
	current = base.Add(90 * time.Second)
	rec, err := tr.Complete(0)
	if err != nil {
		t.Fatalf("Complete(0) error = %v", err)
	}
	if rec.DurationSeconds != 90 {
		t.Errorf("DurationSeconds = %v, want 90", rec.DurationSeconds)
	}
}

func mustStart(t *testing.T, tr *Tracker, phaseID int) {
	t.Helper()
	if _, err := tr.Start(phaseID); err != nil {
		t.Fatalf("Start(%d) error = %v", phaseID, err)
	}
}
