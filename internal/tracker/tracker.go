// Package tracker maintains the per-phase lifecycle state machine. Every
// transition is persisted immediately so a restarted run picks up exactly
// where the previous one stopped.
package tracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/felixgeelhaar/planmerge/internal/errors"
	"github.com/felixgeelhaar/planmerge/internal/metrics"
	"github.com/felixgeelhaar/planmerge/internal/phase"
)

// State is a phase lifecycle state.
type State string

const (
	StatePending    State = "PENDING"
	StateInProgress State = "IN_PROGRESS"
	StateComplete   State = "COMPLETE"
	StateFailed     State = "FAILED"
	StateNeedsRerun State = "NEEDS_RERUN"
	StateSkipped    State = "SKIPPED"
)

// Record is the persisted status of one phase.
type Record struct {
	PhaseID         int        `json:"phase_id"`
	State           State      `json:"state"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	SkipReason      string     `json:"skip_reason,omitempty"`
	DependsOn       []int      `json:"depends_on,omitempty"`
}

// snapshot is the on-disk layout.
type snapshot struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Phases    []Record  `json:"phases"`
}

// Tracker owns the status records for every phase in the table.
type Tracker struct {
	mu      sync.Mutex
	path    string
	records map[int]*Record
	metrics *metrics.Metrics

	// now is swappable for duration tests
	now func() time.Time
}

// New loads tracker state from path, creating PENDING records for any table
// phase without a persisted record. Existing records are never reset.
func New(path string, table *phase.Table) (*Tracker, error) {
	t := &Tracker{
		path:    path,
		records: make(map[int]*Record),
		metrics: metrics.GetDefault(),
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read phase status: %w", err)
	}
	if err == nil {
		var snap snapshot
		if unmarshalErr := json.Unmarshal(data, &snap); unmarshalErr != nil {
			return nil, errors.NewFileUnmarshalError(path, "JSON", unmarshalErr)
		}
		for i := range snap.Phases {
			rec := snap.Phases[i]
			t.records[rec.PhaseID] = &rec
		}
	}

	for _, p := range table.Phases() {
		if _, ok := t.records[p.ID]; !ok {
			t.records[p.ID] = &Record{
				PhaseID:   p.ID,
				State:     StatePending,
				DependsOn: append([]int(nil), p.DependsOn...),
			}
		}
	}
	return t, nil
}

// WithMetrics overrides the metrics sink, for tests with a private registry.
func (t *Tracker) WithMetrics(m *metrics.Metrics) *Tracker {
	t.metrics = m
	return t
}

// StartResult is a successful start plus any advisory dependency warning.
type StartResult struct {
	Record *Record
	// Warning is non-nil when a dependency phase is not COMPLETE. The
	// start still happened; dependencies are advisory, not enforced.
	Warning error
}

// Start moves a phase into IN_PROGRESS.
func (t *Tracker) Start(phaseID int) (*StartResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recordLocked(phaseID)
	if err != nil {
		return nil, err
	}
	if rec.State != StatePending && rec.State != StateNeedsRerun {
		return nil, errors.NewPhaseBadTransitionError(phaseID, string(rec.State), string(StateInProgress))
	}

	var warning error
	var unmet []int
	for _, dep := range rec.DependsOn {
		if depRec, ok := t.records[dep]; !ok || depRec.State != StateComplete {
			unmet = append(unmet, dep)
		}
	}
	if len(unmet) > 0 {
		warning = errors.NewPhaseDependencyUnmetError(phaseID, unmet)
	}

	now := t.now().UTC()
	rec.State = StateInProgress
	rec.StartedAt = &now
	rec.CompletedAt = nil
	rec.DurationSeconds = 0
	rec.ErrorMessage = ""

	if err := t.persistLocked(rec); err != nil {
		return nil, err
	}
	return &StartResult{Record: cloneRecord(rec), Warning: warning}, nil
}

// Complete moves an IN_PROGRESS phase to COMPLETE and records its duration.
func (t *Tracker) Complete(phaseID int) (*Record, error) {
	return t.finish(phaseID, StateComplete, "")
}

// Fail moves an IN_PROGRESS phase to FAILED with the error message.
func (t *Tracker) Fail(phaseID int, message string) (*Record, error) {
	return t.finish(phaseID, StateFailed, message)
}

func (t *Tracker) finish(phaseID int, to State, message string) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recordLocked(phaseID)
	if err != nil {
		return nil, err
	}
	if rec.State != StateInProgress {
		return nil, errors.NewPhaseBadTransitionError(phaseID, string(rec.State), string(to))
	}

	now := t.now().UTC()
	rec.State = to
	rec.CompletedAt = &now
	rec.ErrorMessage = message
	if rec.StartedAt != nil {
		rec.DurationSeconds = now.Sub(*rec.StartedAt).Seconds()
	}

	if err := t.persistLocked(rec); err != nil {
		return nil, err
	}
	if t.metrics != nil {
		t.metrics.PhaseDuration.WithLabelValues(strconv.Itoa(phaseID)).Observe(rec.DurationSeconds)
	}
	return cloneRecord(rec), nil
}

// Rerun marks a COMPLETE or FAILED phase as NEEDS_RERUN so it can be started
// again. The completion timestamp is cleared; the prior error message stays
// visible until the rerun starts.
func (t *Tracker) Rerun(phaseID int) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recordLocked(phaseID)
	if err != nil {
		return nil, err
	}
	if rec.State != StateComplete && rec.State != StateFailed {
		return nil, errors.NewPhaseBadTransitionError(phaseID, string(rec.State), string(StateNeedsRerun))
	}

	rec.State = StateNeedsRerun
	rec.CompletedAt = nil
	rec.DurationSeconds = 0

	if err := t.persistLocked(rec); err != nil {
		return nil, err
	}
	return cloneRecord(rec), nil
}

// Skip moves a phase to SKIPPED from any state. A reason is mandatory.
func (t *Tracker) Skip(phaseID int, reason string) (*Record, error) {
	if reason == "" {
		return nil, errors.New(errors.ErrCodePhaseReasonRequired,
			fmt.Sprintf("skipping phase %d requires a reason", phaseID)).
			WithSuggestion("Pass a reason explaining why the phase is skipped")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recordLocked(phaseID)
	if err != nil {
		return nil, err
	}

	rec.State = StateSkipped
	rec.SkipReason = reason

	if err := t.persistLocked(rec); err != nil {
		return nil, err
	}
	return cloneRecord(rec), nil
}

// Record returns the status of one phase.
func (t *Tracker) Record(phaseID int) (*Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, err := t.recordLocked(phaseID)
	if err != nil {
		return nil, err
	}
	return cloneRecord(rec), nil
}

// Snapshot returns every phase record ordered by phase ID.
func (t *Tracker) Snapshot() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Record, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhaseID < out[j].PhaseID })
	return out
}

func (t *Tracker) recordLocked(phaseID int) (*Record, error) {
	rec, ok := t.records[phaseID]
	if !ok {
		return nil, errors.New(errors.ErrCodePhaseBadTransition,
			fmt.Sprintf("unknown phase %d", phaseID)).
			WithSuggestion("Run 'planmerge phases' to list known phases")
	}
	return rec, nil
}

// persistLocked writes the full status snapshot after a transition and
// records the transition metric.
func (t *Tracker) persistLocked(changed *Record) error {
	snap := snapshot{Version: "1.0", UpdatedAt: t.now().UTC()}
	for _, rec := range t.records {
		snap.Phases = append(snap.Phases, *rec)
	}
	sort.Slice(snap.Phases, func(i, j int) bool { return snap.Phases[i].PhaseID < snap.Phases[j].PhaseID })

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal phase status: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0644); err != nil {
		return fmt.Errorf("write phase status: %w", err)
	}

	if t.metrics != nil {
		t.metrics.PhaseTransitions.WithLabelValues(string(changed.State)).Inc()
	}
	return nil
}

func cloneRecord(rec *Record) *Record {
	out := *rec
	out.DependsOn = append([]int(nil), rec.DependsOn...)
	if rec.StartedAt != nil {
		ts := *rec.StartedAt
		out.StartedAt = &ts
	}
	if rec.CompletedAt != nil {
		ts := *rec.CompletedAt
		out.CompletedAt = &ts
	}
	return &out
}
