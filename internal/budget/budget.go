// Package budget gates cost-incurring phase operations against configured
// spending limits. All spend is recorded in an append-only JSONL ledger;
// budget checks are pure read-aggregations over that ledger.
package budget

import (
	"fmt"
	"strconv"
	"time"

	"github.com/felixgeelhaar/planmerge/internal/errors"
	"github.com/felixgeelhaar/planmerge/internal/metrics"
)

// Decision is the outcome of a budget check.
type Decision string

const (
	DecisionAllowed       Decision = "allowed"
	DecisionNeedsApproval Decision = "needs_approval"
	DecisionDenied        Decision = "denied"
)

// Limits configures spending caps. A zero value means unlimited for that
// dimension.
type Limits struct {
	// PerPhaseUSD overrides the default limit for specific phases.
	PerPhaseUSD map[int]float64 `yaml:"per_phase_usd" json:"per_phase_usd"`
	// DefaultPhaseUSD caps each phase without an explicit override.
	DefaultPhaseUSD float64 `yaml:"default_phase_usd" json:"default_phase_usd"`
	// TotalUSD caps spend across all phases.
	TotalUSD float64 `yaml:"total_usd" json:"total_usd"`
	// ApprovalThresholdUSD routes in-limit but unusually large spend to a
	// human before it is allowed.
	ApprovalThresholdUSD float64 `yaml:"approval_threshold_usd" json:"approval_threshold_usd"`
}

// Validate checks that all configured limits are non-negative.
func (l Limits) Validate() error {
	if l.DefaultPhaseUSD < 0 {
		return fmt.Errorf("default_phase_usd must be non-negative, got %v", l.DefaultPhaseUSD)
	}
	if l.TotalUSD < 0 {
		return fmt.Errorf("total_usd must be non-negative, got %v", l.TotalUSD)
	}
	if l.ApprovalThresholdUSD < 0 {
		return fmt.Errorf("approval_threshold_usd must be non-negative, got %v", l.ApprovalThresholdUSD)
	}
	for id, limit := range l.PerPhaseUSD {
		if limit < 0 {
			return fmt.Errorf("per_phase_usd[%d] must be non-negative, got %v", id, limit)
		}
	}
	return nil
}

// phaseLimit returns the effective cap for one phase, zero when unlimited.
func (l Limits) phaseLimit(phaseID int) float64 {
	if limit, ok := l.PerPhaseUSD[phaseID]; ok {
		return limit
	}
	return l.DefaultPhaseUSD
}

// CostRecord is one committed ledger entry. Entries are never altered after
// they are written.
type CostRecord struct {
	PhaseID   int       `json:"phase_id"`
	AmountUSD float64   `json:"amount_usd"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckResult reports a budget decision with the figures behind it.
type CheckResult struct {
	Decision     Decision `json:"decision"`
	Reason       string   `json:"reason,omitempty"`
	PhaseID      int      `json:"phase_id"`
	ProjectedUSD float64  `json:"projected_usd"`
	PhaseSpent   float64  `json:"phase_spent_usd"`
	TotalSpent   float64  `json:"total_spent_usd"`
}

// Summary aggregates the ledger for reporting.
type Summary struct {
	TotalUSD    float64         `json:"total_usd"`
	PerPhaseUSD map[int]float64 `json:"per_phase_usd"`
	RecordCount int             `json:"record_count"`
}

// Guard answers budget checks and records spend. Every check re-reads the
// ledger so it sees all previously committed records.
type Guard struct {
	ledger  *ledger
	limits  Limits
	metrics *metrics.Metrics
}

// NewGuard creates a guard over the JSONL ledger at ledgerPath.
func NewGuard(ledgerPath string, limits Limits) (*Guard, error) {
	if err := limits.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "invalid budget limits", err)
	}
	return &Guard{ledger: newLedger(ledgerPath), limits: limits, metrics: metrics.GetDefault()}, nil
}

// WithMetrics attaches a metrics instance (tests use private registries).
func (g *Guard) WithMetrics(m *metrics.Metrics) *Guard {
	g.metrics = m
	return g
}

// Check decides whether a projected spend for a phase may proceed. Denial
// happens when either the phase limit or the total limit would be exceeded;
// in-limit spend above the approval threshold needs human sign-off.
func (g *Guard) Check(phaseID int, projectedUSD float64) (*CheckResult, error) {
	if projectedUSD < 0 {
		return nil, fmt.Errorf("projected cost must be non-negative, got %v", projectedUSD)
	}

	records, err := g.ledger.read()
	if err != nil {
		return nil, err
	}

	var phaseSpent, totalSpent float64
	for _, rec := range records {
		totalSpent += rec.AmountUSD
		if rec.PhaseID == phaseID {
			phaseSpent += rec.AmountUSD
		}
	}

	result := &CheckResult{
		PhaseID:      phaseID,
		ProjectedUSD: projectedUSD,
		PhaseSpent:   phaseSpent,
		TotalSpent:   totalSpent,
	}

	switch limit := g.limits.phaseLimit(phaseID); {
	case limit > 0 && phaseSpent+projectedUSD > limit:
		result.Decision = DecisionDenied
		result.Reason = fmt.Sprintf("phase %d limit $%.2f exceeded (spent $%.2f, projected $%.2f)",
			phaseID, limit, phaseSpent, projectedUSD)
	case g.limits.TotalUSD > 0 && totalSpent+projectedUSD > g.limits.TotalUSD:
		result.Decision = DecisionDenied
		result.Reason = fmt.Sprintf("total limit $%.2f exceeded (spent $%.2f, projected $%.2f)",
			g.limits.TotalUSD, totalSpent, projectedUSD)
	case g.limits.ApprovalThresholdUSD > 0 && projectedUSD >= g.limits.ApprovalThresholdUSD:
		result.Decision = DecisionNeedsApproval
		result.Reason = fmt.Sprintf("projected $%.2f meets the approval threshold $%.2f",
			projectedUSD, g.limits.ApprovalThresholdUSD)
	default:
		result.Decision = DecisionAllowed
	}

	if g.metrics != nil {
		g.metrics.BudgetChecks.WithLabelValues(string(result.Decision)).Inc()
	}
	return result, nil
}

// Authorize is Check expressed as an error: nil when allowed, a coded error
// when the spend needs approval or is denied. The approved flag overrides a
// needs-approval result.
func (g *Guard) Authorize(phaseID int, projectedUSD float64, approved bool) error {
	result, err := g.Check(phaseID, projectedUSD)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBudgetLedgerFailed, "budget check failed", err)
	}

	switch result.Decision {
	case DecisionAllowed:
		return nil
	case DecisionNeedsApproval:
		if approved {
			return nil
		}
		return errors.NewBudgetNeedsApprovalError(phaseID, projectedUSD, g.limits.ApprovalThresholdUSD)
	default:
		limit := g.limits.phaseLimit(phaseID)
		spent := result.PhaseSpent
		if g.limits.TotalUSD > 0 && result.TotalSpent+projectedUSD > g.limits.TotalUSD {
			limit = g.limits.TotalUSD
			spent = result.TotalSpent
		}
		return errors.NewBudgetDeniedError(phaseID, projectedUSD, spent, limit)
	}
}

// RecordCost commits one spend entry to the ledger.
func (g *Guard) RecordCost(phaseID int, amountUSD float64, source string) (*CostRecord, error) {
	if amountUSD < 0 {
		return nil, fmt.Errorf("amount must be non-negative, got %v", amountUSD)
	}

	rec := CostRecord{
		PhaseID:   phaseID,
		AmountUSD: amountUSD,
		Source:    source,
		Timestamp: time.Now().UTC(),
	}
	if err := g.ledger.append(rec); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBudgetLedgerFailed, "record cost", err)
	}
	if g.metrics != nil {
		g.metrics.CostRecorded.WithLabelValues(strconv.Itoa(phaseID)).Add(amountUSD)
	}
	return &rec, nil
}

// Summary aggregates all committed spend for audit output.
func (g *Guard) Summary() (*Summary, error) {
	records, err := g.ledger.read()
	if err != nil {
		return nil, err
	}

	sum := &Summary{PerPhaseUSD: make(map[int]float64), RecordCount: len(records)}
	for _, rec := range records {
		sum.TotalUSD += rec.AmountUSD
		sum.PerPhaseUSD[rec.PhaseID] += rec.AmountUSD
	}
	return sum, nil
}

// Records returns the raw ledger entries in commit order.
func (g *Guard) Records() ([]CostRecord, error) {
	return g.ledger.read()
}
