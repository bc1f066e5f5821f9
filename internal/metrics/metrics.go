// Package metrics exposes Prometheus instrumentation for the consolidation
// pipeline: ingest outcomes, merge decisions, conflict classifications,
// budget gate results, and backup sizes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for planmerge
type Metrics struct {
	// Consolidation metrics
	BatchesIngested   *prometheus.CounterVec
	RecommendationsIn prometheus.Counter
	MergeDecisions    *prometheus.CounterVec
	IngestDuration    prometheus.Histogram
	SimilarityScores  prometheus.Histogram
	StoreSize         prometheus.Gauge

	// Resolution metrics
	ConflictRecords *prometheus.CounterVec
	SafeApplies     *prometheus.CounterVec

	// Phase lifecycle metrics
	PhaseTransitions *prometheus.CounterVec
	PhaseDuration    *prometheus.HistogramVec

	// Budget metrics
	BudgetChecks *prometheus.CounterVec
	CostRecorded *prometheus.CounterVec

	// Backup metrics
	Backups     *prometheus.CounterVec
	BackupBytes prometheus.Histogram
	Restores    *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		BatchesIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planmerge_batches_ingested_total",
				Help: "Total number of recommendation batches ingested",
			},
			[]string{"success"},
		),
		RecommendationsIn: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "planmerge_recommendations_ingested_total",
				Help: "Total number of raw recommendations processed",
			},
		),
		MergeDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planmerge_merge_decisions_total",
				Help: "Consolidation outcomes per incoming recommendation",
			},
			[]string{"decision"}, // added, merged, skipped_duplicate
		),
		IngestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "planmerge_ingest_duration_seconds",
				Help:    "Batch ingest duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		SimilarityScores: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "planmerge_similarity_best_score",
				Help:    "Best similarity score found per incoming recommendation",
				Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
			},
		),
		StoreSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "planmerge_store_recommendations",
				Help: "Number of canonical recommendations in the store",
			},
		),
		ConflictRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planmerge_conflict_records_total",
				Help: "Resolver classifications produced",
			},
			[]string{"classification"}, // conflict, enhancement, new_addition
		),
		SafeApplies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planmerge_safe_applies_total",
				Help: "Plan updates applied or skipped by the override resolver",
			},
			[]string{"outcome"}, // applied, skipped
		),
		PhaseTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planmerge_phase_transitions_total",
				Help: "Phase state machine transitions",
			},
			[]string{"to_state"},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "planmerge_phase_duration_seconds",
				Help:    "Time from phase start to completion",
				Buckets: []float64{1, 10, 60, 300, 900, 3600, 14400},
			},
			[]string{"phase_id"},
		),
		BudgetChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planmerge_budget_checks_total",
				Help: "Budget gate evaluations",
			},
			[]string{"result"}, // allowed, needs_approval, denied
		),
		CostRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planmerge_cost_recorded_usd_total",
				Help: "Cost recorded to the ledger in USD",
			},
			[]string{"phase_id"},
		),
		Backups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planmerge_backups_total",
				Help: "Backup archives created",
			},
			[]string{"success"},
		),
		BackupBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "planmerge_backup_size_bytes",
				Help:    "Size of created backup archives",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
		Restores: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planmerge_restores_total",
				Help: "Backup restorations attempted",
			},
			[]string{"success"},
		),
	}
}
