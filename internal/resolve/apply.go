package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/planmerge/internal/backup"
	"github.com/felixgeelhaar/planmerge/internal/errors"
	"github.com/felixgeelhaar/planmerge/internal/log"
	"github.com/felixgeelhaar/planmerge/internal/metrics"
	"github.com/felixgeelhaar/planmerge/internal/plan"
)

// ApplyOptions configures safe-update application.
type ApplyOptions struct {
	// Strict routes enhancements to manual review as well, so only brand
	// new sections are applied automatically.
	Strict bool
	// ReviewDir overrides where review artifacts are written. Defaults to
	// the plan directory.
	ReviewDir string
}

// ApplyResult reports what a safe-update pass did.
type ApplyResult struct {
	PhaseID    int              `json:"phase_id"`
	Applied    []ConflictRecord `json:"applied"`
	Skipped    []ConflictRecord `json:"skipped"`
	ReviewPath string           `json:"review_path,omitempty"`
	BackupID   string           `json:"backup_id,omitempty"`
}

// reviewArtifact is the manual-review file written for items that must not
// be auto-applied.
type reviewArtifact struct {
	PhaseID     int              `yaml:"phase_id"`
	GeneratedAt time.Time        `yaml:"generated_at"`
	Items       []ConflictRecord `yaml:"items"`
}

// Applier writes resolver verdicts back to the plan. Every mutation is
// preceded by a backup of the phase's plan document; a failed write restores
// the backup so the plan never ends up half-updated.
type Applier struct {
	planDir string
	backups *backup.Manager
	opts    ApplyOptions
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewApplier creates an applier over planDir using the given backup manager.
func NewApplier(planDir string, backups *backup.Manager, opts ApplyOptions, logger *log.Logger) *Applier {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	if opts.ReviewDir == "" {
		opts.ReviewDir = planDir
	}
	return &Applier{
		planDir: planDir,
		backups: backups,
		opts:    opts,
		logger:  logger,
		metrics: metrics.GetDefault(),
	}
}

// WithMetrics attaches a metrics instance (used by tests with private
// registries; production wiring uses the default instance).
func (a *Applier) WithMetrics(m *metrics.Metrics) *Applier {
	a.metrics = m
	return a
}

// ApplySafeUpdates applies enhancement and new_addition records to the
// phase's plan document. Conflicts never mutate the plan; they go to a
// manual-review artifact alongside anything else that was held back.
func (a *Applier) ApplySafeUpdates(phaseID int, records []ConflictRecord) (*ApplyResult, error) {
	result := &ApplyResult{PhaseID: phaseID}

	var safe []ConflictRecord
	for _, rec := range records {
		if rec.PhaseID != phaseID {
			return nil, fmt.Errorf("record for phase %d passed to apply for phase %d", rec.PhaseID, phaseID)
		}
		switch rec.Classification {
		case ClassificationConflict:
			result.Skipped = append(result.Skipped, rec)
		case ClassificationEnhancement:
			if a.opts.Strict {
				result.Skipped = append(result.Skipped, rec)
			} else {
				safe = append(safe, rec)
			}
		case ClassificationNewAddition:
			safe = append(safe, rec)
		default:
			return nil, fmt.Errorf("unknown classification %q", rec.Classification)
		}
	}

	if len(result.Skipped) > 0 {
		reviewPath, err := a.writeReview(phaseID, result.Skipped)
		if err != nil {
			return nil, err
		}
		result.ReviewPath = reviewPath
	}
	for _, rec := range result.Skipped {
		a.metrics.SafeApplies.WithLabelValues("skipped").Inc()
		a.metrics.ConflictRecords.WithLabelValues(string(rec.Classification)).Inc()
	}

	if len(safe) == 0 {
		return result, nil
	}

	docPath := plan.DocumentPath(a.planDir, phaseID)
	if err := a.ensureDocument(phaseID, docPath); err != nil {
		return nil, err
	}

	b, err := a.backups.Create(phaseID, []string{docPath})
	if err != nil {
		// No plan file was touched; the apply aborts whole.
		return nil, errors.NewBackupFailedError(phaseID, err)
	}
	result.BackupID = b.ID

	if err := a.mutate(phaseID, safe); err != nil {
		a.logger.WithPhase(phaseID).WithError(err).Error("apply failed, restoring plan from backup")
		if _, restoreErr := a.backups.Restore(b); restoreErr != nil {
			return nil, errors.Wrap(errors.ErrCodeRestoreFailed,
				fmt.Sprintf("apply failed and restore of backup %s also failed", b.ID), restoreErr)
		}
		a.metrics.Restores.WithLabelValues("true").Inc()
		return nil, err
	}

	result.Applied = safe
	for _, rec := range safe {
		a.metrics.SafeApplies.WithLabelValues("applied").Inc()
		a.metrics.ConflictRecords.WithLabelValues(string(rec.Classification)).Inc()
	}
	a.logger.WithPhase(phaseID).Info("applied safe plan updates",
		"applied", len(result.Applied), "skipped", len(result.Skipped))
	return result, nil
}

// mutate loads the phase document, applies every safe record, and saves it.
func (a *Applier) mutate(phaseID int, safe []ConflictRecord) error {
	doc, err := plan.LoadDocument(a.planDir, phaseID)
	if err != nil {
		return err
	}

	for _, rec := range safe {
		switch rec.Classification {
		case ClassificationEnhancement:
			idx := sectionIndex(doc, rec.PlanSectionID)
			if idx < 0 {
				return fmt.Errorf("section %q named by record %s not in plan document", rec.PlanSectionID, rec.CanonicalRecID)
			}
			doc.Sections[idx].Body = appendParagraph(doc.Sections[idx].Body, rec.RecommendedText)
		case ClassificationNewAddition:
			doc.Sections = append(doc.Sections, plan.Section{
				ID:      "rec-" + rec.CanonicalRecID,
				Title:   sectionTitle(rec.RecommendedText),
				Body:    rec.RecommendedText,
				PhaseID: phaseID,
			})
		}
	}
	return plan.SaveDocument(a.planDir, doc)
}

// ensureDocument guarantees the phase document exists on disk so the backup
// has an artifact to protect even on the first apply for a phase.
func (a *Applier) ensureDocument(phaseID int, docPath string) error {
	if _, err := os.Stat(docPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat plan document: %w", err)
	}
	return plan.SaveDocument(a.planDir, &plan.Document{PhaseID: phaseID})
}

func (a *Applier) writeReview(phaseID int, items []ConflictRecord) (string, error) {
	artifact := reviewArtifact{
		PhaseID:     phaseID,
		GeneratedAt: time.Now().UTC(),
		Items:       items,
	}
	data, err := yaml.Marshal(&artifact)
	if err != nil {
		return "", fmt.Errorf("marshal review artifact: %w", err)
	}

	if err := os.MkdirAll(a.opts.ReviewDir, 0755); err != nil {
		return "", fmt.Errorf("create review directory: %w", err)
	}
	path := filepath.Join(a.opts.ReviewDir, fmt.Sprintf("phase-%d-review.yaml", phaseID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write review artifact: %w", err)
	}
	return path, nil
}

func sectionIndex(doc *plan.Document, sectionID string) int {
	for i := range doc.Sections {
		if doc.Sections[i].ID == sectionID {
			return i
		}
	}
	return -1
}

func appendParagraph(body, text string) string {
	body = strings.TrimRight(body, "\n")
	if body == "" {
		return text
	}
	return body + "\n\n" + text
}

// sectionTitle derives a heading from the first words of the recommendation.
func sectionTitle(text string) string {
	const maxWords = 8
	words := strings.Fields(text)
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ")
}
