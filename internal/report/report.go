// Package report renders engine results for humans and machines. Every
// renderer supports styled terminal text and plain JSON.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/planmerge/internal/backup"
	"github.com/felixgeelhaar/planmerge/internal/budget"
	"github.com/felixgeelhaar/planmerge/internal/consolidate"
	"github.com/felixgeelhaar/planmerge/internal/resolve"
	"github.com/felixgeelhaar/planmerge/internal/store"
	"github.com/felixgeelhaar/planmerge/internal/tracker"
)

// Format selects the output representation.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: text, json)", s)
	}
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("2"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1"))
)

// Ingest renders a consolidation report.
func Ingest(batchID string, rep *consolidate.Report, format Format) (string, error) {
	if format == FormatJSON {
		return marshal(struct {
			BatchID string `json:"batch_id"`
			*consolidate.Report
		}{batchID, rep})
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Consolidation Report") + "\n\n")
	fmt.Fprintf(&b, "Batch: %s\n", headerStyle.Render(batchID))
	fmt.Fprintf(&b, "  %s %d\n", labelStyle.Render("Added:"), rep.Added)
	fmt.Fprintf(&b, "  %s %d\n", labelStyle.Render("Merged:"), rep.Merged)
	fmt.Fprintf(&b, "  %s %d\n", labelStyle.Render("Skipped duplicates:"), rep.SkippedDuplicates)
	return b.String(), nil
}

// Recommendations renders the consolidated set for one phase (or all).
func Recommendations(recs []*store.CanonicalRecommendation, format Format) (string, error) {
	if format == FormatJSON {
		return marshal(recs)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Consolidated Recommendations") + "\n\n")
	if len(recs) == 0 {
		b.WriteString(labelStyle.Render("(none)") + "\n")
		return b.String(), nil
	}
	for _, rec := range recs {
		fmt.Fprintf(&b, "%s %s\n", priorityBadge(rec.Priority), rec.CanonicalText)
		fmt.Fprintf(&b, "  %s confidence %.2f, %d source batch(es), phases %v\n",
			labelStyle.Render(string(rec.Status)+":"),
			rec.Confidence, len(rec.SourceBatchIDs), rec.PhaseIDs)
	}
	return b.String(), nil
}

// Resolution renders resolver verdicts and what the applier did with them.
func Resolution(records []resolve.ConflictRecord, result *resolve.ApplyResult, format Format) (string, error) {
	if format == FormatJSON {
		return marshal(struct {
			Records []resolve.ConflictRecord `json:"records"`
			Result  *resolve.ApplyResult     `json:"result,omitempty"`
		}{records, result})
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Conflict Resolution") + "\n\n")
	for _, rec := range records {
		var badge string
		switch rec.Classification {
		case resolve.ClassificationConflict:
			badge = errStyle.Render("conflict")
		case resolve.ClassificationEnhancement:
			badge = okStyle.Render("enhancement")
		default:
			badge = okStyle.Render("new addition")
		}
		fmt.Fprintf(&b, "[%s] %s\n", badge, rec.RecommendedText)
		fmt.Fprintf(&b, "  %s\n", labelStyle.Render(rec.Rationale))
	}
	if result != nil {
		fmt.Fprintf(&b, "\n%s %d applied, %d held for review\n",
			headerStyle.Render("Applied:"), len(result.Applied), len(result.Skipped))
		if result.ReviewPath != "" {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Review artifact:"), result.ReviewPath)
		}
		if result.BackupID != "" {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Backup:"), result.BackupID)
		}
	}
	return b.String(), nil
}

// Status renders the phase state snapshot.
func Status(records []tracker.Record, format Format) (string, error) {
	if format == FormatJSON {
		return marshal(records)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Phase Status") + "\n\n")
	for _, rec := range records {
		fmt.Fprintf(&b, "  %2d  %-12s", rec.PhaseID, stateBadge(rec.State))
		if rec.DurationSeconds > 0 {
			fmt.Fprintf(&b, "  %s", labelStyle.Render(fmt.Sprintf("%.1fs", rec.DurationSeconds)))
		}
		if rec.ErrorMessage != "" {
			fmt.Fprintf(&b, "  %s", errStyle.Render(rec.ErrorMessage))
		}
		if rec.SkipReason != "" {
			fmt.Fprintf(&b, "  %s", labelStyle.Render("skipped: "+rec.SkipReason))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Costs renders the budget summary against configured limits.
func Costs(sum *budget.Summary, limits budget.Limits, format Format) (string, error) {
	if format == FormatJSON {
		return marshal(struct {
			*budget.Summary
			Limits budget.Limits `json:"limits"`
		}{sum, limits})
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Cost Summary") + "\n\n")
	fmt.Fprintf(&b, "%s $%.2f", headerStyle.Render("Total spend:"), sum.TotalUSD)
	if limits.TotalUSD > 0 {
		fmt.Fprintf(&b, " %s", labelStyle.Render(fmt.Sprintf("of $%.2f limit", limits.TotalUSD)))
	}
	fmt.Fprintf(&b, "  (%d records)\n", sum.RecordCount)
	phaseIDs := make([]int, 0, len(sum.PerPhaseUSD))
	for phaseID := range sum.PerPhaseUSD {
		phaseIDs = append(phaseIDs, phaseID)
	}
	sort.Ints(phaseIDs)
	for _, phaseID := range phaseIDs {
		fmt.Fprintf(&b, "  phase %d: $%.2f\n", phaseID, sum.PerPhaseUSD[phaseID])
	}
	return b.String(), nil
}

// Backups renders the backup manifest listing.
func Backups(list []backup.Backup, format Format) (string, error) {
	if format == FormatJSON {
		return marshal(list)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Backups") + "\n\n")
	if len(list) == 0 {
		b.WriteString(labelStyle.Render("(none)") + "\n")
		return b.String(), nil
	}
	for _, bk := range list {
		fmt.Fprintf(&b, "%s  phase %d  %s  %d file(s), %d bytes\n",
			headerStyle.Render(bk.ID), bk.PhaseID,
			bk.CreatedAt.Format("2006-01-02 15:04:05"), bk.FileCount, bk.SizeBytes)
	}
	return b.String(), nil
}

func priorityBadge(p store.Priority) string {
	switch p {
	case store.PriorityCritical:
		return errStyle.Render("[critical]")
	case store.PriorityImportant:
		return warnStyle.Render("[important]")
	default:
		return labelStyle.Render("[nice-to-have]")
	}
}

func stateBadge(s tracker.State) string {
	switch s {
	case tracker.StateComplete:
		return okStyle.Render(string(s))
	case tracker.StateFailed:
		return errStyle.Render(string(s))
	case tracker.StateInProgress, tracker.StateNeedsRerun:
		return warnStyle.Render(string(s))
	default:
		return labelStyle.Render(string(s))
	}
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}
