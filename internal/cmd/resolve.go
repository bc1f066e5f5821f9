package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/planmerge/internal/plan"
	"github.com/felixgeelhaar/planmerge/internal/report"
	"github.com/felixgeelhaar/planmerge/internal/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Reconcile consolidated recommendations with the existing plan",
	Long: `Resolve compares the consolidated recommendations for a phase against the
phase's plan sections. Enhancements and new additions are applied
automatically behind a backup; conflicts go to a manual-review artifact
and never touch the plan.`,
	RunE: runResolve,
}

var (
	resolvePhase  int
	resolveDryRun bool
	resolveStrict bool
)

func init() {
	resolveCmd.Flags().IntVar(&resolvePhase, "phase", 0, "phase to resolve")
	resolveCmd.Flags().BoolVar(&resolveDryRun, "dry-run", false, "classify only, apply nothing")
	resolveCmd.Flags().BoolVar(&resolveStrict, "strict", false, "hold enhancements for manual review too")
	_ = resolveCmd.MarkFlagRequired("phase")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	format, err := parseOutput()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	resolver, err := openResolver(cfg)
	if err != nil {
		return err
	}

	doc, err := plan.LoadDocument(cfg.Paths.PlanDir, resolvePhase)
	if err != nil {
		return err
	}

	recs := s.ByPhase(resolvePhase)
	records := resolver.Resolve(resolvePhase, recs, doc.Sections)

	var result *resolve.ApplyResult
	if !resolveDryRun {
		applier := resolve.NewApplier(cfg.Paths.PlanDir, openBackups(cfg), resolve.ApplyOptions{
			Strict:    resolveStrict || cfg.StrictResolve,
			ReviewDir: cfg.Paths.ReviewDir,
		}, nil)
		result, err = applier.ApplySafeUpdates(resolvePhase, records)
		if err != nil {
			return err
		}
	}

	out, err := report.Resolution(records, result, format)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
