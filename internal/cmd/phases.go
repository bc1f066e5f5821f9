package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/planmerge/internal/tracker"
)

var phasesCmd = &cobra.Command{
	Use:   "phases",
	Short: "Inspect and drive the phase lifecycle",
	RunE:  runPhasesList,
}

var phasesStartCmd = &cobra.Command{
	Use:   "start <phase-id>",
	Short: "Start a phase",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhasesStart,
}

var phasesCompleteCmd = &cobra.Command{
	Use:   "complete <phase-id>",
	Short: "Mark a running phase complete",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return phaseTransition(args[0], func(tr *tracker.Tracker, id int) (*tracker.Record, error) {
			return tr.Complete(id)
		})
	},
}

var phasesFailCmd = &cobra.Command{
	Use:   "fail <phase-id>",
	Short: "Mark a running phase failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return phaseTransition(args[0], func(tr *tracker.Tracker, id int) (*tracker.Record, error) {
			return tr.Fail(id, phasesMessage)
		})
	},
}

var phasesRerunCmd = &cobra.Command{
	Use:   "rerun <phase-id>",
	Short: "Mark a finished phase for another run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return phaseTransition(args[0], func(tr *tracker.Tracker, id int) (*tracker.Record, error) {
			return tr.Rerun(id)
		})
	},
}

var phasesSkipCmd = &cobra.Command{
	Use:   "skip <phase-id>",
	Short: "Skip a phase with a reason",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return phaseTransition(args[0], func(tr *tracker.Tracker, id int) (*tracker.Record, error) {
			return tr.Skip(id, phasesReason)
		})
	},
}

var (
	phasesMessage string
	phasesReason  string
)

func init() {
	phasesFailCmd.Flags().StringVar(&phasesMessage, "message", "", "failure message")
	phasesSkipCmd.Flags().StringVar(&phasesReason, "reason", "", "why the phase is skipped")

	phasesCmd.AddCommand(phasesStartCmd, phasesCompleteCmd, phasesFailCmd, phasesRerunCmd, phasesSkipCmd)
	rootCmd.AddCommand(phasesCmd)
}

func runPhasesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := openTable(cfg)
	if err != nil {
		return err
	}

	for _, p := range table.Phases() {
		deps := ""
		if len(p.DependsOn) > 0 {
			parts := make([]string, len(p.DependsOn))
			for i, d := range p.DependsOn {
				parts[i] = strconv.Itoa(d)
			}
			deps = " (after " + strings.Join(parts, ", ") + ")"
		}
		fmt.Printf("%2d  %-20s %s%s\n", p.ID, p.Name, strings.Join(p.Keywords, ", "), deps)
	}
	return nil
}

func runPhasesStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	id, err := parsePhaseID(args[0])
	if err != nil {
		return err
	}
	tr, err := openTracker(cfg)
	if err != nil {
		return err
	}

	result, err := tr.Start(id)
	if err != nil {
		return err
	}
	if result.Warning != nil {
		fmt.Printf("warning: %v\n", result.Warning)
	}
	fmt.Printf("phase %d: %s\n", id, result.Record.State)
	return nil
}

func phaseTransition(arg string, fn func(*tracker.Tracker, int) (*tracker.Record, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	id, err := parsePhaseID(arg)
	if err != nil {
		return err
	}
	tr, err := openTracker(cfg)
	if err != nil {
		return err
	}

	rec, err := fn(tr, id)
	if err != nil {
		return err
	}
	fmt.Printf("phase %d: %s\n", id, rec.State)
	return nil
}

func parsePhaseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid argument: phase id must be an integer, got %q", arg)
	}
	return id, nil
}
