package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/planmerge/internal/report"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show phase states and consolidated recommendations",
	Long: `Status prints the lifecycle state of every phase. With --phase it lists
the consolidated recommendations for that phase instead, including
provenance and confidence.`,
	RunE: runStatus,
}

var statusPhase int

func init() {
	statusCmd.Flags().IntVar(&statusPhase, "phase", -1, "list recommendations for one phase")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := parseOutput()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("phase") {
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		out, err := report.Recommendations(s.ByPhase(statusPhase), format)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	tr, err := openTracker(cfg)
	if err != nil {
		return err
	}
	out, err := report.Status(tr.Snapshot(), format)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
