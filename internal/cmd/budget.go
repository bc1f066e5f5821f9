package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/planmerge/internal/report"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show the cost ledger summary",
	RunE:  runBudgetSummary,
}

var budgetCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether a projected spend would be allowed",
	RunE:  runBudgetCheck,
}

var budgetRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Append a cost record to the ledger",
	RunE:  runBudgetRecord,
}

var (
	budgetPhase  int
	budgetAmount float64
	budgetSource string
)

func init() {
	budgetCheckCmd.Flags().IntVar(&budgetPhase, "phase", 0, "phase the spend belongs to")
	budgetCheckCmd.Flags().Float64Var(&budgetAmount, "amount", 0, "projected spend in USD")
	_ = budgetCheckCmd.MarkFlagRequired("amount")

	budgetRecordCmd.Flags().IntVar(&budgetPhase, "phase", 0, "phase the spend belongs to")
	budgetRecordCmd.Flags().Float64Var(&budgetAmount, "amount", 0, "spend in USD")
	budgetRecordCmd.Flags().StringVar(&budgetSource, "source", "manual", "cost source label")
	_ = budgetRecordCmd.MarkFlagRequired("amount")

	budgetCmd.AddCommand(budgetCheckCmd, budgetRecordCmd)
	rootCmd.AddCommand(budgetCmd)
}

func runBudgetSummary(cmd *cobra.Command, args []string) error {
	format, err := parseOutput()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	guard, err := openGuard(cfg)
	if err != nil {
		return err
	}

	sum, err := guard.Summary()
	if err != nil {
		return err
	}
	out, err := report.Costs(sum, cfg.Budget, format)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runBudgetCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	guard, err := openGuard(cfg)
	if err != nil {
		return err
	}

	result, err := guard.Check(budgetPhase, budgetAmount)
	if err != nil {
		return err
	}
	fmt.Printf("phase %d, projected $%.2f: %s\n", budgetPhase, budgetAmount, result.Decision)
	if result.Reason != "" {
		fmt.Println(result.Reason)
	}
	return nil
}

func runBudgetRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	guard, err := openGuard(cfg)
	if err != nil {
		return err
	}

	rec, err := guard.RecordCost(budgetPhase, budgetAmount, budgetSource)
	if err != nil {
		return err
	}
	fmt.Printf("recorded $%.2f against phase %d (%s)\n", rec.AmountUSD, rec.PhaseID, rec.Source)
	return nil
}
