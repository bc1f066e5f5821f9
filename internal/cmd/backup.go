package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/planmerge/internal/errors"
	"github.com/felixgeelhaar/planmerge/internal/report"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage plan artifact backups",
	RunE:  runBackupList,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create <path>...",
	Short: "Archive plan artifacts for a phase",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBackupCreate,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Restore plan artifacts from a backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupRestore,
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop old backups for a phase",
	RunE:  runBackupPrune,
}

var (
	backupPhase int
	backupKeep  int
)

func init() {
	backupCmd.Flags().IntVar(&backupPhase, "phase", -1, "filter to one phase")
	backupCreateCmd.Flags().IntVar(&backupPhase, "phase", 0, "phase the backup belongs to")
	backupPruneCmd.Flags().IntVar(&backupPhase, "phase", 0, "phase to prune")
	backupPruneCmd.Flags().IntVar(&backupKeep, "keep", 0, "how many backups to keep (default: config retention)")

	backupCmd.AddCommand(backupCreateCmd, backupRestoreCmd, backupPruneCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackupList(cmd *cobra.Command, args []string) error {
	format, err := parseOutput()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var phaseFilter *int
	if cmd.Flags().Changed("phase") {
		phaseFilter = &backupPhase
	}
	list, err := openBackups(cfg).List(phaseFilter)
	if err != nil {
		return err
	}
	out, err := report.Backups(list, format)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	b, err := openBackups(cfg).Create(backupPhase, args)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (%d files, %d bytes, hash %s)\n", b.ID, b.FileCount, b.SizeBytes, b.ContentHash[:16])
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mgr := openBackups(cfg)

	list, err := mgr.List(nil)
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == args[0] {
			result, err := mgr.Restore(&list[i])
			if err != nil {
				return err
			}
			fmt.Printf("restored %d file(s) from %s\n", result.FilesRestored, result.BackupID)
			return nil
		}
	}
	return errors.New(errors.ErrCodeBackupNotFound, fmt.Sprintf("no backup with ID %q", args[0])).
		WithSuggestion("Run 'planmerge backup' to list available backups")
}

func runBackupPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	keep := backupKeep
	if keep == 0 {
		keep = cfg.Backup.Retention
	}
	if err := openBackups(cfg).Prune(backupPhase, keep); err != nil {
		return err
	}
	fmt.Printf("pruned phase %d backups to the newest %d\n", backupPhase, keep)
	return nil
}
