// Package exitcode defines the CLI's exit codes and maps errors onto them.
package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/planmerge/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// BudgetDenied indicates a budget check blocked the operation
	BudgetDenied = 3

	// ConflictFound indicates resolution produced conflicts needing review
	ConflictFound = 4

	// BackupError indicates a backup or restore failure
	BackupError = 5

	// Interrupted indicates the run was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}
	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Coded errors map directly; everything else falls back to message sniffing
// for errors that crossed a library boundary without a code.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch {
	case errors.HasCode(err, errors.ErrCodeBudgetDenied),
		errors.HasCode(err, errors.ErrCodeBudgetNeedsApproval):
		return BudgetDenied
	case errors.HasCode(err, errors.ErrCodeBackupFailed),
		errors.HasCode(err, errors.ErrCodeRestoreFailed),
		errors.HasCode(err, errors.ErrCodeBackupHashMismatch):
		return BackupError
	case errors.HasCode(err, errors.ErrCodeConfigInvalid):
		return UsageError
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "budget denied") || strings.Contains(errMsg, "approval threshold") {
		return BudgetDenied
	}
	if strings.Contains(errMsg, "backup failed") || strings.Contains(errMsg, "restore") {
		return BackupError
	}
	if strings.Contains(errMsg, "requires manual review") {
		return ConflictFound
	}
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "missing argument") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case BudgetDenied:
		return "Budget check denied the operation"
	case ConflictFound:
		return "Conflicts require manual review"
	case BackupError:
		return "Backup or restore failure"
	default:
		return "Unknown error"
	}
}
