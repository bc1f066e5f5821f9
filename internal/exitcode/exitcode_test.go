package exitcode

import (
	stderrors "errors"
	"testing"

	"github.com/felixgeelhaar/planmerge/internal/errors"
)

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"Success", Success, 0},
		{"GeneralError", GeneralError, 1},
		{"UsageError", UsageError, 2},
		{"BudgetDenied", BudgetDenied, 3},
		{"ConflictFound", ConflictFound, 4},
		{"BackupError", BackupError, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Exit code %s = %d, want %d", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "nil error returns success",
			err:      nil,
			expected: Success,
		},
		{
			name:     "coded budget denial",
			err:      errors.NewBudgetDeniedError(2, 5.0, 8.0, 10.0),
			expected: BudgetDenied,
		},
		{
			name:     "coded approval requirement",
			err:      errors.NewBudgetNeedsApprovalError(2, 30.0, 25.0),
			expected: BudgetDenied,
		},
		{
			name:     "coded backup failure",
			err:      errors.NewBackupFailedError(1, stderrors.New("disk full")),
			expected: BackupError,
		},
		{
			name:     "coded restore failure",
			err:      errors.NewRestoreFailedError("backups/x.tgz", stderrors.New("bad archive")),
			expected: BackupError,
		},
		{
			name:     "coded config error",
			err:      errors.NewConfigInvalidError("merge_threshold out of range"),
			expected: UsageError,
		},
		{
			name:     "wrapped coded error",
			err:      errors.Wrap(errors.ErrCodeFileWriteFailed, "write report", errors.NewBudgetDeniedError(0, 1, 1, 1)),
			expected: BudgetDenied,
		},
		{
			name:     "uncoded budget message",
			err:      stderrors.New("budget denied for phase 3"),
			expected: BudgetDenied,
		},
		{
			name:     "uncoded backup message",
			err:      stderrors.New("backup failed: no space left"),
			expected: BackupError,
		},
		{
			name:     "manual review message",
			err:      stderrors.New("2 items require manual review; see plans/phase-3-review.yaml (requires manual review)"),
			expected: ConflictFound,
		},
		{
			name:     "unknown command",
			err:      stderrors.New(`unknown command "ingset" for "planmerge"`),
			expected: UsageError,
		},
		{
			name:     "required flag",
			err:      stderrors.New(`required flag(s) "batch-id" not set`),
			expected: UsageError,
		},
		{
			name:     "plain error",
			err:      stderrors.New("something else went wrong"),
			expected: GeneralError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode(%v) = %d, want %d", tt.err, got, tt.expected)
			}
		})
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	if got := GetExitCodeDescription(Success); got != "Success" {
		t.Errorf("GetExitCodeDescription(Success) = %q", got)
	}
	if got := GetExitCodeDescription(BudgetDenied); got == "Unknown error" {
		t.Error("BudgetDenied should have a description")
	}
	if got := GetExitCodeDescription(99); got != "Unknown error" {
		t.Errorf("GetExitCodeDescription(99) = %q", got)
	}
}
