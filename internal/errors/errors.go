package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Store errors (STORE-001 to STORE-099)
	ErrCodeStoreNotFound   ErrorCode = "STORE-001"
	ErrCodeStoreInvalid    ErrorCode = "STORE-002"
	ErrCodeStoreLoadFailed ErrorCode = "STORE-003"
	ErrCodeStoreSaveFailed ErrorCode = "STORE-004"
	ErrCodeStoreDuplicate  ErrorCode = "STORE-005"

	// Classification errors (CLASS-001 to CLASS-099)
	ErrCodeClassAmbiguous    ErrorCode = "CLASS-001"
	ErrCodeClassTableInvalid ErrorCode = "CLASS-002"

	// Consolidation errors (MERGE-001 to MERGE-099)
	ErrCodeMergeFailed        ErrorCode = "MERGE-001"
	ErrCodeMergeBatchInvalid  ErrorCode = "MERGE-002"
	ErrCodeMergeDuplicateSkip ErrorCode = "MERGE-003"

	// Resolver errors (RESOLVE-001 to RESOLVE-099)
	ErrCodeResolveFailed         ErrorCode = "RESOLVE-001"
	ErrCodeResolveRequiresReview ErrorCode = "RESOLVE-002"
	ErrCodeResolveApplyFailed    ErrorCode = "RESOLVE-003"

	// Phase tracking errors (PHASE-001 to PHASE-099)
	ErrCodePhaseUnknown         ErrorCode = "PHASE-001"
	ErrCodePhaseBadTransition   ErrorCode = "PHASE-002"
	ErrCodePhaseDependencyUnmet ErrorCode = "PHASE-003"
	ErrCodePhaseReasonRequired  ErrorCode = "PHASE-004"

	// Budget errors (BUDGET-001 to BUDGET-099)
	ErrCodeBudgetDenied        ErrorCode = "BUDGET-001"
	ErrCodeBudgetNeedsApproval ErrorCode = "BUDGET-002"
	ErrCodeBudgetLedgerFailed  ErrorCode = "BUDGET-003"

	// Backup errors (BACKUP-001 to BACKUP-099)
	ErrCodeBackupFailed       ErrorCode = "BACKUP-001"
	ErrCodeBackupNotFound     ErrorCode = "BACKUP-002"
	ErrCodeRestoreFailed      ErrorCode = "BACKUP-003"
	ErrCodeBackupHashMismatch ErrorCode = "BACKUP-004"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigNotFound ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodeFileMarshal     ErrorCode = "IO-006"
)

// PlanmergeError represents an enhanced error with code, suggestions, and documentation
type PlanmergeError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *PlanmergeError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *PlanmergeError) Unwrap() error {
	return e.Cause
}

// New creates a new PlanmergeError
func New(code ErrorCode, message string) *PlanmergeError {
	return &PlanmergeError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new PlanmergeError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *PlanmergeError {
	return &PlanmergeError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *PlanmergeError) WithSuggestion(suggestion string) *PlanmergeError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *PlanmergeError) WithSuggestions(suggestions ...string) *PlanmergeError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *PlanmergeError) WithDocs(url string) *PlanmergeError {
	e.DocsURL = url
	return e
}

// HasCode reports whether err (or anything it wraps) is a PlanmergeError
// carrying the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if pmErr, ok := err.(*PlanmergeError); ok && pmErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Common error constructors for frequently used errors

// NewStoreNotFoundError creates a store file not found error
func NewStoreNotFoundError(path string) *PlanmergeError {
	return New(ErrCodeStoreNotFound, fmt.Sprintf("recommendation store not found: %s", path)).
		WithSuggestion("Run 'planmerge ingest' to create a store from a recommendation batch").
		WithSuggestion("Check if the store path is correct").
		WithDocs("https://github.com/felixgeelhaar/planmerge#recommendation-store")
}

// NewBudgetDeniedError creates a budget denial error
func NewBudgetDeniedError(phaseID int, projected, spent, limit float64) *PlanmergeError {
	return New(ErrCodeBudgetDenied,
		fmt.Sprintf("budget denied for phase %d: projected $%.2f would exceed limit $%.2f (spent: $%.2f)",
			phaseID, projected, limit, spent)).
		WithSuggestion("Raise the phase or total budget limit in .planmerge/config.yaml").
		WithSuggestion("Run 'planmerge budget' to review the cost ledger").
		WithDocs("https://github.com/felixgeelhaar/planmerge#budgets")
}

// NewBudgetNeedsApprovalError creates an approval-required budget error
func NewBudgetNeedsApprovalError(phaseID int, projected, threshold float64) *PlanmergeError {
	return New(ErrCodeBudgetNeedsApproval,
		fmt.Sprintf("phase %d spend of $%.2f exceeds the approval threshold $%.2f", phaseID, projected, threshold)).
		WithSuggestion("Re-run with explicit approval to proceed").
		WithDocs("https://github.com/felixgeelhaar/planmerge#budgets")
}

// NewBackupFailedError creates a backup failure error
func NewBackupFailedError(phaseID int, cause error) *PlanmergeError {
	return Wrap(ErrCodeBackupFailed, fmt.Sprintf("backup failed for phase %d", phaseID), cause).
		WithSuggestion("Check free disk space and permissions on the backup directory").
		WithSuggestion("No plan files were modified; the guarded operation was aborted").
		WithDocs("https://github.com/felixgeelhaar/planmerge#backups")
}

// NewRestoreFailedError creates a restore failure error
func NewRestoreFailedError(archivePath string, cause error) *PlanmergeError {
	return Wrap(ErrCodeRestoreFailed, fmt.Sprintf("restore failed from archive: %s", archivePath), cause).
		WithSuggestion("Verify the archive exists and its content hash matches the manifest").
		WithDocs("https://github.com/felixgeelhaar/planmerge#backups")
}

// NewPhaseBadTransitionError creates an invalid phase transition error
func NewPhaseBadTransitionError(phaseID int, from, to string) *PlanmergeError {
	return New(ErrCodePhaseBadTransition,
		fmt.Sprintf("phase %d cannot transition from %s to %s", phaseID, from, to)).
		WithSuggestion("Run 'planmerge status' to inspect current phase states").
		WithSuggestion("Completed phases must be reset with 'planmerge phases rerun' first").
		WithDocs("https://github.com/felixgeelhaar/planmerge#phase-lifecycle")
}

// NewPhaseDependencyUnmetError creates an advisory dependency warning error.
// Callers log it and proceed; dependencies are advisory, not enforced.
func NewPhaseDependencyUnmetError(phaseID int, unmet []int) *PlanmergeError {
	return New(ErrCodePhaseDependencyUnmet,
		fmt.Sprintf("phase %d has incomplete dependencies: %v", phaseID, unmet)).
		WithSuggestion("Complete the listed phases first, or proceed if intentional")
}

// NewConfigInvalidError creates a config validation error
func NewConfigInvalidError(details string) *PlanmergeError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Check .planmerge/config.yaml against the documented schema").
		WithDocs("https://github.com/felixgeelhaar/planmerge#configuration")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *PlanmergeError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *PlanmergeError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
