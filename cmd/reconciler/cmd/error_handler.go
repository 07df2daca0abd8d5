package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"ride-reconciliation-service/pkg/errors"
	"ride-reconciliation-service/pkg/logger"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	// Aggregated input defects are listed together and exit with the worst code
	if errs := multierr.Errors(err); len(errs) > 1 {
		fmt.Fprintln(h.out, FormatValidationErrors(errs))
		summary := errors.SummarizeCombined(err)
		fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(summary.Errors[0].Category))
		return summary.GetExitCode()
	}

	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(reconcilerErr)
	}

	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(h.out, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(h.out, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose {
		if err.Cause != nil {
			fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
		}
		h.suggestRecoveryActions(err.Category)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more details\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Use CSV (UTF-8, BOM allowed) or XLSX files
• Keep the column header on the first row; GETT exports keep the invoice letterhead above row 15
• Check for broken quoting in CSV files`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that every supplier file belongs to a configured supplier
• Make sure each input file holds at least a header row
• Verify the company ledger carries the expected Hebrew column labels`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Use 'reconciler reconcile --help' to see all available options`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Check date and time columns in both files
• Try a lower --fuzzy-threshold or a different --strategy
• Verify the company ledger names the supplier in the supplier column`

	case errors.CategoryAllocation:
		return `Allocation error help:
• Provide an employee directory with --employee-file
• Check passenger names and employee numbers in the ledger`

	default:
		return `For more help:
• Use 'reconciler --help' for general help
• Use 'reconciler <command> --help' for command-specific help`
	}
}

func (h *CLIErrorHandler) suggestRecoveryActions(category errors.ErrorCategory) {
	fmt.Fprintf(h.out, "\nRecovery suggestions:\n")

	switch category {
	case errors.CategoryFile:
		fmt.Fprintf(h.out, "• Verify file paths and permissions\n")
		fmt.Fprintf(h.out, "• Check available disk space for the output file\n")
	case errors.CategoryParse:
		fmt.Fprintf(h.out, "• Re-export the spreadsheet from the supplier portal\n")
		fmt.Fprintf(h.out, "• Save CSV files in UTF-8 encoding\n")
	case errors.CategoryValidation:
		fmt.Fprintf(h.out, "• Correct the reported inputs and run again\n")
	case errors.CategoryConfiguration:
		fmt.Fprintf(h.out, "• Try with default settings first\n")
	case errors.CategoryReconciliation, errors.CategoryAllocation:
		fmt.Fprintf(h.out, "• Review data quality in the input files\n")
	}

	fmt.Fprintf(h.out, "• Use --log-level debug for row level details\n")
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// FormatValidationErrors formats a list of errors in a user-friendly way
func FormatValidationErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	if len(errs) == 1 {
		return fmt.Sprintf("Validation error: %v", errs[0])
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d validation errors:", len(errs)))

	for i, err := range errs {
		lines = append(lines, fmt.Sprintf("  %d. %v", i+1, err))
		// Limit the number of errors shown
		if i >= 9 && len(errs) > 10 {
			lines = append(lines, fmt.Sprintf("  ... and %d more errors", len(errs)-10))
			break
		}
	}

	return strings.Join(lines, "\n")
}
