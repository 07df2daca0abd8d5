package errors

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/multierr"
)

func TestReconcilerError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
		expectMsg  string
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
			expectMsg:  "file not found: no such file",
		},
		{
			name:       "validation error",
			category:   CategoryValidation,
			code:       CodeUnknownShape,
			message:    "unknown shape",
			expectCode: 3,
			expectMsg:  "unknown shape",
		},
		{
			name:       "allocation error",
			category:   CategoryAllocation,
			code:       CodeMissingEmployees,
			message:    "no employees",
			expectCode: 5,
			expectMsg:  "no employees",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *ReconcilerError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if err.Error() != tt.expectMsg {
				t.Errorf("expected error string %q, got %q", tt.expectMsg, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected stack trace to be captured")
			}
		})
	}
}

func TestReconcilerErrorWithContext(t *testing.T) {
	err := New(CategoryValidation, CodeMissingRecords, "test error").
		WithContext("shape", "company").
		WithContext("row", 42).
		WithSuggestion("pass rows")

	if err.Context["shape"] != "company" {
		t.Errorf("expected shape context, got %v", err.Context["shape"])
	}
	if err.Context["row"] != 42 {
		t.Errorf("expected row context 42, got %v", err.Context["row"])
	}

	expected := "test error (suggestion: pass rows)"
	if err.Error() != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestSpecificErrorConstructors(t *testing.T) {
	t.Run("FileError", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := FileError(CodeFilePermission, "/test/gett.xlsx", cause)

		if err.Category != CategoryFile {
			t.Errorf("expected file category, got %s", err.Category)
		}
		if err.Context["file_path"] != "/test/gett.xlsx" {
			t.Errorf("expected file_path context, got %v", err.Context["file_path"])
		}
		if err.Cause != cause {
			t.Errorf("expected cause to be %v, got %v", cause, err.Cause)
		}
	})

	t.Run("ParseError", func(t *testing.T) {
		err := ParseError(CodeMissingColumn, "company.csv", 1, "_ID", nil)
		if err.Category != CategoryParse {
			t.Errorf("expected parse category, got %s", err.Category)
		}
		if err.Context["column"] != "_ID" {
			t.Errorf("expected column context, got %v", err.Context["column"])
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError(CodeUnknownShape, "shape", "supplier9", nil)
		if err.Category != CategoryValidation {
			t.Errorf("expected validation category, got %s", err.Category)
		}
		if !strings.Contains(err.Message, "supplier9") {
			t.Errorf("expected message to name the shape, got %s", err.Message)
		}
	})

	t.Run("ConfigurationError", func(t *testing.T) {
		err := ConfigurationError(CodeInvalidConfig, "fuzzy_threshold", 140, nil)
		if err.GetExitCode() != 4 {
			t.Errorf("expected exit code 4, got %d", err.GetExitCode())
		}
	})
}

func TestErrorSummary(t *testing.T) {
	list := []*ReconcilerError{
		New(CategoryFile, CodeFileNotFound, "error 1"),
		New(CategoryFile, CodeFilePermission, "error 2"),
		New(CategoryParse, CodeInvalidFormat, "error 3"),
		New(CategoryValidation, CodeUnknownSupplier, "error 4"),
		New(CategoryValidation, CodeMissingRecords, "error 5"),
		New(CategoryConfiguration, CodeInvalidConfig, "error 6"),
	}

	summary := NewErrorSummary(list)

	if summary.Total != 6 {
		t.Errorf("expected total 6, got %d", summary.Total)
	}
	if summary.ByCategory[CategoryFile] != 2 {
		t.Errorf("expected 2 file errors, got %d", summary.ByCategory[CategoryFile])
	}
	if !summary.HasCode(CodeUnknownSupplier) {
		t.Error("expected unknown supplier code")
	}
	if summary.HasCategory(CategoryAllocation) {
		t.Error("expected no allocation category")
	}
	if len(summary.SampleErrors) != 5 {
		t.Errorf("expected 5 sample errors, got %d", len(summary.SampleErrors))
	}
	if summary.GetExitCode() != 4 {
		t.Errorf("expected highest exit code 4, got %d", summary.GetExitCode())
	}
	if !strings.HasPrefix(summary.Error(), "6 errors occurred") {
		t.Errorf("unexpected summary string %q", summary.Error())
	}
}

func TestEmptyErrorSummary(t *testing.T) {
	summary := NewErrorSummary(nil)

	if summary.Total != 0 {
		t.Errorf("expected total 0, got %d", summary.Total)
	}
	if summary.Error() != "no errors" {
		t.Errorf("expected 'no errors', got '%s'", summary.Error())
	}
	if summary.GetExitCode() != 0 {
		t.Errorf("expected exit code 0, got %d", summary.GetExitCode())
	}
}

func TestSummarizeCombined(t *testing.T) {
	combined := multierr.Combine(
		ValidationError(CodeMissingRecords, "company", nil, nil),
		errors.New("plain failure"),
	)

	summary := SummarizeCombined(combined)
	if summary.Total != 2 {
		t.Fatalf("expected 2 errors, got %d", summary.Total)
	}
	if !summary.HasCategory(CategoryValidation) || !summary.HasCategory(CategoryInternal) {
		t.Errorf("unexpected categories %v", summary.ByCategory)
	}
}

func TestWrapIfNeeded(t *testing.T) {
	reconcilerErr := New(CategoryFile, CodeFileNotFound, "test")
	genericErr := errors.New("generic error")

	if WrapIfNeeded(reconcilerErr, CategoryParse, CodeInvalidFormat, "wrapped") != reconcilerErr {
		t.Error("expected WrapIfNeeded to return original ReconcilerError")
	}

	wrapped := WrapIfNeeded(genericErr, CategoryParse, CodeInvalidFormat, "wrapped")
	if wrapped.Cause != genericErr || wrapped.Category != CategoryParse {
		t.Error("expected WrapIfNeeded to wrap generic error")
	}

	if WrapIfNeeded(nil, CategoryParse, CodeInvalidFormat, "wrapped") != nil {
		t.Error("expected WrapIfNeeded to return nil for nil input")
	}

	if _, ok := AsReconcilerError(genericErr); ok {
		t.Error("expected AsReconcilerError to return false for generic error")
	}
}
