package errors

import (
	"fmt"
	"testing"
)

func TestEngineErrorMessage(t *testing.T) {
	err := New(CategoryStore, CodeNotFound, "record missing")
	if err.Error() != "record missing" {
		t.Errorf("Expected plain message, got %q", err.Error())
	}

	err = err.WithSuggestion("check the ID")
	if err.Error() != "record missing (suggestion: check the ID)" {
		t.Errorf("Expected suggestion appended, got %q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, CategoryStore, CodeTxFailed, "write failed")

	if err.Unwrap() != cause {
		t.Error("Expected Unwrap to return the cause")
	}
	if err.Category != CategoryStore || err.Code != CodeTxFailed {
		t.Errorf("Expected category/code preserved, got %s/%s", err.Category, err.Code)
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(nil, CategoryStore, CodeTxFailed, "x"); err != nil {
		t.Errorf("Expected nil for nil cause, got %v", err)
	}
}

func TestHasCode(t *testing.T) {
	err := StoreError(CodeAlreadyReconciled, "apply", nil)

	if !HasCode(err, CodeAlreadyReconciled) {
		t.Error("Expected HasCode to find the code directly")
	}
	if HasCode(err, CodeNotFound) {
		t.Error("Expected HasCode to reject a different code")
	}
	if HasCode(nil, CodeNotFound) {
		t.Error("Expected HasCode to reject nil")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !HasCode(wrapped, CodeAlreadyReconciled) {
		t.Error("Expected HasCode to unwrap standard wrapping")
	}
}

func TestAsEngineError(t *testing.T) {
	inner := ReconciliationError(CodeProcessingError, "apply", fmt.Errorf("boom"))
	wrapped := fmt.Errorf("run failed: %w", inner)

	engineErr, ok := AsEngineError(wrapped)
	if !ok {
		t.Fatal("Expected to extract the engine error")
	}
	if engineErr.Code != CodeProcessingError {
		t.Errorf("Expected processing_error, got %s", engineErr.Code)
	}

	if _, ok := AsEngineError(fmt.Errorf("plain")); ok {
		t.Error("Expected plain errors not to convert")
	}
}

func TestWithContext(t *testing.T) {
	err := New(CategoryMatching, CodeInvalidRule, "bad rule").
		WithContext("rule_type", "bogus").
		WithContext("line_id", 42)

	if err.Context["rule_type"] != "bogus" {
		t.Errorf("Expected rule_type in context, got %v", err.Context)
	}
	if err.Context["line_id"] != 42 {
		t.Errorf("Expected line_id in context, got %v", err.Context)
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected int
	}{
		{CategoryConfiguration, 2},
		{CategoryParse, 3},
		{CategoryStore, 4},
		{CategoryReconciliation, 5},
		{CategoryInternal, 5},
	}

	for _, tt := range tests {
		err := New(tt.category, CodeUnexpectedError, "x")
		if got := err.GetExitCode(); got != tt.expected {
			t.Errorf("GetExitCode for %s = %d, expected %d", tt.category, got, tt.expected)
		}
	}
}

func TestParseErrorFormatting(t *testing.T) {
	err := ParseError(CodeMissingColumn, "bank.csv", 1, "amount", "", nil)

	if err.Category != CategoryParse {
		t.Errorf("Expected parse category, got %s", err.Category)
	}
	if err.Context["file"] != "bank.csv" || err.Context["column"] != "amount" {
		t.Errorf("Expected file and column in context, got %v", err.Context)
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(nil); got != "no errors" {
		t.Errorf("Expected 'no errors', got %q", got)
	}

	errs := []error{fmt.Errorf("first"), fmt.Errorf("second")}
	if got := Summarize(errs); got != "first; second" {
		t.Errorf("Expected joined messages, got %q", got)
	}
}
