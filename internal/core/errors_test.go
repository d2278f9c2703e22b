package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := (&DomainError{
		Category: ErrCatMalformed,
		Code:     "CODE",
		Message:  "message",
	}).WithCause(cause)

	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be unwrapped")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to match cause")
	}

	match := &DomainError{Category: ErrCatMalformed, Code: "CODE"}
	if !errors.Is(err, match) {
		t.Fatalf("expected errors.Is to match category and code")
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := ErrTransition("X", "msg")
	err.WithDetail("k", "v")
	if err.Details == nil || err.Details["k"] != "v" {
		t.Fatalf("expected details to be set")
	}
}

func TestErrOrphaned_Codes(t *testing.T) {
	tests := []struct {
		resource string
		code     string
	}{
		{"task", "UNKNOWN_TASK"},
		{"turn", "UNKNOWN_TURN"},
		{"invocation", "UNKNOWN_INVOCATION"},
		{"widget", "UNKNOWN_REFERENCE"},
	}
	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			err := ErrOrphaned(tt.resource, "x-1")
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
			if err.Category != ErrCatOrphaned {
				t.Errorf("Category = %q, want %q", err.Category, ErrCatOrphaned)
			}
		})
	}
}

func TestIsAnomaly(t *testing.T) {
	if !IsAnomaly(ErrMalformed("C", "m")) {
		t.Error("malformed should be an anomaly")
	}
	if !IsAnomaly(fmt.Errorf("wrapped: %w", ErrOrphaned("turn", "t"))) {
		t.Error("wrapped orphaned should be an anomaly")
	}
	if !IsAnomaly(ErrTransition("C", "m")) {
		t.Error("transition should be an anomaly")
	}
	if IsAnomaly(ErrNotFound("task", "t")) {
		t.Error("not found should not be an anomaly")
	}
	if IsAnomaly(errors.New("plain")) {
		t.Error("plain error should not be an anomaly")
	}
}

func TestGetCategory_DefaultsToInternal(t *testing.T) {
	if got := GetCategory(errors.New("x")); got != ErrCatInternal {
		t.Errorf("GetCategory() = %q, want %q", got, ErrCatInternal)
	}
	if !IsCategory(ErrValidation("C", "m"), ErrCatValidation) {
		t.Error("expected validation category")
	}
}
