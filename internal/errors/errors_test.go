package errors

import (
	"errors"
	"fmt"
	"testing"
)

// =============================================================================
// Constructors
// =============================================================================

func TestConstructors(t *testing.T) {
	testCases := []struct {
		name     string
		err      *Error
		wantKind Kind
		wantMsg  string
		wantCode string
	}{
		{"NotFound", NotFound("task not found"), ErrNotFound, "task not found", ""},
		{"NotFoundf", NotFoundf("task %d not found", 7), ErrNotFound, "task 7 not found", ""},
		{"Validation", Validation("bad field"), ErrValidation, "bad field", ""},
		{"Validationf", Validationf("field %s too long", "reason"), ErrValidation, "field reason too long", ""},
		{"Conflict", Conflict("exists"), ErrConflict, "exists", ""},
		{"Conflictf", Conflictf("user %s exists", "ann"), ErrConflict, "user ann exists", ""},
		{"InvalidInput", InvalidInput("missing"), ErrInvalidInput, "missing", ""},
		{"InvalidInputf", InvalidInputf("invalid %q", "x"), ErrInvalidInput, `invalid "x"`, ""},
		{"Unauthorized", Unauthorized("no token"), ErrUnauthorized, "no token", CodeUnauthorized},
		{"Forbidden", Forbidden("reviewers only"), ErrForbidden, "reviewers only", CodePermissionDenied},
		{"Internalf", Internalf("failed: %s", "timeout"), ErrInternal, "failed: timeout", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err.Kind != tc.wantKind {
				t.Errorf("expected Kind %d, got %d", tc.wantKind, tc.err.Kind)
			}
			if tc.err.Message != tc.wantMsg {
				t.Errorf("expected Message %q, got %q", tc.wantMsg, tc.err.Message)
			}
			if tc.err.Code != tc.wantCode {
				t.Errorf("expected Code %q, got %q", tc.wantCode, tc.err.Code)
			}
			if tc.err.Err != nil {
				t.Errorf("expected no underlying error, got %v", tc.err.Err)
			}
		})
	}
}

func TestInternal(t *testing.T) {
	underlying := fmt.Errorf("database connection failed")
	err := Internal(underlying)

	if err.Kind != ErrInternal {
		t.Errorf("expected ErrInternal, got %d", err.Kind)
	}
	if err.Message != "internal error" {
		t.Errorf("expected 'internal error', got %q", err.Message)
	}
	if err.Err != underlying {
		t.Errorf("expected wrapped error %v, got %v", underlying, err.Err)
	}
}

func TestWrap(t *testing.T) {
	underlying := fmt.Errorf("original error")
	err := Wrap(underlying, ErrNotFound, "wrapped context")

	if err.Kind != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %d", err.Kind)
	}
	if err.Error() != "wrapped context: original error" {
		t.Errorf("unexpected Error(): %q", err.Error())
	}
	if !errors.Is(err, underlying) {
		t.Error("expected errors.Is to reach the wrapped error")
	}
}

// =============================================================================
// Codes
// =============================================================================

func TestWithCode_DoesNotMutateReceiver(t *testing.T) {
	base := Validation("already submitted")
	coded := base.WithCode(CodeDuplicateSubmission)

	if base.Code != "" {
		t.Errorf("expected base code to stay empty, got %q", base.Code)
	}
	if coded.Code != CodeDuplicateSubmission {
		t.Errorf("expected %q, got %q", CodeDuplicateSubmission, coded.Code)
	}
	if coded.Kind != ErrValidation || coded.Message != base.Message {
		t.Error("expected kind and message to be copied")
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	sentinel := Validation("duplicate").WithCode(CodeDuplicateSubmission)
	other := Validation("Task already completed and approved!").WithCode(CodeDuplicateSubmission)
	wrapped := fmt.Errorf("submit: %w", other)

	if !errors.Is(wrapped, sentinel) {
		t.Error("expected errors with equal codes to match")
	}
	if errors.Is(wrapped, Validation("duplicate").WithCode(CodeMissingUpload)) {
		t.Error("expected errors with different codes not to match")
	}
}

func TestIs_WithoutCodeMatchesIdentityOnly(t *testing.T) {
	a := NotFound("x")
	b := NotFound("x")

	if !errors.Is(a, a) {
		t.Error("expected error to match itself")
	}
	if errors.Is(a, b) {
		t.Error("expected uncoded errors with equal fields not to match")
	}
	if errors.Is(a, fmt.Errorf("x")) {
		t.Error("expected non-*Error target not to match")
	}
}

func TestErrorsAs_WrappedError(t *testing.T) {
	appErr := Forbidden("reviewers only")
	wrapped := fmt.Errorf("handler: %w", appErr)

	var extracted *Error
	if !errors.As(wrapped, &extracted) {
		t.Fatal("expected errors.As to find *Error")
	}
	if extracted.Kind != ErrForbidden {
		t.Errorf("expected ErrForbidden, got %d", extracted.Kind)
	}
}
