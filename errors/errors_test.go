package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNew_DerivesRetryable(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		retryable bool
	}{
		{ErrCodeNotFound, false},
		{ErrCodeRateLimited, true},
		{ErrCodeRecordingTooShort, true},
		{ErrCodeDeviceUnavailable, false},
		{ErrCodeNoActiveRecording, false},
		{ErrCodeTranscriptionFailed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "msg", http.StatusBadRequest)
			if err.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", err.Retryable, tt.retryable)
			}
			if err.HTTPStatus != http.StatusBadRequest {
				t.Errorf("status = %d", err.HTTPStatus)
			}
		})
	}
}

func TestNotFound_EmptyID(t *testing.T) {
	err := NotFound("submission", "")
	if _, ok := err.Details["id"]; ok {
		t.Error("expected no 'id' key in details when id is empty")
	}
	if err.Details["resource"] != "submission" {
		t.Errorf("resource = %v", err.Details["resource"])
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("status = %d", err.HTTPStatus)
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := Internal(fmt.Errorf("disk full"))
	if !strings.Contains(err.Error(), "INTERNAL_ERROR") || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("unexpected error string %q", err.Error())
	}
	plain := Conflict("busy")
	if plain.Error() != "CONFLICT: busy" {
		t.Errorf("unexpected error string %q", plain.Error())
	}
}

func TestAppError_UnwrapAndAs(t *testing.T) {
	root := fmt.Errorf("root")
	wrapped := fmt.Errorf("outer: %w", DatabaseError(root))

	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AppError in chain")
	}
	if appErr.Code != ErrCodeDatabaseError {
		t.Errorf("code = %s", appErr.Code)
	}
	if !stderrors.Is(wrapped, root) {
		t.Error("expected root cause reachable through Unwrap")
	}
}

func TestFrom(t *testing.T) {
	if From(nil) != nil {
		t.Error("From(nil) should be nil")
	}
	if got := From(fmt.Errorf("x")); got.Code != ErrCodeInternal {
		t.Errorf("code = %s, want INTERNAL_ERROR", got.Code)
	}
	orig := RateLimited()
	if got := From(orig); got != orig {
		t.Error("From should return the AppError unchanged")
	}
}

func TestToResponse(t *testing.T) {
	err := New(ErrCodeTranscriptionFailed, "Błąd transkrypcji.", http.StatusBadGateway).
		WithDetail("reason", "rate_limited")
	resp := err.ToResponse()
	if resp.Error.Code != ErrCodeTranscriptionFailed {
		t.Errorf("code = %s", resp.Error.Code)
	}
	if !resp.Error.Retryable {
		t.Error("expected retryable")
	}
	if resp.Error.Details["reason"] != "rate_limited" {
		t.Errorf("details = %v", resp.Error.Details)
	}
}

func TestPayloadTooLarge(t *testing.T) {
	err := PayloadTooLarge(1024)
	if err.HTTPStatus != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", err.HTTPStatus)
	}
	if err.Details["limit_bytes"] != int64(1024) {
		t.Errorf("details = %v", err.Details)
	}
}
