package voicenote

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/kbukum/hvacform/audio"
	apperrors "github.com/kbukum/hvacform/errors"
	"github.com/kbukum/hvacform/transcription"
)

func TestTranscriptionFailure_Messages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		reason transcription.Kind
		msg    string
	}{
		{"unauthorized", 401, `{"detail":"invalid key"}`, transcription.KindUnauthorized, transcriptionMessages[transcription.KindUnauthorized]},
		{"rate limited", 429, ``, transcription.KindRateLimited, transcriptionMessages[transcription.KindRateLimited]},
		{"unsupported format", 422, `{"detail":"bad file"}`, transcription.KindUnsupportedFormat, transcriptionMessages[transcription.KindUnsupportedFormat]},
		{"invalid model", 422, `{"detail":"model_id invalid"}`, transcription.KindServerMisconfiguration, msgInvalidModel},
		{"model in 400", 400, `{"detail":"unknown model_id"}`, transcription.KindServerMisconfiguration, transcriptionMessages[transcription.KindServerMisconfiguration]},
		{"missing field", 500, `{"detail":"missing file"}`, transcription.KindServerMisconfiguration, msgMissingField},
		{"bad request", 400, `{}`, transcription.KindBadRequest, transcriptionMessages[transcription.KindBadRequest]},
		{"server error", 500, `oops`, transcription.KindUnknown, transcriptionMessages[transcription.KindUnknown]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := transcriptionFailure(transcription.NewHTTPError(tt.status, []byte(tt.body), nil))
			if f.Kind != KindTranscriptionFailed {
				t.Fatalf("expected transcription_failed, got %s", f.Kind)
			}
			if f.Reason != tt.reason {
				t.Errorf("expected reason %s, got %s", tt.reason, f.Reason)
			}
			if f.Message != tt.msg {
				t.Errorf("expected message %q, got %q", tt.msg, f.Message)
			}
		})
	}
}

func TestTranscriptionFailure_PlainError(t *testing.T) {
	f := transcriptionFailure(errors.New("connection reset"))
	if f.Reason != transcription.KindUnknown {
		t.Fatalf("expected unknown, got %s", f.Reason)
	}
}

func TestNewFailure_Unsupported(t *testing.T) {
	f := newFailure(KindDeviceUnavailable, fmt.Errorf("open: %w", audio.ErrNotSupported))
	if f.Message != MsgUnsupported {
		t.Fatalf("expected unsupported message, got %q", f.Message)
	}
}

func TestFailure_AppError(t *testing.T) {
	tests := []struct {
		name      string
		f         *Failure
		code      apperrors.ErrorCode
		status    int
		retryable bool
	}{
		{"too short", newFailure(KindRecordingTooShort, nil), apperrors.ErrCodeRecordingTooShort, http.StatusUnprocessableEntity, true},
		{"too quiet", newFailure(KindRecordingTooQuiet, nil), apperrors.ErrCodeRecordingTooQuiet, http.StatusUnprocessableEntity, true},
		{"device", newFailure(KindDeviceUnavailable, audio.ErrDeviceUnavailable), apperrors.ErrCodeDeviceUnavailable, http.StatusServiceUnavailable, false},
		{"no active", newFailure(KindNoActiveRecording, nil), apperrors.ErrCodeNoActiveRecording, http.StatusConflict, false},
		{"busy", newFailure(KindBusy, nil), apperrors.ErrCodeRecorderBusy, http.StatusConflict, true},
		{"processing", newFailure(KindProcessingFailed, errors.New("x")), apperrors.ErrCodeInternal, http.StatusInternalServerError, false},
		{"rate limited", transcriptionFailure(transcription.NewHTTPError(429, nil, nil)), apperrors.ErrCodeTranscriptionFailed, http.StatusTooManyRequests, true},
		{"unauthorized", transcriptionFailure(transcription.NewHTTPError(401, nil, nil)), apperrors.ErrCodeTranscriptionFailed, http.StatusBadGateway, false},
		{"unknown", transcriptionFailure(transcription.NewHTTPError(503, nil, nil)), apperrors.ErrCodeTranscriptionFailed, http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := tt.f.AppError()
			if appErr.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, appErr.Code)
			}
			if appErr.HTTPStatus != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, appErr.HTTPStatus)
			}
			if appErr.Retryable != tt.retryable {
				t.Errorf("expected retryable=%t", tt.retryable)
			}
			if appErr.Message != tt.f.Message {
				t.Errorf("expected the user message, got %q", appErr.Message)
			}
		})
	}
}

func TestFailure_AppErrorDetails(t *testing.T) {
	appErr := transcriptionFailure(transcription.NewHTTPError(429, nil, nil)).AppError()
	if appErr.Details["reason"] != string(transcription.KindRateLimited) {
		t.Errorf("expected reason detail, got %v", appErr.Details)
	}
	soft := newFailure(KindNoSpeechDetected, nil).AppError()
	if soft.Details["soft"] != true {
		t.Errorf("expected soft detail, got %v", soft.Details)
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.MinDuration != time.Second || cfg.MinBytes != 1000 {
		t.Fatalf("unexpected gates %s / %d", cfg.MinDuration, cfg.MinBytes)
	}
	if cfg.Timeslice != 250*time.Millisecond {
		t.Fatalf("timeslice = %s, want 250ms", cfg.Timeslice)
	}
	if cfg.FragmentLimit() != 2<<20 || cfg.RecordingLimit() != 25<<20 {
		t.Fatalf("unexpected limits %d / %d", cfg.FragmentLimit(), cfg.RecordingLimit())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"negative duration", func(c *Config) { c.MinDuration = -time.Second }},
		{"negative bytes", func(c *Config) { c.MinBytes = -1 }},
		{"no sessions", func(c *Config) { c.MaxSessions = -1 }},
		{"tiny ttl", func(c *Config) { c.SessionTTL = time.Millisecond }},
		{"encrypt without key", func(c *Config) { c.Archive.Encrypt = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mod(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
