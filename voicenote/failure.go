package voicenote

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kbukum/hvacform/audio"
	apperrors "github.com/kbukum/hvacform/errors"
	"github.com/kbukum/hvacform/transcription"
)

// Kind classifies why a recording did not produce text.
type Kind string

const (
	KindDeviceUnavailable   Kind = "device_unavailable"
	KindRecordingTooShort   Kind = "recording_too_short"
	KindRecordingTooQuiet   Kind = "recording_too_quiet"
	KindTranscriptionFailed Kind = "transcription_failed"
	KindNoSpeechDetected    Kind = "no_speech_detected"
	KindNoActiveRecording   Kind = "no_active_recording"
	KindBusy                Kind = "busy"
	KindProcessingFailed    Kind = "processing_failed"
)

// User-facing messages.
const (
	MsgUnsupported       = "Twoja przeglądarka nie obsługuje nagrywania dźwięku"
	MsgDeviceUnavailable = "Nie udało się uzyskać dostępu do mikrofonu. Upewnij się, że masz podłączony mikrofon i udzieliłeś zgody na dostęp."
	MsgTooShort          = "Nagranie jest zbyt krótkie. Spróbuj ponownie i mów wyraźnie."
	MsgTooQuiet          = "Nagranie jest zbyt ciche lub puste. Spróbuj ponownie i mów głośniej."
	MsgNoSpeech          = "Nie wykryto mowy w nagraniu. Spróbuj ponownie i mów wyraźnie."
	MsgNoActiveRecording = "Nagrywanie nie zostało rozpoczęte."
	MsgBusy              = "Trwa przetwarzanie poprzedniego nagrania. Poczekaj chwilę."
	MsgProcessingFailed  = "Wystąpił błąd podczas przetwarzania nagrania"

	MsgStarted     = "Rozpoczynam nagrywanie..."
	MsgTranscribed = "Transkrypcja zakończona pomyślnie"
)

var transcriptionMessages = map[transcription.Kind]string{
	transcription.KindUnauthorized:           "Błąd autoryzacji API. Skontaktuj się z administratorem.",
	transcription.KindRateLimited:            "Przekroczono limit zapytań do API. Spróbuj ponownie za chwilę.",
	transcription.KindUnsupportedFormat:      "Format nagrania nie jest obsługiwany. Spróbuj ponownie w innej przeglądarce.",
	transcription.KindBadRequest:             "Błąd przetwarzania nagrania. Spróbuj ponownie i mów wyraźniej.",
	transcription.KindServerMisconfiguration: "Błąd konfiguracji modelu API. Skontaktuj się z administratorem.",
	transcription.KindUnknown:                "Błąd transkrypcji. Spróbuj ponownie za chwilę.",
}

const msgInvalidModel = "Nieprawidłowy model transkrypcji. Skontaktuj się z administratorem."
const msgMissingField = "Błąd w żądaniu API. Skontaktuj się z administratorem."

// Failure is returned by every Recorder operation that does not yield text.
// Message is shown to the user; Cause is for logs only.
type Failure struct {
	Kind    Kind
	Message string
	// Reason is set for KindTranscriptionFailed.
	Reason transcription.Kind
	Cause  error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("voicenote: %s", f.Kind)
	if f.Reason != "" {
		msg += fmt.Sprintf(" (%s)", f.Reason)
	}
	if f.Cause != nil {
		msg += fmt.Sprintf(": %v", f.Cause)
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Cause }

// Soft reports whether the failure is informational: the recording worked
// but contained no speech.
func (f *Failure) Soft() bool { return f.Kind == KindNoSpeechDetected }

func newFailure(kind Kind, cause error) *Failure {
	f := &Failure{Kind: kind, Cause: cause}
	switch kind {
	case KindDeviceUnavailable:
		f.Message = MsgDeviceUnavailable
		if errors.Is(cause, audio.ErrNotSupported) {
			f.Message = MsgUnsupported
		}
	case KindRecordingTooShort:
		f.Message = MsgTooShort
	case KindRecordingTooQuiet:
		f.Message = MsgTooQuiet
	case KindNoSpeechDetected:
		f.Message = MsgNoSpeech
	case KindNoActiveRecording:
		f.Message = MsgNoActiveRecording
	case KindBusy:
		f.Message = MsgBusy
	default:
		f.Message = MsgProcessingFailed
	}
	return f
}

// transcriptionFailure wraps a provider error. The message distinguishes a
// rejected model id on 422 and a missing request field from the generic
// misconfiguration text.
func transcriptionFailure(err error) *Failure {
	f := &Failure{Kind: KindTranscriptionFailed, Reason: transcription.KindOf(err), Cause: err}
	f.Message = transcriptionMessages[f.Reason]

	var te *transcription.Error
	if errors.As(err, &te) && te.Kind == transcription.KindServerMisconfiguration {
		switch {
		case te.StatusCode == http.StatusUnprocessableEntity:
			f.Message = msgInvalidModel
		case !mentionsModel(te.Detail) && mentionsMissing(te.Detail):
			f.Message = msgMissingField
		}
	}
	return f
}

func mentionsModel(s string) bool   { return strings.Contains(strings.ToLower(s), "model_id") }
func mentionsMissing(s string) bool { return strings.Contains(strings.ToLower(s), "missing") }

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

var failureStatus = map[Kind]struct {
	code   apperrors.ErrorCode
	status int
}{
	KindDeviceUnavailable:   {apperrors.ErrCodeDeviceUnavailable, http.StatusServiceUnavailable},
	KindRecordingTooShort:   {apperrors.ErrCodeRecordingTooShort, http.StatusUnprocessableEntity},
	KindRecordingTooQuiet:   {apperrors.ErrCodeRecordingTooQuiet, http.StatusUnprocessableEntity},
	KindTranscriptionFailed: {apperrors.ErrCodeTranscriptionFailed, http.StatusBadGateway},
	KindNoSpeechDetected:    {apperrors.ErrCodeNoSpeechDetected, http.StatusUnprocessableEntity},
	KindNoActiveRecording:   {apperrors.ErrCodeNoActiveRecording, http.StatusConflict},
	KindBusy:                {apperrors.ErrCodeRecorderBusy, http.StatusConflict},
	KindProcessingFailed:    {apperrors.ErrCodeInternal, http.StatusInternalServerError},
}

// AppError converts the failure for the HTTP layer.
func (f *Failure) AppError() *apperrors.AppError {
	s, ok := failureStatus[f.Kind]
	if !ok {
		s = failureStatus[KindProcessingFailed]
	}
	appErr := apperrors.New(s.code, f.Message, s.status).WithCause(f.Cause)
	if f.Kind == KindTranscriptionFailed {
		appErr.WithDetail("reason", string(f.Reason))
		switch f.Reason {
		case transcription.KindUnauthorized, transcription.KindServerMisconfiguration:
			appErr.Retryable = false
		case transcription.KindRateLimited:
			appErr.HTTPStatus = http.StatusTooManyRequests
		}
	}
	if f.Soft() {
		appErr.WithDetail("soft", true)
	}
	return appErr
}
