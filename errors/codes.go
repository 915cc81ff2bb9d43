package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Generic codes
const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeRateLimited     ErrorCode = "RATE_LIMITED"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Voice note codes
const (
	// ErrCodeDeviceUnavailable means the microphone could not be opened.
	ErrCodeDeviceUnavailable ErrorCode = "DEVICE_UNAVAILABLE"
	// ErrCodeRecordingTooShort means the recording lasted under the minimum.
	ErrCodeRecordingTooShort ErrorCode = "RECORDING_TOO_SHORT"
	// ErrCodeRecordingTooQuiet means the encoded audio was below the size floor.
	ErrCodeRecordingTooQuiet ErrorCode = "RECORDING_TOO_QUIET"
	// ErrCodeTranscriptionFailed means the speech-to-text call failed.
	ErrCodeTranscriptionFailed ErrorCode = "TRANSCRIPTION_FAILED"
	// ErrCodeNoSpeechDetected means transcription succeeded with empty text.
	ErrCodeNoSpeechDetected ErrorCode = "NO_SPEECH_DETECTED"
	// ErrCodeNoActiveRecording means stop was requested with nothing recording.
	ErrCodeNoActiveRecording ErrorCode = "NO_ACTIVE_RECORDING"
	// ErrCodeRecorderBusy means a transcription is still in flight.
	ErrCodeRecorderBusy ErrorCode = "RECORDER_BUSY"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeRateLimited:         true,
	ErrCodeDatabaseError:       true,
	ErrCodeExternalService:     true,
	ErrCodeRecordingTooShort:   true,
	ErrCodeRecordingTooQuiet:   true,
	ErrCodeNoSpeechDetected:    true,
	ErrCodeTranscriptionFailed: true,
	ErrCodeRecorderBusy:        true,
}

// IsRetryableCode reports whether the user may retry after this code.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
