package transcription

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Kind classifies a failed transcription call.
type Kind string

const (
	KindUnauthorized           Kind = "unauthorized"
	KindRateLimited            Kind = "rate_limited"
	KindUnsupportedFormat      Kind = "unsupported_format"
	KindBadRequest             Kind = "bad_request"
	KindServerMisconfiguration Kind = "server_misconfiguration"
	KindUnknown                Kind = "unknown"
)

// Error is returned by providers for every failed call.
type Error struct {
	Kind Kind
	// StatusCode is 0 for transport failures.
	StatusCode int
	// Detail is the upstream error text, for logs only.
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("transcription: %s", e.Kind)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Classify maps an upstream HTTP failure to a Kind. The status code is
// checked before the body, so a 422 that names model_id is a server
// misconfiguration and any other 422 is an unsupported format.
func Classify(status int, body string) Kind {
	mentions := func(s string) bool { return strings.Contains(strings.ToLower(body), s) }
	switch {
	case status == http.StatusUnprocessableEntity && mentions("model_id"):
		return KindServerMisconfiguration
	case status == http.StatusUnprocessableEntity:
		return KindUnsupportedFormat
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindUnauthorized
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case mentions("model_id"):
		return KindServerMisconfiguration
	case status == http.StatusBadRequest:
		return KindBadRequest
	case mentions("missing"):
		return KindServerMisconfiguration
	default:
		return KindUnknown
	}
}

// NewHTTPError builds a classified Error from a failed response.
func NewHTTPError(status int, body []byte, cause error) *Error {
	return &Error{
		Kind:       Classify(status, string(body)),
		StatusCode: status,
		Detail:     truncate(strings.TrimSpace(string(body)), 512),
		Cause:      cause,
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
