package database

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/hvacform/errors"
)

type failure int

const (
	failureOther failure = iota
	failureUnavailable
	failureContention
	failureDuplicate
)

// Driver messages, lower-cased. SQLite reports lock contention and
// constraint violations as plain text unless TranslateError is on.
var failurePatterns = []struct {
	kind     failure
	patterns []string
}{
	{failureUnavailable, []string{
		"connection refused", "connection reset", "broken pipe", "i/o timeout",
		"no route to host", "network is unreachable", "driver: bad connection",
		"unable to open database file", "sql: database is closed",
	}},
	{failureContention, []string{
		"database is locked", "database table is locked", "sqlite_busy",
		"deadlock", "lock timeout", "too many connections",
	}},
	{failureDuplicate, []string{
		"unique constraint failed", "duplicate key value",
	}},
}

func classify(err error) failure {
	switch {
	case err == nil:
		return failureOther
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return failureDuplicate
	}
	msg := strings.ToLower(err.Error())
	for _, group := range failurePatterns {
		for _, p := range group.patterns {
			if strings.Contains(msg, p) {
				return group.kind
			}
		}
	}
	return failureOther
}

// IsConnectionError reports whether the database could not be reached.
func IsConnectionError(err error) bool { return classify(err) == failureUnavailable }

// IsRetryableError reports whether the same statement may succeed later.
func IsRetryableError(err error) bool {
	k := classify(err)
	return k == failureUnavailable || k == failureContention
}

// IsNotFoundError reports a missing record.
func IsNotFoundError(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

// IsDuplicateError reports a unique constraint violation.
func IsDuplicateError(err error) bool { return classify(err) == failureDuplicate }

// FromDatabase maps a storage error for resource onto the API error it
// should surface as.
func FromDatabase(err error, resource string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if IsNotFoundError(err) {
		return apperrors.NotFound(resource, "")
	}
	switch classify(err) {
	case failureDuplicate:
		return apperrors.Conflict(fmt.Sprintf("A %s with these details already exists.", resource)).WithCause(err)
	case failureUnavailable:
		return unavailable("Database is temporarily unavailable. Please try again.", err)
	case failureContention:
		return unavailable("Database is busy. Please try again.", err)
	default:
		return apperrors.DatabaseError(err)
	}
}

func unavailable(msg string, cause error) *apperrors.AppError {
	return (&apperrors.AppError{
		Code:       apperrors.ErrCodeDatabaseError,
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
	}).WithCause(cause)
}
