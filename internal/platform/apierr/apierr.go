package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation            Kind = "validation"
	KindNotFound              Kind = "not_found"
	KindConflict              Kind = "conflict"
	KindProviderTimeout       Kind = "provider_timeout"
	KindProviderRateLimit     Kind = "provider_rate_limit"
	KindProviderInvalidOutput Kind = "provider_invalid_output"
	KindPersistence           Kind = "persistence"
	KindUnauthorized          Kind = "unauthorized"
)

type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Kind != "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Status: StatusFor(kind), Err: err}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Errorf(format, args...))
}

func Validation(format string, args ...any) *Error { return Newf(KindValidation, format, args...) }
func NotFound(format string, args ...any) *Error   { return Newf(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error   { return Newf(KindConflict, format, args...) }
func Unauthorized(format string, args ...any) *Error {
	return Newf(KindUnauthorized, format, args...)
}

// Persistence wraps a storage error. nil in, nil out.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return New(KindPersistence, fmt.Errorf("%s: %w", op, err))
}

func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// Retryable reports whether a job step failing with err may be re-run.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindProviderTimeout, KindProviderRateLimit, KindPersistence:
		return true
	case "":
		return err != nil
	default:
		return false
	}
}

func StatusFor(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindProviderRateLimit:
		return http.StatusTooManyRequests
	case KindProviderInvalidOutput:
		return http.StatusBadGateway
	case KindProviderTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
