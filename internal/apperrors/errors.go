package apperrors

import (
	"errors"
	"strings"
)

type Kind string

const (
	KindConfig            Kind = "config"
	KindEncoding          Kind = "encoding"
	KindTransient         Kind = "transient"
	KindRateLimit         Kind = "rate_limit"
	KindAuth              Kind = "auth"
	KindBadRequest        Kind = "bad_request"
	KindMalformedResponse Kind = "malformed_response"
	KindCanceled          Kind = "canceled"
)

type Error struct {
	Kind Kind
	// SafeMessage is intended for user-facing output and logs.
	SafeMessage string
	// Status is the HTTP status observed upstream, 0 when none was received.
	Status int
	// Cause keeps the original internal error for troubleshooting.
	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if msg := strings.TrimSpace(e.SafeMessage); msg != "" {
		return msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "unknown error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func defaultSafeMessage(kind Kind) string {
	switch kind {
	case KindConfig:
		return "Configuration is incomplete."
	case KindEncoding:
		return "Image encoding failed."
	case KindTransient:
		return "Temporary upstream error. Please try again."
	case KindRateLimit:
		return "Rate limit exceeded. Please try again later."
	case KindAuth:
		return "Authentication failed. Please verify your API key and permissions."
	case KindBadRequest:
		return "Request rejected by upstream API."
	case KindMalformedResponse:
		return "Upstream returned a response that could not be parsed."
	case KindCanceled:
		return "Request canceled."
	default:
		return "Request failed."
	}
}

func New(kind Kind, safeMessage string, cause error) error {
	msg := strings.TrimSpace(safeMessage)
	if msg == "" {
		msg = defaultSafeMessage(kind)
	}
	return &Error{
		Kind:        kind,
		SafeMessage: msg,
		Cause:       cause,
	}
}

// WithStatus is New for failures that carry an upstream HTTP status.
func WithStatus(kind Kind, status int, safeMessage string, cause error) error {
	err := New(kind, safeMessage, cause).(*Error)
	err.Status = status
	return err
}

func KindOf(err error) (Kind, bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", false
	}
	return e.Kind, true
}

// StatusOf returns the upstream HTTP status attached to err, or 0.
func StatusOf(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return 0
	}
	return e.Status
}

func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}

func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	// Transient: server errors, network issues
	// RateLimit: API rate limiting
	return e.Kind == KindTransient || e.Kind == KindRateLimit
}
