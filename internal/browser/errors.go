package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is a closed classification of automation failures. Every error
// leaving this package carries a kind; retry policy keys off the kind, never
// off message text.
type ErrorKind int

const (
	ErrKindOther ErrorKind = iota
	ErrKindSessionCrashed
	ErrKindContextDestroyed
	ErrKindNavigationTimeout
	ErrKindContentShape
)

// String returns the kind's wire name.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindSessionCrashed:
		return "session_crashed"
	case ErrKindContextDestroyed:
		return "context_destroyed"
	case ErrKindNavigationTimeout:
		return "navigation_timeout"
	case ErrKindContentShape:
		return "content_shape"
	default:
		return "other"
	}
}

// Retryable reports whether a fresh session is worth another attempt. Only
// transient automation faults qualify; timeouts and content-shape problems
// will recur and are handled by degradation instead.
func (k ErrorKind) Retryable() bool {
	return k == ErrKindSessionCrashed || k == ErrKindContextDestroyed
}

// Error wraps an automation failure with its classified kind.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Classify extracts the kind from an error produced by this package.
// Unrecognized errors map to ErrKindOther.
func Classify(err error) ErrorKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindNavigationTimeout
	}
	return ErrKindOther
}

// classify inspects a raw CDP/rod error once, at the point of catch. This is
// the only place message text is interpreted; callers see the enum.
func classify(err error) *Error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}

	kind := ErrKindOther
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrKindNavigationTimeout
	case strings.Contains(msg, "crashed"):
		kind = ErrKindSessionCrashed
	case strings.Contains(msg, "session closed") || strings.Contains(msg, "browser has been closed"):
		kind = ErrKindSessionCrashed
	case strings.Contains(msg, "context destroyed") || strings.Contains(msg, "cannot find context"):
		kind = ErrKindContextDestroyed
	}

	return &Error{Kind: kind, Err: err}
}
