// Package errs defines the closed error taxonomy every component in
// researchcore reports through: a fixed set of Kinds plus a wrapping error
// type that keeps go-faster/errors' stack-aware chain so logs retain a
// trace while call sites still switch on Kind.
package errs

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind is a closed classification of failure, mirroring the propagation
// policy: cache/dedup failures are recovered locally, everything else is
// surfaced to the worker which records it or leaves prepared state intact.
type Kind string

const (
	// Transient covers rate-limit, timeout, and 5xx responses: retried with
	// backoff inside the stage, surfaced as a pipeline failure if exhausted.
	Transient Kind = "transient"
	// ParseFormat covers malformed LLM output: retried with a fresh prompt
	// up to the stage's retry budget, otherwise the stage fails.
	ParseFormat Kind = "parse_format"
	// Validation covers invalid input caught at a boundary (bad language
	// code, empty description, missing required config): never retried.
	Validation Kind = "validation"
	// StateDrift marks a stale job a worker silently skips and logs.
	StateDrift Kind = "state_drift"
	// ProviderExhausted means every search provider failed or was
	// unhealthy: pipeline failure, project moves to status=error.
	ProviderExhausted Kind = "provider_exhausted"
	// Persistent covers project-store failures: propagated so the broker
	// retries and the reconciler eventually converges.
	Persistent Kind = "persistent"
	// CacheFailure is swallowed by the caller; the pipeline continues
	// without the cache store.
	CacheFailure Kind = "cache_failure"
	// EmailFailure leaves the delivery log pending and the project's
	// preparedDeliveryLogId intact; the broker retries delivery.
	EmailFailure Kind = "email_failure"
)

// Error wraps an underlying error with a Kind and a stack-aware chain from
// go-faster/errors, so both errors.Is/As and Kind-switches work on it.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.err)
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Kind() Kind { return e.kind }

// New wraps msg as a Kind-tagged error with a captured stack.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, err: errors.New(msg)}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, err: errors.New(fmt.Sprintf(format, args...))}
}

// Wrap tags err with kind, preserving its stack via go-faster/errors.Wrap.
// Wrapping nil returns nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.Wrap(err, msg)}
}

// Wrapf is Wrap with fmt.Sprintf-style formatting.
func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, err: errors.Wrapf(err, format, args...)}
}

// As reports whether err (or any error in its chain) is an *Error, and if
// so returns its Kind.
func As(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return "", false
}

// Is reports whether err's Kind (anywhere in its chain) equals kind.
func Is(err error, kind Kind) bool {
	k, ok := As(err)
	return ok && k == kind
}

// Retryable reports whether the worker/broker should retry err rather than
// record it and move on. Transient, ParseFormat and Persistent errors are
// retried by the stage/broker, and so are errors that carry no Kind; every
// other Kind is terminal for the current attempt.
func Retryable(err error) bool {
	k, ok := As(err)
	if !ok {
		return true // unclassified errors default to retryable, the conservative choice
	}
	switch k {
	case Transient, ParseFormat, Persistent:
		return true
	default:
		return false
	}
}
