// Package errs defines the typed error kinds shared across the pipeline.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for dispatch and metrics, mirroring the five
// error classes the pipeline distinguishes: transient transport,
// validation, parse, persistence, and fatal.
type Kind string

const (
	KindTransientTransport Kind = "transient_transport"
	KindValidation         Kind = "validation"
	KindParse              Kind = "parse"
	KindPersistence        Kind = "persistence"
	KindFatal              Kind = "fatal"

	// Executor-specific validation sub-kinds.
	KindAuthentication   Kind = "authentication"
	KindPositionSize     Kind = "position_size"
	KindOrderBook        Kind = "order_book"
	KindPriceValidation  Kind = "price_validation"
	KindRateLimit        Kind = "rate_limit"
	KindExecution        Kind = "execution"
)

// Error wraps an underlying cause with a Kind so callers can branch on
// classification without string matching, and a Retryable flag for
// transient-transport callers deciding whether to back off and retry.
// RetryAfter carries a server-specified wait (e.g. a 429's Retry-After
// header) that should override the caller's own backoff schedule when
// set; it is zero for errors with no such hint.
type Error struct {
	Kind       Kind
	Op         string
	Err        error
	Retryable  bool
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Retry constructs a transient-transport Error marked retryable.
func Retry(op string, err error) *Error {
	return &Error{Kind: KindTransientTransport, Op: op, Err: err, Retryable: true}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, or "" otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
