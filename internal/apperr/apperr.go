// Package apperr implements the error taxonomy shared by every component:
// Transient, Permanent, Inconsistent, and Unavailable. Components return
// these typed errors instead of bare strings so callers can branch on
// errors.Is/errors.As rather than parsing messages.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether to retry,
// reject, auto-correct, or defer.
type Kind int

const (
	// KindTransient is a retryable upstream failure (network, rate-limit, 5xx).
	KindTransient Kind = iota
	// KindPermanent is a validated business-rule rejection.
	KindPermanent
	// KindInconsistent marks local/remote disagreement; never surfaced to users directly.
	KindInconsistent
	// KindUnavailable marks data that cannot be obtained within the policy window.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindInconsistent:
		return "inconsistent"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Reason is a stable machine-readable code for a Permanent error, used by
// the HTTP facade to pick a status code without inspecting message text.
type Reason string

const (
	ReasonMalformedAddress      Reason = "malformed_address"
	ReasonNotFound              Reason = "not_found"
	ReasonNothingToClaim        Reason = "nothing_to_claim"
	ReasonNonceReplay           Reason = "nonce_replay"
	ReasonStaleNonce            Reason = "stale_nonce"
	ReasonCalculatorUnauthorized Reason = "calculator_unauthorized"
	ReasonValidation            Reason = "validation"
)

// Error is the typed error value every component returns. It wraps an
// upstream cause (if any) but never exposes that cause's text to an
// external caller — the HTTP facade logs Cause and returns only Kind/Reason.
type Error struct {
	Kind          Kind
	Reason        Reason
	Message       string
	CorrelationID string
	Cause         error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, apperr.Transient) match any *Error of that Kind,
// ignoring Reason/Message/Cause. When the target carries a Reason, the
// Reason must match as well.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason != "" {
		return e.Kind == t.Kind && e.Reason == t.Reason
	}
	return e.Kind == t.Kind
}

// Sentinel values for errors.Is comparisons against Kind alone.
var (
	Transient    = &Error{Kind: KindTransient}
	Permanent    = &Error{Kind: KindPermanent}
	Inconsistent = &Error{Kind: KindInconsistent}
	Unavailable  = &Error{Kind: KindUnavailable}
)

// NewTransient builds a Transient error wrapping cause.
func NewTransient(message string, cause error) *Error {
	return &Error{Kind: KindTransient, Message: message, Cause: cause}
}

// NewPermanent builds a Permanent error with a stable Reason code.
func NewPermanent(reason Reason, message string) *Error {
	return &Error{Kind: KindPermanent, Reason: reason, Message: message}
}

// NewInconsistent builds an Inconsistent error for the Sync Validator.
func NewInconsistent(message string) *Error {
	return &Error{Kind: KindInconsistent, Message: message}
}

// NewUnavailable builds an Unavailable error for stale prices or unreachable chain state.
func NewUnavailable(message string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Message: message, Cause: cause}
}

// IsTransient reports whether err is (or wraps) a Transient error.
func IsTransient(err error) bool { return errors.Is(err, Transient) }

// IsPermanent reports whether err is (or wraps) a Permanent error.
func IsPermanent(err error) bool { return errors.Is(err, Permanent) }

// IsUnavailable reports whether err is (or wraps) an Unavailable error.
func IsUnavailable(err error) bool { return errors.Is(err, Unavailable) }

// ReasonOf extracts the Reason from err, if it is (or wraps) an *Error.
func ReasonOf(err error) (Reason, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason, true
	}
	return "", false
}
