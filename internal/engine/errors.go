package engine

import "fmt"

// ValidationError covers malformed input: missing required fields, fee out of
// range, unknown enum values. Callers can fix and resubmit.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError is returned when a status change is not in the
// entity's transition table. Current and requested statuses are surfaced
// verbatim.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// PreconditionNotMetError covers time or state gates: cooling-off still
// running, intervention not acknowledged, request not confirmed. When the
// gate is time-based, SecondsRemaining tells the caller how long to back off.
type PreconditionNotMetError struct {
	Msg              string
	SecondsRemaining int64
}

func (e PreconditionNotMetError) Error() string { return e.Msg }

func preconditionf(format string, args ...any) error {
	return PreconditionNotMetError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError covers duplicate creations and optimistic-concurrency losers.
// The caller must re-read state before retrying.
type ConflictError struct {
	Msg string
}

func (e ConflictError) Error() string { return e.Msg }

func conflictf(format string, args ...any) error {
	return ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// PermissionDeniedError covers ownership violations: a non-owner mutating a
// record, or an owner applying to their own listing.
type PermissionDeniedError struct {
	Msg string
}

func (e PermissionDeniedError) Error() string { return e.Msg }

func deniedf(format string, args ...any) error {
	return PermissionDeniedError{Msg: fmt.Sprintf(format, args...)}
}
