// Package taskerr defines the error taxonomy shared by the task core.
// Every rejected operation yields a stable machine-readable kind and reason
// plus a human-readable explanation of the blocking condition.
package taskerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that only care about the category.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindPrecondition Kind = "precondition"
	KindNotFound     Kind = "not_found"
	KindUnavailable  Kind = "unavailable"
)

// Reason identifies the specific rule that rejected an operation.
type Reason string

const (
	// Site-presence machine.
	ReasonSiteConflict        Reason = "site_conflict"
	ReasonAlreadyTraveling    Reason = "already_traveling"
	ReasonNotTraveling        Reason = "not_traveling"
	ReasonAlreadyArrived      Reason = "already_arrived"
	ReasonNotOnSite           Reason = "not_on_site"
	ReasonLunchAlreadyStarted Reason = "lunch_already_started"
	ReasonNoLunchInProgress   Reason = "no_lunch_in_progress"
	ReasonOnLunch             Reason = "on_lunch"
	ReasonNotArrived          Reason = "not_arrived"
	ReasonAlreadyDeparted     Reason = "already_departed"

	// Task and assignment status machines.
	ReasonTechniciansOnSite     Reason = "technicians_still_on_site"
	ReasonPrematureStatusChange Reason = "premature_status_change"
	ReasonVisitIncomplete       Reason = "visit_incomplete"
	ReasonInvalidTransition     Reason = "invalid_transition"
	ReasonDuplicateAssignment   Reason = "duplicate_assignment"

	// General.
	ReasonInvalidInput       Reason = "invalid_input"
	ReasonNotFound           Reason = "not_found"
	ReasonStorageUnavailable Reason = "storage_unavailable"
)

// Error carries the kind, reason and explanation for a rejected operation.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error with a formatted message.
func New(kind Kind, reason Reason, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed or out-of-range input.
func Validation(reason Reason, format string, args ...interface{}) *Error {
	return New(KindValidation, reason, format, args...)
}

// Conflict reports a clash with concurrent or existing state.
func Conflict(reason Reason, format string, args ...interface{}) *Error {
	return New(KindConflict, reason, format, args...)
}

// Precondition reports a transition attempted before its physical prerequisite.
func Precondition(reason Reason, format string, args ...interface{}) *Error {
	return New(KindPrecondition, reason, format, args...)
}

// NotFound reports a missing task, technician, team or log.
func NotFound(format string, args ...interface{}) *Error {
	return New(KindNotFound, ReasonNotFound, format, args...)
}

// Unavailable wraps an infrastructure failure from the storage layer.
func Unavailable(err error, format string, args ...interface{}) *Error {
	e := New(KindUnavailable, ReasonStorageUnavailable, format, args...)
	e.Err = err
	return e
}

// KindOf returns the Kind of err, or the empty string for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf returns the Reason of err, or the empty string for foreign errors.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// HasReason reports whether err carries the given reason.
func HasReason(err error, reason Reason) bool {
	return ReasonOf(err) == reason
}
