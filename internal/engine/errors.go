package engine

import (
	"errors"
	"fmt"
)

// ReorderError is returned by every non-successful Coordinator call.
//
// Store errors never reach callers bare: they are carried in Err so that
// errors.Is(err, order.ErrConstraintViolation) and friends still work.
type ReorderError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Reason refines REJECTED errors.
	Reason Reason

	// GroupID identifies the affected group.
	GroupID string

	// Phase names the protocol step that failed (guard, snapshot, plan,
	// offset, stage, commit).
	Phase Phase

	// ItemID and Position describe the failing write, if any.
	ItemID   string
	Position int

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes reorder errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates bad input: out-of-range indices, empty or
	// unknown IDs, an empty group. No store writes happened.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeRejected indicates the call was refused without touching the store.
	ErrCodeRejected ErrorCode = "REJECTED"

	// ErrCodeTransport indicates a store or guard failure before any write.
	ErrCodeTransport ErrorCode = "TRANSPORT"

	// ErrCodePartialFailure indicates a write failed mid-protocol. Some
	// writes may have been applied; the group needs a resync.
	ErrCodePartialFailure ErrorCode = "PARTIAL_FAILURE"
)

// Reason explains a rejection.
type Reason string

const (
	ReasonConcurrentOperation Reason = "concurrent-operation-in-progress"
	ReasonResyncRequired      Reason = "resync-required"
)

// Phase names a step of the reorder protocol.
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseGuard    Phase = "guard"
	PhaseSnapshot Phase = "snapshot"
	PhasePlan     Phase = "plan"
	PhaseOffset   Phase = "offset"
	PhaseStage    Phase = "stage"
	PhaseCommit   Phase = "commit"
)

// Error implements the error interface.
func (e *ReorderError) Error() string {
	msg := string(e.Code)
	if e.Reason != "" {
		msg += " (" + string(e.Reason) + ")"
	}
	if e.GroupID != "" {
		msg += fmt.Sprintf(" group=%s", e.GroupID)
	}
	if e.Phase != "" {
		msg += fmt.Sprintf(" phase=%s", e.Phase)
	}
	if e.ItemID != "" {
		msg += fmt.Sprintf(" item=%s position=%d", e.ItemID, e.Position)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *ReorderError) Unwrap() error {
	return e.Err
}

// Kind maps the error code to the outcome kind reported for it.
func (c ErrorCode) Kind() Kind {
	switch c {
	case ErrCodeValidation:
		return KindValidationError
	case ErrCodeRejected:
		return KindRejected
	case ErrCodeTransport:
		return KindTransportError
	case ErrCodePartialFailure:
		return KindPartialFailure
	}
	return KindTransportError
}

func hasCode(err error, code ErrorCode) bool {
	var re *ReorderError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsRejected returns true if err is a rejection.
// Uses errors.As to handle wrapped errors.
func IsRejected(err error) bool { return hasCode(err, ErrCodeRejected) }

// IsTransport returns true if err is a transport error.
func IsTransport(err error) bool { return hasCode(err, ErrCodeTransport) }

// IsPartialFailure returns true if err is a partial failure.
func IsPartialFailure(err error) bool { return hasCode(err, ErrCodePartialFailure) }

// RejectionReason returns the reason of a REJECTED error, or "".
func RejectionReason(err error) Reason {
	var re *ReorderError
	if errors.As(err, &re) && re.Code == ErrCodeRejected {
		return re.Reason
	}
	return ""
}

func newRejected(groupID string, reason Reason) *ReorderError {
	return &ReorderError{Code: ErrCodeRejected, Reason: reason, GroupID: groupID, Phase: PhaseGuard}
}
