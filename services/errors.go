package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies workflow failures for the caller boundary.
type ErrorKind string

const (
	KindNotFound               ErrorKind = "not_found"
	KindForbidden              ErrorKind = "forbidden"
	KindInvalidState           ErrorKind = "invalid_state"
	KindDuplicateAssignment    ErrorKind = "duplicate_assignment"
	KindAlreadyProcessed       ErrorKind = "already_processed"
	KindInvalidSignature       ErrorKind = "invalid_signature"
	KindGatewayUnavailable     ErrorKind = "gateway_unavailable"
	KindValidationFailed       ErrorKind = "validation_failed"
	KindNotAReviewer           ErrorKind = "not_a_reviewer"
	KindNotEligibleForRevision ErrorKind = "not_eligible_for_revision"
	KindOperationFailed        ErrorKind = "operation_failed"
)

// WorkflowError is the typed error returned by every engine operation.
type WorkflowError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *WorkflowError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *WorkflowError) Unwrap() error { return e.Err }

// Is matches any WorkflowError of the same kind, so sentinels work with errors.Is.
func (e *WorkflowError) Is(target error) bool {
	var other *WorkflowError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

var (
	ErrNotFound               = &WorkflowError{Kind: KindNotFound}
	ErrForbidden              = &WorkflowError{Kind: KindForbidden}
	ErrInvalidState           = &WorkflowError{Kind: KindInvalidState}
	ErrDuplicateAssignment    = &WorkflowError{Kind: KindDuplicateAssignment}
	ErrAlreadyProcessed       = &WorkflowError{Kind: KindAlreadyProcessed}
	ErrInvalidSignature       = &WorkflowError{Kind: KindInvalidSignature}
	ErrGatewayUnavailable     = &WorkflowError{Kind: KindGatewayUnavailable}
	ErrValidationFailed       = &WorkflowError{Kind: KindValidationFailed}
	ErrNotAReviewer           = &WorkflowError{Kind: KindNotAReviewer}
	ErrNotEligibleForRevision = &WorkflowError{Kind: KindNotEligibleForRevision}
	ErrOperationFailed        = &WorkflowError{Kind: KindOperationFailed}
)

func newError(kind ErrorKind, format string, args ...interface{}) *WorkflowError {
	return &WorkflowError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or KindOperationFailed for foreign errors.
func KindOf(err error) ErrorKind {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	return KindOperationFailed
}

// Store-level sentinels. Store implementations return these; the engine
// translates them into WorkflowErrors.
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrStaleWrite     = errors.New("stale write: precondition no longer holds")
	ErrDuplicateKey   = errors.New("duplicate key")
)

// wrapStoreErr converts a store failure into a WorkflowError. Errors that are
// already WorkflowErrors pass through unchanged.
func wrapStoreErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return err
	}
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return &WorkflowError{Kind: KindNotFound, Message: what + " not found", Err: err}
	case errors.Is(err, ErrStaleWrite):
		return &WorkflowError{Kind: KindAlreadyProcessed, Message: what + " was modified concurrently", Err: err}
	case errors.Is(err, ErrDuplicateKey):
		return &WorkflowError{Kind: KindDuplicateAssignment, Message: what + " already exists", Err: err}
	}
	return &WorkflowError{Kind: KindOperationFailed, Message: "failed to persist " + what, Err: err}
}
