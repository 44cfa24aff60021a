package service

import (
	"errors"
	"fmt"

	"festreg/internal/model"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	KindInternal      Kind = "internal"
)

const (
	CodeValidation              = "VALIDATION_FAILED"
	CodeRegistrationClosed      = "REGISTRATION_CLOSED"
	CodeEventFull               = "EVENT_FULL"
	CodeDuplicateRegistration   = "DUPLICATE_REGISTRATION"
	CodeScheduleConflict        = "SCHEDULE_CONFLICT"
	CodeTeamSizeInvalid         = "TEAM_SIZE_INVALID"
	CodeMemberNotRegistered     = "MEMBER_NOT_REGISTERED"
	CodeMemberPhoneMismatch     = "MEMBER_PHONE_MISMATCH"
	CodeDuplicateTeamMember     = "DUPLICATE_TEAM_MEMBER"
	CodeAlreadyPaid             = "ALREADY_PAID"
	CodeAlreadyCancelled        = "ALREADY_CANCELLED"
	CodePaymentAlreadyProcessed = "PAYMENT_ALREADY_PROCESSED"
	CodeDuplicateUser           = "DUPLICATE_USER"
	CodeNotAuthorized           = "NOT_AUTHORIZED"
	CodeEventNotFound           = "EVENT_NOT_FOUND"
	CodeRegistrationNotFound    = "REGISTRATION_NOT_FOUND"
	CodePaymentNotFound         = "PAYMENT_NOT_FOUND"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeSheetsDisabled          = "SHEETS_DISABLED"
	CodeInternal                = "INTERNAL_ERROR"
)

// Violation is one problem found while validating an admin onboarding request.
type Violation struct {
	Role    string `json:"role"`
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is the error type every engine operation returns. Code is stable and
// machine-readable; Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Code    string
	Message string

	// ConflictingEvent is set for SCHEDULE_CONFLICT.
	ConflictingEvent *model.Event
	// Violations and Instructions are set when onboarding validation fails.
	Violations   []Violation
	Instructions []string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the engine code carried by err, or CodeInternal.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func validationError(msg string) *Error {
	return newError(KindValidation, CodeValidation, msg)
}

func conflictError(code, msg string) *Error {
	return newError(KindConflict, code, msg)
}

func notFoundError(code, msg string) *Error {
	return newError(KindNotFound, code, msg)
}

func notAuthorized(msg string) *Error {
	return newError(KindAuthorization, CodeNotAuthorized, msg)
}

func internalError(err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "internal error", Err: err}
}

func errRegistrationClosed() *Error {
	return conflictError(CodeRegistrationClosed, "Online registration for this event is closed")
}

func errEventFull() *Error {
	return conflictError(CodeEventFull, "This event has no remaining places")
}

func errDuplicateRegistration() *Error {
	return conflictError(CodeDuplicateRegistration, "You have already registered for this event")
}

func errAlreadyPaid() *Error {
	return conflictError(CodeAlreadyPaid, "Payment for this registration is already completed")
}

func errAlreadyCancelled() *Error {
	return conflictError(CodeAlreadyCancelled, "Registration is already cancelled")
}

func errEventNotFound() *Error {
	return notFoundError(CodeEventNotFound, "Event not found")
}

func errRegistrationNotFound() *Error {
	return notFoundError(CodeRegistrationNotFound, "Registration not found")
}

func errPaymentNotFound() *Error {
	return notFoundError(CodePaymentNotFound, "Payment not found")
}

func errUserNotFound() *Error {
	return notFoundError(CodeUserNotFound, "User not found")
}
