package errcodes

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	CodeValidation      = "validation_error"
	CodeDuplicateKey    = "duplicate_key"
	CodeNotFound        = "not_found"
	CodeAlreadyOnLoan   = "already_on_loan"
	CodeAlreadyReturned = "already_returned"
	CodeStorage         = "storage_error"
)

// Error is the typed outcome every catalog and ledger operation fails with.
// Code identifies the kind; Message is suitable for showing to a user.
type Error struct {
	Code    string
	Message string
	cause   error
}

func (err *Error) Error() string {
	if err.cause != nil {
		return err.Message + ": " + err.cause.Error()
	}
	return err.Message
}

// Cause lets errors.Cause reach the underlying storage failure.
func (err *Error) Cause() error {
	return err.cause
}

func (err *Error) Unwrap() error {
	return err.cause
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.Code = err.Code
	te.Message = err.Message
	te.cause = err.cause
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Code == err.Code &&
		te.Message == err.Message
}

// HasCode reports whether err, or anything it wraps, is an *Error of the
// given code.
func HasCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// ValidationError returns an error for a required field that is missing or
// a value that is out of range.
func ValidationError(msg string) error {
	return &Error{
		Code:    CodeValidation,
		Message: msg,
	}
}

// DuplicateKey returns an error indicating that the given resource already
// exists with the given key value.
func DuplicateKey(resource, field, value string) error {
	return &Error{
		Code:    CodeDuplicateKey,
		Message: fmt.Sprintf("A %s with this %s already exists (%s).", resource, field, value),
	}
}

// NotFound returns an error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		Code:    CodeNotFound,
		Message: resource + " not found.",
	}
}

func AlreadyOnLoan() error {
	return &Error{
		Code:    CodeAlreadyOnLoan,
		Message: "Book is already on loan.",
	}
}

func AlreadyReturned() error {
	return &Error{
		Code:    CodeAlreadyReturned,
		Message: "Loan has already been returned.",
	}
}

// Storage wraps a persistence failure. A nil err returns nil, and an err that
// already carries a code is passed through untouched.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{
		Code:    CodeStorage,
		Message: "Storage failure",
		cause:   err,
	}
}
