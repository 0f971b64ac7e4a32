package media

import (
	"errors"
	"fmt"
)

// ErrorCode represents the category of a vault error.
//
// Callers translate ErrorCode to their own status codes (HTTP, CLI exit
// codes). Codes describe what went wrong from the caller's point of view,
// not which store produced the failure.
type ErrorCode int

const (
	// CodeNotFound indicates the item doesn't exist, or is inactive and
	// inactive items were not requested
	CodeNotFound ErrorCode = iota

	// CodeAccessDenied indicates the identity may not perform the operation
	CodeAccessDenied

	// CodeInvalidField indicates a field update outside the whitelist, or a
	// value that cannot be parsed for that field
	CodeInvalidField

	// CodeInvalidFeaturedReference indicates a featuredId that does not name
	// a child of the gallery
	CodeInvalidFeaturedReference

	// CodeInvalidInput indicates a malformed request (missing title, bad
	// module, payload on a REFERENCE)
	CodeInvalidInput

	// CodeStoreInconsistency indicates the metadata index and the content
	// store disagree and compensation could not restore agreement
	CodeStoreInconsistency

	// CodeStoreUnavailable indicates a store failed or timed out
	CodeStoreUnavailable
)

func (c ErrorCode) String() string {
	switch c {
	case CodeNotFound:
		return "NotFound"
	case CodeAccessDenied:
		return "AccessDenied"
	case CodeInvalidField:
		return "InvalidField"
	case CodeInvalidFeaturedReference:
		return "InvalidFeaturedReference"
	case CodeInvalidInput:
		return "InvalidInput"
	case CodeStoreInconsistency:
		return "StoreInconsistency"
	case CodeStoreUnavailable:
		return "StoreUnavailable"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// Error is returned by every vault operation that fails.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// ID is the item the error relates to (if applicable)
	ID string

	// Err is the underlying store error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	if e.ID != "" {
		msg += ": " + e.ID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by code, so errors.Is(err, ErrNotFound) holds
// for any NotFound error regardless of message or id.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.ID == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound                 = &Error{Code: CodeNotFound}
	ErrAccessDenied             = &Error{Code: CodeAccessDenied}
	ErrInvalidField             = &Error{Code: CodeInvalidField}
	ErrInvalidFeaturedReference = &Error{Code: CodeInvalidFeaturedReference}
	ErrInvalidInput             = &Error{Code: CodeInvalidInput}
	ErrStoreInconsistency       = &Error{Code: CodeStoreInconsistency}
	ErrStoreUnavailable         = &Error{Code: CodeStoreUnavailable}
)

func NotFoundError(id string) *Error {
	return &Error{Code: CodeNotFound, Message: "item not found", ID: id}
}

func AccessDeniedError(id, op string) *Error {
	return &Error{Code: CodeAccessDenied, Message: op + " denied", ID: id}
}

func InvalidFieldError(field string) *Error {
	return &Error{Code: CodeInvalidField, Message: fmt.Sprintf("field %q cannot be updated", field)}
}

func InvalidFeaturedError(featuredID string) *Error {
	return &Error{Code: CodeInvalidFeaturedReference, Message: "featured id is not a child of the gallery", ID: featuredID}
}

func InvalidInputError(msg string) *Error {
	return &Error{Code: CodeInvalidInput, Message: msg}
}

func InconsistencyError(id, msg string, err error) *Error {
	return &Error{Code: CodeStoreInconsistency, Message: msg, ID: id, Err: err}
}

func UnavailableError(id, msg string, err error) *Error {
	return &Error{Code: CodeStoreUnavailable, Message: msg, ID: id, Err: err}
}

// CodeOf extracts the code of a vault error. ok is false for other errors.
func CodeOf(err error) (code ErrorCode, ok bool) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, false
	}
	return e.Code, true
}
