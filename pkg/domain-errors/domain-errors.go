package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_failed"
	CodeInternal     Code = "internal_error"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"

	// Vault-specific codes.
	CodeMalformedToken    Code = "malformed_token"     // Signed token payload could not be decoded
	CodeDuplicateKey      Code = "duplicate_key"       // Credential key already bound to a record
	CodeResolution        Code = "identity_resolution" // DID could not be resolved to usable key material
	CodeBlobNotFound      Code = "blob_not_found"      // Referenced content is missing from the blob store
	CodeChainCorruption   Code = "chain_corruption"    // Published pointer dereferences to an unreadable batch
	CodeResolutionTimeout Code = "resolution_timeout"  // DID resolution exceeded its deadline
	CodeBlobTimeout       Code = "blob_timeout"        // Blob store call exceeded its deadline
	CodeStorage           Code = "storage_failure"     // Generic backing-store I/O failure
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Details []string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// NewWithDetails creates a domain error carrying caller-facing detail strings,
// e.g. per-field validation failures.
func NewWithDetails(code Code, msg string, details []string) error {
	return &Error{Code: code, Message: msg, Details: details}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		// Preserve the original domain code, update message
		return &Error{Code: existing.Code, Message: msg, Details: existing.Details, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// Recode wraps err under a new code even when err already carries a
// domain code, for boundaries where the failure changes meaning (a blob
// miss behind a published pointer is chain corruption, not a 404).
func Recode(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
