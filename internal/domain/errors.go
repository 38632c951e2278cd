package domain

import (
	"errors"
	"fmt"
)

// ErrKind groups error codes into the categories callers branch on.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"
	KindAuth           ErrKind = "auth"
	KindForbidden      ErrKind = "forbidden"
	KindNotFound       ErrKind = "not_found"
	KindConflict       ErrKind = "conflict"
	KindInfrastructure ErrKind = "infrastructure"
	KindInternal       ErrKind = "internal"
)

// Stable machine codes. Store clients report their conditions with these so the
// replicated service can classify failures with a switch instead of parsing text.
const (
	CodeUserNotFound             = "user_not_found"
	CodeEmailAlreadyExists       = "email_already_exists"
	CodeAuthoritativeUnavailable = "authoritative_unavailable"
	CodeStoreUnavailable         = "store_unavailable"
	CodeStoreIsolated            = "store_isolated"
	CodeSchemaMissing            = "schema_missing"
	CodeReplicaDegraded          = "replica_degraded"
	CodeMissingField             = "missing_field"
	CodeInvalidField             = "invalid_field"
	CodeInvalidRole              = "invalid_role"
	CodeInvalidCredentials       = "invalid_credentials"
	CodeTokenInvalid             = "token_invalid"
	CodeTokenExpired             = "token_expired"
	CodeAccountDisabled          = "account_disabled"
	CodeInsufficientRole         = "insufficient_role"
	CodeHashFailed               = "hash_failed"
	CodeTokenSignFailed          = "token_sign_failed"
	CodeInternal                 = "internal_error"
)

// Error is a structured domain error.
// - Kind: high-level category
// - Code: stable machine code (do not change casually)
// - Message: safe summary for clients (avoid leaking sensitive details)
// - Meta: optional details (field, reason, store, etc.)
// - Cause: wrapped internal error for logging/diagnostics
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

// Is reports whether any error in err's chain is a domain error with the given code.
func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the first domain error in err's chain, or "".
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// KindOf returns the kind of the first domain error in err's chain, or "".
func KindOf(err error) ErrKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// ----------------------
// Validation
// ----------------------

func ErrMissingField(field string) *Error {
	return WithMeta(New(KindValidation, CodeMissingField, "missing required field"), map[string]string{
		"field": field,
	})
}

func ErrInvalidField(field, reason string) *Error {
	return WithMeta(New(KindValidation, CodeInvalidField, "invalid field"), map[string]string{
		"field":  field,
		"reason": reason,
	})
}

func ErrInvalidRole(role string) *Error {
	return WithMeta(New(KindValidation, CodeInvalidRole, "invalid role"), map[string]string{
		"role": role,
	})
}

// ----------------------
// Auth / forbidden
// ----------------------

// IMPORTANT: use this for login failures to avoid user enumeration.
func ErrInvalidCredentials() *Error {
	return New(KindAuth, CodeInvalidCredentials, "invalid email or password")
}

func ErrTokenInvalid() *Error {
	return New(KindAuth, CodeTokenInvalid, "invalid token")
}

func ErrTokenExpired() *Error {
	return New(KindAuth, CodeTokenExpired, "token is expired")
}

func ErrAccountDisabled() *Error {
	return New(KindForbidden, CodeAccountDisabled, "account disabled")
}

func ErrInsufficientRole(required string) *Error {
	return WithMeta(New(KindForbidden, CodeInsufficientRole, "insufficient role"), map[string]string{
		"required": required,
	})
}

// ----------------------
// Not found / conflict
// ----------------------

func ErrUserNotFound() *Error {
	return New(KindNotFound, CodeUserNotFound, "user not found")
}

func ErrEmailAlreadyExists() *Error {
	return New(KindConflict, CodeEmailAlreadyExists, "email already registered")
}

// ----------------------
// Store conditions
// ----------------------

// ErrStoreUnavailable is reported by a store client that could not complete a call.
func ErrStoreUnavailable(store string, cause error) *Error {
	return WithMeta(Wrap(KindInfrastructure, CodeStoreUnavailable, "store unavailable", cause), map[string]string{
		"store": store,
	})
}

// ErrStoreIsolated is reported while a store's circuit breaker refuses requests.
func ErrStoreIsolated(store string, cause error) *Error {
	return WithMeta(Wrap(KindInfrastructure, CodeStoreIsolated, "store isolated", cause), map[string]string{
		"store": store,
	})
}

// ErrSchemaMissing is reported when the store's table has not been migrated yet.
func ErrSchemaMissing(store string, cause error) *Error {
	return WithMeta(Wrap(KindInfrastructure, CodeSchemaMissing, "store schema missing", cause), map[string]string{
		"store": store,
	})
}

func ErrAuthoritativeUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, CodeAuthoritativeUnavailable, "account store unavailable", cause)
}

func ErrReplicaDegraded(op string, cause error) *Error {
	return WithMeta(Wrap(KindInfrastructure, CodeReplicaDegraded, "replica degraded", cause), map[string]string{
		"op": op,
	})
}

// ----------------------
// Internal
// ----------------------

func ErrHashFailed(cause error) *Error {
	return Wrap(KindInternal, CodeHashFailed, "password hashing failed", cause)
}

func ErrTokenSignFailed(cause error) *Error {
	return Wrap(KindInternal, CodeTokenSignFailed, "token signing failed", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, CodeInternal, "internal error", cause)
}

// IsStoreFault reports whether err says something about a store's health
// rather than about the data. Non-domain errors count as faults.
func IsStoreFault(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case "", KindInfrastructure, KindInternal:
		return true
	}
	return false
}
