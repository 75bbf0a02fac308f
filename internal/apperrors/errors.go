// Package apperrors defines the error taxonomy shared by services and handlers,
// together with the single mapping from error kind to HTTP status.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindInvalidCredentials
	KindAccountDisabled
	KindUnauthenticated
	KindUnsupportedMediaType
	KindPayloadTooLarge
	KindInvalidImage
	KindUploadFailed
	KindPreconditionFailed
	KindNotFound
	KindConflict
	KindDatabaseUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:             "Internal",
	KindValidation:           "ValidationError",
	KindInvalidCredentials:   "InvalidCredentials",
	KindAccountDisabled:      "AccountDisabled",
	KindUnauthenticated:      "Unauthenticated",
	KindUnsupportedMediaType: "UnsupportedMediaType",
	KindPayloadTooLarge:      "PayloadTooLarge",
	KindInvalidImage:         "InvalidImage",
	KindUploadFailed:         "UploadFailed",
	KindPreconditionFailed:   "PreconditionFailed",
	KindNotFound:             "NotFound",
	KindConflict:             "Conflict",
	KindDatabaseUnavailable:  "DatabaseUnavailable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// statusByKind is the canonical error-to-HTTP-status table.
var statusByKind = map[Kind]int{
	KindInternal:             http.StatusInternalServerError,
	KindValidation:           http.StatusBadRequest,
	KindInvalidCredentials:   http.StatusUnauthorized,
	KindAccountDisabled:      http.StatusForbidden,
	KindUnauthenticated:      http.StatusUnauthorized,
	KindUnsupportedMediaType: http.StatusUnsupportedMediaType,
	KindPayloadTooLarge:      http.StatusRequestEntityTooLarge,
	KindInvalidImage:         http.StatusBadRequest,
	KindUploadFailed:         http.StatusBadGateway,
	KindPreconditionFailed:   http.StatusConflict,
	KindNotFound:             http.StatusNotFound,
	KindConflict:             http.StatusConflict,
	KindDatabaseUnavailable:  http.StatusServiceUnavailable,
}

// HTTPStatus returns the response status for a kind.
func HTTPStatus(k Kind) int {
	if status, ok := statusByKind[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ServerSide reports whether the kind is an infrastructure or upstream fault
// whose detail must not reach clients outside diagnostic mode.
func ServerSide(k Kind) bool {
	switch k {
	case KindInternal, KindUploadFailed, KindDatabaseUnavailable:
		return true
	}
	return false
}

// Error is the tagged error returned by every service operation.
type Error struct {
	Kind    Kind
	Message string
	// Fields carries per-field validation messages.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, ErrInvalidCredentials) works
// regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf extracts the kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Sentinels for errors.Is comparisons. Only Kind is compared.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrInvalidCredentials   = &Error{Kind: KindInvalidCredentials}
	ErrAccountDisabled      = &Error{Kind: KindAccountDisabled}
	ErrUnauthenticated      = &Error{Kind: KindUnauthenticated}
	ErrUnsupportedMediaType = &Error{Kind: KindUnsupportedMediaType}
	ErrPayloadTooLarge      = &Error{Kind: KindPayloadTooLarge}
	ErrInvalidImage         = &Error{Kind: KindInvalidImage}
	ErrUploadFailed         = &Error{Kind: KindUploadFailed}
	ErrPreconditionFailed   = &Error{Kind: KindPreconditionFailed}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrConflict             = &Error{Kind: KindConflict}
	ErrDatabaseUnavailable  = &Error{Kind: KindDatabaseUnavailable}
)

func Validation(msg string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// InvalidCredentials always carries the same message so a wrong password and an
// unknown username are indistinguishable.
func InvalidCredentials() *Error {
	return New(KindInvalidCredentials, "invalid username or password")
}

func NotFound(msg string) *Error { return New(KindNotFound, msg) }

func Conflict(msg string) *Error { return New(KindConflict, msg) }

func PreconditionFailed(msg string) *Error { return New(KindPreconditionFailed, msg) }

func DatabaseUnavailable(err error) *Error {
	return Wrap(KindDatabaseUnavailable, "database unavailable", err)
}

func Internal(msg string, err error) *Error { return Wrap(KindInternal, msg, err) }
