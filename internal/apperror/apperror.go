// Package apperror defines the error kinds shared across the core and
// the mapping from a kind to an HTTP status and WebDAV precondition
// element name.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies the category of failure, independent of any HTTP framing.
type Kind string

const (
	KindParseError           Kind = "parse_error"
	KindValidationError      Kind = "validation_error"
	KindPreconditionFailed   Kind = "precondition_failed"
	KindAuthenticationNeeded Kind = "authentication_required"
	KindAuthorizationDenied  Kind = "authorization_denied"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindLocked               Kind = "locked"
	KindStorageFailure       Kind = "storage_failure"
	KindUnsupportedMedia     Kind = "unsupported_media_type"
	KindBadRequest           Kind = "bad_request"
)

// Precondition element names emitted inside <D:error> on 403/412 responses.
const (
	PreconditionValidCalendarData         = "valid-calendar-data"
	PreconditionValidAddressData          = "valid-address-data"
	PreconditionValidCalendarObjResource  = "valid-calendar-object-resource"
	PreconditionSupportedCalendarComp     = "supported-calendar-component"
	PreconditionSupportedCalendarData     = "supported-calendar-data"
	PreconditionSupportedAddressData      = "supported-address-data"
	PreconditionSupportedCollation        = "supported-collation"
	PreconditionSupportedFilter           = "supported-filter"
	PreconditionNoUIDConflict             = "no-uid-conflict"
	PreconditionNeedPrivileges            = "need-privileges"
	PreconditionValidSyncToken            = "valid-sync-token"
)

// AppError is the single error type that crosses subsystem boundaries.
// Handlers at the HTTP edge map it to a status code and, where
// applicable, a WebDAV precondition element.
type AppError struct {
	Kind          Kind
	Status        int
	Precondition  string // WebDAV precondition element local-name, may be empty
	Message       string
	NeedPrivilege []PrivilegeNeed // populated for KindAuthorizationDenied
	cause         error
}

// PrivilegeNeed names a (resource, privilege) pair the caller lacked,
// rendered inside DAV:need-privileges.
type PrivilegeNeed struct {
	ResourcePath string
	Privilege    string
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.cause }

func newErr(kind Kind, status int, precondition, msg string) *AppError {
	return &AppError{Kind: kind, Status: status, Precondition: precondition, Message: msg}
}

func ParseError(msg string) *AppError {
	return newErr(KindParseError, http.StatusForbidden, "", msg)
}

func ValidationError(precondition, msg string) *AppError {
	return newErr(KindValidationError, http.StatusForbidden, precondition, msg)
}

func PreconditionFailed(precondition, msg string) *AppError {
	return newErr(KindPreconditionFailed, http.StatusPreconditionFailed, precondition, msg)
}

// ForbiddenPrecondition is for the CalDAV/CardDAV preconditions that
// RFC 4791/6352 surface as 403 with a named element rather than 412
// (supported-*-data, no-uid-conflict, valid-sync-token, ...).
func ForbiddenPrecondition(precondition, msg string) *AppError {
	return newErr(KindPreconditionFailed, http.StatusForbidden, precondition, msg)
}

func AuthenticationRequired(msg string) *AppError {
	return newErr(KindAuthenticationNeeded, http.StatusUnauthorized, "", msg)
}

func AuthorizationDenied(msg string, needs ...PrivilegeNeed) *AppError {
	e := newErr(KindAuthorizationDenied, http.StatusForbidden, PreconditionNeedPrivileges, msg)
	e.NeedPrivilege = needs
	return e
}

func NotFound(msg string) *AppError {
	return newErr(KindNotFound, http.StatusNotFound, "", msg)
}

func Conflict(precondition, msg string) *AppError {
	return newErr(KindConflict, http.StatusConflict, precondition, msg)
}

func Locked(msg string) *AppError {
	return newErr(KindLocked, http.StatusLocked, "", msg)
}

func StorageFailure(cause error) *AppError {
	return &AppError{Kind: KindStorageFailure, Status: http.StatusInternalServerError, Message: "storage failure", cause: cause}
}

func UnsupportedMediaType(precondition, msg string) *AppError {
	return newErr(KindUnsupportedMedia, http.StatusUnsupportedMediaType, precondition, msg)
}

func BadRequest(msg string) *AppError {
	return newErr(KindBadRequest, http.StatusBadRequest, "", msg)
}

// As extracts an *AppError from any error chain, or constructs a generic
// StorageFailure wrapping it if none is present.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return StorageFailure(err)
}
