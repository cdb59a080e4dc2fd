// Package common defines shared constants, sentinel errors and the coded
// error taxonomy used across the service. Callers should use errors.Is to
// match the sentinels and CodeOf/DetailOf to inspect coded errors.
package common

import (
	"errors"

	"github.com/samber/oops"
)

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Token errors. Expired means the signature checked out but exp is past;
	// everything else a token can be wrong with is ErrInvalidToken.
	ErrTokenExpired = errors.New("token expired")
	ErrInvalidToken = errors.New("invalid token")
)

// Error codes carried by errors returned from the service layer.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeConflict           = "CONFLICT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL"
)

const (
	detailKey = "detail"
	fieldKey  = "field"

	// DefaultInternalDetail is shown to callers for any uncoded failure.
	DefaultInternalDetail = "Internal server error"
)

// InvalidInput reports a rejected request field.
func InvalidInput(field, detail string) error {
	return oops.Code(CodeInvalidInput).
		With(fieldKey, field, detailKey, detail).
		Errorf("invalid %s: %s", field, detail)
}

// Conflict reports a uniqueness violation.
func Conflict(detail string) error {
	return oops.Code(CodeConflict).With(detailKey, detail).Errorf("%s", detail)
}

// Unauthorized reports failed authentication.
func Unauthorized(detail string) error {
	return oops.Code(CodeUnauthorized).With(detailKey, detail).Errorf("%s", detail)
}

// Forbidden reports an authenticated caller that may not proceed.
func Forbidden(detail string) error {
	return oops.Code(CodeForbidden).With(detailKey, detail).Errorf("%s", detail)
}

// Expired reports an expired token. It is a flavour of Unauthorized.
func Expired(detail string, cause error) error {
	if cause == nil {
		cause = ErrTokenExpired
	}
	return oops.Code(CodeTokenExpired).With(detailKey, detail).Wrapf(cause, "%s", detail)
}

// Unavailable wraps an unexpected failure that callers should retry later.
func Unavailable(detail string, cause error) error {
	return oops.Code(CodeServiceUnavailable).With(detailKey, detail).Wrapf(orUnknown(cause), "%s", detail)
}

// Internal wraps an unexpected failure. The cause is kept for logging only.
func Internal(detail string, cause error) error {
	return oops.Code(CodeInternal).With(detailKey, detail).Wrapf(orUnknown(cause), "%s", detail)
}

// CodeOf returns the code of a coded error, or CodeInternal for anything else.
func CodeOf(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return CodeInternal
	}
	code, _ := oopsErr.Code().(string)
	if code == "" {
		return CodeInternal
	}
	return code
}

// DetailOf returns the caller-facing message carried by err. Uncoded errors
// never leak their text.
func DetailOf(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return DefaultInternalDetail
	}
	if detail, ok := oopsErr.Context()[detailKey].(string); ok && detail != "" {
		return detail
	}
	return DefaultInternalDetail
}

// FieldOf returns the offending field of an INVALID_INPUT error.
func FieldOf(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	field, _ := oopsErr.Context()[fieldKey].(string)
	return field
}

func orUnknown(err error) error {
	if err == nil {
		return errors.New("unknown error")
	}
	return err
}
