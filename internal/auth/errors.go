package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes reported to clients when a request fails authorization.
const (
	CodeMissingHeader    = "authorization_header_missing"
	CodeMalformedHeader  = "invalid_header"
	CodeMalformedToken   = "invalid_token"
	CodeInvalidKey       = "invalid_key"
	CodeTokenExpired     = "token_expired"
	CodeInvalidClaims    = "invalid_claims"
	CodeInvalidSignature = "invalid_signature"
	CodeUnauthorized     = "unauthorized"
)

// Error is an authorization failure carrying the HTTP status and the
// code/description pair rendered to the client.
type Error struct {
	Status      int
	Code        string
	Description string
	cause       error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("auth: %s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("auth: %s: %s: %v", e.Code, e.Description, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error with the same code, so callers can compare
// against the exported sentinels with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code && other.Status == e.Status
}

var (
	ErrMissingHeader      = &Error{Status: http.StatusUnauthorized, Code: CodeMissingHeader, Description: "Authorization header is expected."}
	ErrMalformedHeader    = &Error{Status: http.StatusUnauthorized, Code: CodeMalformedHeader, Description: "Authorization header must be bearer token."}
	ErrMalformedToken     = &Error{Status: http.StatusUnauthorized, Code: CodeMalformedToken, Description: "Unable to parse authentication token."}
	ErrInvalidKey         = &Error{Status: http.StatusUnauthorized, Code: CodeInvalidKey, Description: "Unable to find the appropriate key."}
	ErrTokenExpired       = &Error{Status: http.StatusUnauthorized, Code: CodeTokenExpired, Description: "Token expired."}
	ErrInvalidClaims      = &Error{Status: http.StatusUnauthorized, Code: CodeInvalidClaims, Description: "Incorrect claims. Please, check the audience and issuer."}
	ErrInvalidSignature   = &Error{Status: http.StatusUnauthorized, Code: CodeInvalidSignature, Description: "Token signature is invalid."}
	ErrMissingPermissions = &Error{Status: http.StatusForbidden, Code: CodeInvalidClaims, Description: "Permissions not included in JWT."}
	ErrPermissionDenied   = &Error{Status: http.StatusForbidden, Code: CodeUnauthorized, Description: "Permission not found."}
)

func wrapError(kind *Error, cause error) error {
	return &Error{
		Status:      kind.Status,
		Code:        kind.Code,
		Description: kind.Description,
		cause:       cause,
	}
}
