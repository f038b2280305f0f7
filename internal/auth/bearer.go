package auth

import (
	"net/http"
	"strings"
)

const bearerScheme = "bearer"

// BearerToken extracts the token from an Authorization header value of the
// form "Bearer <token>".
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingHeader
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerScheme) {
		return "", ErrMalformedHeader
	}
	return parts[1], nil
}

// BearerTokenFromRequest reads the Authorization header of r.
func BearerTokenFromRequest(r *http.Request) (string, error) {
	if r == nil {
		return "", ErrMissingHeader
	}
	return BearerToken(r.Header.Get("Authorization"))
}

// RequirePermission fails unless claims carry the permission string.
func RequirePermission(claims Claims, permission string) error {
	if claims.Permissions == nil {
		return ErrMissingPermissions
	}
	if !claims.HasPermission(permission) {
		return ErrPermissionDenied
	}
	return nil
}
