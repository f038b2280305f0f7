package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerToken(t *testing.T) {
	testCases := []struct {
		name      string
		header    string
		wantToken string
		wantErr   error
	}{
		{name: "missing", header: "", wantErr: ErrMissingHeader},
		{name: "blank", header: "   ", wantErr: ErrMissingHeader},
		{name: "basic-scheme", header: "Basic dXNlcjpwYXNz", wantErr: ErrMalformedHeader},
		{name: "scheme-only", header: "Bearer", wantErr: ErrMalformedHeader},
		{name: "extra-parts", header: "Bearer a b", wantErr: ErrMalformedHeader},
		{name: "valid", header: "Bearer abc.def.ghi", wantToken: "abc.def.ghi"},
		{name: "lowercase-scheme", header: "bearer abc.def.ghi", wantToken: "abc.def.ghi"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			token, err := BearerToken(testCase.header)
			if testCase.wantErr != nil {
				if !errors.Is(err, testCase.wantErr) {
					t.Fatalf("expected %v, got %v", testCase.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if token != testCase.wantToken {
				t.Fatalf("unexpected token %q", token)
			}
		})
	}
}

func TestBearerTokenFromRequest(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/drinks-detail", http.NoBody)
	if _, err := BearerTokenFromRequest(request); !errors.Is(err, ErrMissingHeader) {
		t.Fatalf("expected missing header error, got %v", err)
	}
	request.Header.Set("Authorization", "Bearer token-value")
	token, err := BearerTokenFromRequest(request)
	if err != nil || token != "token-value" {
		t.Fatalf("unexpected result %q, %v", token, err)
	}
}

func TestRequirePermission(t *testing.T) {
	if err := RequirePermission(Claims{}, "post:drinks"); !errors.Is(err, ErrMissingPermissions) {
		t.Fatalf("expected missing permissions error, got %v", err)
	}
	err := RequirePermission(Claims{Permissions: []string{"get:drinks-detail"}}, "post:drinks")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected permission denied error, got %v", err)
	}
	var authErr *Error
	if !errors.As(err, &authErr) || authErr.Status != http.StatusForbidden {
		t.Fatalf("expected forbidden auth error, got %v", err)
	}
	if err := RequirePermission(Claims{Permissions: []string{"post:drinks"}}, "post:drinks"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestErrorIsMatchesCodeAndStatus(t *testing.T) {
	wrapped := wrapError(ErrInvalidClaims, errors.New("aud mismatch"))
	if !errors.Is(wrapped, ErrInvalidClaims) {
		t.Fatalf("expected wrapped error to match its kind")
	}
	if errors.Is(wrapped, ErrMissingPermissions) {
		t.Fatalf("expected 401 and 403 invalid_claims errors to differ")
	}
}
