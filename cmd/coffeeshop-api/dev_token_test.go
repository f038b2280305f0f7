package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/coffeeshop/backend/internal/auth"
	"github.com/spf13/viper"
)

func TestIssueDevTokenVerifiesAgainstWrittenKeySet(t *testing.T) {
	directory := t.TempDir()
	jwksPath := filepath.Join(directory, "jwks.json")
	keyPath := filepath.Join(directory, "key.pem")

	viper.Set("auth.jwks_file", jwksPath)
	viper.Set("auth.issuer", "https://coffee.example.com/")
	viper.Set("auth.audience", "drinks")
	t.Cleanup(viper.Reset)

	options := devTokenOptions{
		keyFile:     keyPath,
		subject:     "dev|manager",
		permissions: []string{"post:drinks", "patch:drinks"},
		ttl:         time.Hour,
	}
	token, err := issueDevToken(options)
	if err != nil {
		t.Fatalf("issueDevToken failed: %v", err)
	}

	document, err := os.ReadFile(jwksPath)
	if err != nil {
		t.Fatalf("expected jwks file: %v", err)
	}
	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Issuer:       "https://coffee.example.com/",
		Audience:     "drinks",
		JWKSDocument: document,
	})
	if err != nil {
		t.Fatalf("failed to build verifier: %v", err)
	}

	claims, err := verifier.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("token did not verify: %v", err)
	}
	if claims.Subject != "dev|manager" || !claims.HasPermission("patch:drinks") {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	second, err := issueDevToken(options)
	if err != nil {
		t.Fatalf("second issueDevToken failed: %v", err)
	}
	if _, err := verifier.Verify(context.Background(), second); err != nil {
		t.Fatalf("expected signing key to be reused: %v", err)
	}
}
