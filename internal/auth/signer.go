package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = 30 * time.Minute
	defaultKeyID    = "coffeeshop-dev"
	developmentBits = 2048
	pemTypePKCS1    = "RSA PRIVATE KEY"
	pemTypePKCS8    = "PRIVATE KEY"
)

var (
	errMissingPrivateKey = errors.New("private key must be provided")
	errUnsupportedPEM    = errors.New("unsupported private key encoding")
)

// SignerConfig configures the RS256 signer used for development tokens.
type SignerConfig struct {
	PrivateKey *rsa.PrivateKey
	KeyID      string
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
	Clock      func() time.Time
}

// Signer issues RS256 access tokens and publishes the matching JWKS
// document, so a local deployment can run without an identity provider.
type Signer struct {
	config SignerConfig
	clock  func() time.Time
}

// NewSigner constructs a Signer with sane defaults.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.PrivateKey == nil {
		return nil, errMissingPrivateKey
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		keyID = defaultKeyID
	}
	return &Signer{
		config: SignerConfig{
			PrivateKey: cfg.PrivateKey,
			KeyID:      keyID,
			Issuer:     cfg.Issuer,
			Audience:   cfg.Audience,
			TokenTTL:   ttl,
			Clock:      clock,
		},
		clock: clock,
	}, nil
}

// Issue signs a token for subject carrying the given permissions.
func (s *Signer) Issue(subject string, permissions []string) (string, error) {
	now := s.clock().UTC()
	claims := Claims{
		Permissions: append([]string{}, permissions...),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.config.Issuer,
			Audience:  jwt.ClaimStrings{s.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.config.KeyID
	return token.SignedString(s.config.PrivateKey)
}

// KeySet returns the JWKS document that verifies tokens from this signer.
func (s *Signer) KeySet() JSONWebKeySet {
	return JSONWebKeySet{Keys: []JSONWebKey{NewJSONWebKey(s.config.KeyID, &s.config.PrivateKey.PublicKey)}}
}

// GeneratePrivateKey creates a fresh RSA key for development signing.
func GeneratePrivateKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, developmentBits)
}

// EncodePrivateKey renders key as a PKCS#1 PEM block.
func EncodePrivateKey(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: pemTypePKCS1, Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

// DecodePrivateKey parses a PKCS#1 or PKCS#8 PEM encoded RSA key.
func DecodePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", errUnsupportedPEM)
	}
	switch block.Type {
	case pemTypePKCS1:
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case pemTypePKCS8:
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA key", errUnsupportedPEM)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedPEM, block.Type)
	}
}
