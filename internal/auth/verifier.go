package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const defaultJWKSCacheTTL = 10 * time.Minute

var (
	errMissingKeyIdentifier  = errors.New("token missing key identifier")
	errUnexpectedAlgorithm   = errors.New("unexpected signing algorithm")
	errKeyNotFound           = errors.New("signing key not found in JWKS")
	errNoUsableKeys          = errors.New("jwks document contained no usable keys")
	errMissingIssuerConfig   = errors.New("issuer configuration required")
	errMissingAudienceConfig = errors.New("audience configuration required")
	errMissingKeySource      = errors.New("jwks url or jwks document required")
	ErrInvalidVerifierConfig = errors.New("auth: invalid verifier config")
)

// Claims is the decoded payload of an access token.
type Claims struct {
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// HasPermission reports whether the permission string was granted.
func (c Claims) HasPermission(permission string) bool {
	return slices.Contains(c.Permissions, permission)
}

// VerifierConfig bundles configuration required to instantiate a Verifier.
// Either JWKSURL or JWKSDocument must be set; a document takes precedence and
// is never refreshed.
type VerifierConfig struct {
	Issuer       string
	Audience     string
	JWKSURL      string
	JWKSDocument []byte
	HTTPClient   *http.Client
	CacheTTL     time.Duration
	Logger       *zap.Logger
	Clock        func() time.Time
}

// Verifier validates RS256 bearer tokens against a JWKS key set.
type Verifier struct {
	issuer     string
	audience   string
	jwksURL    string
	static     bool
	logger     *zap.Logger
	httpClient *http.Client
	clock      func() time.Time
	cache      *keyCache
	parser     *jwt.Parser
}

// NewVerifier constructs a verifier with validated configuration.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, errMissingIssuerConfig)
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, errMissingAudienceConfig)
	}
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" && len(cfg.JWKSDocument) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, errMissingKeySource)
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultJWKSCacheTTL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	verifier := &Verifier{
		issuer:     issuer,
		audience:   audience,
		jwksURL:    jwksURL,
		logger:     logger,
		httpClient: httpClient,
		clock:      clock,
		cache:      &keyCache{ttl: cacheTTL},
		parser: jwt.NewParser(
			jwt.WithAudience(audience),
			jwt.WithIssuer(issuer),
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(clock),
		),
	}

	if len(cfg.JWKSDocument) > 0 {
		document, err := ParseJSONWebKeySet(cfg.JWKSDocument)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, err)
		}
		if err := verifier.storeKeys(document, clock()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidVerifierConfig, err)
		}
		verifier.static = true
		verifier.cache.ttl = 0
	}

	return verifier, nil
}

// Verify validates the raw token and returns its claims. Every failure is an
// *Error describing why the token was rejected.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return Claims{}, ErrMalformedToken
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(rawToken, &Claims{})
	if err != nil {
		return Claims{}, wrapError(ErrMalformedToken, err)
	}
	if unverified.Method == nil || unverified.Method.Alg() != jwt.SigningMethodRS256.Alg() {
		return Claims{}, wrapError(ErrMalformedToken, errUnexpectedAlgorithm)
	}
	keyID, _ := unverified.Header["kid"].(string)
	if keyID == "" {
		return Claims{}, wrapError(ErrMalformedToken, errMissingKeyIdentifier)
	}

	key, err := v.lookupKey(ctx, keyID)
	if err != nil {
		return Claims{}, wrapError(ErrInvalidKey, err)
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(rawToken, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return Claims{}, classifyParseError(err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidSignature
	}

	return *claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return wrapError(ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return wrapError(ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return wrapError(ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return wrapError(ErrInvalidClaims, err)
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return wrapError(ErrInvalidKey, err)
	default:
		return wrapError(ErrMalformedToken, err)
	}
}

func (v *Verifier) lookupKey(ctx context.Context, keyID string) (*rsa.PublicKey, error) {
	now := v.clock()
	if key := v.cache.get(keyID, now); key != nil {
		return key, nil
	}
	if v.static {
		return nil, errKeyNotFound
	}

	if err := v.refreshKeys(ctx, now); err != nil {
		v.logger.Error("jwks refresh failed", zap.String("jwks_url", v.jwksURL), zap.Error(err))
		return nil, err
	}

	if key := v.cache.get(keyID, now); key != nil {
		return key, nil
	}

	return nil, errKeyNotFound
}

func (v *Verifier) refreshKeys(ctx context.Context, fetchedAt time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}

	response, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("jwks request returned status %d", response.StatusCode)
	}

	var document JSONWebKeySet
	if err := json.NewDecoder(response.Body).Decode(&document); err != nil {
		return err
	}

	return v.storeKeys(document, fetchedAt)
}

func (v *Verifier) storeKeys(document JSONWebKeySet, now time.Time) error {
	keys, skipped := document.RSAPublicKeys()
	for keyID, err := range skipped {
		v.logger.Debug("skipping jwk", zap.String("kid", keyID), zap.Error(err))
	}
	if len(keys) == 0 {
		return errNoUsableKeys
	}
	v.cache.store(keys, now)
	return nil
}
