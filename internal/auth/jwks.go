package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const keyTypeRSA = "RSA"

// JSONWebKeySet is the document served at a JWKS endpoint.
type JSONWebKeySet struct {
	Keys []JSONWebKey `json:"keys"`
}

// JSONWebKey is a single RSA public key entry of a JWKS document.
type JSONWebKey struct {
	KeyType  string `json:"kty"`
	Alg      string `json:"alg,omitempty"`
	KeyID    string `json:"kid"`
	Use      string `json:"use,omitempty"`
	Modulus  string `json:"n"`
	Exponent string `json:"e"`
}

// NewJSONWebKey encodes an RSA public key for publication under keyID.
func NewJSONWebKey(keyID string, key *rsa.PublicKey) JSONWebKey {
	return JSONWebKey{
		KeyType:  keyTypeRSA,
		Alg:      "RS256",
		KeyID:    keyID,
		Use:      "sig",
		Modulus:  base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		Exponent: base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}

// ParseJSONWebKeySet decodes a JWKS document.
func ParseJSONWebKeySet(data []byte) (JSONWebKeySet, error) {
	var document JSONWebKeySet
	if err := json.Unmarshal(data, &document); err != nil {
		return JSONWebKeySet{}, fmt.Errorf("decode jwks: %w", err)
	}
	return document, nil
}

// RSAPublicKeys returns the usable signing keys indexed by key id. Entries
// that are not RSA signature keys or fail to decode are reported in skipped.
func (s JSONWebKeySet) RSAPublicKeys() (keys map[string]*rsa.PublicKey, skipped map[string]error) {
	keys = make(map[string]*rsa.PublicKey, len(s.Keys))
	skipped = make(map[string]error)
	for _, key := range s.Keys {
		if key.KeyType != keyTypeRSA || (key.Use != "" && key.Use != "sig") {
			continue
		}
		publicKey, err := key.RSAPublicKey()
		if err != nil {
			skipped[key.KeyID] = err
			continue
		}
		keys[key.KeyID] = publicKey
	}
	return keys, skipped
}

// RSAPublicKey decodes the base64url modulus and exponent.
func (k JSONWebKey) RSAPublicKey() (*rsa.PublicKey, error) {
	modulusBytes, err := base64.RawURLEncoding.DecodeString(k.Modulus)
	if err != nil {
		return nil, fmt.Errorf("invalid modulus encoding: %w", err)
	}
	if len(modulusBytes) == 0 {
		return nil, errors.New("missing modulus bytes")
	}
	exponentBytes, err := base64.RawURLEncoding.DecodeString(k.Exponent)
	if err != nil {
		return nil, fmt.Errorf("invalid exponent encoding: %w", err)
	}

	if len(exponentBytes) == 0 {
		return nil, errors.New("missing exponent bytes")
	}

	exponent := 0
	for _, b := range exponentBytes {
		exponent = exponent<<8 + int(b)
	}
	if exponent == 0 {
		return nil, errors.New("invalid exponent value")
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulusBytes),
		E: exponent,
	}, nil
}

// keyCache holds the most recent key set. A zero ttl never expires.
type keyCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	ttl       time.Duration
}

func (c *keyCache) get(keyID string, now time.Time) *rsa.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.keys == nil || (c.ttl > 0 && now.After(c.expiresAt)) {
		return nil
	}
	return c.keys[keyID]
}

func (c *keyCache) store(keys map[string]*rsa.PublicKey, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = keys
	c.expiresAt = now.Add(c.ttl)
}
