package auth

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
)

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	decoded, err := DecodePrivateKey(EncodePrivateKey(key))
	if err != nil {
		t.Fatalf("failed to decode pkcs1 key: %v", err)
	}
	if !decoded.Equal(key) {
		t.Fatalf("decoded pkcs1 key differs from original")
	}

	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("failed to marshal pkcs8: %v", err)
	}
	decoded, err = DecodePrivateKey(pem.EncodeToMemory(&pem.Block{Type: pemTypePKCS8, Bytes: pkcs8}))
	if err != nil {
		t.Fatalf("failed to decode pkcs8 key: %v", err)
	}
	if !decoded.Equal(key) {
		t.Fatalf("decoded pkcs8 key differs from original")
	}
}

func TestDecodePrivateKeyRejectsUnknownInput(t *testing.T) {
	if _, err := DecodePrivateKey([]byte("not pem")); !errors.Is(err, errUnsupportedPEM) {
		t.Fatalf("expected unsupported pem error, got %v", err)
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}})
	if _, err := DecodePrivateKey(block); !errors.Is(err, errUnsupportedPEM) {
		t.Fatalf("expected unsupported pem error, got %v", err)
	}
}

func TestSignerKeySetRoundTripsPublicKey(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	if _, err := NewSigner(SignerConfig{}); !errors.Is(err, errMissingPrivateKey) {
		t.Fatalf("expected missing private key error, got %v", err)
	}
	signer, err := NewSigner(SignerConfig{PrivateKey: key})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys, skipped := signer.KeySet().RSAPublicKeys()
	if len(skipped) != 0 {
		t.Fatalf("unexpected skipped keys: %v", skipped)
	}
	publicKey, ok := keys[defaultKeyID]
	if !ok {
		t.Fatalf("expected key %q in key set", defaultKeyID)
	}
	if !publicKey.Equal(&key.PublicKey) {
		t.Fatalf("published key differs from signing key")
	}
}
