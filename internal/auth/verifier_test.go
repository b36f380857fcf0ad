package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func generateKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	return priv, string(pemBytes)
}

func signToken(t *testing.T, priv *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestNewVerifier_EmptyKey(t *testing.T) {
	_, err := NewVerifier("")
	if !errors.Is(err, ErrKeyNotConfigured) {
		t.Errorf("expected ErrKeyNotConfigured, got %v", err)
	}
}

func TestNewVerifier_MalformedPEM(t *testing.T) {
	_, err := NewVerifier("not a pem block")
	if err == nil {
		t.Fatal("expected error for malformed PEM")
	}
}

func TestVerify_ValidToken(t *testing.T) {
	priv, pub := generateKeyPair(t)
	v, err := NewVerifier(pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token := signToken(t, priv, jwt.MapClaims{
		"sub": "client-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if err := v.Verify(token); err != nil {
		t.Errorf("expected valid token, got %v", err)
	}
}

func TestVerify_MissingToken(t *testing.T) {
	_, pub := generateKeyPair(t)
	v, err := NewVerifier(pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := v.Verify(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
}

func TestVerify_WrongKey(t *testing.T) {
	otherPriv, _ := generateKeyPair(t)
	_, pub := generateKeyPair(t)

	v, err := NewVerifier(pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token := signToken(t, otherPriv, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	priv, pub := generateKeyPair(t)
	v, err := NewVerifier(pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token := signToken(t, priv, jwt.MapClaims{
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerify_GarbageToken(t *testing.T) {
	_, pub := generateKeyPair(t)
	v, err := NewVerifier(pub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := v.Verify("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerify_NilVerifier(t *testing.T) {
	var v *Verifier
	if err := v.Verify("anything"); !errors.Is(err, ErrKeyNotConfigured) {
		t.Errorf("expected ErrKeyNotConfigured, got %v", err)
	}
}
