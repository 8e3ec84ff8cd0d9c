package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-signing-secret-0123456789abcdef")

func mustCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, "securebank-test")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func TestCodec_EncodeDecode(t *testing.T) {
	t.Parallel()

	c := mustCodec(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	exp := now.Add(7 * 24 * time.Hour)

	tok, err := c.Encode("acct-1", exp, now)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	claims, err := c.Decode(tok)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.AccountID != "acct-1" {
		t.Fatalf("account=%q", claims.AccountID)
	}
	if !claims.ExpiresAt.Equal(exp) || !claims.IssuedAt.Equal(now) {
		t.Fatalf("times mismatch: exp=%s iat=%s", claims.ExpiresAt, claims.IssuedAt)
	}
	if claims.ID == "" {
		t.Fatalf("missing jti")
	}
}

func TestCodec_EncodeIsUniquePerCall(t *testing.T) {
	t.Parallel()

	c := mustCodec(t)
	now := time.Now().UTC()
	exp := now.Add(time.Hour)

	seen := make(map[string]struct{}, 200)
	for i := 0; i < 200; i++ {
		tok, err := c.Encode("acct-1", exp, now)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d encodes", i)
		}
		seen[tok] = struct{}{}
	}
}

func TestCodec_DecodeDoesNotEnforceExpiry(t *testing.T) {
	t.Parallel()

	c := mustCodec(t)
	past := time.Now().Add(-30 * 24 * time.Hour)

	tok, err := c.Encode("acct-1", past.Add(time.Hour), past)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := c.Decode(tok); err != nil {
		t.Fatalf("expired token must still decode, got %v", err)
	}
}

func TestCodec_DecodeRejects(t *testing.T) {
	t.Parallel()

	c := mustCodec(t)
	now := time.Now().UTC()
	good, err := c.Encode("acct-1", now.Add(time.Hour), now)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	other, err := NewCodec([]byte("another-secret-another-secret-000"), "securebank-test")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	foreign, _ := other.Encode("acct-1", now.Add(time.Hour), now)

	otherIssuer, err := NewCodec(testSecret, "someone-else")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	wrongIss, _ := otherIssuer.Encode("acct-1", now.Add(time.Hour), now)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    "securebank-test",
		Subject:   "acct-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		ID:        "x",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    "securebank-test",
		Subject:   "acct-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		ID:        "x",
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "securebank-test",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		ID:        "x",
	}).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	cases := map[string]string{
		"empty":       "",
		"garbage":     "not.a.jwt",
		"tampered":    tampered,
		"foreign key": foreign,
		"wrong iss":   wrongIss,
		"alg none":    none,
		"alg hs512":   hs512,
		"no subject":  noSubject,
	}
	for name, tok := range cases {
		if _, err := c.Decode(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestNewCodec_RequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewCodec(nil, "x"); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
	if _, err := NewCodec(testSecret, ""); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
