package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Claims are the verified contents of a session token.
type Claims struct {
	AccountID string
	ExpiresAt time.Time
	IssuedAt  time.Time
	ID        string
}

// TokenCodec signs and verifies session tokens.
type TokenCodec interface {
	Encode(accountID string, expiresAt, now time.Time) (string, error)
	Decode(token string) (Claims, error)
}

// Codec is an HS256 JWT TokenCodec bound to one secret and issuer.
type Codec struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

// NewCodec returns a Codec. The secret is injected configuration; it is never read from the environment here.
func NewCodec(secret []byte, issuer string) (*Codec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty signing secret", ErrConfig)
	}
	if strings.TrimSpace(issuer) == "" {
		return nil, fmt.Errorf("%w: empty issuer", ErrConfig)
	}

	// Time claims are not validated by the parser: the persisted row's expiry is
	// authoritative so an expired token still reaches the lazy-deletion path.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	return &Codec{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		parser: parser,
	}, nil
}

// Encode signs a token for accountID. A random ULID jti makes every call unique.
func (c *Codec) Encode(accountID string, expiresAt, now time.Time) (string, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", errors.New("session: encode: empty account id")
	}

	jti, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("session: encode: jti: %w", err)
	}

	claims := jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   accountID,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        jti.String(),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies the signature and structure of token.
// Every failure is reported as ErrInvalidToken.
func (c *Codec) Decode(token string) (Claims, error) {
	var rc jwt.RegisteredClaims

	parsed, err := c.parser.ParseWithClaims(token, &rc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	// Claims validation is off, so issuer and required claims are checked here.
	if rc.Issuer != c.issuer || rc.Subject == "" || rc.ExpiresAt == nil || rc.ID == "" {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		AccountID: rc.Subject,
		ExpiresAt: rc.ExpiresAt.Time,
		ID:        rc.ID,
	}
	if rc.IssuedAt != nil {
		out.IssuedAt = rc.IssuedAt.Time
	}
	return out, nil
}
