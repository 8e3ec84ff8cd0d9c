package digest

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Hasher computes HMAC-SHA256 digests with a fixed process-wide key.
type Hasher struct {
	key []byte
}

// New returns a Hasher for key, enforcing a minimum byte length.
// Blank keys return ErrKeyMissing; keys shorter than minBytes return ErrKeyTooShort.
func New(key string, minBytes int) (*Hasher, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrKeyMissing
	}
	// Measured in bytes, not runes: the key is used as raw bytes.
	if minBytes > 0 && len(key) < minBytes {
		return nil, ErrKeyTooShort
	}
	return &Hasher{key: []byte(key)}, nil
}

// Sum returns the hex digest of value.
func (h *Hasher) Sum(value string) string {
	return HMACSHA256Hex(value, h.key)
}

// Matches reports whether value hashes to digestHex.
func (h *Hasher) Matches(value, digestHex string) bool {
	got := h.Sum(value)
	if len(got) != len(digestHex) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(digestHex)) == 1
}

// HMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}
