package digest

import "errors"

// Public, stable errors for callers.
var (
	ErrKeyMissing  = errors.New("digest: HMAC key missing")
	ErrKeyTooShort = errors.New("digest: HMAC key too short")
)
