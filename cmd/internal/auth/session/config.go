package session

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the session lifecycle policy.
type Config struct {
	// Issuer is the "iss" claim written and required by the codec.
	Issuer string

	// SessionDuration is the absolute lifetime of every issued session.
	SessionDuration time.Duration

	// RenewThreshold triggers rotation when a resolved session has less time left.
	RenewThreshold time.Duration
}

// DefaultConfig returns the reference policy: 7 day sessions renewed in their last 15 minutes.
func DefaultConfig() Config {
	return Config{
		Issuer:          "securebank",
		SessionDuration: 7 * 24 * time.Hour,
		RenewThreshold:  15 * time.Minute,
	}
}

// Validate reports ErrConfig for unusable values.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Issuer) == "":
		return fmt.Errorf("%w: empty issuer", ErrConfig)
	case c.SessionDuration <= 0:
		return fmt.Errorf("%w: session duration must be positive", ErrConfig)
	case c.RenewThreshold <= 0:
		return fmt.Errorf("%w: renew threshold must be positive", ErrConfig)
	case c.RenewThreshold >= c.SessionDuration:
		return fmt.Errorf("%w: renew threshold %s must be shorter than session duration %s",
			ErrConfig, c.RenewThreshold, c.SessionDuration)
	}
	return nil
}

// MaxAgeSeconds is the cookie Max-Age matching SessionDuration.
func (c Config) MaxAgeSeconds() int {
	return int(c.SessionDuration / time.Second)
}
