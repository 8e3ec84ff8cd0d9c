package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"securebank/cmd/security/digest"
)

// Development fallbacks. They are refused in production.
const (
	devJWTSecret = "temporary-secret-for-interview"
	devHMACKey   = "default-hmac-key-change-in-production"

	minSecretBytes = 32
)

// Secrets are the resolved key material injected into the codec and the SSN digester.
type Secrets struct {
	JWTSecret []byte
	HMACKey   string
}

// ResolveSecrets enforces the secret policy at startup.
//
// In production both JWT_SECRET and HMAC_KEY must be set and at least 32 bytes long.
// Elsewhere a missing value falls back to a well-known development key and a warning is logged.
func ResolveSecrets(cfg Config, log *slog.Logger) (Secrets, error) {
	if log == nil {
		log = slog.Default()
	}

	jwtSecret, err := resolveSecret(cfg, log, "JWT_SECRET", "security.jwt_secret.fallback", cfg.JWTSecret, devJWTSecret)
	if err != nil {
		return Secrets{}, err
	}
	hmacKey, err := resolveSecret(cfg, log, "HMAC_KEY", "security.hmac_key.fallback", cfg.HMACKey, devHMACKey)
	if err != nil {
		return Secrets{}, err
	}

	return Secrets{JWTSecret: []byte(jwtSecret), HMACKey: hmacKey}, nil
}

func resolveSecret(cfg Config, log *slog.Logger, name, event, value, fallback string) (string, error) {
	minBytes := 0
	if cfg.IsProduction() {
		minBytes = minSecretBytes
	}

	// digest.New applies the same blank/length rules to every secret.
	if _, err := digest.New(value, minBytes); err != nil {
		switch {
		case errors.Is(err, digest.ErrKeyMissing) && !cfg.IsProduction():
			log.Warn(event, "key", name, "env", cfg.Env)
			return fallback, nil
		case errors.Is(err, digest.ErrKeyMissing):
			return "", fmt.Errorf("security policy: %s is required when APP_ENV=production", name)
		case errors.Is(err, digest.ErrKeyTooShort):
			return "", fmt.Errorf("security policy: %s is too short (min %d bytes)", name, minSecretBytes)
		default:
			return "", err
		}
	}
	return strings.TrimSpace(value), nil
}
