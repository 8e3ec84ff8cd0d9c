package session

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig_ReferencePolicy(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.SessionDuration != 7*24*time.Hour {
		t.Fatalf("session duration=%s", cfg.SessionDuration)
	}
	if cfg.RenewThreshold != 15*time.Minute {
		t.Fatalf("renew threshold=%s", cfg.RenewThreshold)
	}
	if cfg.MaxAgeSeconds() != 604800 {
		t.Fatalf("max age=%d want 604800", cfg.MaxAgeSeconds())
	}
}

func TestConfigValidate_Invalid(t *testing.T) {
	cases := map[string]Config{
		"empty issuer":         {Issuer: " ", SessionDuration: time.Hour, RenewThreshold: time.Minute},
		"zero duration":        {Issuer: "x", SessionDuration: 0, RenewThreshold: time.Minute},
		"negative threshold":   {Issuer: "x", SessionDuration: time.Hour, RenewThreshold: -time.Minute},
		"threshold >= session": {Issuer: "x", SessionDuration: time.Hour, RenewThreshold: time.Hour},
	}
	for name, cfg := range cases {
		if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
			t.Fatalf("%s: expected ErrConfig, got %v", name, err)
		}
	}
}
