package password

import (
	"errors"
	"testing"
)

func TestDefaultConfig_Check(t *testing.T) {
	if err := DefaultConfig().Check(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestCheck_InvalidMinMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 20
	cfg.Policy.MaxLength = 10

	if err := cfg.Check(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestCheck_InvalidParams(t *testing.T) {
	cases := map[string]func(*Config){
		"memory":      func(c *Config) { c.Params.MemoryKiB = 1024 },
		"iterations":  func(c *Config) { c.Params.Iterations = 0 },
		"parallelism": func(c *Config) { c.Params.Parallelism = 0 },
		"salt":        func(c *Config) { c.Params.SaltLength = 4 },
		"key":         func(c *Config) { c.Params.KeyLength = 8 },
	}

	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Check(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}
