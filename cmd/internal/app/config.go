package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvProduction is the APP_ENV value that turns on strict secret handling and secure cookies.
const EnvProduction = "production"

// Config contains all runtime configuration loaded from the environment and an optional .env file.
type Config struct {
	Env string `mapstructure:"APP_ENV"`

	HTTPAddr  string `mapstructure:"HTTP_ADDR"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	ReadHeaderTimeout time.Duration `mapstructure:"HTTP_READ_HEADER_TIMEOUT"`
	ReadTimeout       time.Duration `mapstructure:"HTTP_READ_TIMEOUT"`
	WriteTimeout      time.Duration `mapstructure:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `mapstructure:"HTTP_IDLE_TIMEOUT"`
	MaxHeaderBytes    int           `mapstructure:"HTTP_MAX_HEADER_BYTES"`
	MaxBodyBytes      int64         `mapstructure:"MAX_BODY_BYTES"`

	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32  `mapstructure:"DB_MIN_CONNS"`
	DBMigrateOnStart bool   `mapstructure:"DB_MIGRATE_ON_START"`

	// If true, /readyz returns 503 unless the database is configured and reachable.
	ReadinessRequireDB bool `mapstructure:"READINESS_REQUIRE_DB"`

	JWTSecret string `mapstructure:"JWT_SECRET"`
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	HMACKey   string `mapstructure:"HMAC_KEY"`

	SessionDuration time.Duration `mapstructure:"SESSION_DURATION"`
	RenewThreshold  time.Duration `mapstructure:"RENEW_THRESHOLD"`

	// CookieSecure defaults to true in production when COOKIE_SECURE is unset.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`

	// WSAllowedOrigins is a comma-separated origin list for the /ws endpoint.
	WSAllowedOrigins string `mapstructure:"WS_ALLOWED_ORIGINS"`

	Argon2MemoryKiB   uint32 `mapstructure:"ARGON2_MEMORY_KIB"`
	Argon2Iterations  uint32 `mapstructure:"ARGON2_ITERATIONS"`
	Argon2Parallelism uint8  `mapstructure:"ARGON2_PARALLELISM"`
}

// LoadConfig reads .env (if present), then builds and validates Config from the environment.
// Environment variables override .env values.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine (CI, containers)

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("HTTP_READ_HEADER_TIMEOUT", "5s")
	v.SetDefault("HTTP_READ_TIMEOUT", "15s")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "15s")
	v.SetDefault("HTTP_IDLE_TIMEOUT", "60s")
	v.SetDefault("HTTP_MAX_HEADER_BYTES", 1<<20)
	v.SetDefault("MAX_BODY_BYTES", 1<<20)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 0)
	v.SetDefault("DB_MIGRATE_ON_START", false)
	v.SetDefault("READINESS_REQUIRE_DB", false)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "securebank")
	v.SetDefault("HMAC_KEY", "")
	v.SetDefault("SESSION_DURATION", "168h")
	v.SetDefault("RENEW_THRESHOLD", "15m")
	v.SetDefault("WS_ALLOWED_ORIGINS", "http://localhost,http://127.0.0.1")
	v.SetDefault("ARGON2_MEMORY_KIB", 64*1024)
	v.SetDefault("ARGON2_ITERATIONS", 3)
	v.SetDefault("ARGON2_PARALLELISM", 0)

	// No default: an unset value means "follow APP_ENV".
	_ = v.BindEnv("COOKIE_SECURE")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if !v.IsSet("COOKIE_SECURE") {
		cfg.CookieSecure = cfg.IsProduction()
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case strings.TrimSpace(c.HTTPAddr) == "":
		return errors.New("config: HTTP_ADDR must be set")
	case c.DBMaxConns < 0 || c.DBMinConns < 0:
		return errors.New("config: DB_MAX_CONNS and DB_MIN_CONNS must not be negative")
	case c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns:
		return errors.New("config: DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	case c.DBMigrateOnStart && c.DatabaseURL == "":
		return errors.New("config: DB_MIGRATE_ON_START requires DATABASE_URL")
	}
	return nil
}

// IsProduction reports whether APP_ENV selects production behavior.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), EnvProduction)
}

// AllowedOrigins returns the websocket origin list from the comma-separated config.
func (c Config) AllowedOrigins() []string {
	if c.WSAllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.WSAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
