package authapi

import "strings"

// DefaultCookieName is the cookie that carries the session token.
const DefaultCookieName = "session"

// Config controls auth API behavior and cookie attributes.
// The cookie is always HttpOnly and SameSite=Strict.
type Config struct {
	MaxBodyBytes int64

	CookieName   string
	CookiePath   string
	CookieDomain string
	CookieSecure bool
}

// DefaultConfig returns development defaults. Production deployments set CookieSecure.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes: 1 << 20, // 1 MiB
		CookieName:   DefaultCookieName,
		CookiePath:   "/",
	}
}

func (c Config) normalized() Config {
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 1 << 20
	}
	c.CookieName = strings.TrimSpace(c.CookieName)
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if strings.TrimSpace(c.CookiePath) == "" {
		c.CookiePath = "/"
	}
	c.CookieDomain = strings.TrimSpace(c.CookieDomain)
	return c
}
