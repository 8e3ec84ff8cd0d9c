package authapi

import (
	"net/http"
	"strings"
	"time"

	"securebank/cmd/internal/auth/session"
)

// cookieTransport carries the session token in the session cookie.
//
// Writes are remembered so that later reads in the same request see the
// rotated or cleared credential rather than the stale request cookie.
type cookieTransport struct {
	w      http.ResponseWriter
	r      *http.Request
	cfg    Config
	maxAge int

	overridden bool
	token      string
}

func newCookieTransport(w http.ResponseWriter, r *http.Request, cfg Config, maxAge int) *cookieTransport {
	return &cookieTransport{w: w, r: r, cfg: cfg, maxAge: maxAge}
}

func (t *cookieTransport) Credential() (string, bool) {
	if t.overridden {
		return t.token, t.token != ""
	}
	c, err := t.r.Cookie(t.cfg.CookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

func (t *cookieTransport) SetCredential(token string, _ time.Time) {
	t.overridden, t.token = true, token
	http.SetCookie(t.w, t.cookie(token, t.maxAge))
}

func (t *cookieTransport) ClearCredential() {
	t.overridden, t.token = true, ""
	http.SetCookie(t.w, t.cookie("", -1))
}

func (t *cookieTransport) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     t.cfg.CookieName,
		Value:    value,
		Path:     t.cfg.CookiePath,
		Domain:   t.cfg.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}

// NewCookieTransport returns the session cookie carrier for one request.
// Other handlers that authenticate outside WithSession, such as the websocket
// upgrade, use it so that rotation updates the same cookie.
func NewCookieTransport(w http.ResponseWriter, r *http.Request, cfg Config, maxAge int) session.Transport {
	return newCookieTransport(w, r, cfg.normalized(), maxAge)
}
