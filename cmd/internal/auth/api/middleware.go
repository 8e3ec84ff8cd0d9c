package authapi

import (
	"context"
	"net/http"
	"time"

	"securebank/cmd/identity"
	"securebank/cmd/internal/auth/session"
)

type requestSessionKey struct{}

type requestSession struct {
	account   *identity.Account
	transport *cookieTransport
}

// WithSession resolves the session cookie before next runs. A rotated token is
// written to the response cookie; the account, if any, is available through
// AccountFromContext. Storage failures end the request with 500.
func (h *Handler) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := newCookieTransport(w, r, h.cfg, h.sessions.Config().MaxAgeSeconds())

		res, err := h.sessions.Authenticate(r.Context(), h.now(), t)
		if err != nil {
			h.log.Error("auth.session.resolve.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}

		ctx := context.WithValue(r.Context(), requestSessionKey{}, &requestSession{
			account:   res.Account,
			transport: t,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccountFromContext returns the account resolved by WithSession.
func AccountFromContext(ctx context.Context) (*identity.Account, bool) {
	rs, ok := ctx.Value(requestSessionKey{}).(*requestSession)
	if !ok || rs.account == nil {
		return nil, false
	}
	return rs.account, true
}

// transportFrom returns the request's cookie transport, or a no-op one outside WithSession.
func transportFrom(ctx context.Context) session.Transport {
	if rs, ok := ctx.Value(requestSessionKey{}).(*requestSession); ok && rs.transport != nil {
		return rs.transport
	}
	return noTransport{}
}

func requireAccount(w http.ResponseWriter, r *http.Request) (*identity.Account, bool) {
	acct, ok := AccountFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return nil, false
	}
	return acct, true
}

type noTransport struct{}

func (noTransport) Credential() (string, bool)       { return "", false }
func (noTransport) SetCredential(string, time.Time) {}
func (noTransport) ClearCredential()                 {}
