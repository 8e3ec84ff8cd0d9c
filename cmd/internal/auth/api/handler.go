package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"securebank/cmd/identity"
	"securebank/cmd/internal/auth/session"
	"securebank/cmd/internal/funding"
)

// Accounts is the identity capability the handlers need. *identity.Service satisfies it.
type Accounts interface {
	Register(ctx context.Context, now time.Time, in identity.SignupInput) (identity.Account, error)
	VerifyCredential(ctx context.Context, identifier, secret string) (string, error)
	FindByID(ctx context.Context, id string) (*identity.Account, error)
}

// Handler wires HTTP auth endpoints to the identity service and the session manager.
type Handler struct {
	log *slog.Logger
	cfg Config

	accounts Accounts
	sessions *session.Manager

	now func() time.Time
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides the wall clock used for session decisions.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, accounts Accounts, sessions *session.Manager, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if accounts == nil || sessions == nil {
		return nil, errors.New("auth: nil dependency")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg.normalized(),
		accounts: accounts,
		sessions: sessions,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto the provided mux. Every route runs behind WithSession.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.Handle("/auth/signup", h.WithSession(http.HandlerFunc(h.handleSignup)))
	mux.Handle("/auth/login", h.WithSession(http.HandlerFunc(h.handleLogin)))
	mux.Handle("/auth/logout", h.WithSession(http.HandlerFunc(h.handleLogout)))
	mux.Handle("/me", h.WithSession(http.HandlerFunc(h.handleMe)))
	mux.Handle("/funding/validate", h.WithSession(http.HandlerFunc(h.handleFundingValidate)))
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req signupRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	ctx := r.Context()
	now := h.now()

	acct, err := h.accounts.Register(ctx, now, req.input())
	if err != nil {
		var verr identity.ValidationError
		switch {
		case errors.As(err, &verr):
			fields := collectFields(verr.Fields, func(f identity.FieldError) (string, string) { return f.Field, f.Message })
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", "validation failed", fields)
		case identity.IsConflict(err):
			field, _ := identity.ConflictField(err)
			msg := "User already exists"
			if field == identity.FieldSSN {
				msg = "This SSN is already registered"
			}
			writeFieldErrors(w, http.StatusConflict, "conflict", msg, []fieldError{{Field: field, Message: msg}})
		default:
			h.log.Error("auth.signup.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	if _, err := h.sessions.Login(ctx, now, acct.ID, transportFrom(ctx)); err != nil {
		h.log.Error("auth.signup.issue_session.fail", "err", err, "account_id", acct.ID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.signup.ok", "account_id", acct.ID)
	writeJSON(w, http.StatusCreated, accountEnvelope{Account: toAccountResponse(acct)})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	ctx := r.Context()
	now := h.now()

	accountID, err := h.accounts.VerifyCredential(ctx, req.Email, req.Password)
	if err != nil {
		if identity.IsUnauthenticated(err) {
			h.log.Info("auth.login.fail")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
			return
		}
		h.log.Error("auth.login.verify.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	acct, err := h.accounts.FindByID(ctx, accountID)
	if err != nil || acct == nil {
		h.log.Error("auth.login.lookup.fail", "err", err, "account_id", accountID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	if _, err := h.sessions.Login(ctx, now, accountID, transportFrom(ctx)); err != nil {
		h.log.Error("auth.login.issue_session.fail", "err", err, "account_id", accountID)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("auth.login.ok", "account_id", accountID)
	writeJSON(w, http.StatusOK, accountEnvelope{Account: toAccountResponse(*acct)})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	t := transportFrom(ctx)

	_, resolved := AccountFromContext(ctx)
	removed, err := h.sessions.Logout(ctx, t)
	if err != nil {
		h.log.Error("auth.logout.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to delete session")
		return
	}

	resp := logoutResponse{Success: removed, Message: "No active session"}
	switch {
	case removed:
		resp.Message = "Logged out successfully"
	case resolved:
		resp.Message = "Session not found in database"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	acct, ok := requireAccount(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, accountEnvelope{Account: toAccountResponse(*acct)})
}

func (h *Handler) handleFundingValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	acct, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req funding.Request
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeBodyError(w, err)
		return
	}

	f, err := funding.Validate(req)
	if err != nil {
		var verr *funding.ValidationError
		if errors.As(err, &verr) {
			writeFieldErrors(w, http.StatusBadRequest, "invalid_request", "validation failed",
				collectFields(verr.Fields, func(f funding.FieldError) (string, string) { return f.Field, f.Message }))
			return
		}
		h.log.Error("funding.validate.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	h.log.Info("funding.validate.ok", "account_id", acct.ID, "type", f.Type, "amount_cents", f.AmountCents)
	writeJSON(w, http.StatusOK, fundingResponse{Valid: true, Funding: f})
}
