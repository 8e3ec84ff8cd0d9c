package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"securebank/cmd/identity"
)

// Tokens longer than this are rejected before decoding.
const maxTokenLen = 4096

// AccountFinder resolves the owner of a session. It returns (nil, nil) for unknown ids.
type AccountFinder interface {
	FindByID(ctx context.Context, id string) (*identity.Account, error)
}

// Issued is a freshly created session as handed to the client.
type Issued struct {
	Token     string
	AccountID string
	ExpiresAt time.Time
}

// Resolution is the outcome of Resolve. The zero value is an anonymous request.
type Resolution struct {
	// Account is nil for anonymous requests. After a rotation it still holds
	// the data read before the rotation.
	Account *identity.Account

	// Rotated is set when the session was replaced; the transport must hand
	// Rotated.Token to the client.
	Rotated *Issued
}

// Authenticated reports whether the request resolved to an account.
func (r Resolution) Authenticated() bool { return r.Account != nil }

// Manager implements the session lifecycle: Issue, Resolve and Revoke.
//
// All mutation of session rows goes through Manager. Issue and rotation run as
// a single Store.Transactional unit that deletes every row of the account and
// inserts the new one, so at most one session per account survives. Two units
// racing for one account are ordered by the store and the later commit wins.
// That includes two requests rotating the same near-expiry token at once: the
// second rotation deletes the first one's fresh row before that client ever
// uses it. That race is kept: rotation must keep deleting by account, not by token.
type Manager struct {
	cfg      Config
	codec    TokenCodec
	store    Store
	accounts AccountFinder

	log      *slog.Logger
	metrics  *Metrics
	notifier Notifier
}

// Option configures optional Manager dependencies.
type Option func(*Manager)

// WithLogger sets the logger (default slog.Default()).
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics enables Prometheus counters.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithNotifier receives committed lifecycle events.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// NewManager wires a Manager.
func NewManager(cfg Config, codec TokenCodec, store Store, accounts AccountFinder, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if codec == nil || store == nil || accounts == nil {
		return nil, errors.New("session: nil dependency")
	}

	m := &Manager{
		cfg:      cfg,
		codec:    codec,
		store:    store,
		accounts: accounts,
		log:      slog.Default(),
		notifier: nopNotifier{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Config returns the lifecycle policy.
func (m *Manager) Config() Config { return m.cfg }

// Issue starts a fresh session for accountID, discarding any prior one.
// Signup and login both use it.
func (m *Manager) Issue(ctx context.Context, now time.Time, accountID string) (Issued, error) {
	if strings.TrimSpace(accountID) == "" {
		return Issued{}, errors.New("session: issue: empty account id")
	}

	issued, prior, err := m.replace(ctx, now, accountID)
	if err != nil {
		m.metrics.observe("issue", outcomeError)
		return Issued{}, err
	}

	m.metrics.observe("issue", outcomeOK)
	m.metrics.addSuperseded(prior)
	if prior > 0 {
		m.notifier.Notify(accountID, EventSuperseded)
	}
	m.log.Debug("session.issue", "account_id", accountID, "superseded", prior)
	return issued, nil
}

// replace deletes every session of accountID and inserts a new one in one unit.
// It returns the number of rows deleted.
func (m *Manager) replace(ctx context.Context, now time.Time, accountID string) (Issued, int64, error) {
	expiresAt := now.Add(m.cfg.SessionDuration)

	token, err := m.codec.Encode(accountID, expiresAt, now)
	if err != nil {
		return Issued{}, 0, fmt.Errorf("session: encode: %w", err)
	}

	var deleted int64
	err = m.store.Transactional(ctx, func(q Queries) error {
		n, err := q.DeleteAllForAccount(ctx, accountID)
		if err != nil {
			return err
		}
		deleted = n

		if _, err := q.Insert(ctx, accountID, token, expiresAt); err != nil {
			return err
		}

		row, err := q.FindByToken(ctx, token)
		if err != nil {
			return err
		}
		if row == nil {
			return fmt.Errorf("%w: inserted session not found on re-read", ErrIntegrity)
		}
		return nil
	})
	if err != nil {
		return Issued{}, 0, err
	}

	return Issued{Token: token, AccountID: accountID, ExpiresAt: expiresAt}, deleted, nil
}

// Resolve maps a presented token to its account, rotating the session when it
// is inside the renewal window. Missing, malformed, unknown and expired tokens
// resolve to the zero Resolution with a nil error; only storage failures are
// returned as errors.
func (m *Manager) Resolve(ctx context.Context, now time.Time, token string) (Resolution, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Resolution{}, nil
	}
	if len(token) > maxTokenLen {
		m.metrics.observe("resolve", outcomeInvalid)
		return Resolution{}, nil
	}

	// Undecodable tokens never reach the store.
	claims, err := m.codec.Decode(token)
	if err != nil {
		m.metrics.observe("resolve", outcomeInvalid)
		return Resolution{}, nil
	}

	row, err := m.store.FindByToken(ctx, token)
	if err != nil {
		m.metrics.observe("resolve", outcomeError)
		return Resolution{}, err
	}
	if row == nil {
		m.metrics.observe("resolve", outcomeAnonymous)
		return Resolution{}, nil
	}

	if !now.Before(row.ExpiresAt) {
		if _, err := m.store.DeleteByToken(ctx, token); err != nil {
			m.metrics.observe("resolve", outcomeError)
			return Resolution{}, err
		}
		m.metrics.observe("resolve", outcomeExpired)
		m.log.Debug("session.expired", "account_id", row.AccountID)
		return Resolution{}, nil
	}

	if claims.AccountID != row.AccountID {
		m.metrics.observe("resolve", outcomeInvalid)
		m.log.Warn("session.resolve.account_mismatch", "row_account_id", row.AccountID)
		return Resolution{}, nil
	}

	acct, err := m.accounts.FindByID(ctx, row.AccountID)
	if err != nil {
		m.metrics.observe("resolve", outcomeError)
		return Resolution{}, err
	}
	if acct == nil {
		m.metrics.observe("resolve", outcomeAnonymous)
		return Resolution{}, nil
	}

	res := Resolution{Account: acct}

	if row.ExpiresAt.Sub(now) < m.cfg.RenewThreshold {
		issued, deleted, err := m.replace(ctx, now, row.AccountID)
		if err != nil {
			m.metrics.observe("rotate", outcomeError)
			return Resolution{}, err
		}
		// The presented row is among the deleted ones; anything beyond it was a stray.
		m.metrics.addSuperseded(deleted - 1)
		m.metrics.observe("rotate", outcomeOK)
		m.log.Info("session.rotate", "account_id", row.AccountID, "expires_at", issued.ExpiresAt)
		res.Rotated = &issued
	}

	m.metrics.observe("resolve", outcomeOK)
	return res, nil
}

// Revoke deletes the session for token. It reports whether a row was removed;
// a missing token or row is a successful no-op.
func (m *Manager) Revoke(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		m.metrics.observe("revoke", outcomeNotFound)
		return false, nil
	}

	row, err := m.store.FindByToken(ctx, token)
	if err != nil {
		m.metrics.observe("revoke", outcomeError)
		return false, err
	}
	if row == nil {
		m.metrics.observe("revoke", outcomeNotFound)
		return false, nil
	}

	removed, err := m.store.DeleteByToken(ctx, token)
	if err != nil {
		m.metrics.observe("revoke", outcomeError)
		return false, err
	}

	again, err := m.store.FindByToken(ctx, token)
	if err != nil {
		m.metrics.observe("revoke", outcomeError)
		return false, err
	}
	if again != nil {
		m.metrics.observe("revoke", outcomeError)
		return false, fmt.Errorf("%w: session still present after delete", ErrIntegrity)
	}

	if !removed {
		// A concurrent request deleted it between our read and delete.
		m.metrics.observe("revoke", outcomeNotFound)
		return false, nil
	}

	m.metrics.observe("revoke", outcomeOK)
	m.notifier.Notify(row.AccountID, EventRevoked)
	return true, nil
}

// Login issues a session for accountID and hands the token to t.
func (m *Manager) Login(ctx context.Context, now time.Time, accountID string, t Transport) (Issued, error) {
	issued, err := m.Issue(ctx, now, accountID)
	if err != nil {
		return Issued{}, err
	}
	t.SetCredential(issued.Token, issued.ExpiresAt)
	return issued, nil
}

// Authenticate resolves the credential carried by t and hands any rotated token back to it.
func (m *Manager) Authenticate(ctx context.Context, now time.Time, t Transport) (Resolution, error) {
	token, ok := t.Credential()
	if !ok {
		return Resolution{}, nil
	}

	res, err := m.Resolve(ctx, now, token)
	if err != nil {
		return Resolution{}, err
	}
	if res.Rotated != nil {
		t.SetCredential(res.Rotated.Token, res.Rotated.ExpiresAt)
	}
	return res, nil
}

// Logout revokes the credential carried by t. The client credential is cleared
// even when nothing was revoked or the store failed.
func (m *Manager) Logout(ctx context.Context, t Transport) (bool, error) {
	defer t.ClearCredential()

	token, ok := t.Credential()
	if !ok {
		return false, nil
	}
	return m.Revoke(ctx, token)
}
