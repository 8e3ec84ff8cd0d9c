package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultSchema   = "securebank"
	defaultMaxTries = 5

	constraintSessionsPK      = "pk_sessions"
	constraintSessionsAccount = "uq_sessions_account_id"
)

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store over PostgreSQL.
//
// Transactional units run at SERIALIZABLE isolation and are retried with
// exponential backoff on serialization failures, deadlocks and the
// one-session-per-account unique constraint. The pool is owned by the caller.
type PostgresStore struct {
	pool     *pgxpool.Pool
	table    string
	maxTries uint
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the schema holding the sessions table (default "securebank").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("session: invalid schema identifier %q", schema)
		}
		s.table = pgx.Identifier{schema, "sessions"}.Sanitize()
		return nil
	}
}

// WithMaxTries bounds attempts of one transactional unit (default 5).
func WithMaxTries(n uint) PostgresOption {
	return func(s *PostgresStore) error {
		if n == 0 {
			return errors.New("session: max tries must be positive")
		}
		s.maxTries = n
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("session: nil pool")
	}
	s := &PostgresStore{
		pool:     pool,
		table:    pgx.Identifier{defaultSchema, "sessions"}.Sanitize(),
		maxTries: defaultMaxTries,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PostgresStore) queries(db dbtx) pgQueries {
	return pgQueries{db: db, table: s.table}
}

// FindByToken implements Queries.
func (s *PostgresStore) FindByToken(ctx context.Context, token string) (*Session, error) {
	return s.queries(s.pool).FindByToken(ctx, token)
}

// Insert implements Queries.
func (s *PostgresStore) Insert(ctx context.Context, accountID, token string, expiresAt time.Time) (Session, error) {
	return s.queries(s.pool).Insert(ctx, accountID, token, expiresAt)
}

// DeleteByToken implements Queries.
func (s *PostgresStore) DeleteByToken(ctx context.Context, token string) (bool, error) {
	return s.queries(s.pool).DeleteByToken(ctx, token)
}

// DeleteAllForAccount implements Queries.
func (s *PostgresStore) DeleteAllForAccount(ctx context.Context, accountID string) (int64, error) {
	return s.queries(s.pool).DeleteAllForAccount(ctx, accountID)
}

// Transactional implements Store. fn may run more than once and must not
// keep side effects outside the Queries it is given.
func (s *PostgresStore) Transactional(ctx context.Context, fn func(q Queries) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.runTx(ctx, fn)
		if err != nil && !isRetryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(s.maxTries))
	return err
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("session: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(s.queries(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("session: commit: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	case pgerrcode.UniqueViolation:
		// A concurrent unit committed a row for the same account first.
		return pgErr.ConstraintName == constraintSessionsAccount
	}
	return false
}

type pgQueries struct {
	db    dbtx
	table string
}

func (q pgQueries) FindByToken(ctx context.Context, token string) (*Session, error) {
	var row Session
	err := q.db.QueryRow(ctx,
		`SELECT token, account_id, expires_at
		   FROM `+q.table+`
		  WHERE token = $1`,
		token,
	).Scan(&row.Token, &row.AccountID, &row.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: find by token: %w", err)
	}
	return &row, nil
}

func (q pgQueries) Insert(ctx context.Context, accountID, token string, expiresAt time.Time) (Session, error) {
	_, err := q.db.Exec(ctx,
		`INSERT INTO `+q.table+` (token, account_id, expires_at)
		 VALUES ($1, $2, $3)`,
		token, accountID, expiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			switch pgErr.ConstraintName {
			case constraintSessionsPK:
				return Session{}, ErrDuplicateToken
			case constraintSessionsAccount:
				// Keep the PgError in the chain so Transactional can retry.
				return Session{}, fmt.Errorf("%w: %w", ErrAccountHasSession, err)
			}
		}
		return Session{}, fmt.Errorf("session: insert: %w", err)
	}
	return Session{Token: token, AccountID: accountID, ExpiresAt: expiresAt}, nil
}

func (q pgQueries) DeleteByToken(ctx context.Context, token string) (bool, error) {
	ct, err := q.db.Exec(ctx, `DELETE FROM `+q.table+` WHERE token = $1`, token)
	if err != nil {
		return false, fmt.Errorf("session: delete by token: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (q pgQueries) DeleteAllForAccount(ctx context.Context, accountID string) (int64, error) {
	ct, err := q.db.Exec(ctx, `DELETE FROM `+q.table+` WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("session: delete all for account: %w", err)
	}
	return ct.RowsAffected(), nil
}
