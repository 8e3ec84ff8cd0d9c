package session

import (
	"context"
	"time"
)

// Session mirrors one persisted session row.
type Session struct {
	Token     string
	AccountID string
	ExpiresAt time.Time
}

// Queries are the repository operations. They run either directly against the
// store or inside a Store.Transactional unit.
type Queries interface {
	// FindByToken returns (nil, nil) when no row matches.
	FindByToken(ctx context.Context, token string) (*Session, error)

	// Insert adds a row. Duplicate tokens return ErrDuplicateToken.
	Insert(ctx context.Context, accountID, token string, expiresAt time.Time) (Session, error)

	// DeleteByToken reports whether a row was removed.
	DeleteByToken(ctx context.Context, token string) (bool, error)

	// DeleteAllForAccount returns the number of rows removed.
	DeleteAllForAccount(ctx context.Context, accountID string) (int64, error)
}

// Store is the session repository.
//
// Transactional runs fn as one atomic unit: if fn or the commit fails, no
// partial effect is visible. Concurrent units on the same account are totally
// ordered; the later commit wins.
type Store interface {
	Queries
	Transactional(ctx context.Context, fn func(q Queries) error) error
}
