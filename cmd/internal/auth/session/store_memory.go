package session

import (
	"context"
	"sync"
	"time"
)

type memState struct {
	byToken   map[string]Session
	byAccount map[string]map[string]struct{}
}

func newMemState() memState {
	return memState{
		byToken:   make(map[string]Session),
		byAccount: make(map[string]map[string]struct{}),
	}
}

func (s memState) clone() memState {
	out := memState{
		byToken:   make(map[string]Session, len(s.byToken)),
		byAccount: make(map[string]map[string]struct{}, len(s.byAccount)),
	}
	for k, v := range s.byToken {
		out.byToken[k] = v
	}
	for acct, toks := range s.byAccount {
		set := make(map[string]struct{}, len(toks))
		for t := range toks {
			set[t] = struct{}{}
		}
		out.byAccount[acct] = set
	}
	return out
}

// memQueries operates on a state without locking; callers hold MemoryStore.mu.
type memQueries struct {
	st *memState
}

func (q memQueries) FindByToken(ctx context.Context, token string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row, ok := q.st.byToken[token]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (q memQueries) Insert(ctx context.Context, accountID, token string, expiresAt time.Time) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if _, ok := q.st.byToken[token]; ok {
		return Session{}, ErrDuplicateToken
	}
	if len(q.st.byAccount[accountID]) > 0 {
		return Session{}, ErrAccountHasSession
	}

	row := Session{Token: token, AccountID: accountID, ExpiresAt: expiresAt}
	q.st.byToken[token] = row
	q.st.byAccount[accountID] = map[string]struct{}{token: {}}
	return row, nil
}

func (q memQueries) DeleteByToken(ctx context.Context, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	row, ok := q.st.byToken[token]
	if !ok {
		return false, nil
	}
	delete(q.st.byToken, token)
	if toks := q.st.byAccount[row.AccountID]; toks != nil {
		delete(toks, token)
		if len(toks) == 0 {
			delete(q.st.byAccount, row.AccountID)
		}
	}
	return true, nil
}

func (q memQueries) DeleteAllForAccount(ctx context.Context, accountID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	toks := q.st.byAccount[accountID]
	for t := range toks {
		delete(q.st.byToken, t)
	}
	delete(q.st.byAccount, accountID)
	return int64(len(toks)), nil
}

// MemoryStore is an in-process Store.
//
// Transactional holds the store lock for the whole unit and works on a copy
// of the state that is swapped in only when fn succeeds, so units are
// serializable and a failing unit leaves nothing behind.
type MemoryStore struct {
	mu sync.Mutex
	st memState
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{st: newMemState()}
}

// FindByToken implements Queries.
func (s *MemoryStore) FindByToken(ctx context.Context, token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memQueries{st: &s.st}.FindByToken(ctx, token)
}

// Insert implements Queries.
func (s *MemoryStore) Insert(ctx context.Context, accountID, token string, expiresAt time.Time) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memQueries{st: &s.st}.Insert(ctx, accountID, token, expiresAt)
}

// DeleteByToken implements Queries.
func (s *MemoryStore) DeleteByToken(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memQueries{st: &s.st}.DeleteByToken(ctx, token)
}

// DeleteAllForAccount implements Queries.
func (s *MemoryStore) DeleteAllForAccount(ctx context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memQueries{st: &s.st}.DeleteAllForAccount(ctx, accountID)
}

// Transactional implements Store.
func (s *MemoryStore) Transactional(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(memQueries{st: &work}); err != nil {
		return err
	}
	// A unit cancelled before commit is rolled back like any other failure.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

// CountForAccount returns how many rows the account owns.
func (s *MemoryStore) CountForAccount(accountID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.byAccount[accountID])
}

// Len returns the total number of rows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.byToken)
}
