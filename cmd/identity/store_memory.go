package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no database is configured and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byEmail map[string]string
	bySSN   map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
		bySSN:   make(map[string]string),
	}
}

// FindByID returns the account with id, or nil.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// FindByEmail returns the account with the normalized email, or nil.
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, nil
	}
	a := s.byID[id]
	return &a, nil
}

// FindBySSNHash returns the account with the SSN digest, or nil.
func (s *MemoryStore) FindBySSNHash(ctx context.Context, ssnHash string) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySSN[ssnHash]
	if !ok {
		return nil, nil
	}
	a := s.byID[id]
	return &a, nil
}

// Create inserts an account, enforcing email and SSN-digest uniqueness.
func (s *MemoryStore) Create(ctx context.Context, in NewAccount) (Account, error) {
	const op = "identity.MemoryStore.Create"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.SSNHash) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email and ssn hash are required"}
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	id, err := NewAccountID(in.Now)
	if err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email := NormalizeEmail(in.Email)
	if _, ok := s.byEmail[email]; ok {
		return Account{}, ConflictError{Op: op, Field: FieldEmail}
	}
	if _, ok := s.bySSN[in.SSNHash]; ok {
		return Account{}, ConflictError{Op: op, Field: FieldSSN}
	}

	in.Email = email
	a := accountFromNew(id, in)
	s.byID[id] = a
	s.byEmail[email] = id
	s.bySSN[in.SSNHash] = id
	return a, nil
}
