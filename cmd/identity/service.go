package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PasswordHasher is the hashing capability consumed by Service.
// security/password.Config satisfies it.
type PasswordHasher interface {
	PasswordPolicy
	Hash(secret string) (string, error)
	Verify(encodedHash, secret string) (bool, error)
}

// Digester computes keyed digests of sensitive values.
// security/digest.Hasher satisfies it.
type Digester interface {
	Sum(value string) string
}

// Service registers accounts and verifies credentials.
type Service struct {
	store     Store
	passwords PasswordHasher
	ssn       Digester

	// dummyHash keeps unknown-email logins as slow as wrong-password logins.
	dummyHash string
}

// NewService constructs a Service. dummyHash should be a valid hash produced by
// passwords (for example password.Config.DummyHash).
func NewService(store Store, passwords PasswordHasher, ssn Digester, dummyHash string) (*Service, error) {
	if store == nil || passwords == nil || ssn == nil {
		return nil, errors.New("identity: nil dependency")
	}
	return &Service{store: store, passwords: passwords, ssn: ssn, dummyHash: dummyHash}, nil
}

// Register validates the signup, rejects duplicate email or SSN, and creates the account.
func (s *Service) Register(ctx context.Context, now time.Time, in SignupInput) (Account, error) {
	const op = "identity.Register"

	v, err := ValidateSignup(in, now, s.passwords)
	if err != nil {
		return Account{}, err
	}

	existing, err := s.store.FindByEmail(ctx, v.Email)
	if err != nil {
		return Account{}, err
	}
	if existing != nil {
		return Account{}, ConflictError{Op: op, Field: FieldEmail}
	}

	ssnHash := s.ssn.Sum(v.SSN)
	existing, err = s.store.FindBySSNHash(ctx, ssnHash)
	if err != nil {
		return Account{}, err
	}
	if existing != nil {
		return Account{}, ConflictError{Op: op, Field: FieldSSN}
	}

	pwHash, err := s.passwords.Hash(v.Password)
	if err != nil {
		return Account{}, fmt.Errorf("%s: hash password: %w", op, err)
	}

	// Create re-checks uniqueness; a concurrent signup surfaces as ConflictError.
	return s.store.Create(ctx, NewAccount{
		Email:        v.Email,
		PasswordHash: pwHash,
		FirstName:    v.FirstName,
		LastName:     v.LastName,
		PhoneNumber:  v.PhoneNumber,
		DateOfBirth:  v.DateOfBirth,
		SSNLast4:     SSNLast4(v.SSN),
		SSNHash:      ssnHash,
		Address:      v.Address,
		City:         v.City,
		State:        v.State,
		ZipCode:      v.ZipCode,
		Now:          now,
	})
}

// VerifyCredential returns the account id for a matching email and secret.
// Unknown email and wrong secret both return ErrUnauthenticated.
func (s *Service) VerifyCredential(ctx context.Context, identifier, secret string) (string, error) {
	email := NormalizeEmail(identifier)
	if email == "" || strings.TrimSpace(secret) == "" {
		return "", ErrUnauthenticated
	}

	a, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if a == nil {
		if s.dummyHash != "" {
			_, _ = s.passwords.Verify(s.dummyHash, secret)
		}
		return "", ErrUnauthenticated
	}

	ok, err := s.passwords.Verify(a.PasswordHash, secret)
	if err != nil {
		return "", fmt.Errorf("identity.VerifyCredential: %w", err)
	}
	if !ok {
		return "", ErrUnauthenticated
	}
	return a.ID, nil
}

// FindByID exposes the account lookup used by session resolution.
func (s *Service) FindByID(ctx context.Context, id string) (*Account, error) {
	return s.store.FindByID(ctx, id)
}
