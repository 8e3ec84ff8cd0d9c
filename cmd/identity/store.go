package identity

import (
	"context"
	"time"
)

// Account is a bank customer. PasswordHash and SSNHash are never serialized to clients.
type Account struct {
	ID           string
	Email        string
	PasswordHash string

	FirstName   string
	LastName    string
	PhoneNumber string
	DateOfBirth time.Time

	SSNLast4 string
	SSNHash  string

	Address string
	City    string
	State   string
	ZipCode string

	CreatedAt time.Time
}

// NewAccount is the input to Store.Create. Email must already be normalized and
// secrets already hashed.
type NewAccount struct {
	Email        string
	PasswordHash string

	FirstName   string
	LastName    string
	PhoneNumber string
	DateOfBirth time.Time

	SSNLast4 string
	SSNHash  string

	Address string
	City    string
	State   string
	ZipCode string

	Now time.Time
}

// Store is the account repository.
//
// Find methods return (nil, nil) when no account matches.
// Create returns ConflictError{Field: FieldEmail|FieldSSN} on duplicates.
type Store interface {
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindBySSNHash(ctx context.Context, ssnHash string) (*Account, error)
	Create(ctx context.Context, in NewAccount) (Account, error)
}

func accountFromNew(id string, in NewAccount) Account {
	return Account{
		ID:           id,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PhoneNumber:  in.PhoneNumber,
		DateOfBirth:  in.DateOfBirth,
		SSNLast4:     in.SSNLast4,
		SSNHash:      in.SSNHash,
		Address:      in.Address,
		City:         in.City,
		State:        in.State,
		ZipCode:      in.ZipCode,
		CreatedAt:    in.Now,
	}
}
