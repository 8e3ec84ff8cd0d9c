package authapi

import (
	"time"

	"securebank/cmd/identity"
	"securebank/cmd/internal/funding"
)

type signupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	PhoneNumber     string `json:"phoneNumber"`
	DateOfBirth     string `json:"dateOfBirth"`
	SSN             string `json:"ssn"`
	Address         string `json:"address"`
	City            string `json:"city"`
	State           string `json:"state"`
	ZipCode         string `json:"zipCode"`
}

func (r signupRequest) input() identity.SignupInput {
	return identity.SignupInput{
		Email:           r.Email,
		Password:        r.Password,
		ConfirmPassword: r.ConfirmPassword,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		PhoneNumber:     r.PhoneNumber,
		DateOfBirth:     r.DateOfBirth,
		SSN:             r.SSN,
		Address:         r.Address,
		City:            r.City,
		State:           r.State,
		ZipCode:         r.ZipCode,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// accountResponse never carries the password hash or the SSN digest.
type accountResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	PhoneNumber string    `json:"phoneNumber"`
	DateOfBirth string    `json:"dateOfBirth"`
	SSNLast4    string    `json:"ssnLast4"`
	Address     string    `json:"address"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	ZipCode     string    `json:"zipCode"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toAccountResponse(a identity.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Email:       a.Email,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		PhoneNumber: a.PhoneNumber,
		DateOfBirth: a.DateOfBirth.Format("2006-01-02"),
		SSNLast4:    a.SSNLast4,
		Address:     a.Address,
		City:        a.City,
		State:       a.State,
		ZipCode:     a.ZipCode,
		CreatedAt:   a.CreatedAt,
	}
}

type accountEnvelope struct {
	Account accountResponse `json:"account"`
}

type logoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type fundingResponse struct {
	Valid   bool            `json:"valid"`
	Funding funding.Funding `json:"funding"`
}
