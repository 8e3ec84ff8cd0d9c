// Package funding validates requests to fund an account from a card or a bank account.
package funding

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Type is the funding source.
type Type string

const (
	TypeCard Type = "card"
	TypeBank Type = "bank"
)

// Amount bounds in cents.
const (
	MinAmountCents int64 = 1
	MaxAmountCents int64 = 1_000_000
)

var (
	amountRe  = regexp.MustCompile(`^\d+\.?\d{0,2}$`)
	cardRe    = regexp.MustCompile(`^\d{13,19}$`)
	digitsRe  = regexp.MustCompile(`^\d+$`)
	routingRe = regexp.MustCompile(`^\d{9}$`)
)

// Request is the client payload. Amount stays a string so the format checks see exactly what was typed.
type Request struct {
	Amount        string `json:"amount" validate:"amount"`
	FundingType   string `json:"fundingType" validate:"required,oneof=card bank"`
	AccountNumber string `json:"accountNumber" validate:"required"`
	RoutingNumber string `json:"routingNumber,omitempty"`
}

// Funding is a validated request.
type Funding struct {
	AmountCents   int64  `json:"amountCents"`
	Type          Type   `json:"fundingType"`
	AccountNumber string `json:"-"`
	// AccountLast4 is safe to echo back to clients.
	AccountLast4  string `json:"accountLast4"`
	RoutingNumber string `json:"routingNumber,omitempty"`
}

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field, at most one message per field.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "funding: invalid request"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "funding: invalid request: " + strings.Join(parts, "; ")
}

// Message returns the message recorded for field, if any.
func (e *ValidationError) Message(field string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message, true
		}
	}
	return "", false
}

func (e *ValidationError) add(field, msg string) {
	if _, ok := e.Message(field); ok {
		return
	}
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		if err := v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
			return amountRe.MatchString(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("funding: register amount validation: %v", err))
		}
		validate = v
	})
	return validate
}

// Validate checks r and returns the normalized Funding, or a *ValidationError.
func Validate(r Request) (Funding, error) {
	verr := &ValidationError{}

	if err := structValidator().Struct(r); err != nil {
		var fes validator.ValidationErrors
		if !errors.As(err, &fes) {
			return Funding{}, fmt.Errorf("funding: validate: %w", err)
		}
		for _, fe := range fes {
			verr.add(fe.Field(), tagMessage(fe))
		}
	}

	var cents int64
	if _, bad := verr.Message("amount"); !bad {
		var msg string
		cents, msg = checkAmount(r.Amount)
		if msg != "" {
			verr.add("amount", msg)
		}
	}

	typ := Type(r.FundingType)
	account := r.AccountNumber

	switch typ {
	case TypeBank:
		if strings.TrimSpace(r.RoutingNumber) == "" {
			verr.add("routingNumber", "Routing number is required")
		} else if !routingRe.MatchString(r.RoutingNumber) {
			verr.add("routingNumber", "Routing number must be 9 digits")
		}
		if account != "" && !digitsRe.MatchString(account) {
			verr.add("accountNumber", "Invalid account number")
		}
	case TypeCard:
		if account != "" {
			account = NormalizeCardNumber(account)
			if !cardRe.MatchString(account) {
				verr.add("accountNumber", "Card number must be 13-19 digits")
			} else if !IsLuhnValid(account) {
				verr.add("accountNumber", "Invalid card number")
			}
		}
	}

	if len(verr.Fields) > 0 {
		return Funding{}, verr
	}

	f := Funding{
		AmountCents:   cents,
		Type:          typ,
		AccountNumber: account,
		AccountLast4:  lastN(account, 4),
	}
	if typ == TypeBank {
		f.RoutingNumber = r.RoutingNumber
	}
	return f, nil
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Field() {
	case "amount":
		return "Invalid amount format"
	case "fundingType":
		return "Funding type must be card or bank"
	case "accountNumber":
		return "Account number is required"
	}
	return "Invalid value"
}

// checkAmount expects s to already match amountRe.
func checkAmount(s string) (int64, string) {
	if len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9' {
		return 0, "Amount cannot start with a leading zero (e.g., enter 50.00 not 050.00)"
	}

	whole, frac, _ := strings.Cut(s, ".")
	for len(frac) < 2 {
		frac += "0"
	}

	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || dollars > MaxAmountCents/100 {
		return 0, "Amount cannot exceed $10,000"
	}
	c, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, "Invalid amount format"
	}

	cents := dollars*100 + c
	switch {
	case cents < MinAmountCents:
		return 0, "Amount must be at least $0.01"
	case cents > MaxAmountCents:
		return 0, "Amount cannot exceed $10,000"
	}
	return cents, ""
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
