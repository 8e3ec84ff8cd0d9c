package identity

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	minAge = 18
	maxAge = 130

	dateLayout = "2006-01-02"
)

var (
	emailRe            = regexp.MustCompile(`^[a-zA-Z0-9._+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	emailEdgeSpecialRe = regexp.MustCompile(`^[._+-]|[._+-]$`)
	emailRunSpecialRe  = regexp.MustCompile(`[._+-]{2,}`)
	phoneRe            = regexp.MustCompile(`^\+?\d{10,15}$`)
	dateRe             = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

var emailTypoSuffixes = []string{
	".con", ".cmo", ".ocm", ".comm", ".co,",
	".net.", ".org.", ".edu.",
	".gmial.com", ".gmai.com", ".yahooo.com",
}

// SignupInput is the raw signup form.
type SignupInput struct {
	Email           string `json:"email" validate:"required,email_format,email_edges,email_runs,email_typo"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	FirstName       string `json:"firstName" validate:"required"`
	LastName        string `json:"lastName" validate:"required"`
	PhoneNumber     string `json:"phoneNumber" validate:"required,phone"`
	DateOfBirth     string `json:"dateOfBirth" validate:"dob_format,dob_date,not_future,min_age,max_age"`
	SSN             string `json:"ssn" validate:"len=9,number"`
	Address         string `json:"address" validate:"required"`
	City            string `json:"city" validate:"required"`
	State           string `json:"state" validate:"len=2,oneof=AL AK AZ AR CA CO CT DE FL GA HI ID IL IN IA KS KY LA ME MD MA MI MN MS MO MT NE NV NH NJ NM NY NC ND OH OK OR PA RI SC SD TN TX UT VT VA WA WV WI WY"`
	ZipCode         string `json:"zipCode" validate:"len=5,number"`
}

// ValidSignup is a SignupInput that passed ValidateSignup, with normalized fields.
type ValidSignup struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	DateOfBirth time.Time
	SSN         string
	Address     string
	City        string
	State       string
	ZipCode     string
}

// PasswordPolicy validates a candidate secret.
type PasswordPolicy interface {
	Validate(secret string) error
}

// signupMessages maps field and failed tag to the message shown to the client.
// The "*" tag matches any tag of that field.
var signupMessages = map[string]map[string]string{
	"email": {
		"required":     "Email is required",
		"email_format": "Please enter a valid email address",
		"email_edges":  "Email cannot start or end with special characters",
		"email_runs":   "Email contains invalid consecutive characters",
		"email_typo":   "Please check your email domain (common typo detected)",
	},
	"password": {"required": "Password is required"},
	"confirmPassword": {
		"required": "Please confirm your password",
		"eqfield":  "Passwords don't match",
	},
	"firstName": {"required": "First name is required"},
	"lastName":  {"required": "Last name is required"},
	"phoneNumber": {
		"required": "Phone number is required",
		"phone":    "Phone number must be 10-15 digits (with optional + prefix)",
	},
	"dateOfBirth": {
		"dob_format": "Date must be in YYYY-MM-DD format",
		"dob_date":   "Invalid date",
		"not_future": "Date of birth cannot be in the future",
		"min_age":    "You must be at least 18 years old",
		"max_age":    "Age must be less than or equal to 130",
	},
	"ssn":     {"*": "SSN must be 9 digits"},
	"address": {"required": "Address is required"},
	"city":    {"required": "City is required"},
	"state": {
		"len":   "State must be 2 characters",
		"oneof": "Invalid state code",
	},
	"zipCode": {"*": "ZIP code must be 5 digits"},
}

type nowKey struct{}

var (
	signupValidateOnce sync.Once
	signupValidate     *validator.Validate
)

func signupValidator() *validator.Validate {
	signupValidateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})

		plain := map[string]validator.Func{
			"email_format": func(fl validator.FieldLevel) bool {
				return emailRe.MatchString(fl.Field().String())
			},
			"email_edges": func(fl validator.FieldLevel) bool {
				local, _, _ := strings.Cut(fl.Field().String(), "@")
				return !emailEdgeSpecialRe.MatchString(local)
			},
			"email_runs": func(fl validator.FieldLevel) bool {
				s := fl.Field().String()
				return !emailRunSpecialRe.MatchString(s) && !strings.Contains(s, "..")
			},
			"email_typo": func(fl validator.FieldLevel) bool {
				s := fl.Field().String()
				for _, typo := range emailTypoSuffixes {
					if strings.HasSuffix(s, typo) {
						return false
					}
				}
				return true
			},
			"phone": func(fl validator.FieldLevel) bool {
				return phoneRe.MatchString(fl.Field().String())
			},
			"dob_format": func(fl validator.FieldLevel) bool {
				return dateRe.MatchString(fl.Field().String())
			},
			"dob_date": func(fl validator.FieldLevel) bool {
				_, err := time.Parse(dateLayout, fl.Field().String())
				return err == nil
			},
		}
		for tag, fn := range plain {
			if err := v.RegisterValidation(tag, fn); err != nil {
				panic(fmt.Sprintf("identity: register %s validation: %v", tag, err))
			}
		}

		// Age rules read the reference time from the validation context.
		dated := map[string]func(dob, now time.Time) bool{
			"not_future": func(dob, now time.Time) bool { return !dob.After(now) },
			"min_age":    func(dob, now time.Time) bool { return !dob.After(now.AddDate(-minAge, 0, 0)) },
			"max_age":    func(dob, now time.Time) bool { return !dob.Before(now.AddDate(-maxAge, 0, 0)) },
		}
		for tag, rule := range dated {
			if err := v.RegisterValidationCtx(tag, func(ctx context.Context, fl validator.FieldLevel) bool {
				dob, err := time.Parse(dateLayout, fl.Field().String())
				if err != nil {
					return false
				}
				now, ok := ctx.Value(nowKey{}).(time.Time)
				if !ok {
					now = time.Now()
				}
				return rule(dob, now.UTC())
			}); err != nil {
				panic(fmt.Sprintf("identity: register %s validation: %v", tag, err))
			}
		}
		signupValidate = v
	})
	return signupValidate
}

// ValidateSignup checks every field and returns all failures as one ValidationError.
func ValidateSignup(in SignupInput, now time.Time, policy PasswordPolicy) (ValidSignup, error) {
	norm := SignupInput{
		Email:           NormalizeEmail(in.Email),
		Password:        in.Password,
		ConfirmPassword: in.ConfirmPassword,
		FirstName:       strings.TrimSpace(in.FirstName),
		LastName:        strings.TrimSpace(in.LastName),
		PhoneNumber:     NormalizePhone(in.PhoneNumber),
		DateOfBirth:     strings.TrimSpace(in.DateOfBirth),
		SSN:             strings.TrimSpace(in.SSN),
		Address:         strings.TrimSpace(in.Address),
		City:            strings.TrimSpace(in.City),
		State:           NormalizeState(in.State),
		ZipCode:         strings.TrimSpace(in.ZipCode),
	}

	ctx := context.WithValue(context.Background(), nowKey{}, now)
	var fields []FieldError
	if err := signupValidator().StructCtx(ctx, norm); err != nil {
		var fes validator.ValidationErrors
		if !errors.As(err, &fes) {
			return ValidSignup{}, fmt.Errorf("identity: validate signup: %w", err)
		}
		for _, fe := range fes {
			fields = append(fields, FieldError{Field: fe.Field(), Message: signupMessage(fe)})
		}
	}

	if policy != nil && norm.Password != "" {
		if err := policy.Validate(norm.Password); err != nil {
			fields = append(fields, FieldError{Field: "password", Message: err.Error()})
		}
	}

	if len(fields) > 0 {
		return ValidSignup{}, ValidationError{Op: "identity.ValidateSignup", Fields: fields}
	}

	// dob_date already accepted the value.
	dob, _ := time.Parse(dateLayout, norm.DateOfBirth)
	return ValidSignup{
		Email:       norm.Email,
		Password:    norm.Password,
		FirstName:   norm.FirstName,
		LastName:    norm.LastName,
		PhoneNumber: norm.PhoneNumber,
		DateOfBirth: dob,
		SSN:         norm.SSN,
		Address:     norm.Address,
		City:        norm.City,
		State:       norm.State,
		ZipCode:     norm.ZipCode,
	}, nil
}

func signupMessage(fe validator.FieldError) string {
	byTag := signupMessages[fe.Field()]
	if msg, ok := byTag[fe.Tag()]; ok {
		return msg
	}
	if msg, ok := byTag["*"]; ok {
		return msg
	}
	return fe.Field() + " is invalid"
}
