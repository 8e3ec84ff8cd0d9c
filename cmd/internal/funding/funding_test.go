package funding

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Card(t *testing.T) {
	t.Parallel()

	f, err := Validate(Request{Amount: "50.00", FundingType: "card", AccountNumber: "4242 4242-4242 4242"})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), f.AmountCents)
	assert.Equal(t, TypeCard, f.Type)
	assert.Equal(t, "4242424242424242", f.AccountNumber)
	assert.Equal(t, "4242", f.AccountLast4)
	assert.Empty(t, f.RoutingNumber)
}

func TestValidate_Bank(t *testing.T) {
	t.Parallel()

	f, err := Validate(Request{Amount: "10000", FundingType: "bank", AccountNumber: "000123456789", RoutingNumber: "021000021"})
	require.NoError(t, err)
	assert.Equal(t, MaxAmountCents, f.AmountCents)
	assert.Equal(t, "021000021", f.RoutingNumber)
	assert.Equal(t, "6789", f.AccountLast4)
}

func TestValidate_Amount(t *testing.T) {
	t.Parallel()

	ok := map[string]int64{
		"0.01":  1,
		"0.5":   50,
		"5.":    500,
		"1":     100,
		"99.99": 9999,
	}
	for in, want := range ok {
		f, err := Validate(Request{Amount: in, FundingType: "card", AccountNumber: "4242424242424242"})
		require.NoError(t, err, in)
		assert.Equal(t, want, f.AmountCents, in)
	}

	bad := map[string]string{
		"":         "Invalid amount format",
		"abc":      "Invalid amount format",
		"1.234":    "Invalid amount format",
		"-5":       "Invalid amount format",
		"050.00":   "Amount cannot start with a leading zero (e.g., enter 50.00 not 050.00)",
		"00":       "Amount cannot start with a leading zero (e.g., enter 50.00 not 050.00)",
		"0":        "Amount must be at least $0.01",
		"0.00":     "Amount must be at least $0.01",
		"10000.01": "Amount cannot exceed $10,000",
		"99999999999999999999": "Amount cannot exceed $10,000",
	}
	for in, want := range bad {
		_, err := Validate(Request{Amount: in, FundingType: "card", AccountNumber: "4242424242424242"})
		msg := fieldMessage(t, err, "amount")
		assert.Equal(t, want, msg, in)
	}
}

func TestValidate_AccountNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		req  Request
		want string
	}{
		{"missing", Request{Amount: "1", FundingType: "card"}, "Account number is required"},
		{"card too short", Request{Amount: "1", FundingType: "card", AccountNumber: "4242"}, "Card number must be 13-19 digits"},
		{"card letters", Request{Amount: "1", FundingType: "card", AccountNumber: "4242-4242-4242-4242a"}, "Card number must be 13-19 digits"},
		{"card luhn", Request{Amount: "1", FundingType: "card", AccountNumber: "4242424242424241"}, "Invalid card number"},
		{"bank letters", Request{Amount: "1", FundingType: "bank", AccountNumber: "12ab", RoutingNumber: "021000021"}, "Invalid account number"},
		{"bank spaces", Request{Amount: "1", FundingType: "bank", AccountNumber: "123 456", RoutingNumber: "021000021"}, "Invalid account number"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Validate(tc.req)
			assert.Equal(t, tc.want, fieldMessage(t, err, "accountNumber"))
		})
	}
}

func TestValidate_RoutingNumber(t *testing.T) {
	t.Parallel()

	_, err := Validate(Request{Amount: "1", FundingType: "bank", AccountNumber: "123"})
	assert.Equal(t, "Routing number is required", fieldMessage(t, err, "routingNumber"))

	_, err = Validate(Request{Amount: "1", FundingType: "bank", AccountNumber: "123", RoutingNumber: "   "})
	assert.Equal(t, "Routing number is required", fieldMessage(t, err, "routingNumber"))

	_, err = Validate(Request{Amount: "1", FundingType: "bank", AccountNumber: "123", RoutingNumber: "12345678"})
	assert.Equal(t, "Routing number must be 9 digits", fieldMessage(t, err, "routingNumber"))

	// Routing numbers are ignored for cards.
	_, err = Validate(Request{Amount: "1", FundingType: "card", AccountNumber: "4242424242424242", RoutingNumber: "x"})
	assert.NoError(t, err)
}

func TestValidate_AggregatesFields(t *testing.T) {
	t.Parallel()

	_, err := Validate(Request{Amount: "0", FundingType: "wire"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	fields := make(map[string]string)
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, map[string]string{
		"amount":        "Amount must be at least $0.01",
		"fundingType":   "Funding type must be card or bank",
		"accountNumber": "Account number is required",
	}, fields)
	assert.Contains(t, err.Error(), "fundingType")
}

func fieldMessage(t *testing.T, err error, field string) string {
	t.Helper()

	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	msg, ok := verr.Message(field)
	require.True(t, ok, "no error recorded for %s: %v", field, err)
	return msg
}
