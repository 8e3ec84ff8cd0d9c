package password

import (
	"errors"
	"testing"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("Strong-Passw0rd!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "Strong-Passw0rd!")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("Strong-Passw0rd!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "Wrong-Passw0rd!")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := testConfig()

	for _, in := range []string{
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5",
	} {
		ok, err := cfg.Verify(in, "whatever")
		if !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("Verify(%q): expected ErrInvalidHash, got %v", in, err)
		}
		if ok {
			t.Fatalf("Verify(%q): expected false", in)
		}
	}
}

func TestVerify_RejectsOutOfBoundsParams(t *testing.T) {
	strong := testConfig()
	strong.Params.MemoryKiB = 64 * 1024

	h, err := strong.Hash("Strong-Passw0rd!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	weak := testConfig()
	if _, err := weak.Verify(h, "Strong-Passw0rd!"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash for oversized params, got %v", err)
	}
}

func TestValidate_Policy(t *testing.T) {
	cfg := testConfig()

	cases := []struct {
		in   string
		want error
	}{
		{in: "Sh0rt!", want: ErrPasswordTooShort},
		{in: "alllowercase1!", want: ErrMissingUpper},
		{in: "ALLUPPERCASE1!", want: ErrMissingLower},
		{in: "NoDigitsHere!", want: ErrMissingDigit},
		{in: "NoSpecial123", want: ErrMissingSpecial},
		{in: "Password1!", want: ErrWeakPassword},
		{in: "Good-Passw0rd", want: nil},
	}

	for _, tc := range cases {
		if err := cfg.Validate(tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("Validate(%q)=%v want=%v", tc.in, err, tc.want)
		}
	}
}

func TestValidate_MaxLength(t *testing.T) {
	cfg := testConfig()
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("This-Password-1s-Too-Long"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestNeedsRehash(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("Strong-Passw0rd!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if cfg.NeedsRehash(h) {
		t.Fatalf("fresh hash should not need rehash")
	}

	next := cfg
	next.Params.Iterations = 2
	if !next.NeedsRehash(h) {
		t.Fatalf("changed iterations should need rehash")
	}
	if !cfg.NeedsRehash("garbage") {
		t.Fatalf("malformed hash should need rehash")
	}
}

func TestDummyHash_VerifiesWithoutError(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.DummyHash()
	if err != nil {
		t.Fatalf("DummyHash error: %v", err)
	}
	ok, err := cfg.Verify(h, "Strong-Passw0rd!")
	if err != nil || ok {
		t.Fatalf("dummy verify: ok=%v err=%v", ok, err)
	}
}
