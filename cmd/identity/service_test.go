package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"securebank/cmd/security/digest"
	"securebank/cmd/security/password"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()

	pw := password.DefaultConfig()
	pw.Params.MemoryKiB = 8 * 1024
	pw.Params.Iterations = 1
	pw.Params.Parallelism = 1

	ssn, err := digest.New(strings.Repeat("k", 32), 32)
	require.NoError(t, err)

	dummy, err := pw.DummyHash()
	require.NoError(t, err)

	store := NewMemoryStore()
	svc, err := NewService(store, pw, ssn, dummy)
	require.NoError(t, err)
	return svc, store
}

func TestService_Register_StoresDigestNotSSN(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	ctx := context.Background()

	a, err := svc.Register(ctx, validateNow, validSignupInput())
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "6789", a.SSNLast4)
	assert.Len(t, a.SSNHash, 64)
	assert.NotContains(t, a.SSNHash, "123456789")
	assert.True(t, strings.HasPrefix(a.PasswordHash, "$argon2id$"))

	got, err := store.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "jane.doe@example.com", got.Email)
}

func TestService_Register_Conflicts(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, validateNow, validSignupInput())
	require.NoError(t, err)

	sameEmail := validSignupInput()
	sameEmail.SSN = "987654321"
	_, err = svc.Register(ctx, validateNow, sameEmail)
	field, ok := ConflictField(err)
	require.True(t, ok, "expected conflict, got %v", err)
	assert.Equal(t, FieldEmail, field)

	sameSSN := validSignupInput()
	sameSSN.Email = "other@example.com"
	_, err = svc.Register(ctx, validateNow, sameSSN)
	field, ok = ConflictField(err)
	require.True(t, ok, "expected conflict, got %v", err)
	assert.Equal(t, FieldSSN, field)
	assert.NotContains(t, err.Error(), "123456789")
}

func TestService_Register_InvalidInput(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	in := validSignupInput()
	in.Password = "weak"
	in.ConfirmPassword = "weak"

	_, err := svc.Register(context.Background(), validateNow, in)
	assert.True(t, IsInvalidInput(err))
}

func TestService_VerifyCredential(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Register(ctx, validateNow, validSignupInput())
	require.NoError(t, err)

	id, err := svc.VerifyCredential(ctx, "JANE.DOE@example.com", "Str0ng-Secret")
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	_, errWrong := svc.VerifyCredential(ctx, "jane.doe@example.com", "Wr0ng-Secret")
	_, errUnknown := svc.VerifyCredential(ctx, "nobody@example.com", "Str0ng-Secret")
	_, errEmpty := svc.VerifyCredential(ctx, "", "")

	for _, err := range []error{errWrong, errUnknown, errEmpty} {
		assert.True(t, errors.Is(err, ErrUnauthenticated), "got %v", err)
	}
	assert.Equal(t, errWrong, errUnknown)
}

func TestMemoryStore_CreateConflictsAndMisses(t *testing.T) {
	t.Parallel()

	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	a, err := st.Create(ctx, NewAccount{Email: "A@Example.com", SSNHash: "h1", Now: now})
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", a.Email)

	_, err = st.Create(ctx, NewAccount{Email: "a@example.com", SSNHash: "h2", Now: now})
	assert.True(t, IsConflict(err))

	_, err = st.Create(ctx, NewAccount{Email: "b@example.com", SSNHash: "h1", Now: now})
	field, _ := ConflictField(err)
	assert.Equal(t, FieldSSN, field)

	_, err = st.Create(ctx, NewAccount{Email: "", SSNHash: "h3", Now: now})
	assert.True(t, IsInvalidInput(err))

	miss, err := st.FindByEmail(ctx, "missing@example.com")
	require.NoError(t, err)
	assert.Nil(t, miss)

	miss, err = st.FindBySSNHash(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, miss)
}
