package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"securebank/cmd/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Integration tests are opt-in and require DATABASE_URL.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_CreateAndFind(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()
	s := mustNewStore(t, pool)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	in := testNewAccount(t)
	in.Email = "  " + strings.ToUpper(in.Email) + " "
	created, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { deleteAccount(t, pool, created.ID) })

	if created.Email != NormalizeEmail(in.Email) {
		t.Fatalf("email not normalized: %q", created.Email)
	}

	byID, err := s.FindByID(ctx, created.ID)
	if err != nil || byID == nil {
		t.Fatalf("FindByID: acct=%v err=%v", byID, err)
	}
	if byID.SSNLast4 != in.SSNLast4 || byID.State != in.State {
		t.Fatalf("round trip mismatch: %+v", byID)
	}
	if !byID.DateOfBirth.Equal(in.DateOfBirth) {
		t.Fatalf("date of birth mismatch: %v != %v", byID.DateOfBirth, in.DateOfBirth)
	}

	byEmail, err := s.FindByEmail(ctx, strings.ToUpper(created.Email))
	if err != nil || byEmail == nil || byEmail.ID != created.ID {
		t.Fatalf("FindByEmail: acct=%v err=%v", byEmail, err)
	}

	bySSN, err := s.FindBySSNHash(ctx, in.SSNHash)
	if err != nil || bySSN == nil || bySSN.ID != created.ID {
		t.Fatalf("FindBySSNHash: acct=%v err=%v", bySSN, err)
	}

	missing, err := s.FindByID(ctx, "does-not-exist")
	if err != nil || missing != nil {
		t.Fatalf("FindByID(missing): acct=%v err=%v", missing, err)
	}
}

func TestPostgresStore_CreateConflicts(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()
	s := mustNewStore(t, pool)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	first := testNewAccount(t)
	created, err := s.Create(ctx, first)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	t.Cleanup(func() { deleteAccount(t, pool, created.ID) })

	sameEmail := testNewAccount(t)
	sameEmail.Email = first.Email
	_, err = s.Create(ctx, sameEmail)
	if field, ok := ConflictField(err); !ok || field != FieldEmail {
		t.Fatalf("expected email conflict, got %v", err)
	}

	sameSSN := testNewAccount(t)
	sameSSN.SSNHash = first.SSNHash
	_, err = s.Create(ctx, sameSSN)
	if field, ok := ConflictField(err); !ok || field != FieldSSN {
		t.Fatalf("expected ssn conflict, got %v", err)
	}
}

func testNewAccount(t *testing.T) NewAccount {
	t.Helper()

	tag := fmt.Sprintf("%d", time.Now().UnixNano())
	return NewAccount{
		Email:        "it-" + tag + "@example.com",
		PasswordHash: "$argon2id$placeholder",
		FirstName:    "Integration",
		LastName:     "Test",
		PhoneNumber:  "5555550100",
		DateOfBirth:  time.Date(1985, 3, 14, 0, 0, 0, 0, time.UTC),
		SSNLast4:     "6789",
		SSNHash:      strings.Repeat("a", 64-len(tag)) + tag,
		Address:      "1 Main St",
		City:         "Springfield",
		State:        "IL",
		ZipCode:      "62701",
		Now:          time.Now().UTC(),
	}
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is not set; skipping Postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (DATABASE_URL set): %v", err)
		}
		t.Fatalf("pool.Ping: %v", err)
	}

	if err := db.Migrate(dsn, db.Up); err != nil {
		pool.Close()
		t.Fatalf("migrate up: %v", err)
	}
	return pool
}

func mustNewStore(t *testing.T, pool *pgxpool.Pool) *PostgresStore {
	t.Helper()

	s, err := NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	return s
}

func deleteAccount(t *testing.T, pool *pgxpool.Pool, id string) {
	t.Helper()
	_, _ = pool.Exec(context.Background(), `DELETE FROM securebank.accounts WHERE id = $1`, id)
}

func shouldSkipIntegration(err error) bool {
	if err == nil || os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
