package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store never closes it.
// Schema identifiers are validated and quoted.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultSchema is the schema created by the bundled migrations.
const DefaultSchema = "securebank"

// WithSchema sets the Postgres schema (default DefaultSchema).
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const accountColumns = `
	id, email, password_hash,
	first_name, last_name, phone_number, date_of_birth,
	ssn_last4, ssn_hash,
	address, city, state, zip_code,
	created_at`

// FindByID loads an account by id.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*Account, error) {
	return s.findOne(ctx, "identity.FindByID", "id", id)
}

// FindByEmail loads an account by normalized email.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return s.findOne(ctx, "identity.FindByEmail", "email", NormalizeEmail(email))
}

// FindBySSNHash loads an account by SSN digest.
func (s *PostgresStore) FindBySSNHash(ctx context.Context, ssnHash string) (*Account, error) {
	return s.findOne(ctx, "identity.FindBySSNHash", "ssn_hash", ssnHash)
}

// column is always one of the fixed names above, never caller input.
func (s *PostgresStore) findOne(ctx context.Context, op, column, value string) (*Account, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	accounts := pgIdent(s.schema, "accounts")

	var a Account
	err := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+`
		   FROM `+accounts+`
		  WHERE `+pgx.Identifier{column}.Sanitize()+` = $1`,
		value,
	).Scan(
		&a.ID, &a.Email, &a.PasswordHash,
		&a.FirstName, &a.LastName, &a.PhoneNumber, &a.DateOfBirth,
		&a.SSNLast4, &a.SSNHash,
		&a.Address, &a.City, &a.State, &a.ZipCode,
		&a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &a, nil
}

// Create inserts a new account. Unique violations map to ConflictError.
func (s *PostgresStore) Create(ctx context.Context, in NewAccount) (Account, error) {
	const op = "identity.Create"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.SSNHash) == "" {
		return Account{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "email and ssn hash are required"}
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	in.Email = NormalizeEmail(in.Email)

	id, err := NewAccountID(in.Now)
	if err != nil {
		return Account{}, err
	}

	accounts := pgIdent(s.schema, "accounts")

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+accounts+` (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		id, in.Email, in.PasswordHash,
		in.FirstName, in.LastName, in.PhoneNumber, in.DateOfBirth,
		in.SSNLast4, in.SSNHash,
		in.Address, in.City, in.State, in.ZipCode,
		in.Now,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Account{}, ConflictError{Op: op, Field: field}
		}
		return Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return accountFromNew(id, in), nil
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return "", false
	}

	// Prefer the stable constraint names from the migrations; fall back to substring matching.
	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch c {
	case "uq_accounts_email":
		return FieldEmail, true
	case "uq_accounts_ssn_hash":
		return FieldSSN, true
	}
	switch {
	case strings.Contains(c, "email"):
		return FieldEmail, true
	case strings.Contains(c, "ssn"):
		return FieldSSN, true
	default:
		return "unique", true
	}
}
