package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// AccountRow mirrors one accounts record. Salt and Verifier are the SRP
// credential pair; the server never stores a password-equivalent.
type AccountRow struct {
	ID         uint64
	Email      string
	Salt       []byte
	Verifier   []byte
	Banned     bool
	CreatedAt  time.Time
	LastLogin  *time.Time
	SessionKey []byte // issued by the realm server, consumed by world hello
}

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Load fetches an account by email, nil if absent.
func (r *AccountRepo) Load(ctx context.Context, email string) (*AccountRow, error) {
	row := &AccountRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, email, salt, verifier, banned, created_at, last_login, session_key
		 FROM accounts WHERE lower(email) = lower($1)`, email,
	).Scan(
		&row.ID, &row.Email, &row.Salt, &row.Verifier,
		&row.Banned, &row.CreatedAt, &row.LastLogin, &row.SessionKey,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// Create inserts an account with its SRP credential pair.
func (r *AccountRepo) Create(ctx context.Context, email string, salt, verifier []byte) (*AccountRow, error) {
	row := &AccountRow{Email: email, Salt: salt, Verifier: verifier}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO accounts (email, salt, verifier)
		 VALUES ($1, $2, $3) RETURNING id, created_at`,
		email, salt, verifier,
	).Scan(&row.ID, &row.CreatedAt)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// StoreSessionKey persists the realm-issued session key so the world
// server can validate the hello without a round-trip to the realm.
func (r *AccountRepo) StoreSessionKey(ctx context.Context, accountID uint64, key []byte) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE accounts SET session_key = $2, last_login = NOW() WHERE id = $1`,
		accountID, key,
	)
	return err
}

// LoadSessionKey fetches the stored session key, nil if the account has
// never logged in.
func (r *AccountRepo) LoadSessionKey(ctx context.Context, accountID uint64) ([]byte, error) {
	var key []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT session_key FROM accounts WHERE id = $1`, accountID,
	).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// RecordLogin appends one row to the login audit trail.
func (r *AccountRepo) RecordLogin(ctx context.Context, accountID uint64, ip string, success bool) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO account_logins (account_id, ip, success) VALUES ($1, $2, $3)`,
		accountID, ip, success,
	)
	return err
}
