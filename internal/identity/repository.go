package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no identity matches the lookup key.
	ErrNotFound = errors.New("identity not found")
	// ErrExists indicates the phone number is already registered.
	ErrExists = errors.New("identity already exists")
	// ErrNoPendingCode indicates there is no outstanding code matching the
	// one being consumed. A concurrent consumer may have won the race.
	ErrNoPendingCode = errors.New("no pending verification code")
)

// Store persists identities. SetPendingCode and ConsumePendingCode must be
// atomic per identity: ConsumePendingCode clears the pending fields and marks
// the identity verified only if the stored code still equals the submitted
// one, so two concurrent confirmations have exactly one winner.
type Store interface {
	Create(ctx context.Context, ident Identity) error
	FindByPhone(ctx context.Context, phone string) (Identity, error)
	FindByID(ctx context.Context, id string) (Identity, error)
	UpdateSecretHash(ctx context.Context, id string, hash []byte) error
	SetPendingCode(ctx context.Context, id, code string, expiresAt time.Time) error
	ConsumePendingCode(ctx context.Context, id, code string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed identity store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new identity.
func (s *PostgresStore) Create(ctx context.Context, ident Identity) error {
	id, err := uuid.Parse(ident.ID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO identities (id, phone, role, secret_hash, verified, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		id, ident.Phone, string(ident.Role), ident.SecretHash, ident.Verified, ident.CreatedAt.UTC())
	return err
}

// FindByPhone fetches an identity by phone number.
func (s *PostgresStore) FindByPhone(ctx context.Context, phone string) (Identity, error) {
	row := s.db.QueryRow(ctx, `SELECT id, phone, role, secret_hash, verified,
        pending_code, pending_code_expires_at, last_login_at, created_at
        FROM identities WHERE phone = $1`, phone)
	return scanIdentity(row)
}

// FindByID fetches an identity by id.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (Identity, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return Identity{}, ErrNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT id, phone, role, secret_hash, verified,
        pending_code, pending_code_expires_at, last_login_at, created_at
        FROM identities WHERE id = $1`, uid)
	return scanIdentity(row)
}

// UpdateSecretHash replaces the stored credential hash.
func (s *PostgresStore) UpdateSecretHash(ctx context.Context, id string, hash []byte) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := s.db.Exec(ctx, `UPDATE identities SET secret_hash = $1 WHERE id = $2`, hash, uid)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPendingCode stores a verification code and its expiry in one statement.
func (s *PostgresStore) SetPendingCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := s.db.Exec(ctx, `UPDATE identities
        SET pending_code = $1, pending_code_expires_at = $2 WHERE id = $3`,
		code, expiresAt.UTC(), uid)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumePendingCode clears the pending fields and marks the identity
// verified, guarded on the stored code still matching. The WHERE clause is
// the compare-and-swap that enforces single-use codes.
func (s *PostgresStore) ConsumePendingCode(ctx context.Context, id, code string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := s.db.Exec(ctx, `UPDATE identities
        SET pending_code = NULL, pending_code_expires_at = NULL, verified = TRUE
        WHERE id = $1 AND pending_code = $2`, uid, code)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		if _, err := s.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrNoPendingCode
	}
	return nil
}

// UpdateLastLogin records a successful login time.
func (s *PostgresStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := s.db.Exec(ctx, `UPDATE identities SET last_login_at = $1 WHERE id = $2`, at.UTC(), uid)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (Identity, error) {
	var (
		id          uuid.UUID
		roleStr     string
		pendingCode *string
		pendingExp  *time.Time
		lastLogin   *time.Time
		ident       Identity
	)
	err := row.Scan(&id, &ident.Phone, &roleStr, &ident.SecretHash, &ident.Verified,
		&pendingCode, &pendingExp, &lastLogin, &ident.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Identity{}, ErrNotFound
	}
	if err != nil {
		return Identity{}, err
	}
	ident.ID = id.String()
	role, err := ParseRole(roleStr)
	if err != nil {
		return Identity{}, err
	}
	ident.Role = role
	if pendingCode != nil {
		ident.PendingCode = *pendingCode
	}
	if pendingExp != nil {
		ident.PendingCodeExpiresAt = pendingExp.UTC()
	}
	if lastLogin != nil {
		ident.LastLoginAt = lastLogin.UTC()
	}
	ident.CreatedAt = ident.CreatedAt.UTC()
	return ident, nil
}
