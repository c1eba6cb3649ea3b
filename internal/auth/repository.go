package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrAccountNotFound = errors.New("account not found")

const accountColumns = `id, email, name, role, password_hash, is_active, last_login_at,
	refresh_token, refresh_token_expires_at, created_at, updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		account       Account
		role          string
		lastLogin     sql.NullTime
		refreshHash   sql.NullString
		refreshExpiry sql.NullTime
	)
	err := row.Scan(
		&account.ID, &account.Email, &account.Name, &role, &account.PasswordHash, &account.IsActive,
		&lastLogin, &refreshHash, &refreshExpiry, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}

	account.Role = Role(role)
	if lastLogin.Valid {
		value := lastLogin.Time.UTC()
		account.LastLoginAt = &value
	}
	if refreshHash.Valid {
		value := refreshHash.String
		account.RefreshTokenHash = &value
	}
	if refreshExpiry.Valid {
		value := refreshExpiry.Time.UTC()
		account.RefreshTokenExpiresAt = &value
	}

	return account, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (Account, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM admin_users
		WHERE email = $1
	`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("query account by email: %w", err)
	}

	return account, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Account{}, ErrAccountNotFound
	}

	account, err := scanAccount(r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM admin_users
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("query account by id: %w", err)
	}

	return account, nil
}

func (r *Repository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE admin_users
		SET last_login_at = $2, updated_at = $2
		WHERE id = $1
	`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}

	return nil
}

// SaveRefreshToken overwrites the stored session. Passing nil for both clears
// it, which revokes any outstanding refresh token.
func (r *Repository) SaveRefreshToken(ctx context.Context, id string, tokenHash *string, expiresAt *time.Time) error {
	var expiry any
	if expiresAt != nil {
		expiry = expiresAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE admin_users
		SET refresh_token = $2, refresh_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, tokenHash, expiry)
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}

	return nil
}

// ClearExpiredRefreshTokens nulls sessions whose stored expiry has passed.
func (r *Repository) ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE admin_users
		SET refresh_token = NULL, refresh_token_expires_at = NULL, updated_at = $1
		WHERE refresh_token_expires_at IS NOT NULL AND refresh_token_expires_at < $1
	`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("clear expired refresh tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired refresh tokens rows affected: %w", err)
	}

	return affected, nil
}

// EnsureAdmin creates the admin account for email or, if it already exists,
// resets its password, role and active flag.
func (r *Repository) EnsureAdmin(ctx context.Context, email, name, passwordHash string) (Account, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Account{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	account, err := scanAccount(r.db.QueryRowContext(ctx, `
		INSERT INTO admin_users (id, email, name, role, password_hash, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, 'admin', $4, TRUE, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			role = 'admin',
			password_hash = EXCLUDED.password_hash,
			is_active = TRUE,
			updated_at = NOW()
		RETURNING `+accountColumns, id.String(), email, name, passwordHash))
	if err != nil {
		return Account{}, fmt.Errorf("upsert admin account: %w", err)
	}

	return account, nil
}
