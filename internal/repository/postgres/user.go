package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harukio/corpchat/internal/models"
)

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, uuid, account_name, email, password_hash, is_active,
	refresh_token, refresh_expires_at, deleted_at, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var refreshToken *string
	err := row.Scan(
		&u.ID,
		&u.UUID,
		&u.AccountName,
		&u.Email,
		&u.PasswordHash,
		&u.IsActive,
		&refreshToken,
		&u.RefreshExpiresAt,
		&u.DeletedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if refreshToken != nil {
		u.RefreshToken = *refreshToken
	}
	return &u, nil
}

func (s *UserStore) Create(ctx context.Context, accountName, email, passwordHash, refreshToken string, refreshExpiresAt time.Time) (*models.User, error) {
	query := `
		INSERT INTO users (uuid, account_name, email, password_hash, is_active,
			refresh_token, refresh_expires_at, created_at, updated_at)
		VALUES (uuid_generate_v4(), $1, $2, $3, true, $4, $5, now(), now())
		RETURNING ` + userColumns

	u, err := scanUser(s.pool.QueryRow(ctx, query, accountName, email, passwordHash, refreshToken, refreshExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	return s.getBy(ctx, "id = $1", userID)
}

func (s *UserStore) GetByUUID(ctx context.Context, userUUID uuid.UUID) (*models.User, error) {
	return s.getBy(ctx, "uuid = $1", userUUID)
}

// GetByEmail looks up a user for sign-in. Email is globally unique.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getBy(ctx, "email = $1", email)
}

func (s *UserStore) GetByRefreshToken(ctx context.Context, refreshToken string) (*models.User, error) {
	return s.getBy(ctx, "refresh_token = $1 AND refresh_expires_at > now()", refreshToken)
}

func (s *UserStore) getBy(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL AND ` + where

	u, err := scanUser(s.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// RotateRefreshToken replaces the stored refresh token. The old token
// becomes unusable the moment this commits — one live refresh token
// per user.
func (s *UserStore) RotateRefreshToken(ctx context.Context, userID int64, refreshToken string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET refresh_token = $2, refresh_expires_at = $3, is_active = true, updated_at = now()
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, userID, refreshToken, expiresAt); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	return nil
}

func (s *UserStore) SignOut(ctx context.Context, userID int64) error {
	query := `
		UPDATE users
		SET refresh_token = NULL, refresh_expires_at = NULL, is_active = false, updated_at = now()
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("sign out user: %w", err)
	}
	return nil
}
