package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harukio/corpchat/internal/models"
)

type CorporationStore struct {
	pool *pgxpool.Pool
}

func NewCorporationStore(pool *pgxpool.Pool) *CorporationStore {
	return &CorporationStore{pool: pool}
}

// GetByUUID resolves a tenant by its public UUID. Soft-deleted
// corporations are treated as absent — the widget must stop working
// the moment a tenant is retired.
func (s *CorporationStore) GetByUUID(ctx context.Context, corpUUID uuid.UUID) (*models.Corporation, error) {
	query := `
		SELECT id, uuid, name, deleted_at, created_at, updated_at
		FROM corporations
		WHERE uuid = $1 AND deleted_at IS NULL`

	var c models.Corporation
	err := s.pool.QueryRow(ctx, query, corpUUID).Scan(
		&c.ID,
		&c.UUID,
		&c.Name,
		&c.DeletedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get corporation: %w", err)
	}
	return &c, nil
}
