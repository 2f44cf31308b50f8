package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
)

type IdentityRepository struct {
	pool *pgxpool.Pool
}

func (r *IdentityRepository) Get(ctx context.Context, accountID string) (*models.Identity, error) {
	return r.getBy(ctx, "account_id", accountID)
}

func (r *IdentityRepository) GetByExternal(ctx context.Context, externalID string) (*models.Identity, error) {
	return r.getBy(ctx, "external_id", externalID)
}

func (r *IdentityRepository) getBy(ctx context.Context, column, value string) (*models.Identity, error) {
	query := fmt.Sprintf(`
		SELECT account_id, display_name, external_id, second_factor, linked_at, last_seen_at
		FROM identities WHERE %s = $1`, column)

	var identity models.Identity
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&identity.AccountID,
		&identity.DisplayName,
		&identity.ExternalID,
		&identity.SecondFactor,
		&identity.LinkedAt,
		&identity.LastSeenAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query identity: %w", err)
	}
	return &identity, nil
}

func (r *IdentityRepository) Save(ctx context.Context, identity *models.Identity) error {
	query := `
		INSERT INTO identities (account_id, display_name, external_id, second_factor, linked_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			external_id = EXCLUDED.external_id,
			second_factor = EXCLUDED.second_factor,
			linked_at = EXCLUDED.linked_at,
			last_seen_at = EXCLUDED.last_seen_at`

	_, err := r.pool.Exec(ctx, query,
		identity.AccountID,
		identity.DisplayName,
		identity.ExternalID,
		identity.SecondFactor,
		identity.LinkedAt,
		identity.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (r *IdentityRepository) Delete(ctx context.Context, accountID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) ListLinked(ctx context.Context) ([]*models.Identity, error) {
	query := `
		SELECT account_id, display_name, external_id, second_factor, linked_at, last_seen_at
		FROM identities WHERE external_id IS NOT NULL ORDER BY linked_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list linked identities: %w", err)
	}
	defer rows.Close()

	var identities []*models.Identity
	for rows.Next() {
		var identity models.Identity
		if err := rows.Scan(
			&identity.AccountID,
			&identity.DisplayName,
			&identity.ExternalID,
			&identity.SecondFactor,
			&identity.LinkedAt,
			&identity.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, &identity)
	}
	return identities, rows.Err()
}
