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

type BanRepository struct {
	pool *pgxpool.Pool
}

func (r *BanRepository) Get(ctx context.Context, origin string) (*models.Ban, error) {
	query := `SELECT origin, reason, issuer, created_at, expires_at FROM bans WHERE origin = $1`

	var ban models.Ban
	err := r.pool.QueryRow(ctx, query, origin).Scan(
		&ban.Origin, &ban.Reason, &ban.Issuer, &ban.CreatedAt, &ban.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query ban: %w", err)
	}
	return &ban, nil
}

func (r *BanRepository) Save(ctx context.Context, ban *models.Ban) error {
	query := `
		INSERT INTO bans (origin, reason, issuer, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (origin) DO UPDATE SET
			reason = EXCLUDED.reason,
			issuer = EXCLUDED.issuer,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`

	_, err := r.pool.Exec(ctx, query,
		ban.Origin, ban.Reason, ban.Issuer, ban.CreatedAt, ban.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save ban: %w", err)
	}
	return nil
}

func (r *BanRepository) Delete(ctx context.Context, origin string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bans WHERE origin = $1`, origin)
	if err != nil {
		return fmt.Errorf("delete ban: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *BanRepository) ListActive(ctx context.Context) ([]*models.Ban, error) {
	query := `
		SELECT origin, reason, issuer, created_at, expires_at
		FROM bans WHERE expires_at IS NULL OR expires_at > NOW()
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active bans: %w", err)
	}
	defer rows.Close()

	var bans []*models.Ban
	for rows.Next() {
		var ban models.Ban
		if err := rows.Scan(&ban.Origin, &ban.Reason, &ban.Issuer, &ban.CreatedAt, &ban.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan ban: %w", err)
		}
		bans = append(bans, &ban)
	}
	return bans, rows.Err()
}

func (r *BanRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bans WHERE expires_at IS NOT NULL AND expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired bans: %w", err)
	}
	return tag.RowsAffected(), nil
}
