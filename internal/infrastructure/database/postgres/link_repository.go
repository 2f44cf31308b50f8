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

type PendingLinkRepository struct {
	pool *pgxpool.Pool
}

func (r *PendingLinkRepository) Get(ctx context.Context, accountID string) (*models.PendingLink, error) {
	return r.getBy(ctx, "account_id", accountID)
}

func (r *PendingLinkRepository) GetByCode(ctx context.Context, code string) (*models.PendingLink, error) {
	return r.getBy(ctx, "code", code)
}

func (r *PendingLinkRepository) getBy(ctx context.Context, column, value string) (*models.PendingLink, error) {
	query := fmt.Sprintf(`
		SELECT account_id, display_name, code, created_at, expires_at
		FROM pending_links WHERE %s = $1`, column)

	var link models.PendingLink
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&link.AccountID,
		&link.DisplayName,
		&link.Code,
		&link.CreatedAt,
		&link.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domainErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query pending link: %w", err)
	}
	return &link, nil
}

func (r *PendingLinkRepository) Save(ctx context.Context, link *models.PendingLink) error {
	query := `
		INSERT INTO pending_links (account_id, display_name, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			code = EXCLUDED.code,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`

	_, err := r.pool.Exec(ctx, query,
		link.AccountID, link.DisplayName, link.Code, link.CreatedAt, link.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save pending link: %w", err)
	}
	return nil
}

func (r *PendingLinkRepository) Delete(ctx context.Context, accountID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pending_links WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("delete pending link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *PendingLinkRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pending_links WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired pending links: %w", err)
	}
	return tag.RowsAffected(), nil
}
