package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KynuxDev/DiscordLite/internal/domain/models"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

func (r *EventRepository) Save(ctx context.Context, event *models.SecurityEvent) error {
	query := `
		INSERT INTO security_events (id, kind, severity, account_id, account_name, origin, description, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		event.ID,
		string(event.Kind),
		event.Severity,
		nullable(event.AccountID),
		nullable(event.AccountName),
		nullable(event.Origin),
		event.Description,
		nullable(event.Details),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("save security event: %w", err)
	}
	return nil
}

func (r *EventRepository) List(ctx context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, error) {
	where, args := buildFilter(filter)
	query := fmt.Sprintf(`
		SELECT id, kind, severity, account_id, account_name, origin, description, details, created_at
		FROM security_events %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list security events: %w", err)
	}
	defer rows.Close()

	var events []*models.SecurityEvent
	for rows.Next() {
		var event models.SecurityEvent
		var kind string
		var accountID, accountName, origin, details *string
		if err := rows.Scan(&event.ID, &kind, &event.Severity,
			&accountID, &accountName, &origin, &event.Description, &details, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		event.Kind = models.EventKind(kind)
		event.AccountID = deref(accountID)
		event.AccountName = deref(accountName)
		event.Origin = deref(origin)
		event.Details = deref(details)
		events = append(events, &event)
	}
	return events, rows.Err()
}

func (r *EventRepository) Count(ctx context.Context, filter models.EventFilter) (int64, error) {
	where, args := buildFilter(filter)
	query := "SELECT COUNT(*) FROM security_events " + where

	var count int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count security events: %w", err)
	}
	return count, nil
}

func (r *EventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM security_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old security events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func buildFilter(filter models.EventFilter) (string, []any) {
	var clauses []string
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Kind != "" {
		add("kind = $%d", string(filter.Kind))
	}
	if filter.AccountID != "" {
		add("account_id = $%d", filter.AccountID)
	}
	if filter.Origin != "" {
		add("origin = $%d", filter.Origin)
	}
	if !filter.Since.IsZero() {
		add("created_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("created_at < $%d", filter.Until)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
