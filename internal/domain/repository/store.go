// Package repository defines the persistence contract the security core depends
// on. Any backend satisfying Store is acceptable; the core never sees concrete
// storage types.
package repository

import (
	"context"
	"time"

	"github.com/KynuxDev/DiscordLite/internal/domain/models"
)

// IdentityRepository persists game-account identity records.
type IdentityRepository interface {
	Get(ctx context.Context, accountID string) (*models.Identity, error)
	GetByExternal(ctx context.Context, externalID string) (*models.Identity, error)
	Save(ctx context.Context, identity *models.Identity) error
	Delete(ctx context.Context, accountID string) error
	ListLinked(ctx context.Context) ([]*models.Identity, error)
}

// PendingLinkRepository mirrors the in-memory pending-link set so operators can
// inspect it and so links survive ordinary restarts. The in-memory map remains
// authoritative for single-use resolution.
type PendingLinkRepository interface {
	Get(ctx context.Context, accountID string) (*models.PendingLink, error)
	GetByCode(ctx context.Context, code string) (*models.PendingLink, error)
	Save(ctx context.Context, link *models.PendingLink) error
	Delete(ctx context.Context, accountID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// BanRepository persists origin bans.
type BanRepository interface {
	Get(ctx context.Context, origin string) (*models.Ban, error)
	Save(ctx context.Context, ban *models.Ban) error
	Delete(ctx context.Context, origin string) error
	ListActive(ctx context.Context) ([]*models.Ban, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// EventRepository is the append-only security event log.
type EventRepository interface {
	Save(ctx context.Context, event *models.SecurityEvent) error
	List(ctx context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, error)
	Count(ctx context.Context, filter models.EventFilter) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SettingRepository is a small key-value table for administrative toggles.
type SettingRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Store aggregates the per-entity repositories behind one connection-owning
// backend (relational, document, or file).
type Store interface {
	Identities() IdentityRepository
	PendingLinks() PendingLinkRepository
	Bans() BanRepository
	Events() EventRepository
	Settings() SettingRepository

	Ping(ctx context.Context) error
	Close() error
}
