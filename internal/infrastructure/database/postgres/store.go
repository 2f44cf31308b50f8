// Package postgres is the relational store backend built on pgx. Schema is
// managed with embedded golang-migrate migrations.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/config"
	"github.com/KynuxDev/DiscordLite/internal/domain/repository"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const connectTimeout = 10 * time.Second

// Store owns the connection pool and hands out per-entity repositories.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	identities *IdentityRepository
	links      *PendingLinkRepository
	bans       *BanRepository
	events     *EventRepository
	settings   *SettingRepository
}

var _ repository.Store = (*Store)(nil)

// NewStore connects, optionally migrates, and verifies the pool with a ping.
func NewStore(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if cfg.AutoMigrate {
		if err := runMigrations(dsn, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	s := &Store{pool: pool, logger: logger}
	s.identities = &IdentityRepository{pool: pool}
	s.links = &PendingLinkRepository{pool: pool}
	s.bans = &BanRepository{pool: pool}
	s.events = &EventRepository{pool: pool}
	s.settings = &SettingRepository{pool: pool}

	logger.Info("postgres store ready",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.DBName))
	return s, nil
}

func runMigrations(dsn string, logger *zap.Logger) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("database migrations applied")
	return nil
}

func (s *Store) Identities() repository.IdentityRepository      { return s.identities }
func (s *Store) PendingLinks() repository.PendingLinkRepository { return s.links }
func (s *Store) Bans() repository.BanRepository                 { return s.bans }
func (s *Store) Events() repository.EventRepository             { return s.events }
func (s *Store) Settings() repository.SettingRepository         { return s.settings }

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
