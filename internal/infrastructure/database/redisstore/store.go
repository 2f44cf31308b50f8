// Package redisstore is the document store backend built on go-redis. Entities
// are JSON documents under typed key prefixes; secondary lookups go through
// small index keys, and temporal expiry leans on Redis TTLs where possible.
package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/KynuxDev/DiscordLite/internal/config"
	"github.com/KynuxDev/DiscordLite/internal/domain/repository"
)

const (
	keyIdentity     = "identity:"
	keyIdentityExt  = "identity_ext:"
	keyPendingLink  = "link:"
	keyLinkCode     = "link_code:"
	keyBan          = "ban:"
	keyEvent        = "event:"
	keyEventsByTime = "events_by_time"
	keySetting      = "setting:"
)

const connectTimeout = 10 * time.Second

type Store struct {
	client *redis.Client
	logger *zap.Logger

	identities *IdentityRepository
	links      *PendingLinkRepository
	bans       *BanRepository
	events     *EventRepository
	settings   *SettingRepository
}

var _ repository.Store = (*Store)(nil)

func NewStore(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	s := &Store{client: client, logger: logger}
	s.identities = &IdentityRepository{client: client}
	s.links = &PendingLinkRepository{client: client}
	s.bans = &BanRepository{client: client}
	s.events = &EventRepository{client: client}
	s.settings = &SettingRepository{client: client}

	logger.Info("redis store ready", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return s, nil
}

func (s *Store) Identities() repository.IdentityRepository      { return s.identities }
func (s *Store) PendingLinks() repository.PendingLinkRepository { return s.links }
func (s *Store) Bans() repository.BanRepository                 { return s.bans }
func (s *Store) Events() repository.EventRepository             { return s.events }
func (s *Store) Settings() repository.SettingRepository         { return s.settings }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
