package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
)

// PendingLinkRepository stores pending links with a Redis TTL matching the
// code's expiry, so DeleteExpired has little left to do on this backend.
type PendingLinkRepository struct {
	client *redis.Client
}

func (r *PendingLinkRepository) Get(ctx context.Context, accountID string) (*models.PendingLink, error) {
	data, err := r.client.Get(ctx, keyPendingLink+accountID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domainErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending link: %w", err)
	}

	var link models.PendingLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("decode pending link: %w", err)
	}
	return &link, nil
}

func (r *PendingLinkRepository) GetByCode(ctx context.Context, code string) (*models.PendingLink, error) {
	accountID, err := r.client.Get(ctx, keyLinkCode+code).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domainErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pending link by code: %w", err)
	}
	return r.Get(ctx, accountID)
}

func (r *PendingLinkRepository) Save(ctx context.Context, link *models.PendingLink) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("encode pending link: %w", err)
	}
	ttl := time.Until(link.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, keyPendingLink+link.AccountID, data, ttl)
	pipe.Set(ctx, keyLinkCode+link.Code, link.AccountID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save pending link: %w", err)
	}
	return nil
}

func (r *PendingLinkRepository) Delete(ctx context.Context, accountID string) error {
	link, err := r.Get(ctx, accountID)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, keyPendingLink+accountID)
	pipe.Del(ctx, keyLinkCode+link.Code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete pending link: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op on this backend; Redis TTLs evict expired entries.
func (r *PendingLinkRepository) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}
