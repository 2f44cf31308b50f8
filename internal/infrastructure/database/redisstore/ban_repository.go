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

// BanRepository stores bans with a Redis TTL for temporary ones; permanent
// bans persist without expiry.
type BanRepository struct {
	client *redis.Client
}

func (r *BanRepository) Get(ctx context.Context, origin string) (*models.Ban, error) {
	data, err := r.client.Get(ctx, keyBan+origin).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domainErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ban: %w", err)
	}

	var ban models.Ban
	if err := json.Unmarshal(data, &ban); err != nil {
		return nil, fmt.Errorf("decode ban: %w", err)
	}
	return &ban, nil
}

func (r *BanRepository) Save(ctx context.Context, ban *models.Ban) error {
	data, err := json.Marshal(ban)
	if err != nil {
		return fmt.Errorf("encode ban: %w", err)
	}

	var ttl time.Duration
	if ban.ExpiresAt != nil {
		ttl = time.Until(*ban.ExpiresAt)
		if ttl <= 0 {
			return nil
		}
	}
	if err := r.client.Set(ctx, keyBan+ban.Origin, data, ttl).Err(); err != nil {
		return fmt.Errorf("save ban: %w", err)
	}
	return nil
}

func (r *BanRepository) Delete(ctx context.Context, origin string) error {
	n, err := r.client.Del(ctx, keyBan+origin).Result()
	if err != nil {
		return fmt.Errorf("delete ban: %w", err)
	}
	if n == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func (r *BanRepository) ListActive(ctx context.Context) ([]*models.Ban, error) {
	var bans []*models.Ban
	iter := r.client.Scan(ctx, 0, keyBan+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list bans: %w", err)
		}
		var ban models.Ban
		if err := json.Unmarshal(data, &ban); err != nil {
			return nil, fmt.Errorf("decode ban: %w", err)
		}
		if ban.IsActive() {
			bans = append(bans, &ban)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan bans: %w", err)
	}
	return bans, nil
}

// DeleteExpired is a no-op on this backend; Redis TTLs evict expired entries.
func (r *BanRepository) DeleteExpired(_ context.Context) (int64, error) {
	return 0, nil
}
