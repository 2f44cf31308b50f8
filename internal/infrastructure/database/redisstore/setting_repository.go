package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
)

type SettingRepository struct {
	client *redis.Client
}

func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, keySetting+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domainErrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, keySetting+key, value, 0).Err(); err != nil {
		return fmt.Errorf("save setting: %w", err)
	}
	return nil
}
