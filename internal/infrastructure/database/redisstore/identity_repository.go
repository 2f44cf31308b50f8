package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
)

type IdentityRepository struct {
	client *redis.Client
}

func (r *IdentityRepository) Get(ctx context.Context, accountID string) (*models.Identity, error) {
	data, err := r.client.Get(ctx, keyIdentity+accountID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domainErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	var identity models.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	return &identity, nil
}

func (r *IdentityRepository) GetByExternal(ctx context.Context, externalID string) (*models.Identity, error) {
	accountID, err := r.client.Get(ctx, keyIdentityExt+externalID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domainErrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity by external id: %w", err)
	}
	return r.Get(ctx, accountID)
}

func (r *IdentityRepository) Save(ctx context.Context, identity *models.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	// Drop a stale external index when the external id changed or was cleared.
	prev, err := r.Get(ctx, identity.AccountID)
	if err != nil && !errors.Is(err, domainErrors.ErrNotFound) {
		return err
	}

	pipe := r.client.TxPipeline()
	if prev != nil && prev.IsLinked() {
		if !identity.IsLinked() || *prev.ExternalID != *identity.ExternalID {
			pipe.Del(ctx, keyIdentityExt+*prev.ExternalID)
		}
	}
	pipe.Set(ctx, keyIdentity+identity.AccountID, data, 0)
	if identity.IsLinked() {
		pipe.Set(ctx, keyIdentityExt+*identity.ExternalID, identity.AccountID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (r *IdentityRepository) Delete(ctx context.Context, accountID string) error {
	identity, err := r.Get(ctx, accountID)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, keyIdentity+accountID)
	if identity.IsLinked() {
		pipe.Del(ctx, keyIdentityExt+*identity.ExternalID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

func (r *IdentityRepository) ListLinked(ctx context.Context) ([]*models.Identity, error) {
	var identities []*models.Identity
	iter := r.client.Scan(ctx, 0, keyIdentity+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list identities: %w", err)
		}
		var identity models.Identity
		if err := json.Unmarshal(data, &identity); err != nil {
			return nil, fmt.Errorf("decode identity: %w", err)
		}
		if identity.IsLinked() {
			identities = append(identities, &identity)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan identities: %w", err)
	}
	return identities, nil
}
