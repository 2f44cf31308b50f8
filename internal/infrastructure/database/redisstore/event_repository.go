package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/KynuxDev/DiscordLite/internal/domain/models"
)

// EventRepository keeps each event as a JSON document plus a time-scored
// sorted set for ordered listing and retention pruning. Field filters are
// applied after the time-ordered fetch; the event volume a single game server
// produces keeps that affordable.
type EventRepository struct {
	client *redis.Client
}

func (r *EventRepository) Save(ctx context.Context, event *models.SecurityEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode security event: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, keyEvent+event.ID, data, 0)
	pipe.ZAdd(ctx, keyEventsByTime, redis.Z{
		Score:  float64(event.Timestamp.UnixMilli()),
		Member: event.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save security event: %w", err)
	}
	return nil
}

func (r *EventRepository) List(ctx context.Context, filter models.EventFilter, limit, offset int) ([]*models.SecurityEvent, error) {
	ids, err := r.idsByTime(ctx, filter)
	if err != nil {
		return nil, err
	}

	var events []*models.SecurityEvent
	skipped := 0
	for _, id := range ids {
		event, err := r.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if event == nil || !matches(event, filter) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		events = append(events, event)
		if len(events) >= limit {
			break
		}
	}
	return events, nil
}

func (r *EventRepository) Count(ctx context.Context, filter models.EventFilter) (int64, error) {
	ids, err := r.idsByTime(ctx, filter)
	if err != nil {
		return 0, err
	}

	var count int64
	for _, id := range ids {
		event, err := r.get(ctx, id)
		if err != nil {
			return 0, err
		}
		if event != nil && matches(event, filter) {
			count++
		}
	}
	return count, nil
}

func (r *EventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	max := strconv.FormatInt(cutoff.UnixMilli(), 10)
	ids, err := r.client.ZRangeByScore(ctx, keyEventsByTime, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + max,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("range old security events: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, keyEvent+id)
	}
	pipe.ZRemRangeByScore(ctx, keyEventsByTime, "-inf", "("+max)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("delete old security events: %w", err)
	}
	return int64(len(ids)), nil
}

// idsByTime returns event ids newest first, bounded by the filter's window.
func (r *EventRepository) idsByTime(ctx context.Context, filter models.EventFilter) ([]string, error) {
	min, max := "-inf", "+inf"
	if !filter.Since.IsZero() {
		min = strconv.FormatInt(filter.Since.UnixMilli(), 10)
	}
	if !filter.Until.IsZero() {
		max = "(" + strconv.FormatInt(filter.Until.UnixMilli(), 10)
	}
	ids, err := r.client.ZRevRangeByScore(ctx, keyEventsByTime, &redis.ZRangeBy{
		Min: min,
		Max: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range security events: %w", err)
	}
	return ids, nil
}

func (r *EventRepository) get(ctx context.Context, id string) (*models.SecurityEvent, error) {
	data, err := r.client.Get(ctx, keyEvent+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get security event: %w", err)
	}
	var event models.SecurityEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decode security event: %w", err)
	}
	return &event, nil
}

func matches(event *models.SecurityEvent, filter models.EventFilter) bool {
	if filter.Kind != "" && event.Kind != filter.Kind {
		return false
	}
	if filter.AccountID != "" && event.AccountID != filter.AccountID {
		return false
	}
	if filter.Origin != "" && event.Origin != filter.Origin {
		return false
	}
	return true
}
