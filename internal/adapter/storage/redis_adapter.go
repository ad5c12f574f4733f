package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/akeller/storefront/internal/core/domain"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour

	recentPlacementsKey = "orders:recent"
	recentPlacementsMax = 100
)

// RedisAdapter implements port.CacheStore: request-level idempotency keys and
// a capped feed of recently committed placements.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("setnx idempotency key: %w", err)
	}
	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, idempotencyKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("del idempotency key: %w", err)
	}
	return nil
}

func (r *RedisAdapter) RecordPlacement(ctx context.Context, ev domain.OrderPlaced) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal placement: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, recentPlacementsKey, payload)
	pipe.LTrim(ctx, recentPlacementsKey, 0, recentPlacementsMax-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record placement: %w", err)
	}
	return nil
}

// RecentPlacements returns the newest-first feed, at most
// recentPlacementsMax entries.
func (r *RedisAdapter) RecentPlacements(ctx context.Context) ([]domain.OrderPlaced, error) {
	raw, err := r.client.LRange(ctx, recentPlacementsKey, 0, recentPlacementsMax-1).Result()
	if err != nil {
		return nil, fmt.Errorf("recent placements: %w", err)
	}
	out := make([]domain.OrderPlaced, 0, len(raw))
	for _, item := range raw {
		var ev domain.OrderPlaced
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("unmarshal placement: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}
