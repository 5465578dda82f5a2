package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/pvp-settlement-platform/pkg/contracts/events"
)

// RedisCache encapsula o cache de snapshots de eventos no Redis
// Client: cliente Redis
// TTL: tempo de expiração dos registros
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria uma instância de cache Redis com TTL configurável
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// key gera a chave Redis do snapshot corrente de um evento
func key(eventID string) string { return "event:outcome:" + eventID }

// SetCurrent armazena o snapshot corrente de um evento no Redis com TTL definido
func (r *RedisCache) SetCurrent(ctx context.Context, e events.EventResult) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, key(e.EventID), b, r.TTL).Err()
}

// GetCurrent lê o snapshot corrente de um evento; (nil, nil) em cache miss
func (r *RedisCache) GetCurrent(ctx context.Context, eventID string) (*events.EventResult, error) {
	val, err := r.Client.Get(ctx, key(eventID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e events.EventResult
	if err := json.Unmarshal([]byte(val), &e); err != nil {
		return nil, err
	}
	return &e, nil
}
