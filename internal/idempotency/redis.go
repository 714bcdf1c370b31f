package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rentalops:idempotency:"

// Redis keeps idempotency records in Redis so every API instance shares them.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// NewRedisClient builds a client from connection settings.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping checks the connection to Redis.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func (r *Redis) Reserve(ctx context.Context, key, hash string) (*Record, error) {
	payload, err := json.Marshal(Record{Key: key, RequestHash: hash, Status: StatusInProgress})
	if err != nil {
		return nil, err
	}

	ok, err := r.client.SetNX(ctx, keyPrefix+key, payload, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("idempotency reservation failed: %w", err)
	}
	if ok {
		return nil, nil
	}

	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; treat as still held by the other request
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency query failed: %w", err)
	}

	var existing Record
	if err := json.Unmarshal(raw, &existing); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record: %w", err)
	}
	return check(&existing, hash)
}

func (r *Redis) Complete(ctx context.Context, key string, status int, body []byte) error {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		return fmt.Errorf("idempotency query failed: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("corrupt idempotency record: %w", err)
	}

	rec.Status = StatusCompleted
	rec.ResponseStatus = status
	rec.ResponseBody = body
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, keyPrefix+key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency update failed: %w", err)
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}
