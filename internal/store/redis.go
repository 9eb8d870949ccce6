package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis holds the shared client. Sessions live here under per-key TTLs,
// so losing redis only costs open sessions, never recorded attendance.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds a client with short timeouts; session lookups sit on
// the submission path and must fail fast.
func NewRedis(addr string) *Redis {
	return &Redis{Client: redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     10,
	})}
}

// Healthy reports redis connectivity for the health endpoint.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}
