package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReplayGuard remembers which gateway payment ids already produced an order,
// so a replayed confirmation is rejected before the payment oracle is called.
type ReplayGuard interface {
	Claim(ctx context.Context, paymentID string) (bool, error)
	Release(ctx context.Context, paymentID string) error
}

type redisGuard struct {
	client      *redis.Client
	serviceName string
	ttl         time.Duration
}

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

func NewReplayGuard(client *redis.Client, serviceName string, ttl time.Duration) ReplayGuard {
	return &redisGuard{client: client, serviceName: serviceName, ttl: ttl}
}

// Claim returns false when the payment id was claimed before.
func (r *redisGuard) Claim(ctx context.Context, paymentID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.GenerateKey("payment", paymentID), time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim payment id: %w", err)
	}
	return ok, nil
}

// Release drops a claim whose order was never created.
func (r *redisGuard) Release(ctx context.Context, paymentID string) error {
	return r.client.Del(ctx, r.GenerateKey("payment", paymentID)).Err()
}

func (r *redisGuard) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.serviceName, operation, key)
}
