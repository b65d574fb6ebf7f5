package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown suppresses repeat notifications for the same device/metric for a
// window after one is delivered.
type Cooldown interface {
	// Allow reports whether a notification for key may be sent now. A true
	// result also claims the window, so concurrent callers race fairly.
	Allow(ctx context.Context, key string) (bool, error)
}

// CooldownKey identifies one suppression window.
func CooldownKey(userID, deviceID, metric string) string {
	return fmt.Sprintf("cooldown:%s:%s:%s", userID, deviceID, metric)
}

// RedisCooldown claims windows with SET NX EX, so the claim and its expiry
// are a single atomic operation shared across instances.
type RedisCooldown struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCooldown(client *redis.Client, ttl time.Duration) *RedisCooldown {
	return &RedisCooldown{client: client, ttl: ttl}
}

func (c *RedisCooldown) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, key, 1, c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown check failed for %s: %w", key, err)
	}
	return ok, nil
}
