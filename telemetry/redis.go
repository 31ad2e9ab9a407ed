package telemetry

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSink stores each episode's metrics in a hash under
// "<prefix>:ep:<episode>", so a live dashboard can poll a run while it
// trains.
type RedisSink struct {
	client *redis.Client
	prefix string
	ctx    context.Context
}

var _ Sink = &RedisSink{}

// NewRedisSink connects to addr and verifies the connection with a ping.
func NewRedisSink(ctx context.Context, addr, prefix string) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &RedisSink{client: client, prefix: prefix, ctx: ctx}, nil
}

func (r *RedisSink) Emit(episode int, name string, value float64) error {
	key := fmt.Sprintf("%s:ep:%d", r.prefix, episode)
	if err := r.client.HSet(r.ctx, key, name, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s %s: %w", key, name, err)
	}
	return nil
}

func (r *RedisSink) Close() error {
	return r.client.Close()
}
