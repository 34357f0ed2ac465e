package push

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes warning events on a pub/sub channel. The
// marketplace app's realtime layer fans them out to the recipient's open
// sessions.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher connects a publisher. Returns nil if url is empty
// (realtime publishing disabled).
func NewRedisPublisher(ctx context.Context, url, channel string, logger *slog.Logger) (*RedisPublisher, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}, nil
}

// Publish sends one warning event. No-op on a nil publisher.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal warning event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish warning event: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (p *RedisPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.client.Close()
}
