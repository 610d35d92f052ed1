// README: Event channel publishers: Redis pub/sub, or the log when Redis is not configured.
package notification

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ridehail/internal/logger"
)

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.redis.Publish(ctx, channel, payload).Err()
}

// LogPublisher writes events to the log. Used in single-process mode where no
// transport is listening.
type LogPublisher struct {
	log logger.ILogger
}

func NewLogPublisher(log logger.ILogger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.log.Info("event published",
		logger.String("channel", channel),
		logger.String("payload", string(payload)),
	)
	return nil
}
