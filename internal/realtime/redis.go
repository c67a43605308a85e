package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisChannel carries changes between instances.
const RedisChannel = "localfix:changes"

// NewRedis creates a Redis client for addr.
func NewRedis(addr string, log *zap.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	log.Info("redis client created", zap.String("addr", addr))
	return rdb
}

// RedisPublisher publishes changes to every instance subscribed to RedisChannel.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, c Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	return p.rdb.Publish(ctx, RedisChannel, payload).Err()
}

// Bridge feeds changes received on RedisChannel into a local publisher,
// usually the Hub.
type Bridge struct {
	rdb *redis.Client
	out Publisher
	log *zap.Logger
}

func NewBridge(rdb *redis.Client, out Publisher, log *zap.Logger) *Bridge {
	return &Bridge{rdb: rdb, out: out, log: log}
}

// Run blocks until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, RedisChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", RedisChannel, err)
	}
	b.log.Info("realtime bridge subscribed", zap.String("channel", RedisChannel))

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			c, err := ParseChange([]byte(msg.Payload))
			if err != nil {
				b.log.Warn("bad change on redis", zap.Error(err))
				continue
			}
			if err := b.out.Publish(ctx, c); err != nil {
				b.log.Warn("change not delivered", zap.String("table", c.Table), zap.Error(err))
			}
		}
	}
}
