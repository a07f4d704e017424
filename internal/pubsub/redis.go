package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/agbru/lookforge/internal/logging"
	"github.com/agbru/lookforge/internal/progress"
)

// ChannelPrefix namespaces the Redis channels carrying progress snapshots.
const ChannelPrefix = "lookforge:progress:"

// ChannelName returns the Redis channel of a session.
func ChannelName(sessionID string) string { return ChannelPrefix + sessionID }

// redisPublisher is the subset of redis.UniversalClient used to publish.
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes JSON snapshots on the session's Redis channel so
// that any API node can stream any session.
type RedisPublisher struct {
	client redisPublisher
}

// NewRedisPublisher wraps a Redis client.
func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish encodes snap and publishes it on ChannelName(sessionID).
func (p *RedisPublisher) Publish(ctx context.Context, sessionID string, snap progress.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := p.client.Publish(ctx, ChannelName(sessionID), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", sessionID, err)
	}
	return nil
}

// redisSubscription is the subset of *redis.PubSub used to receive.
type redisSubscription interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

type subscribeFunc func(ctx context.Context, channel string) redisSubscription

// RedisSubscriber streams snapshots received on a session's Redis channel.
type RedisSubscriber struct {
	subscribe subscribeFunc
	logger    logging.Logger
	buffer    int
}

// NewRedisSubscriber wraps a Redis client.
func NewRedisSubscriber(client redis.UniversalClient, logger logging.Logger) *RedisSubscriber {
	return newRedisSubscriber(func(ctx context.Context, channel string) redisSubscription {
		return client.Subscribe(ctx, channel)
	}, logger)
}

func newRedisSubscriber(fn subscribeFunc, logger logging.Logger) *RedisSubscriber {
	if logger == nil {
		logger = logging.Nop()
	}
	return &RedisSubscriber{subscribe: fn, logger: logger, buffer: DefaultBuffer}
}

// Subscribe starts forwarding decoded snapshots for sessionID. Messages that
// fail to decode are logged and skipped.
func (s *RedisSubscriber) Subscribe(ctx context.Context, sessionID string) (<-chan progress.Snapshot, func(), error) {
	sub := s.subscribe(ctx, ChannelName(sessionID))
	out := make(chan progress.Snapshot, s.buffer)
	stop := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(stop) }) }

	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var snap progress.Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err != nil {
					s.logger.Error("discarding malformed progress message", err, logging.String("channel", msg.Channel))
					continue
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					return
				case <-stop:
					return
				}
			}
		}
	}()
	return out, cancel, nil
}
