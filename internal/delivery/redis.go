package delivery

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const channelPrefix = "residence-chat:changed:"

type change struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// RedisNotifier carries "stream changed" signals between server instances over
// Redis Pub/Sub. Only the key travels; each instance re-reads the store itself.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	origin  string
	log     *zap.Logger
}

func NewRedisNotifier(client *redis.Client, stream string, log *zap.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channelPrefix + stream,
		origin:  uuid.NewString(),
		log:     log.With(zap.String("channel", channelPrefix+stream)),
	}
}

func (n *RedisNotifier) Announce(ctx context.Context, key string) error {
	payload, err := json.Marshal(change{Origin: n.origin, Key: key})
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// Listen subscribes to the channel and calls onChange for keys announced by other
// instances until ctx is done. It returns once the subscription is confirmed.
func (n *RedisNotifier) Listen(ctx context.Context, onChange func(ctx context.Context, key string)) error {
	pubsub := n.client.Subscribe(ctx, n.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var c change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					n.log.Warn("malformed change signal", zap.Error(err))
					continue
				}
				if c.Origin == n.origin {
					continue
				}
				onChange(ctx, c.Key)
			}
		}
	}()
	return nil
}

// Bridge wires n to engine: local publishes are announced and remote announcements
// refresh local subscribers.
func Bridge[T any](ctx context.Context, engine *Engine[T], n *RedisNotifier) error {
	engine.WithAnnouncer(n)
	return n.Listen(ctx, func(ctx context.Context, key string) {
		if err := engine.Refresh(ctx, key); err != nil {
			n.log.Warn("refresh after remote change failed", zap.String("key", key), zap.Error(err))
		}
	})
}
