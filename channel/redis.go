package channel

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisTransport is the default production transport, built on Redis pub/sub.
type RedisTransport struct {
	client redis.UniversalClient
}

func NewRedisTransport(client redis.UniversalClient) *RedisTransport {
	return &RedisTransport{client: client}
}

func (t *RedisTransport) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	pubsub := t.client.Subscribe(ctx, topics...)

	// Receive confirms the SUBSCRIBE round trip so a dead broker surfaces
	// here instead of as a silent, message-less subscription.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		pubsub:   pubsub,
		messages: make(chan []byte, 64),
	}
	go sub.pump()

	return sub, nil
}

func (t *RedisTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	return t.client.Publish(ctx, topic, payload).Err()
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}

type redisSubscription struct {
	pubsub   *redis.PubSub
	messages chan []byte
}

func (s *redisSubscription) pump() {
	defer close(s.messages)

	for msg := range s.pubsub.Channel() {
		s.messages <- []byte(msg.Payload)
	}
}

func (s *redisSubscription) Messages() <-chan []byte {
	return s.messages
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}
