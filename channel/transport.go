// Package channel implements the push channel that makes in-flight seat
// selections visible across shoppers of the same showtime. Delivery is best
// effort: the channel carries advisory holds only, so a lost or reordered
// message never affects booking correctness.
package channel

import "context"

// Subscription is a live feed of raw messages for a set of topics. Messages
// is closed when the subscription dies; the owning channel then reconnects.
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}

// Transport is a pub/sub backend. Implementations exist for Redis pub/sub,
// AMQP fanout exchanges, and an in-process hub for tests.
type Transport interface {
	Subscribe(ctx context.Context, topics ...string) (Subscription, error)
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}
