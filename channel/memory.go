package channel

import (
	"context"
	"errors"
	"sync"
)

// MemoryHub is an in-process broker connecting any number of MemoryTransports.
// It exists for tests and the simulator, where spinning up a real broker
// would add nothing.
type MemoryHub struct {
	mu   sync.Mutex
	subs map[*memorySubscription]map[string]bool
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[*memorySubscription]map[string]bool)}
}

// NewTransport returns a Transport attached to the hub.
func (h *MemoryHub) NewTransport() *MemoryTransport {
	return &MemoryTransport{hub: h}
}

func (h *MemoryHub) publish(topic string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub, topics := range h.subs {
		if !topics[topic] {
			continue
		}
		select {
		case sub.messages <- append([]byte(nil), payload...):
		default:
		}
	}
}

func (h *MemoryHub) attach(sub *memorySubscription, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	topicSet := make(map[string]bool, len(topics))
	for _, t := range topics {
		topicSet[t] = true
	}
	h.subs[sub] = topicSet
}

func (h *MemoryHub) detach(sub *memorySubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.messages)
}

// DropAll severs every subscription, simulating a broker outage. Attached
// channels observe closed message feeds and begin reconnecting.
func (h *MemoryHub) DropAll() {
	h.mu.Lock()
	subs := make([]*memorySubscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.detach(sub)
	}
}

type MemoryTransport struct {
	hub *MemoryHub

	mu     sync.Mutex
	closed bool
	failN  int // Subscribe attempts to reject, for reconnect tests
}

// FailNextSubscribes makes the next n Subscribe calls fail.
func (t *MemoryTransport) FailNextSubscribes(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failN = n
}

func (t *MemoryTransport) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errors.New("memory transport closed")
	}
	if t.failN > 0 {
		t.failN--
		t.mu.Unlock()
		return nil, errors.New("simulated subscribe failure")
	}
	t.mu.Unlock()

	sub := &memorySubscription{
		hub:      t.hub,
		messages: make(chan []byte, 64),
	}
	t.hub.attach(sub, topics)

	return sub, nil
}

func (t *MemoryTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("memory transport closed")
	}
	t.mu.Unlock()

	t.hub.publish(topic, payload)

	return nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

type memorySubscription struct {
	hub      *MemoryHub
	messages chan []byte
}

func (s *memorySubscription) Messages() <-chan []byte {
	return s.messages
}

func (s *memorySubscription) Close() error {
	s.hub.detach(s)
	return nil
}
