package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cinexapp/checkout-kit/api"
	"github.com/cinexapp/checkout-kit/clock"
	"github.com/cinexapp/checkout-kit/domain"
	"github.com/google/uuid"
)

// State is the connection state of a ReservationChannel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

const (
	reconnectInitial = 500 * time.Millisecond
	reconnectMax     = 30 * time.Second
)

// Topic names the broadcast topic for a (room, schedule) pair.
func Topic(roomID, scheduleID int) string {
	return fmt.Sprintf("seats.%d.%d", roomID, scheduleID)
}

func privateTopic(holderID string) string {
	return "seats.client." + holderID
}

// ReservationChannel publishes the local shopper's hold events and delivers
// other shoppers' events for one showtime. The holder ID is ephemeral and
// generated per browsing session, deliberately not the authenticated user ID,
// so shoppers are not identifiable to each other.
//
// Connection loss triggers reconnection with exponential backoff; consumers
// watch States to surface a degraded-sync indicator while disconnected.
type ReservationChannel struct {
	transport Transport
	clock     clock.Clock
	logger    *slog.Logger
	holderID  string

	events chan domain.HoldEvent
	states chan State

	mu      sync.Mutex
	state   State
	topic   string
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type Option func(*ReservationChannel)

// WithHolderID fixes the ephemeral holder ID instead of generating one.
func WithHolderID(id string) Option {
	return func(c *ReservationChannel) {
		c.holderID = id
	}
}

func New(transport Transport, clk clock.Clock, logger *slog.Logger, opts ...Option) *ReservationChannel {
	c := &ReservationChannel{
		transport: transport,
		clock:     clk,
		logger:    logger,
		holderID:  uuid.NewString(),
		events:    make(chan domain.HoldEvent, 64),
		states:    make(chan State, 8),
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *ReservationChannel) HolderID() string {
	return c.holderID
}

// Connect starts the subscribe/reconnect loop for the given showtime. It
// returns immediately; watch States for the connection outcome.
func (c *ReservationChannel) Connect(ctx context.Context, scheduleID, roomID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return domain.ErrChannelClosed
	}
	if c.started {
		return fmt.Errorf("%w: channel already connected", domain.ErrInvalidState)
	}

	c.started = true
	c.topic = Topic(roomID, scheduleID)

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go c.run(runCtx)

	return nil
}

func (c *ReservationChannel) run(ctx context.Context) {
	defer close(c.done)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = reconnectInitial
	bo.MaxInterval = reconnectMax

	for {
		c.setState(StateConnecting)

		sub, err := c.transport.Subscribe(ctx, c.topic, privateTopic(c.holderID))
		if err != nil {
			c.setState(StateDisconnected)

			wait := bo.NextBackOff()
			c.logger.Warn("reservation channel subscribe failed",
				"topic", c.topic, "retry_in", wait, "error", err)

			select {
			case <-ctx.Done():
				return
			case <-c.clock.After(wait):
				continue
			}
		}

		bo.Reset()
		c.setState(StateConnected)

		c.consume(ctx, sub)
		sub.Close()
		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			return
		}

		c.logger.Warn("reservation channel lost, reconnecting", "topic", c.topic)
	}
}

func (c *ReservationChannel) consume(ctx context.Context, sub Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.Messages():
			if !ok {
				return
			}
			c.deliver(payload)
		}
	}
}

func (c *ReservationChannel) deliver(payload []byte) {
	var msg api.SeatEvent
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn("discarding malformed seat event", "error", err)
		return
	}

	// Our own publishes echo back on the broadcast topic; they carry no
	// information the local state doesn't already have.
	if msg.HolderID == c.holderID {
		return
	}

	kind, ok := toEventKind(msg.Status)
	if !ok {
		c.logger.Warn("discarding seat event with unknown status", "status", msg.Status)
		return
	}

	event := domain.HoldEvent{
		SeatID:    msg.SeatID,
		HolderID:  msg.HolderID,
		Kind:      kind,
		Timestamp: time.UnixMilli(msg.Timestamp),
	}

	select {
	case c.events <- event:
	default:
		c.logger.Warn("event buffer full, dropping seat event", "seat_id", msg.SeatID)
	}
}

// Publish broadcasts a holding or released event for seatID. While the
// channel is disconnected the local picks are simply invisible to others; the
// pre-commit re-verification bounds that risk.
func (c *ReservationChannel) Publish(ctx context.Context, seatID string, holding bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrChannelClosed
	}
	if c.state != StateConnected {
		c.mu.Unlock()
		return domain.ErrNotConnected
	}
	topic := c.topic
	c.mu.Unlock()

	status := string(domain.HoldEventHolding)
	if !holding {
		status = string(domain.HoldEventReleased)
	}

	payload, err := json.Marshal(api.SeatEvent{
		SeatID:    seatID,
		Status:    status,
		HolderID:  c.holderID,
		Timestamp: c.clock.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	if err := c.transport.Publish(ctx, topic, payload); err != nil {
		return fmt.Errorf("publishing seat event: %w", err)
	}

	return nil
}

// Events delivers other shoppers' hold events.
func (c *ReservationChannel) Events() <-chan domain.HoldEvent {
	return c.events
}

// States delivers connection state transitions. The channel is buffered; if
// the consumer lags, intermediate transitions may be dropped.
func (c *ReservationChannel) States() <-chan State {
	return c.states
}

func (c *ReservationChannel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *ReservationChannel) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	select {
	case c.states <- s:
	default:
	}
}

// Close stops the reconnect loop and releases the transport subscription.
// It is safe to call multiple times.
func (c *ReservationChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	cancel := c.cancel
	c.mu.Unlock()

	if started {
		cancel()
		<-c.done
	}

	close(c.events)
	close(c.states)

	return nil
}

func toEventKind(status string) (domain.HoldEventKind, bool) {
	switch domain.HoldEventKind(status) {
	case domain.HoldEventHolding, domain.HoldEventReleased, domain.HoldEventBooked:
		return domain.HoldEventKind(status), true
	default:
		return "", false
	}
}
