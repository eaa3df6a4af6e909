// Package selection drives the seat-selection screen: it owns the local
// SelectionSet, the hold registry, the push-channel consumption loop, and the
// hold-expiry sweeper, all for the lifetime of the screen.
package selection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cinexapp/checkout-kit/channel"
	"github.com/cinexapp/checkout-kit/clock"
	"github.com/cinexapp/checkout-kit/domain"
	"github.com/cinexapp/checkout-kit/holds"
	"github.com/cinexapp/checkout-kit/seatmap"
)

// DefaultSweepInterval bounds how long an abandoned hold can linger past its
// TTL when the holder vanished without a release event.
const DefaultSweepInterval = 10 * time.Second

type Step struct {
	seatMap  *seatmap.SeatMap
	registry *holds.Registry
	channel  *channel.ReservationChannel
	clock    clock.Clock
	logger   *slog.Logger

	selection  *domain.SelectionSet
	notices    chan domain.Notice
	sweepEvery time.Duration

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

type Option func(*Step)

// WithSweepInterval overrides how often expired holds are swept.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Step) {
		if d > 0 {
			s.sweepEvery = d
		}
	}
}

func NewStep(
	seatMap *seatmap.SeatMap,
	registry *holds.Registry,
	ch *channel.ReservationChannel,
	clk clock.Clock,
	logger *slog.Logger,
	opts ...Option) *Step {

	s := &Step{
		seatMap:    seatMap,
		registry:   registry,
		channel:    ch,
		clock:      clk,
		logger:     logger,
		selection:  domain.NewSelectionSet(),
		notices:    make(chan domain.Notice, 16),
		sweepEvery: DefaultSweepInterval,
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start loads the seat map, connects the push channel, and begins consuming
// remote events and sweeping expired holds.
func (s *Step) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrChannelClosed
	}
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("%w: selection step already started", domain.ErrInvalidState)
	}
	s.started = true
	s.mu.Unlock()

	if err := s.seatMap.Load(ctx); err != nil {
		return err
	}

	if err := s.channel.Connect(ctx, s.seatMap.ScheduleID(), s.seatMap.RoomID()); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(runCtx)

	return nil
}

func (s *Step) run(ctx context.Context) {
	defer close(s.done)

	sweeper := s.clock.NewTicker(s.sweepEvery)
	defer sweeper.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.channel.Events():
			if !ok {
				return
			}
			s.handleEvent(event)

		case state, ok := <-s.channel.States():
			if !ok {
				return
			}
			s.handleState(state)

		case <-sweeper.C():
			s.registry.Sweep()
		}
	}
}

// handleEvent applies a remote shopper's event. The channel filters out our
// own echoes, so every event here comes from another holder.
func (s *Step) handleEvent(event domain.HoldEvent) {
	switch event.Kind {
	case domain.HoldEventHolding:
		s.registry.Upsert(event.SeatID, event.HolderID)

		// Two shoppers raced for the same seat and the channel accepted
		// the other hold last; the local pick is stale and must go.
		if s.selection.Remove(event.SeatID) {
			s.logger.Info("local selection lost a hold race", "seat_id", event.SeatID)
			s.notify(domain.Notice{
				Kind:    domain.NoticeSeatConflict,
				Message: fmt.Sprintf("Seat %s was just taken by another customer", event.SeatID),
				SeatIDs: []string{event.SeatID},
			})
		}

	case domain.HoldEventReleased:
		s.registry.Release(event.SeatID)

	case domain.HoldEventBooked:
		s.registry.Release(event.SeatID)
		s.seatMap.MarkBooked(event.SeatID)

		if s.selection.Remove(event.SeatID) {
			s.notify(domain.Notice{
				Kind:    domain.NoticeSeatConflict,
				Message: fmt.Sprintf("Seat %s has just been booked by another customer", event.SeatID),
				SeatIDs: []string{event.SeatID},
			})
		}
	}
}

func (s *Step) handleState(state channel.State) {
	switch state {
	case channel.StateConnected:
		s.notify(domain.Notice{
			Kind:    domain.NoticeSyncRestored,
			Message: "Live seat updates restored",
		})
	case channel.StateDisconnected:
		s.notify(domain.Notice{
			Kind:    domain.NoticeSyncDegraded,
			Message: "Live seat updates unavailable, seat availability may be out of date",
		})
	}
}

// Select adds a seat to the local selection and broadcasts a holding event.
func (s *Step) Select(ctx context.Context, seatID string) error {
	seat, ok := s.seatMap.Get(seatID)
	if !ok {
		return domain.ErrSeatNotFound
	}
	if !seat.Category.Bookable() {
		return domain.ErrSeatNotBookable
	}
	if seat.Status != domain.SeatStatusAvailable {
		return domain.ErrSeatUnavailable
	}
	if holder, held := s.registry.HeldBy(seatID); held && holder != s.channel.HolderID() {
		return domain.ErrSeatAlreadyReserved
	}

	s.selection.Add(seatID)
	s.broadcast(ctx, seatID, true)

	return nil
}

// Deselect removes a seat from the local selection and broadcasts a release.
func (s *Step) Deselect(ctx context.Context, seatID string) error {
	if !s.selection.Remove(seatID) {
		return domain.ErrSeatNotFound
	}

	s.broadcast(ctx, seatID, false)

	return nil
}

func (s *Step) broadcast(ctx context.Context, seatID string, holding bool) {
	err := s.channel.Publish(ctx, seatID, holding)
	if err != nil {
		// Not broadcasting just means other shoppers can't see this pick;
		// the pre-commit re-verification bounds the risk.
		s.logger.Warn("hold broadcast skipped", "seat_id", seatID, "holding", holding, "error", err)
	}
}

// Selection exposes the local selection set, shared with the booking
// coordinator.
func (s *Step) Selection() *domain.SelectionSet {
	return s.selection
}

// Notices delivers toast-equivalent notifications. Advisory only: if the
// consumer lags, notices are dropped.
func (s *Step) Notices() <-chan domain.Notice {
	return s.notices
}

func (s *Step) notify(n domain.Notice) {
	select {
	case s.notices <- n:
	default:
		s.logger.Warn("notice buffer full, dropping notice", "kind", n.Kind)
	}
}

// Close tears the step down: stops the sweeper, closes the push channel, and
// aborts the event loop. Safe to call any number of times.
func (s *Step) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()

	if started && cancel != nil {
		cancel()
		<-s.done
	}

	return s.channel.Close()
}
