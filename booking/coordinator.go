// Package booking implements the commit protocol: re-verify the selection
// against the backend, submit, and hand off to payment. The client-side
// verification is an optimization only; the backend's transactional seat
// claim is what actually prevents double booking.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cinexapp/checkout-kit/domain"
	"github.com/cinexapp/checkout-kit/seatmap"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type State int

const (
	StateIdle State = iota
	StateVerifying
	StateSubmitting
	StateAwaitingPayment
	StateSettled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateVerifying:
		return "verifying"
	case StateSubmitting:
		return "submitting"
	case StateAwaitingPayment:
		return "awaiting_payment"
	case StateSettled:
		return "settled"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

type Coordinator struct {
	seatMap   *seatmap.SeatMap
	selection *domain.SelectionSet
	gateway   domain.BookingGateway
	session   *domain.SessionContext
	validate  *validator.Validate
	logger    *slog.Logger
	tracer    trace.Tracer

	mu      sync.Mutex
	state   State
	booking *domain.Booking
}

func NewCoordinator(
	seatMap *seatmap.SeatMap,
	selection *domain.SelectionSet,
	gateway domain.BookingGateway,
	session *domain.SessionContext,
	logger *slog.Logger) *Coordinator {

	return &Coordinator{
		seatMap:   seatMap,
		selection: selection,
		gateway:   gateway,
		session:   session,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
		tracer:    otel.Tracer("checkout-kit/booking"),
	}
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Booking returns the booking created by the last successful Proceed, if any.
func (c *Coordinator) Booking() *domain.Booking {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.booking
}

// Proceed runs the commit protocol: refresh the seat map, verify every
// selected seat is still available, and submit the booking. Any conflict or
// transient failure returns the coordinator to Idle so the user can adjust
// the selection and try again; Proceed itself never retries a submit, since
// the backend offers no idempotency key and a blind retry of an
// already-processed request could double book.
func (c *Coordinator) Proceed(
	ctx context.Context,
	foodItems []domain.FoodItem,
	method domain.PaymentMethod) (*domain.Booking, error) {

	if !c.session.Active() {
		return nil, domain.ErrNoSession
	}

	if err := c.transition(StateIdle, StateVerifying); err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "booking.proceed")
	defer span.End()

	if err := c.verify(ctx); err != nil {
		span.RecordError(err)
		c.setState(StateIdle)
		return nil, err
	}

	bkg, err := c.submit(ctx, foodItems, method)
	if err != nil {
		span.RecordError(err)
		c.setState(StateIdle)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("booking.id", bkg.BookingID),
		attribute.Int("booking.seats", len(bkg.SeatIDs)),
	)

	c.mu.Lock()
	c.booking = bkg
	c.state = StateAwaitingPayment
	c.mu.Unlock()

	return bkg, nil
}

// verify refreshes the seat map and fails if any selected seat was taken in
// the meantime. A stale selection is never allowed through to submission.
func (c *Coordinator) verify(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "booking.verify")
	defer span.End()

	conflicts, err := c.seatMap.Refresh(ctx, c.selection)
	if err != nil {
		return err
	}

	if len(conflicts) > 0 {
		c.logger.Info("booking verification found conflicts", "seats", conflicts)
		return &domain.SeatConflictError{SeatIDs: conflicts}
	}

	if c.selection.Len() == 0 {
		return domain.ErrSelectionEmpty
	}

	return nil
}

func (c *Coordinator) submit(
	ctx context.Context,
	foodItems []domain.FoodItem,
	method domain.PaymentMethod) (*domain.Booking, error) {

	ctx, span := c.tracer.Start(ctx, "booking.submit")
	defer span.End()

	req := domain.BookingRequest{
		ScheduleID:    c.seatMap.ScheduleID(),
		RoomID:        c.seatMap.RoomID(),
		SeatIDs:       c.selection.IDs(),
		FoodItems:     foodItems,
		PaymentMethod: method,
	}

	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid booking request: %w", err)
	}

	c.setState(StateSubmitting)

	bkg, err := c.gateway.CreateBooking(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrSeatAlreadyReserved) {
			// The backend's claim lost the race for at least one seat.
			// Re-fetch so the pruned selection reflects reality before
			// the user is sent back to seat selection.
			conflicts, refreshErr := c.seatMap.Refresh(ctx, c.selection)
			if refreshErr != nil {
				c.logger.Warn("post-conflict refresh failed", "error", refreshErr)
				return nil, err
			}
			return nil, &domain.SeatConflictError{SeatIDs: conflicts}
		}
		return nil, err
	}

	return bkg, nil
}

// Settle is invoked by the payment session once funds are confirmed. The
// booked seats flip locally; the next full refresh corrects any drift.
func (c *Coordinator) Settle() {
	c.mu.Lock()
	if c.state != StateAwaitingPayment {
		c.mu.Unlock()
		return
	}
	c.state = StateSettled
	bkg := c.booking
	c.mu.Unlock()

	if bkg != nil {
		c.seatMap.MarkBooked(bkg.SeatIDs...)
		c.logger.Info("booking settled", "booking_id", bkg.BookingID)
	}
	c.selection.Clear()
}

// Fail marks the attempt terminally failed (payment expiry or user abort).
func (c *Coordinator) Fail() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateSettled {
		return
	}
	c.state = StateFailed
}

// Reset returns a Failed coordinator to Idle for a fresh attempt.
func (c *Coordinator) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateFailed && c.state != StateIdle {
		return fmt.Errorf("%w: cannot reset from %s", domain.ErrInvalidState, c.state)
	}

	c.state = StateIdle
	c.booking = nil

	return nil
}

func (c *Coordinator) transition(from, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != from {
		return fmt.Errorf("%w: cannot start %s from %s", domain.ErrInvalidState, to, c.state)
	}
	c.state = to

	return nil
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}
