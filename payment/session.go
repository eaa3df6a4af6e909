// Package payment drives the QR payment flow for one booking attempt: issue
// the payment request, poll for settlement on a fixed interval, and enforce a
// hard window after which the attempt is dead and the booking is cancelled.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cinexapp/checkout-kit/booking"
	"github.com/cinexapp/checkout-kit/clock"
	"github.com/cinexapp/checkout-kit/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultWindow is the settlement deadline. A payment is never reused
	// past it; the shopper starts a fresh booking attempt instead.
	DefaultWindow = 5 * time.Minute

	// DefaultPollInterval is how often settlement status is checked.
	DefaultPollInterval = 5 * time.Second
)

type Session struct {
	payments    domain.PaymentGateway
	bookings    domain.BookingGateway
	coordinator *booking.Coordinator
	clock       clock.Clock
	logger      *slog.Logger
	tracer      trace.Tracer

	window       time.Duration
	pollInterval time.Duration

	mu      sync.Mutex
	payment *domain.Payment
	cancel  context.CancelFunc
	done    chan struct{}
}

type Option func(*Session)

// WithWindow overrides the settlement deadline.
func WithWindow(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithPollInterval overrides the settlement poll cadence.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

func NewSession(
	payments domain.PaymentGateway,
	bookings domain.BookingGateway,
	coordinator *booking.Coordinator,
	clk clock.Clock,
	logger *slog.Logger,
	opts ...Option) *Session {

	s := &Session{
		payments:     payments,
		bookings:     bookings,
		coordinator:  coordinator,
		clock:        clk,
		logger:       logger,
		tracer:       otel.Tracer("checkout-kit/payment"),
		window:       DefaultWindow,
		pollInterval: DefaultPollInterval,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start generates the payment QR and begins the poll loop. Starting again
// supersedes and stops any prior loop for the same booking attempt; only one
// loop is ever active per session.
func (s *Session) Start(ctx context.Context, bookingID string, amount int64, method domain.PaymentMethod) (*domain.Payment, error) {
	s.stopLoop()

	pay, err := s.payments.GenerateQR(ctx, domain.PaymentRequest{
		BookingID:     bookingID,
		PaymentMethod: method,
		Amount:        amount,
	})
	if err != nil {
		return nil, fmt.Errorf("starting payment session: %w", err)
	}

	pay.ExpiresAt = s.clock.Now().Add(s.window)

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.mu.Lock()
	s.payment = pay
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.poll(loopCtx, pay, done)

	s.logger.Info("payment session started",
		"payment_id", pay.PaymentID, "booking_id", bookingID, "expires_at", pay.ExpiresAt)

	return pay, nil
}

func (s *Session) poll(ctx context.Context, pay *domain.Payment, done chan struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()

	deadline := s.clock.NewTimer(pay.ExpiresAt.Sub(s.clock.Now()))
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-deadline.C():
			s.logger.Info("payment window expired", "payment_id", pay.PaymentID)
			s.abandon(pay, domain.ErrPaymentExpired)
			return

		case <-ticker.C():
			pollCtx, span := s.tracer.Start(ctx, "payment.poll")
			paid, err := s.payments.PaymentStatus(pollCtx, pay.PaymentID)
			if err != nil {
				// Transient: the next tick retries; the deadline still
				// bounds the whole attempt.
				span.RecordError(err)
				span.End()
				s.logger.Warn("payment status check failed", "payment_id", pay.PaymentID, "error", err)
				continue
			}
			span.End()

			if paid {
				s.settle(pay)
				return
			}
		}
	}
}

func (s *Session) settle(pay *domain.Payment) {
	s.mu.Lock()
	pay.Settled = true
	s.mu.Unlock()

	s.coordinator.Settle()
	s.logger.Info("payment settled", "payment_id", pay.PaymentID, "booking_id", pay.BookingID)
}

// abandon cancels the booking best effort and fails the attempt. A failed
// cancel is logged only: the user still returns to seat selection, and the
// backend's own hold expiry cleans up eventually.
func (s *Session) abandon(pay *domain.Payment, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.bookings.CancelBooking(ctx, pay.BookingID); err != nil {
		s.logger.Error("booking cancellation failed",
			"booking_id", pay.BookingID, "cause", cause, "error", err)
	}

	s.coordinator.Fail()
}

// Cancel is the manual abort path; it follows the same cancellation route as
// window expiry. Safe to call when no loop is running.
func (s *Session) Cancel() error {
	s.mu.Lock()
	pay := s.payment
	s.mu.Unlock()

	s.stopLoop()

	if pay == nil || pay.Settled {
		return nil
	}

	s.abandon(pay, nil)

	return nil
}

// Done is closed when the current poll loop exits.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}

	return s.done
}

// Payment returns the current payment attempt, if one was started.
func (s *Session) Payment() *domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payment
}

func (s *Session) stopLoop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
