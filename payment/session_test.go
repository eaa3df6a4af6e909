package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cinexapp/checkout-kit/booking"
	"github.com/cinexapp/checkout-kit/clock"
	"github.com/cinexapp/checkout-kit/domain"
	"github.com/cinexapp/checkout-kit/internal/mocks"
	"github.com/cinexapp/checkout-kit/seatmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePaymentGW counts polls and settles after a configurable number of
// status checks.
type fakePaymentGW struct {
	mu        sync.Mutex
	paidAfter int // polls before paid turns true; negative means never
	polls     int
	statusErr error
	payments  int
}

func (f *fakePaymentGW) GenerateQR(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.payments++
	return &domain.Payment{
		PaymentID: "pay-1",
		BookingID: req.BookingID,
		QRPayload: "https://pay.example.com/qr/pay-1.png",
		Amount:    req.Amount,
	}, nil
}

func (f *fakePaymentGW) PaymentStatus(ctx context.Context, paymentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.statusErr != nil {
		return false, f.statusErr
	}

	f.polls++
	if f.paidAfter >= 0 && f.polls > f.paidAfter {
		return true, nil
	}
	return false, nil
}

func (f *fakePaymentGW) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *fakePaymentGW) paymentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payments
}

type fakeBookingGW struct {
	mu        sync.Mutex
	cancelled []string
	cancelErr error
}

func (f *fakeBookingGW) CreateBooking(ctx context.Context, req domain.BookingRequest) (*domain.Booking, error) {
	return nil, errors.New("not used")
}

func (f *fakeBookingGW) CancelBooking(ctx context.Context, bookingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, bookingID)
	return nil
}

func (f *fakeBookingGW) cancelledBookings() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cancelled...)
}

// newAwaitingCoordinator drives a coordinator into AwaitingPayment so the
// session has a live booking attempt to settle or fail.
func newAwaitingCoordinator(t *testing.T) *booking.Coordinator {
	t.Helper()

	logger := discardLogger()

	seatGW := &mocks.FuncSeatGateway{}
	seatGW.SetFunc(func(ctx context.Context, scheduleID, roomID int) ([]domain.Seat, error) {
		return []domain.Seat{
			{ID: "C3", Row: "C", Number: 3, Category: domain.SeatCategoryRegular, Price: 70_000, Status: domain.SeatStatusAvailable},
			{ID: "C4", Row: "C", Number: 4, Category: domain.SeatCategoryRegular, Price: 70_000, Status: domain.SeatStatusAvailable},
		}, nil
	})

	seatMap := seatmap.New(seatGW, 42, 7, logger)
	require.NoError(t, seatMap.Load(context.Background()))

	selection := domain.NewSelectionSet()
	selection.Add("C3")
	selection.Add("C4")

	session := domain.NewSessionContext()
	session.Init("user-1", "token-1")

	bookingGW := new(mocks.MockBookingGateway)
	bookingGW.On("CreateBooking", mock.Anything, mock.Anything).Return(&domain.Booking{
		BookingID:   "bkg-1",
		SeatIDs:     []string{"C3", "C4"},
		TotalAmount: 140_000,
		Status:      domain.BookingStatusPending,
	}, nil).Once()

	coord := booking.NewCoordinator(seatMap, selection, bookingGW, session, logger)

	_, err := coord.Proceed(context.Background(), nil, domain.PaymentMethodQR)
	require.NoError(t, err)
	require.Equal(t, booking.StateAwaitingPayment, coord.State())

	return coord
}

// advanceUntil steps the fake clock one second at a time until the condition
// holds, tolerating scheduling races between Advance and the poll goroutine.
func advanceUntil(t *testing.T, fake *clock.Fake, cond func() bool) {
	t.Helper()

	for i := 0; i < 400; i++ {
		if cond() {
			return
		}
		fake.Advance(time.Second)
	}
	t.Fatal("condition never held while advancing the clock")
}

func TestSessionSettles(t *testing.T) {
	coord := newAwaitingCoordinator(t)
	fake := clock.NewFake(epoch)
	payGW := &fakePaymentGW{paidAfter: 7} // paid on the 8th poll, i.e. t=40s
	bookGW := &fakeBookingGW{}

	session := NewSession(payGW, bookGW, coord, fake, discardLogger())

	pay, err := session.Start(context.Background(), "bkg-1", 140_000, domain.PaymentMethodQR)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", pay.PaymentID)
	assert.Equal(t, epoch.Add(5*time.Minute), pay.ExpiresAt)
	assert.Contains(t, pay.QRPayload, "pay-1")

	advanceUntil(t, fake, func() bool {
		return coord.State() == booking.StateSettled
	})

	<-session.Done()
	assert.True(t, session.Payment().Settled)
	assert.Empty(t, bookGW.cancelledBookings())

	// Settled stops the loop for good.
	polls := payGW.pollCount()
	fake.Advance(time.Minute)
	assert.Equal(t, polls, payGW.pollCount())
}

func TestSessionExpiresAndCancelsBooking(t *testing.T) {
	coord := newAwaitingCoordinator(t)
	fake := clock.NewFake(epoch)
	payGW := &fakePaymentGW{paidAfter: -1} // never settles
	bookGW := &fakeBookingGW{}

	session := NewSession(payGW, bookGW, coord, fake, discardLogger())

	_, err := session.Start(context.Background(), "bkg-1", 140_000, domain.PaymentMethodQR)
	require.NoError(t, err)

	advanceUntil(t, fake, func() bool {
		return coord.State() == booking.StateFailed
	})

	<-session.Done()
	assert.Equal(t, []string{"bkg-1"}, bookGW.cancelledBookings())
	assert.False(t, session.Payment().Settled)

	// Expiry is terminal: no further polls for this payment, ever.
	polls := payGW.pollCount()
	fake.Advance(10 * time.Minute)
	assert.Equal(t, polls, payGW.pollCount())
}

func TestSessionShortWindow(t *testing.T) {
	coord := newAwaitingCoordinator(t)
	fake := clock.NewFake(epoch)
	payGW := &fakePaymentGW{paidAfter: -1}
	bookGW := &fakeBookingGW{}

	session := NewSession(payGW, bookGW, coord, fake, discardLogger(),
		WithWindow(10*time.Second), WithPollInterval(time.Second))

	pay, err := session.Start(context.Background(), "bkg-1", 140_000, domain.PaymentMethodQR)
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(10*time.Second), pay.ExpiresAt)

	advanceUntil(t, fake, func() bool {
		return coord.State() == booking.StateFailed
	})
}

func TestManualCancel(t *testing.T) {
	coord := newAwaitingCoordinator(t)
	fake := clock.NewFake(epoch)
	payGW := &fakePaymentGW{paidAfter: -1}
	bookGW := &fakeBookingGW{}

	session := NewSession(payGW, bookGW, coord, fake, discardLogger())

	_, err := session.Start(context.Background(), "bkg-1", 140_000, domain.PaymentMethodQR)
	require.NoError(t, err)

	require.NoError(t, session.Cancel())

	<-session.Done()
	assert.Equal(t, booking.StateFailed, coord.State())
	assert.Equal(t, []string{"bkg-1"}, bookGW.cancelledBookings())
}

func TestCancelFailureIsBestEffort(t *testing.T) {
	coord := newAwaitingCoordinator(t)
	fake := clock.NewFake(epoch)
	payGW := &fakePaymentGW{paidAfter: -1}
	bookGW := &fakeBookingGW{cancelErr: errors.New("backend down")}

	session := NewSession(payGW, bookGW, coord, fake, discardLogger())

	_, err := session.Start(context.Background(), "bkg-1", 140_000, domain.PaymentMethodQR)
	require.NoError(t, err)

	// The failed cancel is logged, not surfaced; the attempt still fails.
	require.NoError(t, session.Cancel())
	assert.Equal(t, booking.StateFailed, coord.State())
}

func TestCancelWithoutStartIsNoop(t *testing.T) {
	coord := newAwaitingCoordinator(t)
	fake := clock.NewFake(epoch)
	session := NewSession(&fakePaymentGW{}, &fakeBookingGW{}, coord, fake, discardLogger())

	require.NoError(t, session.Cancel())
	assert.Equal(t, booking.StateAwaitingPayment, coord.State())
}

func TestStartSupersedesPriorLoop(t *testing.T) {
	coord := newAwaitingCoordinator(t)
	fake := clock.NewFake(epoch)
	payGW := &fakePaymentGW{paidAfter: -1}
	bookGW := &fakeBookingGW{}

	session := NewSession(payGW, bookGW, coord, fake, discardLogger())

	_, err := session.Start(context.Background(), "bkg-1", 140_000, domain.PaymentMethodQR)
	require.NoError(t, err)
	firstDone := session.Done()

	_, err = session.Start(context.Background(), "bkg-1", 140_000, domain.PaymentMethodQR)
	require.NoError(t, err)

	// The first loop is gone; only one poll loop is ever active.
	select {
	case <-firstDone:
	case <-time.After(2 * time.Second):
		t.Fatal("superseded poll loop did not stop")
	}

	assert.Equal(t, 2, payGW.paymentCount())
}

func TestPollErrorsAreTransient(t *testing.T) {
	coord := newAwaitingCoordinator(t)
	fake := clock.NewFake(epoch)
	payGW := &fakePaymentGW{paidAfter: 0, statusErr: errors.New("flaky")}
	bookGW := &fakeBookingGW{}

	session := NewSession(payGW, bookGW, coord, fake, discardLogger())

	_, err := session.Start(context.Background(), "bkg-1", 140_000, domain.PaymentMethodQR)
	require.NoError(t, err)

	// Errors don't kill the loop; once the backend recovers, it settles.
	fake.Advance(15 * time.Second)
	payGW.mu.Lock()
	payGW.statusErr = nil
	payGW.mu.Unlock()

	advanceUntil(t, fake, func() bool {
		return coord.State() == booking.StateSettled
	})
}
