package mocks

import (
	"context"

	"github.com/cinexapp/checkout-kit/domain"
	"github.com/stretchr/testify/mock"
)

type MockSeatGateway struct {
	mock.Mock
}

func (m *MockSeatGateway) GetSeatLayout(ctx context.Context, scheduleID, roomID int) ([]domain.Seat, error) {
	args := m.Called(ctx, scheduleID, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Seat), args.Error(1)
}

type MockBookingGateway struct {
	mock.Mock
}

func (m *MockBookingGateway) CreateBooking(ctx context.Context, req domain.BookingRequest) (*domain.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingGateway) CancelBooking(ctx context.Context, bookingID string) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) GenerateQR(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentGateway) PaymentStatus(ctx context.Context, paymentID string) (bool, error) {
	args := m.Called(ctx, paymentID)
	return args.Bool(0), args.Error(1)
}
