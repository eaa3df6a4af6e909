package domain

import "context"

// SeatGateway fetches the authoritative seat layout for a showtime.
type SeatGateway interface {
	GetSeatLayout(ctx context.Context, scheduleID, roomID int) ([]Seat, error)
}

// BookingGateway submits and cancels bookings. CreateBooking is the only
// race-free claim: the backend accepts at most one booking per seat per
// showtime and rejects the rest with ErrSeatAlreadyReserved.
type BookingGateway interface {
	CreateBooking(ctx context.Context, req BookingRequest) (*Booking, error)
	CancelBooking(ctx context.Context, bookingID string) error
}

// PaymentGateway drives the QR payment flow for a booking.
type PaymentGateway interface {
	GenerateQR(ctx context.Context, req PaymentRequest) (*Payment, error)
	PaymentStatus(ctx context.Context, paymentID string) (bool, error)
}
