package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSeatNotFound        = errors.New("seat not found in current layout")
	ErrSeatNotBookable     = errors.New("seat cannot be booked")
	ErrSeatUnavailable     = errors.New("seat is not available")
	ErrSeatAlreadyReserved = errors.New("seat(s) are already reserved")
	ErrSelectionEmpty      = errors.New("no seats selected")
	ErrNoSession           = errors.New("no active user session")
	ErrChannelClosed       = errors.New("reservation channel is closed")
	ErrNotConnected        = errors.New("reservation channel is not connected")
	ErrPaymentExpired      = errors.New("payment window has expired")
	ErrInvalidState        = errors.New("operation not allowed in current state")
)

// SeatConflictError reports which selected seats were taken by someone else
// between selection and commit. It always wraps ErrSeatAlreadyReserved so
// callers can branch with errors.Is.
type SeatConflictError struct {
	SeatIDs []string
}

func (e *SeatConflictError) Error() string {
	return fmt.Sprintf("%d of your seats were just taken", len(e.SeatIDs))
}

func (e *SeatConflictError) Unwrap() error {
	return ErrSeatAlreadyReserved
}
