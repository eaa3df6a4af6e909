package domain

import "time"

// Payment describes one payment attempt for a booking. A payment is never
// reused: when the window lapses, a fresh booking attempt is required.
type Payment struct {
	PaymentID string
	BookingID string
	QRPayload string
	Amount    int64
	ExpiresAt time.Time
	Settled   bool
}

type PaymentRequest struct {
	BookingID     string        `json:"bookingId" validate:"required"`
	PaymentMethod PaymentMethod `json:"paymentMethod" validate:"oneof=QR_TRANSFER CARD"`
	Amount        int64         `json:"amount" validate:"gt=0"`
}
