package domain

import "time"

// TemporaryHold is another shopper's in-flight claim on a seat, learned over
// the push channel. Holds are advisory: they only gate the local UI, the
// backend resolves real contention at booking time.
type TemporaryHold struct {
	SeatID     string
	HolderID   string
	AcquiredAt time.Time
}

type HoldEventKind string

const (
	HoldEventHolding  HoldEventKind = "HOLDING"
	HoldEventReleased HoldEventKind = "RELEASED"
	HoldEventBooked   HoldEventKind = "BOOKED"
)

// HoldEvent is a single seat-state notification from the push channel.
type HoldEvent struct {
	SeatID    string
	HolderID  string
	Kind      HoldEventKind
	Timestamp time.Time
}
