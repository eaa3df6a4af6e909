package domain

// SeatCategory classifies a seat within a hall layout. Aisle entries are
// placeholders in the grid and can never be selected or booked.
type SeatCategory string

const (
	SeatCategoryRegular  SeatCategory = "REGULAR"
	SeatCategoryVIP      SeatCategory = "VIP"
	SeatCategoryCouple   SeatCategory = "COUPLE"
	SeatCategorySweetbox SeatCategory = "SWEETBOX"
	SeatCategoryAisle    SeatCategory = "AISLE"
)

func (c SeatCategory) Bookable() bool {
	return c != SeatCategoryAisle
}

// SeatStatus is the seat state as last reported by the backend. A locally
// selected seat is tracked in SelectionSet, never written into the Seat
// itself, so local intent can't be mistaken for server truth.
type SeatStatus string

const (
	SeatStatusAvailable   SeatStatus = "AVAILABLE"
	SeatStatusBooked      SeatStatus = "BOOKED"
	SeatStatusUnavailable SeatStatus = "UNAVAILABLE"
)

type Seat struct {
	ID       string
	Row      string
	Number   int
	Category SeatCategory
	Price    int64 // minor currency units
	Status   SeatStatus
}
