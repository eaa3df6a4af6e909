package domain

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

type PaymentMethod string

const (
	PaymentMethodQR   PaymentMethod = "QR_TRANSFER"
	PaymentMethodCard PaymentMethod = "CARD"
)

type FoodItem struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

// Booking is the client-side view of a booking created by the backend: just
// enough to render confirmation and drive payment.
type Booking struct {
	BookingID     string
	ScheduleID    int
	RoomID        int
	SeatIDs       []string
	FoodItems     []FoodItem
	PaymentMethod PaymentMethod
	TotalAmount   int64
	Status        BookingStatus
}

// BookingRequest is the payload submitted to the backend. The server is the
// final arbiter of seat conflicts; the fields here only describe intent.
type BookingRequest struct {
	ScheduleID    int           `json:"scheduleId" validate:"gt=0"`
	RoomID        int           `json:"roomId" validate:"gt=0"`
	SeatIDs       []string      `json:"seatIds" validate:"min=1,dive,required"`
	FoodItems     []FoodItem    `json:"foodItems" validate:"dive"`
	PaymentMethod PaymentMethod `json:"paymentMethod" validate:"oneof=QR_TRANSFER CARD"`
}
