package api

type Seat struct {
	SeatID   string `json:"seatId"`
	Row      string `json:"row"`
	Number   int    `json:"number"`
	Category string `json:"category"`
	Price    int64  `json:"price"`
	Status   string `json:"status"`
}

type CreateBookingRequest struct {
	ScheduleID    int        `json:"scheduleId"`
	RoomID        int        `json:"roomId"`
	SeatIDs       []string   `json:"seatIds"`
	FoodItems     []FoodItem `json:"foodItems"`
	PaymentMethod string     `json:"paymentMethod"`
}

type FoodItem struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type BookingResponse struct {
	BookingID   string `json:"bookingId"`
	TotalAmount int64  `json:"totalAmount"`
	Status      string `json:"status"`
}

type GenerateQRRequest struct {
	BookingID     string `json:"bookingId"`
	PaymentMethod string `json:"paymentMethod"`
	Amount        int64  `json:"amount"`
}

type GenerateQRResponse struct {
	PaymentID  string `json:"paymentId"`
	QRImageURL string `json:"qrImageUrl"`
}

type PaymentStatusResponse struct {
	Paid bool `json:"paid"`
}

type CancelBookingRequest struct {
	BookingID string `json:"bookingId"`
}

// SeatEvent is the push-channel message schema. One logical topic exists per
// (roomId, scheduleId) pair; every client publishing to it tags events with
// its ephemeral holder ID.
type SeatEvent struct {
	SeatID    string `json:"seatId"`
	Status    string `json:"status"` // HOLDING | RELEASED | BOOKED
	HolderID  string `json:"holderId"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}
