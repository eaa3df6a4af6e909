// Package collabtest provides a fake collaborator backend for tests. It
// implements the seat-layout, booking, and payment endpoints with an atomic
// per-seat claim, so concurrent booking attempts exercise the same contract
// the real backend guarantees: at most one winner per seat.
package collabtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/cinexapp/checkout-kit/api"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// EnvelopeStyle controls how responses are wrapped, mirroring the real
// backend's inconsistency.
type EnvelopeStyle int

const (
	EnvelopeResult EnvelopeStyle = iota
	EnvelopeData
	EnvelopeBare
)

type bookingRecord struct {
	id      string
	seatIDs []string
	amount  int64
	status  string
}

type paymentRecord struct {
	id        string
	bookingID string
	paid      bool
}

type Server struct {
	*httptest.Server

	style EnvelopeStyle

	mu       sync.Mutex
	seats    map[string]*api.Seat
	bookings map[string]*bookingRecord
	payments map[string]*paymentRecord

	layoutErr   int // non-zero forces this status on layout fetches
	bookingErr  int
	layoutCalls int
}

func NewServer(seats []api.Seat, style EnvelopeStyle) *Server {
	s := &Server{
		style:    style,
		seats:    make(map[string]*api.Seat, len(seats)),
		bookings: make(map[string]*bookingRecord),
		payments: make(map[string]*paymentRecord),
	}

	for i := range seats {
		seat := seats[i]
		s.seats[seat.SeatID] = &seat
	}

	r := chi.NewRouter()
	r.Get("/seats/layout", s.handleLayout)
	r.Post("/bookings", s.handleCreateBooking)
	r.Post("/bookings/cancel", s.handleCancelBooking)
	r.Post("/payment/generate-qr", s.handleGenerateQR)
	r.Get("/payment/status/{paymentID}", s.handlePaymentStatus)

	s.Server = httptest.NewServer(r)

	return s
}

// Grid builds a rows x cols layout of available regular seats priced at
// price, with IDs like "A1".."H12".
func Grid(rows, cols int, price int64) []api.Seat {
	seats := make([]api.Seat, 0, rows*cols)
	for r := 0; r < rows; r++ {
		rowLetter := string(rune('A' + r))
		for c := 1; c <= cols; c++ {
			seats = append(seats, api.Seat{
				SeatID:   fmt.Sprintf("%s%d", rowLetter, c),
				Row:      rowLetter,
				Number:   c,
				Category: "REGULAR",
				Price:    price,
				Status:   "AVAILABLE",
			})
		}
	}
	return seats
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.layoutCalls++
	if s.layoutErr != 0 {
		status := s.layoutErr
		s.mu.Unlock()
		s.writeError(w, status, "layout unavailable")
		return
	}

	out := make([]api.Seat, 0, len(s.seats))
	for _, seat := range s.seats {
		out = append(out, *seat)
	}
	s.mu.Unlock()

	s.writeEnvelope(w, http.StatusOK, out)
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req api.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bookingErr != 0 {
		status := s.bookingErr
		s.writeError(w, status, "booking rejected")
		return
	}

	// The claim is all-or-nothing under one lock, which is exactly the
	// transactional guarantee the client relies on.
	var total int64
	for _, seatID := range req.SeatIDs {
		seat, ok := s.seats[seatID]
		if !ok {
			s.writeError(w, http.StatusNotFound, "unknown seat "+seatID)
			return
		}
		if seat.Status != "AVAILABLE" {
			s.writeError(w, http.StatusConflict, "seat already taken: "+seatID)
			return
		}
		total += seat.Price
	}

	for _, seatID := range req.SeatIDs {
		s.seats[seatID].Status = "BOOKED"
	}

	rec := &bookingRecord{
		id:      uuid.NewString(),
		seatIDs: append([]string(nil), req.SeatIDs...),
		amount:  total,
		status:  "PENDING",
	}
	s.bookings[rec.id] = rec

	s.writeEnvelope(w, http.StatusOK, api.BookingResponse{
		BookingID:   rec.id,
		TotalAmount: rec.amount,
		Status:      rec.status,
	})
}

func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	var req api.CancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.bookings[req.BookingID]
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown booking")
		return
	}

	rec.status = "CANCELLED"
	for _, seatID := range rec.seatIDs {
		if seat, ok := s.seats[seatID]; ok && seat.Status == "BOOKED" {
			seat.Status = "AVAILABLE"
		}
	}

	s.writeEnvelope(w, http.StatusOK, map[string]string{"status": "CANCELLED"})
}

func (s *Server) handleGenerateQR(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateQRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookings[req.BookingID]; !ok {
		s.writeError(w, http.StatusNotFound, "unknown booking")
		return
	}

	rec := &paymentRecord{
		id:        uuid.NewString(),
		bookingID: req.BookingID,
	}
	s.payments[rec.id] = rec

	s.writeEnvelope(w, http.StatusOK, api.GenerateQRResponse{
		PaymentID:  rec.id,
		QRImageURL: "https://pay.example.com/qr/" + rec.id + ".png",
	})
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	s.mu.Lock()
	rec, ok := s.payments[paymentID]
	paid := ok && rec.paid
	s.mu.Unlock()

	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown payment")
		return
	}

	s.writeEnvelope(w, http.StatusOK, api.PaymentStatusResponse{Paid: paid})
}

// BookSeat marks a seat booked out of band, simulating another customer
// winning it.
func (s *Server) BookSeat(seatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seat, ok := s.seats[seatID]; ok {
		seat.Status = "BOOKED"
	}
}

// SettlePayment flips a payment to paid.
func (s *Server) SettlePayment(paymentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.payments[paymentID]; ok {
		rec.paid = true
	}
}

// BookingStatus reports the recorded status for a booking.
func (s *Server) BookingStatus(bookingID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.bookings[bookingID]; ok {
		return rec.status
	}
	return ""
}

// SeatStatus reports the stored status of a seat.
func (s *Server) SeatStatus(seatID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seat, ok := s.seats[seatID]; ok {
		return seat.Status
	}
	return ""
}

// LayoutCalls counts layout fetches, used to assert that commits re-verify.
func (s *Server) LayoutCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layoutCalls
}

// FailLayout forces layout fetches to fail with the given status; zero
// restores normal behavior.
func (s *Server) FailLayout(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layoutErr = status
}

// FailBookings forces booking creation to fail with the given status; zero
// restores normal behavior.
func (s *Server) FailBookings(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookingErr = status
}

func (s *Server) writeEnvelope(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	var body any
	switch s.style {
	case EnvelopeResult:
		body = map[string]any{"result": payload}
	case EnvelopeData:
		body = map[string]any{"data": payload}
	default:
		body = payload
	}

	json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
