// Package rest implements the domain gateway interfaces against the
// collaborator backend's HTTP API.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cinexapp/checkout-kit/api"
	"github.com/cinexapp/checkout-kit/domain"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
	session *domain.SessionContext
	logger  *slog.Logger
}

type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mostly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

func NewClient(baseURL string, session *domain.SessionContext, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		session: session,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) GetSeatLayout(ctx context.Context, scheduleID, roomID int) ([]domain.Seat, error) {
	query := url.Values{}
	query.Set("scheduleId", fmt.Sprint(scheduleID))
	query.Set("roomId", fmt.Sprint(roomID))

	body, err := c.do(ctx, http.MethodGet, "/seats/layout?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching seat layout: %w", err)
	}

	var wireSeats []api.Seat
	if err := api.DecodeInto(body, &wireSeats); err != nil {
		return nil, fmt.Errorf("decoding seat layout: %w", err)
	}

	seats := make([]domain.Seat, len(wireSeats))
	for i, s := range wireSeats {
		seats[i] = domain.Seat{
			ID:       s.SeatID,
			Row:      s.Row,
			Number:   s.Number,
			Category: domain.SeatCategory(s.Category),
			Price:    s.Price,
			Status:   domain.SeatStatus(s.Status),
		}
	}

	return seats, nil
}

func (c *Client) CreateBooking(ctx context.Context, req domain.BookingRequest) (*domain.Booking, error) {
	wireReq := api.CreateBookingRequest{
		ScheduleID:    req.ScheduleID,
		RoomID:        req.RoomID,
		SeatIDs:       req.SeatIDs,
		FoodItems:     toWireFoodItems(req.FoodItems),
		PaymentMethod: string(req.PaymentMethod),
	}

	body, err := c.do(ctx, http.MethodPost, "/bookings", wireReq)
	if err != nil {
		return nil, fmt.Errorf("creating booking: %w", err)
	}

	var resp api.BookingResponse
	if err := api.DecodeInto(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding booking response: %w", err)
	}

	return &domain.Booking{
		BookingID:     resp.BookingID,
		ScheduleID:    req.ScheduleID,
		RoomID:        req.RoomID,
		SeatIDs:       req.SeatIDs,
		FoodItems:     req.FoodItems,
		PaymentMethod: req.PaymentMethod,
		TotalAmount:   resp.TotalAmount,
		Status:        domain.BookingStatus(resp.Status),
	}, nil
}

func (c *Client) CancelBooking(ctx context.Context, bookingID string) error {
	_, err := c.do(ctx, http.MethodPost, "/bookings/cancel", api.CancelBookingRequest{BookingID: bookingID})
	if err != nil {
		return fmt.Errorf("cancelling booking %s: %w", bookingID, err)
	}

	return nil
}

func (c *Client) GenerateQR(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	wireReq := api.GenerateQRRequest{
		BookingID:     req.BookingID,
		PaymentMethod: string(req.PaymentMethod),
		Amount:        req.Amount,
	}

	body, err := c.do(ctx, http.MethodPost, "/payment/generate-qr", wireReq)
	if err != nil {
		return nil, fmt.Errorf("generating payment QR: %w", err)
	}

	var resp api.GenerateQRResponse
	if err := api.DecodeInto(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding payment QR response: %w", err)
	}

	return &domain.Payment{
		PaymentID: resp.PaymentID,
		BookingID: req.BookingID,
		QRPayload: resp.QRImageURL,
		Amount:    req.Amount,
	}, nil
}

func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, "/payment/status/"+paymentID, nil)
	if err != nil {
		return false, fmt.Errorf("checking payment status: %w", err)
	}

	var resp api.PaymentStatusResponse
	if err := api.DecodeInto(body, &resp); err != nil {
		return false, fmt.Errorf("decoding payment status: %w", err)
	}

	return resp.Paid, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != nil && c.session.Active() {
		req.Header.Set("Authorization", "Bearer "+c.session.Token())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, c.toError(resp.StatusCode, body, method, path)
	}

	return body, nil
}

func (c *Client) toError(status int, body []byte, method, path string) error {
	msg := api.ErrorMessage(body)

	switch status {
	case http.StatusConflict:
		c.logger.Warn("backend rejected request with a seat conflict", "method", method, "path", path)
		return domain.ErrSeatAlreadyReserved
	default:
		if msg == "" {
			msg = http.StatusText(status)
		}
		return fmt.Errorf("backend returned %d: %s", status, msg)
	}
}

func toWireFoodItems(items []domain.FoodItem) []api.FoodItem {
	wire := make([]api.FoodItem, len(items))
	for i, item := range items {
		wire[i] = api.FoodItem{ItemID: item.ItemID, Quantity: item.Quantity}
	}
	return wire
}
