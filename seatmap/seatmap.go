// Package seatmap holds the authoritative seat grid for one showtime, as last
// fetched from the backend. The grid is replaced wholesale on refresh; local
// selection intent never leaks into it.
package seatmap

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cinexapp/checkout-kit/domain"
)

type SeatMap struct {
	gateway    domain.SeatGateway
	scheduleID int
	roomID     int
	logger     *slog.Logger

	mu    sync.RWMutex
	seats map[string]domain.Seat
	order []string // seat IDs sorted by row letter, then seat number
}

func New(gateway domain.SeatGateway, scheduleID, roomID int, logger *slog.Logger) *SeatMap {
	return &SeatMap{
		gateway:    gateway,
		scheduleID: scheduleID,
		roomID:     roomID,
		logger:     logger,
		seats:      make(map[string]domain.Seat),
	}
}

func (m *SeatMap) ScheduleID() int { return m.scheduleID }
func (m *SeatMap) RoomID() int     { return m.roomID }

// Load fetches the layout. Network and server errors are recoverable: the
// caller may retry or keep rendering a stale grid, but must Refresh before
// any booking commit.
func (m *SeatMap) Load(ctx context.Context) error {
	seats, err := m.gateway.GetSeatLayout(ctx, m.scheduleID, m.roomID)
	if err != nil {
		return fmt.Errorf("loading seat layout: %w", err)
	}

	m.replace(seats)
	m.logger.Debug("seat layout loaded", "schedule_id", m.scheduleID, "room_id", m.roomID, "seats", len(seats))

	return nil
}

// Refresh re-fetches the layout and prunes selection entries that are no
// longer available, returning the pruned seat IDs so the caller can surface
// a conflict notice.
func (m *SeatMap) Refresh(ctx context.Context, selection *domain.SelectionSet) ([]string, error) {
	seats, err := m.gateway.GetSeatLayout(ctx, m.scheduleID, m.roomID)
	if err != nil {
		return nil, fmt.Errorf("refreshing seat layout: %w", err)
	}

	m.replace(seats)

	if selection == nil {
		return nil, nil
	}

	var conflicts []string
	for _, seatID := range selection.IDs() {
		seat, ok := m.Get(seatID)
		if !ok || seat.Status != domain.SeatStatusAvailable {
			selection.Remove(seatID)
			conflicts = append(conflicts, seatID)
		}
	}

	if len(conflicts) > 0 {
		m.logger.Info("selection pruned after refresh", "conflicting_seats", conflicts)
	}

	return conflicts, nil
}

func (m *SeatMap) replace(seats []domain.Seat) {
	index := make(map[string]domain.Seat, len(seats))
	order := make([]string, 0, len(seats))

	for _, seat := range seats {
		index[seat.ID] = seat
		order = append(order, seat.ID)
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := index[order[i]], index[order[j]]
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Number < b.Number
	})

	m.mu.Lock()
	m.seats = index
	m.order = order
	m.mu.Unlock()
}

func (m *SeatMap) Get(seatID string) (domain.Seat, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seat, ok := m.seats[seatID]
	return seat, ok
}

// Rows returns the grid grouped by row, rows sorted lexicographically and
// seats within a row sorted by number.
func (m *SeatMap) Rows() [][]domain.Seat {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var rows [][]domain.Seat
	var current []domain.Seat

	for _, id := range m.order {
		seat := m.seats[id]
		if len(current) > 0 && current[0].Row != seat.Row {
			rows = append(rows, current)
			current = nil
		}
		current = append(current, seat)
	}

	if len(current) > 0 {
		rows = append(rows, current)
	}

	return rows
}

// MarkBooked flips seats to booked without a round trip. Remote booked events
// use this as a fast path; periodic refreshes correct any drift.
func (m *SeatMap) MarkBooked(seatIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range seatIDs {
		seat, ok := m.seats[id]
		if !ok {
			continue
		}
		seat.Status = domain.SeatStatusBooked
		m.seats[id] = seat
	}
}

func (m *SeatMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.seats)
}
