package mocks

import (
	"context"
	"sync"

	"github.com/cinexapp/checkout-kit/domain"
)

// FuncSeatGateway is a function-backed seat gateway for tests that need to
// swap behavior between calls without mock expectations.
type FuncSeatGateway struct {
	mu                sync.Mutex
	GetSeatLayoutFunc func(ctx context.Context, scheduleID, roomID int) ([]domain.Seat, error)
	calls             int
}

func (g *FuncSeatGateway) GetSeatLayout(ctx context.Context, scheduleID, roomID int) ([]domain.Seat, error) {
	g.mu.Lock()
	g.calls++
	fn := g.GetSeatLayoutFunc
	g.mu.Unlock()

	return fn(ctx, scheduleID, roomID)
}

// Calls reports how many layout fetches were made.
func (g *FuncSeatGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// SetFunc replaces the layout behavior.
func (g *FuncSeatGateway) SetFunc(fn func(ctx context.Context, scheduleID, roomID int) ([]domain.Seat, error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.GetSeatLayoutFunc = fn
}
