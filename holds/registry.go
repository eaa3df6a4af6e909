// Package holds tracks other shoppers' temporary seat holds for one showtime.
// Holds live only in memory and only gate the local UI; the backend resolves
// real contention at booking-commit time.
package holds

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cinexapp/checkout-kit/clock"
	"github.com/cinexapp/checkout-kit/domain"
)

// DefaultTTL bounds how long a hold survives without a refresh. It covers
// clients that vanish without sending a release (crash, network partition).
const DefaultTTL = 60 * time.Second

type Registry struct {
	mu     sync.Mutex
	holds  map[string]domain.TemporaryHold
	clock  clock.Clock
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*Registry)

// WithTTL overrides the hold expiry age.
func WithTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func NewRegistry(clk clock.Clock, logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		holds:  make(map[string]domain.TemporaryHold),
		clock:  clk,
		ttl:    DefaultTTL,
		logger: logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Upsert records a hold with a fresh acquisition time. Repeated events for
// the same seat refresh the hold's age.
func (r *Registry) Upsert(seatID, holderID string) domain.TemporaryHold {
	r.mu.Lock()
	defer r.mu.Unlock()

	hold := domain.TemporaryHold{
		SeatID:     seatID,
		HolderID:   holderID,
		AcquiredAt: r.clock.Now(),
	}
	r.holds[seatID] = hold

	return hold
}

// Release removes the hold for seatID, if any.
func (r *Registry) Release(seatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.holds, seatID)
}

// HeldBy reports the holder of seatID, if one is known and not yet expired.
func (r *Registry) HeldBy(seatID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hold, ok := r.holds[seatID]
	if !ok {
		return "", false
	}
	if r.clock.Now().Sub(hold.AcquiredAt) > r.ttl {
		return "", false
	}

	return hold.HolderID, true
}

// Holds returns a snapshot of the registry, sorted by seat ID.
func (r *Registry) Holds() []domain.TemporaryHold {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.TemporaryHold, 0, len(r.holds))
	for _, hold := range r.holds {
		out = append(out, hold)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatID < out[j].SeatID })

	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.holds)
}

// Sweep removes holds older than the TTL and returns the removed holds.
func (r *Registry) Sweep() []domain.TemporaryHold {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var expired []domain.TemporaryHold

	for seatID, hold := range r.holds {
		if now.Sub(hold.AcquiredAt) > r.ttl {
			expired = append(expired, hold)
			delete(r.holds, seatID)
		}
	}

	if len(expired) > 0 {
		r.logger.Debug("swept expired seat holds", "count", len(expired))
	}

	return expired
}
