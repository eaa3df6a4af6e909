package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/cinexapp/checkout-kit/domain"
	"github.com/cinexapp/checkout-kit/internal/collabtest"
	"github.com/cinexapp/checkout-kit/rest"
	"github.com/cinexapp/checkout-kit/seatmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Many shoppers race to commit the same seat; the backend's claim must let
// exactly one through and everyone else must come back with a conflict.
func TestConcurrentCommitsSingleWinner(t *testing.T) {
	const shoppers = 8

	server := collabtest.NewServer(collabtest.Grid(8, 12, 70_000), collabtest.EnvelopeResult)
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var wg sync.WaitGroup
	results := make([]error, shoppers)

	for i := 0; i < shoppers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			session := domain.NewSessionContext()
			session.Init("user", "token")

			client := rest.NewClient(server.URL, session, logger)
			seatMap := seatmap.New(client, 42, 7, logger)
			if err := seatMap.Load(context.Background()); err != nil {
				results[i] = err
				return
			}

			selection := domain.NewSelectionSet()
			selection.Add("B5")

			coord := NewCoordinator(seatMap, selection, client, session, logger)
			_, results[i] = coord.Proceed(context.Background(), nil, domain.PaymentMethodQR)
		}(i)
	}

	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else {
			assert.True(t,
				errors.Is(err, domain.ErrSeatAlreadyReserved),
				"loser got unexpected error: %v", err)
		}
	}

	require.Equal(t, 1, winners, "exactly one concurrent commit must win seat B5")
	assert.Equal(t, "BOOKED", server.SeatStatus("B5"))
}

// The full happy path against the fake backend: load, verify, submit.
func TestProceedEndToEnd(t *testing.T) {
	server := collabtest.NewServer(collabtest.Grid(8, 12, 70_000), collabtest.EnvelopeData)
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := domain.NewSessionContext()
	session.Init("user", "token")

	client := rest.NewClient(server.URL, session, logger)
	seatMap := seatmap.New(client, 42, 7, logger)
	require.NoError(t, seatMap.Load(context.Background()))

	selection := domain.NewSelectionSet()
	selection.Add("C3")
	selection.Add("C4")

	coord := NewCoordinator(seatMap, selection, client, session, logger)

	layoutCallsBefore := server.LayoutCalls()

	booking, err := coord.Proceed(context.Background(), nil, domain.PaymentMethodQR)

	require.NoError(t, err)
	assert.Equal(t, int64(140_000), booking.TotalAmount)
	assert.Equal(t, StateAwaitingPayment, coord.State())
	assert.Greater(t, server.LayoutCalls(), layoutCallsBefore, "commit must re-verify against the backend")
	assert.Equal(t, "BOOKED", server.SeatStatus("C3"))
	assert.Equal(t, "BOOKED", server.SeatStatus("C4"))
}

// A seat grabbed out of band between selection and proceed never reaches the
// backend submit.
func TestProceedEndToEndConflict(t *testing.T) {
	server := collabtest.NewServer(collabtest.Grid(8, 12, 70_000), collabtest.EnvelopeResult)
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	session := domain.NewSessionContext()
	session.Init("user", "token")

	client := rest.NewClient(server.URL, session, logger)
	seatMap := seatmap.New(client, 42, 7, logger)
	require.NoError(t, seatMap.Load(context.Background()))

	selection := domain.NewSelectionSet()
	selection.Add("B5")
	selection.Add("B6")

	server.BookSeat("B5")

	coord := NewCoordinator(seatMap, selection, client, session, logger)
	_, err := coord.Proceed(context.Background(), nil, domain.PaymentMethodQR)

	var conflict *domain.SeatConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []string{"B5"}, conflict.SeatIDs)

	// B6 is untouched server-side: nothing was submitted.
	assert.Equal(t, "AVAILABLE", server.SeatStatus("B6"))
	assert.Equal(t, []string{"B6"}, selection.IDs())
}
