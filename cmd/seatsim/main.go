// seatsim floods one showtime with concurrent shoppers all trying to book the
// same seat, demonstrating that the backend claim admits exactly one winner.
// Holds are broadcast over Redis when -redis-url is set, or over an in-process
// hub otherwise, so the contention is visible live.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cinexapp/checkout-kit/booking"
	"github.com/cinexapp/checkout-kit/channel"
	"github.com/cinexapp/checkout-kit/clock"
	"github.com/cinexapp/checkout-kit/domain"
	"github.com/cinexapp/checkout-kit/holds"
	"github.com/cinexapp/checkout-kit/rest"
	"github.com/cinexapp/checkout-kit/seatmap"
	"github.com/cinexapp/checkout-kit/selection"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
)

type config struct {
	baseURL    string
	redisURL   string
	scheduleID int
	roomID     int
	shoppers   int
	seatID     string
	token      string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; flags win over environment values.
	_ = godotenv.Load()

	var cfg config

	flag.StringVar(&cfg.baseURL, "base-url", envOr("CHECKOUT_BASE_URL", "http://localhost:8080"), "collaborator API base URL")
	flag.StringVar(&cfg.redisURL, "redis-url", os.Getenv("CHECKOUT_REDIS_URL"), "Redis URL for hold broadcasting (optional)")
	flag.IntVar(&cfg.scheduleID, "schedule", 1, "schedule ID")
	flag.IntVar(&cfg.roomID, "room", 1, "room ID")
	flag.IntVar(&cfg.shoppers, "shoppers", 5, "number of concurrent shoppers")
	flag.StringVar(&cfg.seatID, "seat", "B5", "contested seat ID")
	flag.StringVar(&cfg.token, "token", os.Getenv("CHECKOUT_TOKEN"), "bearer token for the collaborator API")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	newTransport, closeTransports, err := transportFactory(cfg, logger)
	if err != nil {
		return err
	}
	defer closeTransports()

	logger.Info("starting seat contention run",
		"shoppers", cfg.shoppers, "seat", cfg.seatID,
		"schedule_id", cfg.scheduleID, "room_id", cfg.roomID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var wg sync.WaitGroup
	results := make([]error, cfg.shoppers)

	for i := 0; i < cfg.shoppers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = shop(ctx, cfg, newTransport(), logger.With("shopper", i))
		}(i)
	}

	wg.Wait()

	winners := 0
	for i, res := range results {
		switch {
		case res == nil:
			winners++
			logger.Info("shopper booked the seat", "shopper", i)
		case errors.Is(res, domain.ErrSeatAlreadyReserved):
			logger.Info("shopper lost the seat race", "shopper", i)
		default:
			logger.Error("shopper failed", "shopper", i, "error", res)
		}
	}

	logger.Info("run complete", "winners", winners, "losers", cfg.shoppers-winners)

	if winners > 1 {
		return fmt.Errorf("backend accepted %d bookings for one seat", winners)
	}

	return nil
}

func shop(ctx context.Context, cfg config, transport channel.Transport, logger *slog.Logger) error {
	session := domain.NewSessionContext()
	session.Init(uuid.NewString(), cfg.token)

	clk := clock.NewSystem()
	client := rest.NewClient(cfg.baseURL, session, logger)
	seatMap := seatmap.New(client, cfg.scheduleID, cfg.roomID, logger)
	registry := holds.NewRegistry(clk, logger)
	ch := channel.New(transport, clk, logger)

	step := selection.NewStep(seatMap, registry, ch, clk, logger)
	if err := step.Start(ctx); err != nil {
		return err
	}
	defer step.Close()

	if err := step.Select(ctx, cfg.seatID); err != nil {
		return err
	}

	// A brief pause lets hold broadcasts propagate before everyone commits.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(200 * time.Millisecond):
	}

	coord := booking.NewCoordinator(seatMap, step.Selection(), client, session, logger)

	_, err := coord.Proceed(ctx, nil, domain.PaymentMethodQR)

	return err
}

func transportFactory(cfg config, logger *slog.Logger) (func() channel.Transport, func(), error) {
	if cfg.redisURL == "" {
		hub := channel.NewMemoryHub()
		logger.Info("broadcasting holds over in-process hub")
		return func() channel.Transport { return hub.NewTransport() }, func() {}, nil
	}

	opts, err := goredis.ParseURL(cfg.redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	logger.Info("broadcasting holds over redis", "url", cfg.redisURL)

	return func() channel.Transport { return channel.NewRedisTransport(client) },
		func() { client.Close() },
		nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
