package channel

import (
	"context"
	"testing"
	"time"

	"github.com/cinexapp/checkout-kit/clock"
	"github.com/cinexapp/checkout-kit/domain"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const redisImageName = "redis:7"

type RedisTransportSuite struct {
	suite.Suite
	container *tcredis.RedisContainer
	client    *goredis.Client
}

func (s *RedisTransportSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, redisImageName)
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(ctx)
	s.Require().NoError(err)

	opts, err := goredis.ParseURL(uri)
	s.Require().NoError(err)

	s.client = goredis.NewClient(opts)
}

func (s *RedisTransportSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close()
	}
	if s.container != nil {
		testcontainers.TerminateContainer(s.container)
	}
}

func TestRedisTransportSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis integration tests in short mode")
	}
	suite.Run(t, new(RedisTransportSuite))
}

func (s *RedisTransportSuite) TestHoldEventRoundTrip() {
	alice := New(NewRedisTransport(s.client), clock.NewSystem(), discardLogger(), WithHolderID("alice"))
	bob := New(NewRedisTransport(s.client), clock.NewSystem(), discardLogger(), WithHolderID("bob"))
	defer alice.Close()
	defer bob.Close()

	ctx := context.Background()
	s.Require().NoError(alice.Connect(ctx, 42, 7))
	s.Require().NoError(bob.Connect(ctx, 42, 7))

	waitForState(s.T(), alice, StateConnected)
	waitForState(s.T(), bob, StateConnected)

	s.Require().NoError(alice.Publish(ctx, "B5", true))

	select {
	case event := <-bob.Events():
		s.Equal("B5", event.SeatID)
		s.Equal("alice", event.HolderID)
		s.Equal(domain.HoldEventHolding, event.Kind)
	case <-time.After(5 * time.Second):
		s.Fail("bob never received the hold event over Redis")
	}
}

func (s *RedisTransportSuite) TestTopicsAreIsolatedPerShowtime() {
	alice := New(NewRedisTransport(s.client), clock.NewSystem(), discardLogger(), WithHolderID("alice"))
	other := New(NewRedisTransport(s.client), clock.NewSystem(), discardLogger(), WithHolderID("other"))
	defer alice.Close()
	defer other.Close()

	ctx := context.Background()
	s.Require().NoError(alice.Connect(ctx, 42, 7))
	s.Require().NoError(other.Connect(ctx, 43, 7))

	waitForState(s.T(), alice, StateConnected)
	waitForState(s.T(), other, StateConnected)

	s.Require().NoError(alice.Publish(ctx, "A1", true))

	select {
	case event := <-other.Events():
		s.Failf("cross-showtime leak", "event for %s leaked to another showtime", event.SeatID)
	case <-time.After(500 * time.Millisecond):
	}
}

func (s *RedisTransportSuite) TestPublishWithoutSubscribersDoesNotError() {
	transport := NewRedisTransport(s.client)

	err := transport.Publish(context.Background(), Topic(9, 9), []byte(`{}`))

	require.NoError(s.T(), err)
}
