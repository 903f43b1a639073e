package nats

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/abgdnv/ordersync/pkg/messaging"
	"github.com/abgdnv/ordersync/pkg/messaging/events"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcnats "github.com/testcontainers/testcontainers-go/modules/nats"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const skipIntegrationTests = "ORDER_SVC_SKIP_INTEGRATION_TESTS"
const natsImg = "nats:2.11.6-alpine"

type PublisherSuite struct {
	suite.Suite
	ctx           context.Context
	natsContainer *tcnats.NATSContainer
	js            jetstream.JetStream
	closeConn     func()
}

func (s *PublisherSuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.natsContainer, err = tcnats.Run(s.ctx, natsImg)
	require.NoError(s.T(), err, "Failed to run NATS container")

	natsURL, err := s.natsContainer.ConnectionString(s.ctx)
	require.NoError(s.T(), err)
	nc, err := NewClient(natsURL, 5*time.Second)
	require.NoError(s.T(), err, "Failed to connect to NATS")
	s.closeConn = nc.Close

	s.js, err = NewJetStreamContext(nc)
	require.NoError(s.T(), err)
	require.NoError(s.T(), EnsureOrdersStream(s.ctx, s.js, time.Hour))
}

func (s *PublisherSuite) TearDownSuite() {
	s.closeConn()
	if err := testcontainers.TerminateContainer(s.natsContainer); err != nil {
		s.T().Logf("Failed to terminate NATS container: %v", err)
	}
}

func TestPublisherIntegration(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) TestEnsureOrdersStream_IsIdempotent() {
	require.NoError(s.T(), EnsureOrdersStream(s.ctx, s.js, 2*time.Hour))

	stream, err := s.js.Stream(s.ctx, OrdersStream)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2*time.Hour, stream.CachedInfo().Config.MaxAge)
}

func (s *PublisherSuite) TestPublish() {
	// given
	otel.SetTextMapPropagator(propagation.TraceContext{})
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(s.ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	event := events.OrderCreatedEvent{
		OrderID:     11,
		UserID:      1,
		TotalAmount: decimal.RequireFromString("25.50"),
		Items: []events.OrderItem{
			{ProductID: 1, Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("10.00")},
		},
		CreatedAt: time.Now().UTC(),
	}

	// when
	err := NewNatsPublisher(s.js).Publish(ctx, event)

	// then
	require.NoError(s.T(), err)
	stream, err := s.js.Stream(s.ctx, OrdersStream)
	require.NoError(s.T(), err)
	msg, err := stream.GetLastMsgForSubject(s.ctx, messaging.OrdersCreatedSubject)
	require.NoError(s.T(), err)

	var got events.OrderCreatedEvent
	require.NoError(s.T(), json.Unmarshal(msg.Data, &got))
	assert.Equal(s.T(), int64(11), got.OrderID)
	assert.True(s.T(), got.TotalAmount.Equal(event.TotalAmount))
	assert.Contains(s.T(), msg.Header.Get("traceparent"), traceID.String())
}
