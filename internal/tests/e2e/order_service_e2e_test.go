// Package e2e provides end-to-end tests for the order service HTTP API.
// The suite runs the real application handler in an httptest.Server against PostgreSQL
// and Redis containers, and checks that writes made over HTTP show up in the cache-backed reports.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/abgdnv/ordersync/internal/app"
	"github.com/abgdnv/ordersync/internal/cache"
	"github.com/abgdnv/ordersync/internal/config"
	"github.com/abgdnv/ordersync/internal/testutil"
	"github.com/abgdnv/ordersync/pkg/messaging"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const ordersURL = "/api/v1/orders"

type OrderServiceE2ESuite struct {
	suite.Suite
	pg         *testutil.Postgres
	rdb        *testutil.Redis
	server     *httptest.Server
	httpClient *http.Client
	ctx        context.Context
}

func testConfig() *config.Config {
	var cfg config.Config
	cfg.Cache.CircuitBreaker.ConsecutiveFailures = 5
	cfg.Cache.CircuitBreaker.ErrorRatePercent = 50
	cfg.Cache.CircuitBreaker.OpenTimeout = 30 * time.Second
	cfg.Cache.CircuitBreaker.HalfOpenRequests = 1
	return &cfg
}

func (s *OrderServiceE2ESuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = testutil.StartPostgres(s.ctx, s.T())
	s.rdb = testutil.StartRedis(s.ctx, s.T())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	deps := app.SetupDependencies(s.pg.Pool, s.rdb.Client, messaging.NoopPublisher{}, testConfig(), logger)

	s.server = httptest.NewServer(app.SetupHttpHandler(deps))
	s.httpClient = s.server.Client()
}

func (s *OrderServiceE2ESuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	s.rdb.Close(s.ctx)
	s.pg.Close(s.ctx)
}

func (s *OrderServiceE2ESuite) SetupTest() {
	s.pg.Reset(s.ctx, s.T())
	require.NoError(s.T(), s.rdb.Client.FlushDB(s.ctx).Err())
}

func TestOrderServiceE2E(t *testing.T) {
	testutil.SkipIfDisabled(t)
	suite.Run(t, new(OrderServiceE2ESuite))
}

type itemPayload struct {
	ProductID string `json:"product_id"`
	Quantity  string `json:"quantity"`
}

type createOrderPayload struct {
	UserID int64         `json:"user_id"`
	Items  []itemPayload `json:"items"`
}

func (s *OrderServiceE2ESuite) TestCreateReportDelete() {
	// given
	a := strconv.FormatInt(s.pg.SeedProduct(s.ctx, s.T(), "A", "10.00"), 10)
	b := strconv.FormatInt(s.pg.SeedProduct(s.ctx, s.T(), "B", "5.50"), 10)

	// when
	var created struct {
		OrderID int64 `json:"order_id"`
	}
	code := s.do(http.MethodPost, ordersURL, createOrderPayload{
		UserID: 1,
		Items:  []itemPayload{{ProductID: a, Quantity: "2"}, {ProductID: b, Quantity: "1"}},
	}, &created)

	// then
	require.Equal(s.T(), http.StatusCreated, code)
	require.Positive(s.T(), created.OrderID)

	var order cache.OrderView
	code = s.do(http.MethodGet, fmt.Sprintf("%s/%d", ordersURL, created.OrderID), nil, &order)
	require.Equal(s.T(), http.StatusOK, code)
	require.Equal(s.T(), "25.5", order.TotalAmount.String())

	var sellers []cache.ProductSales
	require.Equal(s.T(), http.StatusOK, s.do(http.MethodGet, "/api/v1/reports/best-sellers", nil, &sellers))
	require.Len(s.T(), sellers, 2)
	require.Equal(s.T(), int64(2), sellers[0].Quantity)

	var spenders []cache.UserSpend
	require.Equal(s.T(), http.StatusOK, s.do(http.MethodGet, "/api/v1/reports/top-spenders", nil, &spenders))
	require.Len(s.T(), spenders, 1)
	require.Equal(s.T(), int64(1), spenders[0].UserID)

	require.Equal(s.T(), http.StatusNoContent, s.do(http.MethodDelete, fmt.Sprintf("%s/%d", ordersURL, created.OrderID), nil, nil))
	require.Equal(s.T(), http.StatusNotFound, s.do(http.MethodDelete, fmt.Sprintf("%s/%d", ordersURL, created.OrderID), nil, nil))

	var orders []cache.OrderView
	require.Equal(s.T(), http.StatusOK, s.do(http.MethodGet, ordersURL, nil, &orders))
	require.Empty(s.T(), orders)
}

func (s *OrderServiceE2ESuite) TestCreateRejected() {
	known := strconv.FormatInt(s.pg.SeedProduct(s.ctx, s.T(), "A", "1.00"), 10)

	testCases := []struct {
		name    string
		payload createOrderPayload
	}{
		{name: "Unknown product", payload: createOrderPayload{UserID: 1, Items: []itemPayload{{ProductID: "999", Quantity: "1"}}}},
		{name: "Zero quantity", payload: createOrderPayload{UserID: 1, Items: []itemPayload{{ProductID: known, Quantity: "0"}}}},
		{name: "Non-numeric quantity", payload: createOrderPayload{UserID: 1, Items: []itemPayload{{ProductID: known, Quantity: "abc"}}}},
		{name: "No items", payload: createOrderPayload{UserID: 1}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			code := s.do(http.MethodPost, ordersURL, tc.payload, nil)

			require.Equal(s.T(), http.StatusBadRequest, code)
			var count int
			require.NoError(s.T(), s.pg.Pool.QueryRow(s.ctx, "SELECT count(*) FROM orders").Scan(&count))
			require.Zero(s.T(), count, "a rejected order must not be stored")
		})
	}
}

func (s *OrderServiceE2ESuite) TestMetricsEndpoint() {
	resp, err := s.httpClient.Get(s.server.URL + "/metrics")
	require.NoError(s.T(), err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
}

// do sends payload as JSON and decodes the response into out when out is not nil.
// Returns the HTTP status code.
func (s *OrderServiceE2ESuite) do(method, path string, payload, out any) int {
	s.T().Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(s.T(), err)
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(s.ctx, method, s.server.URL+path, body)
	require.NoError(s.T(), err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode < http.StatusMultipleChoices {
		require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
