package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/internal/trading/application"
	"github.com/wyfcoding/papertrading/internal/trading/infrastructure/persistence/memory"
)

type fixedQuotes struct {
	price decimal.Decimal
}

func (f fixedQuotes) GetQuote(ctx context.Context, symbol string) (*mddomain.Quote, error) {
	return &mddomain.Quote{Symbol: symbol, Price: f.price}, nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	orders := memory.NewOrderRepository()
	positions := memory.NewPositionRepository()
	engine := application.NewEngine(orders, positions, fixedQuotes{price: decimal.NewFromInt(150)}, nil, nil)
	trading := application.NewTradingService(engine, orders, positions)
	monitor := application.NewMonitor(engine, orders, fixedQuotes{price: decimal.NewFromInt(150)}, nil)

	router := gin.New()
	NewTradingHandler(trading, monitor).RegisterRoutes(&router.RouterGroup)
	return router
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestPlaceMarketOrderEndpoint(t *testing.T) {
	router := newTestRouter()

	status, env := doJSON(t, router, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","symbol":"AAPL","side":"BUY","type":"MARKET","quantity":"10"}`)
	require.Equal(t, http.StatusOK, status)

	var result application.ExecutionResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "FILLED", string(result.Status))
	assert.True(t, result.FilledPrice.Equal(decimal.NewFromInt(150)))
	assert.NotEmpty(t, result.OrderID)
}

func TestPlaceOrderValidationFailure(t *testing.T) {
	router := newTestRouter()

	// 限价单缺限价
	status, _ := doJSON(t, router, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","symbol":"AAPL","side":"BUY","type":"LIMIT","quantity":"10"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	// 缺必填字段
	status, _ = doJSON(t, router, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","symbol":"AAPL"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCancelOrderEndpoint(t *testing.T) {
	router := newTestRouter()

	status, env := doJSON(t, router, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","symbol":"AAPL","side":"BUY","type":"LIMIT","quantity":"10","limit_price":"100"}`)
	require.Equal(t, http.StatusOK, status)

	var placed application.ExecutionResult
	require.NoError(t, json.Unmarshal(env.Data, &placed))
	assert.Equal(t, "PENDING", string(placed.Status))

	status, env = doJSON(t, router, http.MethodDelete, "/api/v1/orders/"+placed.OrderID,
		`{"user_id":"u1"}`)
	require.Equal(t, http.StatusOK, status)

	var cancelled application.ExecutionResult
	require.NoError(t, json.Unmarshal(env.Data, &cancelled))
	assert.Equal(t, "CANCELLED", string(cancelled.Status))

	// 终态订单二次取消是冲突
	status, _ = doJSON(t, router, http.MethodDelete, "/api/v1/orders/"+placed.OrderID,
		`{"user_id":"u1"}`)
	assert.Equal(t, http.StatusConflict, status)
}

func TestCancelUnknownOrderEndpoint(t *testing.T) {
	router := newTestRouter()

	status, _ := doJSON(t, router, http.MethodDelete, "/api/v1/orders/missing", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestModifyOrderEndpoint(t *testing.T) {
	router := newTestRouter()

	status, env := doJSON(t, router, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","symbol":"AAPL","side":"BUY","type":"LIMIT","quantity":"10","limit_price":"100"}`)
	require.Equal(t, http.StatusOK, status)
	var placed application.ExecutionResult
	require.NoError(t, json.Unmarshal(env.Data, &placed))

	status, _ = doJSON(t, router, http.MethodPatch, "/api/v1/orders/"+placed.OrderID,
		`{"user_id":"u1","quantity":"5","limit_price":"95"}`)
	require.Equal(t, http.StatusOK, status)

	status, env = doJSON(t, router, http.MethodGet, "/api/v1/orders/"+placed.OrderID, "")
	require.Equal(t, http.StatusOK, status)
	var order struct {
		Quantity   decimal.Decimal `json:"quantity"`
		LimitPrice decimal.Decimal `json:"limit_price"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.True(t, order.Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, order.LimitPrice.Equal(decimal.NewFromInt(95)))
}

func TestListOrdersAndPositionsEndpoints(t *testing.T) {
	router := newTestRouter()

	status, _ := doJSON(t, router, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","symbol":"AAPL","side":"BUY","type":"MARKET","quantity":"10"}`)
	require.Equal(t, http.StatusOK, status)

	status, env := doJSON(t, router, http.MethodGet, "/api/v1/orders?user_id=u1", "")
	require.Equal(t, http.StatusOK, status)
	var orders []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &orders))
	assert.Len(t, orders, 1)

	status, env = doJSON(t, router, http.MethodGet, "/api/v1/positions?user_id=u1", "")
	require.Equal(t, http.StatusOK, status)
	var positions []struct {
		Symbol   string          `json:"symbol"`
		Quantity decimal.Decimal `json:"quantity"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, "AAPL", positions[0].Symbol)
	assert.True(t, positions[0].Quantity.Equal(decimal.NewFromInt(10)))

	// user_id 缺失直接拒绝
	status, _ = doJSON(t, router, http.MethodGet, "/api/v1/orders", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRunMonitorCycleEndpoint(t *testing.T) {
	router := newTestRouter()

	status, env := doJSON(t, router, http.MethodPost, "/api/v1/orders",
		`{"user_id":"u1","symbol":"AAPL","side":"BUY","type":"LIMIT","quantity":"10","limit_price":"200"}`)
	require.Equal(t, http.StatusOK, status)
	var placed application.ExecutionResult
	require.NoError(t, json.Unmarshal(env.Data, &placed))

	// 现价 150 低于限价 200，本轮成交
	status, env = doJSON(t, router, http.MethodPost, "/api/v1/monitor/run", "")
	require.Equal(t, http.StatusOK, status)
	var summary application.CycleSummary
	require.NoError(t, json.Unmarshal(env.Data, &summary))
	assert.Equal(t, 1, summary.Filled)
}
