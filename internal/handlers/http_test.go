package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dex-engine/internal/engine"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (*mux.Router, *engine.MatchingEngine) {
	t.Helper()
	e := engine.NewMatchingEngine()
	require.NoError(t, e.AddSymbol("ETH/USDC"))

	r := mux.NewRouter()
	NewHandler(e, 5).SetupRoutes(r)
	return r, e
}

func doRequest(r http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func deposit(t *testing.T, r http.Handler, user, asset, amount string) {
	t.Helper()
	rec := doRequest(r, http.MethodPost, "/api/deposit", map[string]string{
		"user": user, "asset": asset, "amount": amount,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func placeOrder(t *testing.T, r http.Handler, body map[string]interface{}) engine.Order {
	t.Helper()
	rec := doRequest(r, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order engine.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	return order
}

func TestHealthCheck(t *testing.T) {
	r, _ := setupRouter(t)
	rec := doRequest(r, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateOrderAndMatch(t *testing.T) {
	r, _ := setupRouter(t)
	deposit(t, r, "seller", "ETH", "1")
	deposit(t, r, "buyer", "USDC", "2000")

	sell := placeOrder(t, r, map[string]interface{}{
		"trader": "seller", "symbol": "ETH/USDC", "side": "sell", "type": "limit",
		"quantity": "1", "price": "2000",
	})
	assert.Equal(t, engine.StatusPending, sell.Status)
	assert.Equal(t, engine.GTC, sell.TimeInForce)

	buy := placeOrder(t, r, map[string]interface{}{
		"trader": "buyer", "symbol": "ETH/USDC", "side": "buy", "type": "market", "quantity": "1",
	})
	assert.Equal(t, engine.StatusFilled, buy.Status)

	rec := doRequest(r, http.MethodGet, "/api/trades?symbol=ETH/USDC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trades []engine.Trade
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	require.Len(t, trades, 1)
	assert.True(t, trades[0].Price.Equal(decimal.NewFromInt(2000)))

	rec = doRequest(r, http.MethodGet, "/api/balances/buyer/ETH", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance struct {
		Balance decimal.Decimal `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(1)))

	rec = doRequest(r, http.MethodGet, "/api/ticker?symbol=ETH/USDC", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ticker engine.Ticker
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ticker))
	assert.True(t, ticker.Last.Equal(decimal.NewFromInt(2000)))
}

func TestCreateOrderErrors(t *testing.T) {
	r, _ := setupRouter(t)

	tests := []struct {
		name   string
		body   interface{}
		status int
	}{
		{"malformed body", "not an object", http.StatusBadRequest},
		{"unknown side", map[string]string{"trader": "a", "symbol": "ETH/USDC", "side": "hold", "type": "limit", "quantity": "1", "price": "1"}, http.StatusBadRequest},
		{"unknown type", map[string]string{"trader": "a", "symbol": "ETH/USDC", "side": "buy", "type": "iceberg", "quantity": "1"}, http.StatusBadRequest},
		{"limit without price", map[string]string{"trader": "a", "symbol": "ETH/USDC", "side": "buy", "type": "limit", "quantity": "1"}, http.StatusBadRequest},
		{"unknown symbol", map[string]string{"trader": "a", "symbol": "SOL/USDC", "side": "buy", "type": "market", "quantity": "1"}, http.StatusNotFound},
		{"sell without balance", map[string]string{"trader": "a", "symbol": "ETH/USDC", "side": "sell", "type": "market", "quantity": "1"}, http.StatusUnprocessableEntity},
		{"price exponent out of range", map[string]string{"trader": "a", "symbol": "ETH/USDC", "side": "buy", "type": "limit", "quantity": "1", "price": "1e-300000000"}, http.StatusBadRequest},
		{"quantity exponent out of range", map[string]string{"trader": "a", "symbol": "ETH/USDC", "side": "buy", "type": "limit", "quantity": "1e300000000", "price": "100"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(r, http.MethodPost, "/api/orders", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestCancelOrderEndpoint(t *testing.T) {
	r, _ := setupRouter(t)
	deposit(t, r, "alice", "USDC", "5000")
	order := placeOrder(t, r, map[string]interface{}{
		"trader": "alice", "symbol": "ETH/USDC", "side": "buy", "type": "limit",
		"quantity": "1", "price": "2000",
	})

	rec := doRequest(r, http.MethodDelete, "/api/orders/"+order.ID+"?trader=mallory", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(r, http.MethodDelete, "/api/orders/"+order.ID+"?trader=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cancelled engine.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, engine.StatusCancelled, cancelled.Status)

	rec = doRequest(r, http.MethodDelete, "/api/orders/"+order.ID+"?trader=alice", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(r, http.MethodDelete, "/api/orders/missing?trader=alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrderEndpoints(t *testing.T) {
	r, _ := setupRouter(t)
	deposit(t, r, "alice", "USDC", "5000")
	order := placeOrder(t, r, map[string]interface{}{
		"trader": "alice", "symbol": "ETH/USDC", "side": "buy", "type": "limit",
		"quantity": "1", "price": "2000",
	})

	rec := doRequest(r, http.MethodGet, "/api/orders/"+order.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(r, http.MethodGet, "/api/orders/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(r, http.MethodGet, "/api/traders/alice/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orders []engine.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestOrderBookEndpoint(t *testing.T) {
	r, _ := setupRouter(t)
	deposit(t, r, "alice", "USDC", "10000")
	deposit(t, r, "bob", "ETH", "5")
	for _, price := range []string{"1990", "1995"} {
		placeOrder(t, r, map[string]interface{}{
			"trader": "alice", "symbol": "ETH/USDC", "side": "buy", "type": "limit",
			"quantity": "1", "price": price,
		})
	}
	placeOrder(t, r, map[string]interface{}{
		"trader": "bob", "symbol": "ETH/USDC", "side": "sell", "type": "limit",
		"quantity": "2", "price": "2005",
	})

	rec := doRequest(r, http.MethodGet, "/api/orderbook?symbol=ETH/USDC&depth=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var book orderBookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &book))
	require.Len(t, book.Bids, 1)
	require.Len(t, book.Asks, 1)
	assert.True(t, book.Bids[0].Price.Equal(decimal.NewFromInt(1995)))
	assert.True(t, book.Asks[0].Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, book.Spread.Valid)
	assert.True(t, book.Spread.Decimal.Equal(decimal.NewFromInt(10)))

	rec = doRequest(r, http.MethodGet, "/api/orderbook?symbol=SOL/USDC", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTickerWithoutTrades(t *testing.T) {
	r, _ := setupRouter(t)
	rec := doRequest(r, http.MethodGet, "/api/ticker?symbol=ETH/USDC", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFundsEndpoints(t *testing.T) {
	r, _ := setupRouter(t)
	deposit(t, r, "alice", "ETH", "2")

	rec := doRequest(r, http.MethodPost, "/api/withdraw", map[string]string{"user": "alice", "asset": "ETH", "amount": "5"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(r, http.MethodPost, "/api/deposit", map[string]string{"user": "alice", "asset": "ETH", "amount": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(r, http.MethodPost, "/api/deposit", map[string]string{"user": "alice", "asset": "ETH", "amount": "1e300000000"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(r, http.MethodPost, "/api/withdraw", map[string]string{"user": "", "asset": "ETH", "amount": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(r, http.MethodPost, "/api/withdraw", map[string]string{"user": "alice", "asset": "ETH", "amount": "0.5"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Balance decimal.Decimal `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Balance.Equal(decimal.RequireFromString("1.5")))
}

func TestSymbolsAndStats(t *testing.T) {
	r, _ := setupRouter(t)

	rec := doRequest(r, http.MethodPost, "/api/symbols", map[string]string{"symbol": "BTC/USDC"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(r, http.MethodPost, "/api/symbols", map[string]string{"symbol": "BTCUSDC"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(r, http.MethodGet, "/api/symbols", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["BTC/USDC","ETH/USDC"]`, rec.Body.String())

	rec = doRequest(r, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"symbol_count":2,"order_count":0,"trade_count":0,"user_count":0}`, rec.Body.String())

	rec = doRequest(r, http.MethodPost, "/api/match?symbol=ETH/USDC", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(r, http.MethodPost, "/api/match?symbol=SOL/USDC", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
