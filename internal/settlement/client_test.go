package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dex-engine/internal/engine"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrade() engine.Trade {
	return engine.Trade{
		ID:          "trade-1",
		Symbol:      "ETH/USDC",
		Price:       decimal.RequireFromString("2000.50"),
		Quantity:    decimal.RequireFromString("0.25"),
		BuyOrderID:  "buy-1",
		SellOrderID: "sell-1",
		Buyer:       "alice",
		Seller:      "bob",
		Timestamp:   time.UnixMilli(1700000000000),
		Kind:        engine.TradeKindLimit,
	}
}

func TestHTTPClient_SubmitTrade(t *testing.T) {
	var received tradePayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/trades", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second)
	require.NoError(t, client.SubmitTrade(context.Background(), sampleTrade()))

	assert.Equal(t, "trade-1", received.TradeID)
	assert.Equal(t, "2000.5", received.Price)
	assert.Equal(t, "0.25", received.Quantity)
	assert.Equal(t, "alice", received.Buyer)
	assert.Equal(t, "bob", received.Seller)
	assert.Equal(t, int64(1700000000000), received.Timestamp)
}

func TestHTTPClient_SubmitTradeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "custody offline", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewClient(server.URL, time.Second).SubmitTrade(context.Background(), sampleTrade())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "custody offline")
}

func TestHTTPClient_SubmitTradeHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewClient(server.URL, time.Minute).SubmitTrade(ctx, sampleTrade())
	assert.Error(t, err)
}
