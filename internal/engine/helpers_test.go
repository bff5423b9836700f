package engine

import (
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const ethUSDC = "ETH/USDC"

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func px(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(s))
}

func quietLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestEngine(t testing.TB, opts ...Option) *MatchingEngine {
	t.Helper()
	e := NewMatchingEngine(append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, e.AddSymbol(ethUSDC))
	return e
}

func limitReq(trader string, side Side, qty, price string) OrderRequest {
	return OrderRequest{
		Trader:      trader,
		Symbol:      ethUSDC,
		Side:        side,
		Type:        Limit,
		Quantity:    d(qty),
		Price:       px(price),
		TimeInForce: GTC,
	}
}

func marketReq(trader string, side Side, qty string) OrderRequest {
	return OrderRequest{
		Trader:      trader,
		Symbol:      ethUSDC,
		Side:        side,
		Type:        Market,
		Quantity:    d(qty),
		TimeInForce: GTC,
	}
}

func mustDeposit(t testing.TB, e *MatchingEngine, user, asset, amount string) {
	t.Helper()
	require.NoError(t, e.Deposit(user, asset, d(amount)))
}

func mustPlace(t testing.TB, e *MatchingEngine, req OrderRequest) string {
	t.Helper()
	id, err := e.PlaceOrder(req)
	require.NoError(t, err)
	return id
}

func mustOrder(t testing.TB, e *MatchingEngine, id string) Order {
	t.Helper()
	order, ok := e.GetOrder(id)
	require.True(t, ok, "order %s not found", id)
	return order
}

// fakeClock is advanced by tests that exercise expiry.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
