package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string
type OrderType string
type TimeInForce string
type TradeKind string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

const (
	Limit     OrderType = "limit"
	Market    OrderType = "market"
	Stop      OrderType = "stop"
	StopLimit OrderType = "stop_limit"
)

// Time-in-force values are recorded on the order. Only the optional expiry is acted upon.
const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
	GTD TimeInForce = "GTD"
)

const (
	TradeKindMarket TradeKind = "market"
	TradeKindLimit  TradeKind = "limit"
)

// Opposite returns the contra side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(s)) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("%w: unknown side %q", ErrInvalidOrderParameters, s)
}

func ParseOrderType(s string) (OrderType, error) {
	switch t := OrderType(strings.ToLower(s)); t {
	case Limit, Market, Stop, StopLimit:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown order type %q", ErrInvalidOrderParameters, s)
}

// ParseTimeInForce accepts the empty string as GTC.
func ParseTimeInForce(s string) (TimeInForce, error) {
	if s == "" {
		return GTC, nil
	}
	switch tif := TimeInForce(strings.ToUpper(s)); tif {
	case GTC, IOC, FOK, GTD:
		return tif, nil
	}
	return "", fmt.Errorf("%w: unknown time in force %q", ErrInvalidOrderParameters, s)
}

// Order represents an order tracked by the engine
type Order struct {
	ID                string              `json:"id"`
	Trader            string              `json:"trader"`
	Symbol            string              `json:"symbol"`
	Side              Side                `json:"side"`
	Type              OrderType           `json:"type"`
	Quantity          decimal.Decimal     `json:"quantity"`
	Price             decimal.NullDecimal `json:"price"`
	StopPrice         decimal.NullDecimal `json:"stop_price"`
	FilledQuantity    decimal.Decimal     `json:"filled_quantity"`
	RemainingQuantity decimal.Decimal     `json:"remaining_quantity"`
	Status            OrderStatus         `json:"status"`
	TimeInForce       TimeInForce         `json:"time_in_force"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
	ExpireAt          *time.Time          `json:"expire_at,omitempty"`

	// seq orders creation inside one engine; equal timestamps are common at clock resolution.
	seq uint64
}

func newOrder(id string, seq uint64, req OrderRequest, now time.Time) *Order {
	return &Order{
		ID:                id,
		Trader:            req.Trader,
		Symbol:            req.Symbol,
		Side:              req.Side,
		Type:              req.Type,
		Quantity:          req.Quantity,
		Price:             req.Price,
		StopPrice:         req.StopPrice,
		FilledQuantity:    decimal.Zero,
		RemainingQuantity: req.Quantity,
		Status:            StatusPending,
		TimeInForce:       req.TimeInForce,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpireAt:          req.ExpireAt,
		seq:               seq,
	}
}

// LimitPrice is the price the order rests at, zero when it has none.
func (o *Order) LimitPrice() decimal.Decimal {
	if !o.Price.Valid {
		return decimal.Zero
	}
	return o.Price.Decimal
}

func (o *Order) IsExpired(now time.Time) bool {
	return o.ExpireAt != nil && now.After(*o.ExpireAt)
}

// IsLive reports whether the order can still trade or be cancelled.
func (o *Order) IsLive() bool {
	return o.Status == StatusPending || o.Status == StatusPartial
}

// createdBefore orders by creation time with the engine sequence as tie-break.
func (o *Order) createdBefore(other *Order) bool {
	if !o.CreatedAt.Equal(other.CreatedAt) {
		return o.CreatedAt.Before(other.CreatedAt)
	}
	return o.seq < other.seq
}

// updateFilled moves qty from remaining to filled and recomputes the status.
func (o *Order) updateFilled(qty decimal.Decimal, now time.Time) error {
	if qty.GreaterThan(o.RemainingQuantity) {
		return fmt.Errorf("fill %s exceeds remaining %s on order %s", qty, o.RemainingQuantity, o.ID)
	}
	next := StatusPartial
	if o.RemainingQuantity.Equal(qty) {
		next = StatusFilled
	}
	if err := o.transition(next, now); err != nil {
		return err
	}
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	o.RemainingQuantity = o.RemainingQuantity.Sub(qty)
	return nil
}

// OrderRequest carries the caller-supplied fields of a new order
type OrderRequest struct {
	Trader      string
	Symbol      string
	Side        Side
	Type        OrderType
	Quantity    decimal.Decimal
	Price       decimal.NullDecimal
	StopPrice   decimal.NullDecimal
	TimeInForce TimeInForce
	ExpireAt    *time.Time
}

// Trade is the immutable record of one match
type Trade struct {
	ID          string          `json:"id"`
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	BuyOrderID  string          `json:"buy_order_id"`
	SellOrderID string          `json:"sell_order_id"`
	Buyer       string          `json:"buyer"`
	Seller      string          `json:"seller"`
	Timestamp   time.Time       `json:"timestamp"`
	Kind        TradeKind       `json:"kind"`
}

// Level aggregates the resting orders at one price
type Level struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	OrderCount int             `json:"order_count"`
}

// Ticker summarizes the trading activity of a symbol
type Ticker struct {
	Symbol string          `json:"symbol"`
	Last   decimal.Decimal `json:"last"`
	Bid    decimal.Decimal `json:"bid"`
	Ask    decimal.Decimal `json:"ask"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Volume decimal.Decimal `json:"volume"`
}

// MarketStats counts what the engine currently holds
type MarketStats struct {
	Symbols int `json:"symbol_count"`
	Orders  int `json:"order_count"`
	Trades  int `json:"trade_count"`
	Users   int `json:"user_count"`
}

// splitSymbol returns the base and quote assets of a BASE/QUOTE symbol.
func splitSymbol(symbol string) (base, quote string, err error) {
	parts := strings.Split(symbol, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || parts[0] == parts[1] {
		return "", "", fmt.Errorf("%w: %q, expected BASE/QUOTE", ErrInvalidSymbol, symbol)
	}
	return parts[0], parts[1], nil
}

// Amounts carry at most 18 decimal places and a coefficient of at most 128 bits.
const (
	maxScale           = 18
	maxCoefficientBits = 128
)

// boundedAmount reports whether v fits the engine's amount range. Values outside it would make
// decimal rescaling in comparisons and sums arbitrarily expensive.
func boundedAmount(v decimal.Decimal) bool {
	if exp := v.Exponent(); exp < -maxScale || exp > maxScale {
		return false
	}
	return v.Coefficient().BitLen() <= maxCoefficientBits
}
