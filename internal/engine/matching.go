package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"dex-engine/internal/metrics"
	"dex-engine/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// market is everything the engine keeps for one symbol.
type market struct {
	book      *OrderBook
	base      string
	quote     string
	stops     []*Order // parked stop and stop-limit orders, submission order
	trades    []Trade
	lastPrice decimal.Decimal
	hasLast   bool
}

// MatchingEngine owns the books, the order index, the trade log and the ledger.
// One lock covers all of them: every mutating call runs to completion before the next.
type MatchingEngine struct {
	mu           sync.RWMutex
	markets      map[string]*market
	orders       map[string]*Order
	traderOrders map[string][]*Order
	ledger       *Ledger
	tradeCount   int
	seq          uint64

	now          func() time.Time
	tradeHandler func([]Trade)
	log          *logrus.Entry
}

type Option func(*MatchingEngine)

// WithClock replaces time.Now, mostly for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(e *MatchingEngine) { e.now = now }
}

// WithTradeHandler registers a callback that receives the trades of each call.
// It runs under the engine lock, so handlers see trades in trade-log order; they must
// not block or call back into the engine.
func WithTradeHandler(handler func([]Trade)) Option {
	return func(e *MatchingEngine) { e.tradeHandler = handler }
}

func WithLogger(log *logrus.Entry) Option {
	return func(e *MatchingEngine) { e.log = log }
}

func NewMatchingEngine(opts ...Option) *MatchingEngine {
	e := &MatchingEngine{
		markets:      make(map[string]*market),
		orders:       make(map[string]*Order),
		traderOrders: make(map[string][]*Order),
		ledger:       NewLedger(),
		now:          time.Now,
		log:          utils.Component("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddSymbol registers an empty book for a BASE/QUOTE symbol. Registering twice is a no-op.
func (e *MatchingEngine) AddSymbol(symbol string) error {
	base, quote, err := splitSymbol(symbol)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.markets[symbol]; ok {
		return nil
	}
	e.markets[symbol] = &market{book: NewOrderBook(symbol), base: base, quote: quote}
	e.log.WithField("symbol", symbol).Info("Order book registered")
	return nil
}

// PlaceOrder validates the request, matches it and returns the new order id.
func (e *MatchingEngine) PlaceOrder(req OrderRequest) (string, error) {
	start := time.Now()

	var (
		order  Order
		trades []Trade
	)
	err := checkOrderAmounts(req)
	if err == nil {
		e.mu.Lock()
		order, trades, err = e.placeOrder(req)
		if err == nil {
			e.emit(trades)
		}
		e.mu.Unlock()
	}

	if err != nil {
		metrics.OrdersRejectedTotal.WithLabelValues(rejectReason(err)).Inc()
		e.log.WithFields(logrus.Fields{
			"event":  utils.EventOrderRejected,
			"trader": req.Trader,
			"symbol": req.Symbol,
			"error":  err.Error(),
		}).Warn("Order rejected")
		return "", err
	}

	metrics.OrdersPlacedTotal.WithLabelValues(order.Symbol, string(order.Side), string(order.Type)).Inc()
	metrics.OrderLatencySeconds.WithLabelValues(string(order.Type)).Observe(time.Since(start).Seconds())
	e.log.WithFields(logrus.Fields{
		"event":    utils.EventOrderPlaced,
		"order_id": order.ID,
		"trader":   order.Trader,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"type":     order.Type,
		"status":   order.Status,
		"trades":   len(trades),
	}).Info("Order placed")

	return order.ID, nil
}

// placeOrder runs under the write lock. It returns a copy of the order as it stands after matching.
func (e *MatchingEngine) placeOrder(req OrderRequest) (Order, []Trade, error) {
	m, ok := e.markets[req.Symbol]
	if !ok {
		return Order{}, nil, fmt.Errorf("%w: %s", ErrSymbolNotSupported, req.Symbol)
	}
	if req.TimeInForce == "" {
		req.TimeInForce = GTC
	}
	if err := validateOrder(req); err != nil {
		return Order{}, nil, err
	}

	// Checked, not reserved.
	if req.Side == Sell {
		if balance := e.ledger.Balance(req.Trader, m.base); balance.LessThan(req.Quantity) {
			return Order{}, nil, fmt.Errorf("%w: %s holds %s %s, order needs %s",
				ErrInsufficientBalance, req.Trader, balance, m.base, req.Quantity)
		}
	}

	e.seq++
	order := newOrder(uuid.NewString(), e.seq, req, e.now())
	e.orders[order.ID] = order
	e.traderOrders[order.Trader] = append(e.traderOrders[order.Trader], order)

	var trades []Trade
	switch order.Type {
	case Market:
		trades = e.sweep(m, order)
	case Limit:
		m.book.Insert(order)
		trades = e.cross(m)
	case Stop, StopLimit:
		m.stops = append(m.stops, order)
	}
	trades = append(trades, e.triggerStops(m)...)
	e.updateDepthMetrics(m)

	return *order, trades, nil
}

// checkOrderAmounts runs before the engine lock is taken and before anything formats or
// compares the request's amounts.
func checkOrderAmounts(req OrderRequest) error {
	if !boundedAmount(req.Quantity) ||
		(req.Price.Valid && !boundedAmount(req.Price.Decimal)) ||
		(req.StopPrice.Valid && !boundedAmount(req.StopPrice.Decimal)) {
		return fmt.Errorf("%w: amounts are limited to %d decimal places", ErrInvalidOrderParameters, maxScale)
	}
	return nil
}

func validateOrder(req OrderRequest) error {
	if req.Trader == "" {
		return fmt.Errorf("%w: trader is required", ErrInvalidOrderParameters)
	}
	if req.Side != Buy && req.Side != Sell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrderParameters, req.Side)
	}
	if _, err := ParseTimeInForce(string(req.TimeInForce)); err != nil {
		return err
	}
	if !req.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrderParameters)
	}

	hasPrice := req.Price.Valid && req.Price.Decimal.IsPositive()
	hasStop := req.StopPrice.Valid && req.StopPrice.Decimal.IsPositive()
	switch req.Type {
	case Limit:
		if !hasPrice {
			return fmt.Errorf("%w: limit orders must have a positive price", ErrInvalidOrderParameters)
		}
	case Stop:
		if !hasStop {
			return fmt.Errorf("%w: stop orders must have a positive stop price", ErrInvalidOrderParameters)
		}
	case StopLimit:
		if !hasPrice || !hasStop {
			return fmt.Errorf("%w: stop-limit orders must have a positive price and stop price", ErrInvalidOrderParameters)
		}
	case Market:
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOrderParameters, req.Type)
	}
	return nil
}

// sweep matches a market order against the opposing side, best price first.
// An unfilled remainder is not queued.
func (e *MatchingEngine) sweep(m *market, order *Order) []Trade {
	var trades []Trade
	contra := order.Side.Opposite()

	for order.RemainingQuantity.IsPositive() {
		resting := m.book.head(contra)
		if resting == nil {
			break
		}

		qty := decimal.Min(order.RemainingQuantity, resting.RemainingQuantity)
		price := resting.LimitPrice()
		buy, sell := order, resting
		if order.Side == Sell {
			buy, sell = resting, order
		}

		if short := e.underfunded(m, buy, sell, price, qty); short != nil {
			if short == order {
				break
			}
			e.evict(m, short)
			continue
		}

		trade, err := e.executeTrade(m, buy, sell, price, qty, TradeKindMarket)
		if err != nil {
			e.log.WithError(err).WithField("order_id", order.ID).Error("Sweep aborted")
			break
		}
		trades = append(trades, trade)

		if resting.RemainingQuantity.IsZero() {
			m.book.Remove(resting.ID)
		}
	}

	// Book exhausted before a full fill: the remainder is dropped, the order keeps it on record.
	if order.RemainingQuantity.IsPositive() && order.Status == StatusPending {
		_ = order.transition(StatusPartial, e.now())
	}
	return trades
}

// cross matches the heads of both sides while the best bid reaches the best ask.
// The order created first sets the execution price.
func (e *MatchingEngine) cross(m *market) []Trade {
	var trades []Trade

	for {
		bid, ask := m.book.head(Buy), m.book.head(Sell)
		if bid == nil || ask == nil || bid.LimitPrice().LessThan(ask.LimitPrice()) {
			break
		}

		qty := decimal.Min(bid.RemainingQuantity, ask.RemainingQuantity)
		price := ask.LimitPrice()
		if bid.createdBefore(ask) {
			price = bid.LimitPrice()
		}

		if short := e.underfunded(m, bid, ask, price, qty); short != nil {
			e.evict(m, short)
			continue
		}

		trade, err := e.executeTrade(m, bid, ask, price, qty, TradeKindLimit)
		if err != nil {
			e.log.WithError(err).WithField("symbol", m.book.Symbol).Error("Crossing aborted")
			break
		}
		trades = append(trades, trade)

		if bid.RemainingQuantity.IsZero() {
			m.book.Remove(bid.ID)
		}
		if ask.RemainingQuantity.IsZero() {
			m.book.Remove(ask.ID)
		}
	}
	return trades
}

// underfunded returns the side of a prospective match that cannot pay for it, or nil.
// Both legs of a self-trade net to zero in the ledger, so it always counts as funded.
func (e *MatchingEngine) underfunded(m *market, buy, sell *Order, price, qty decimal.Decimal) *Order {
	if buy.Trader == sell.Trader {
		return nil
	}
	if e.ledger.Balance(buy.Trader, m.quote).LessThan(price.Mul(qty)) {
		return buy
	}
	if e.ledger.Balance(sell.Trader, m.base).LessThan(qty) {
		return sell
	}
	return nil
}

// evict cancels a resting or parked order whose owner can no longer fund it.
func (e *MatchingEngine) evict(m *market, order *Order) {
	m.detach(order)
	if err := order.transition(StatusCancelled, e.now()); err != nil {
		e.log.WithError(err).Error("Eviction failed")
		return
	}
	metrics.OrdersCancelledTotal.WithLabelValues(order.Symbol, "insufficient_funds").Inc()
	e.log.WithFields(logrus.Fields{
		"event":    utils.EventOrderEvicted,
		"order_id": order.ID,
		"trader":   order.Trader,
		"symbol":   order.Symbol,
	}).Warn("Order evicted for insufficient balance")
}

// executeTrade records one match: trade log, both orders' fills and the four ledger legs.
// Everything is validated before the first write, so either all of it happens or none.
func (e *MatchingEngine) executeTrade(m *market, buy, sell *Order, price, qty decimal.Decimal, kind TradeKind) (Trade, error) {
	if !qty.IsPositive() || !buy.IsLive() || !sell.IsLive() ||
		qty.GreaterThan(buy.RemainingQuantity) || qty.GreaterThan(sell.RemainingQuantity) {
		return Trade{}, fmt.Errorf("%w: cannot match %s between %s (%s) and %s (%s)",
			ErrIllegalTransition, qty, buy.ID, buy.Status, sell.ID, sell.Status)
	}

	value := price.Mul(qty)
	err := e.ledger.apply([]transfer{
		{user: buy.Trader, asset: m.quote, amount: value.Neg()},
		{user: buy.Trader, asset: m.base, amount: qty},
		{user: sell.Trader, asset: m.base, amount: qty.Neg()},
		{user: sell.Trader, asset: m.quote, amount: value},
	})
	if err != nil {
		return Trade{}, err
	}

	now := e.now()
	// Both fills were bounds-checked above.
	_ = buy.updateFilled(qty, now)
	_ = sell.updateFilled(qty, now)

	trade := Trade{
		ID:          uuid.NewString(),
		Symbol:      m.book.Symbol,
		Price:       price,
		Quantity:    qty,
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		Buyer:       buy.Trader,
		Seller:      sell.Trader,
		Timestamp:   now,
		Kind:        kind,
	}
	m.trades = append(m.trades, trade)
	m.lastPrice = price
	m.hasLast = true
	e.tradeCount++

	metrics.TradesExecutedTotal.WithLabelValues(trade.Symbol, string(kind)).Inc()
	metrics.TradeVolumeTotal.WithLabelValues(trade.Symbol).Add(qty.InexactFloat64())
	e.log.WithFields(logrus.Fields{
		"event":         utils.EventTradeExecuted,
		"trade_id":      trade.ID,
		"symbol":        trade.Symbol,
		"price":         price.String(),
		"quantity":      qty.String(),
		"buy_order_id":  buy.ID,
		"sell_order_id": sell.ID,
	}).Debug("Trade executed")

	return trade, nil
}

// CancelOrder cancels a pending or partially filled order owned by trader.
func (e *MatchingEngine) CancelOrder(orderID, trader string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if order.Trader != trader {
		return fmt.Errorf("%w: order %s belongs to another trader", ErrUnauthorized, orderID)
	}
	if !order.Status.CanTransitionTo(StatusCancelled) {
		return fmt.Errorf("%w: order %s is %s", ErrOrderNotCancellable, orderID, order.Status)
	}

	m := e.markets[order.Symbol]
	m.detach(order)
	if err := order.transition(StatusCancelled, e.now()); err != nil {
		return err
	}
	e.updateDepthMetrics(m)

	metrics.OrdersCancelledTotal.WithLabelValues(order.Symbol, "trader").Inc()
	e.log.WithFields(logrus.Fields{
		"event":    utils.EventOrderCancelled,
		"order_id": order.ID,
		"trader":   trader,
		"symbol":   order.Symbol,
	}).Info("Order cancelled")
	return nil
}

// ProcessPendingOrders expires every pending order whose expiry has passed.
// Partially filled orders are left alone.
func (e *MatchingEngine) ProcessPendingOrders() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	touched := make(map[*market]bool)
	for _, order := range e.orders {
		if order.Status != StatusPending || !order.IsExpired(now) {
			continue
		}
		m := e.markets[order.Symbol]
		m.detach(order)
		if err := order.transition(StatusExpired, now); err != nil {
			e.log.WithError(err).Error("Expiry failed")
			continue
		}
		touched[m] = true

		metrics.OrdersExpiredTotal.WithLabelValues(order.Symbol).Inc()
		e.log.WithFields(logrus.Fields{
			"event":    utils.EventOrderExpired,
			"order_id": order.ID,
			"symbol":   order.Symbol,
		}).Info("Order expired")
	}
	for m := range touched {
		e.updateDepthMetrics(m)
	}
}

// MatchSymbol runs the crossing loop for one symbol and fires any stops it triggers.
func (e *MatchingEngine) MatchSymbol(symbol string) error {
	e.mu.Lock()
	m, ok := e.markets[symbol]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSymbolNotSupported, symbol)
	}
	trades := e.cross(m)
	trades = append(trades, e.triggerStops(m)...)
	e.updateDepthMetrics(m)
	e.emit(trades)
	e.mu.Unlock()
	return nil
}

// detach removes the order from wherever it rests: the book or the stop list.
func (m *market) detach(order *Order) {
	if _, ok := m.book.Remove(order.ID); ok {
		return
	}
	m.stops = slices.DeleteFunc(m.stops, func(o *Order) bool { return o == order })
}

func (e *MatchingEngine) emit(trades []Trade) {
	if e.tradeHandler != nil && len(trades) > 0 {
		e.tradeHandler(trades)
	}
}

func (e *MatchingEngine) updateDepthMetrics(m *market) {
	metrics.BookDepthOrders.WithLabelValues(m.book.Symbol, string(Buy)).Set(float64(m.book.SideLen(Buy)))
	metrics.BookDepthOrders.WithLabelValues(m.book.Symbol, string(Sell)).Set(float64(m.book.SideLen(Sell)))
}

func rejectReason(err error) string {
	for _, known := range []struct {
		err    error
		reason string
	}{
		{ErrSymbolNotSupported, "symbol_not_supported"},
		{ErrInvalidOrderParameters, "invalid_parameters"},
		{ErrInsufficientBalance, "insufficient_balance"},
	} {
		if errors.Is(err, known.err) {
			return known.reason
		}
	}
	return "other"
}
