package engine

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// GetOrder returns a copy of the order.
func (e *MatchingEngine) GetOrder(orderID string) (Order, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	order, ok := e.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

// GetUserOrders returns copies of every order the trader submitted, oldest first.
func (e *MatchingEngine) GetUserOrders(trader string) []Order {
	e.mu.RLock()
	defer e.mu.RUnlock()

	orders := make([]Order, 0, len(e.traderOrders[trader]))
	for _, order := range e.traderOrders[trader] {
		orders = append(orders, *order)
	}
	return orders
}

// GetOrderBook returns a snapshot of the symbol's book.
func (e *MatchingEngine) GetOrderBook(symbol string) (*OrderBook, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.markets[symbol]
	if !ok {
		return nil, false
	}
	return m.book.Clone(), true
}

// GetRecentTrades returns up to limit trades of the symbol, most recent first.
func (e *MatchingEngine) GetRecentTrades(symbol string, limit int) []Trade {
	e.mu.RLock()
	defer e.mu.RUnlock()

	trades := make([]Trade, 0)
	m, ok := e.markets[symbol]
	if !ok {
		return trades
	}
	for i := len(m.trades) - 1; i >= 0 && len(trades) < limit; i-- {
		trades = append(trades, m.trades[i])
	}
	return trades
}

// GetTicker summarizes all trades of the symbol. It reports false until the first trade.
func (e *MatchingEngine) GetTicker(symbol string) (Ticker, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	m, ok := e.markets[symbol]
	if !ok || len(m.trades) == 0 {
		return Ticker{}, false
	}

	ticker := Ticker{
		Symbol: symbol,
		Last:   m.trades[len(m.trades)-1].Price,
		High:   m.trades[0].Price,
		Low:    m.trades[0].Price,
		Volume: decimal.Zero,
	}
	for _, trade := range m.trades {
		ticker.High = decimal.Max(ticker.High, trade.Price)
		ticker.Low = decimal.Min(ticker.Low, trade.Price)
		ticker.Volume = ticker.Volume.Add(trade.Quantity)
	}
	// Zero when the side is empty.
	ticker.Bid, _ = m.book.BestBid()
	ticker.Ask, _ = m.book.BestAsk()
	return ticker, true
}

func (e *MatchingEngine) GetMarketStats() MarketStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return MarketStats{
		Symbols: len(e.markets),
		Orders:  len(e.orders),
		Trades:  e.tradeCount,
		Users:   e.ledger.Users(),
	}
}

// Symbols lists the registered symbols in lexical order.
func (e *MatchingEngine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	symbols := make([]string, 0, len(e.markets))
	for symbol := range e.markets {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

func (e *MatchingEngine) Balance(user, asset string) decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Balance(user, asset)
}

// Balances returns a copy of every balance the user holds.
func (e *MatchingEngine) Balances(user string) map[string]decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Snapshot(user)
}

func (e *MatchingEngine) Deposit(user, asset string, amount decimal.Decimal) error {
	if err := checkFunds(user, asset, amount); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Deposit(user, asset, amount)
}

func (e *MatchingEngine) Withdraw(user, asset string, amount decimal.Decimal) error {
	if err := checkFunds(user, asset, amount); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Withdraw(user, asset, amount)
}

// checkFunds rejects a deposit or withdrawal before it takes the engine lock.
func checkFunds(user, asset string, amount decimal.Decimal) error {
	if user == "" || asset == "" {
		return fmt.Errorf("%w: user and asset are required", ErrInvalidAmount)
	}
	if !boundedAmount(amount) {
		return fmt.Errorf("%w: amounts are limited to %d decimal places", ErrInvalidAmount, maxScale)
	}
	return nil
}
