package engine

import (
	"container/list"

	"github.com/google/btree"
	"github.com/shopspring/decimal"
)

type priceLevel struct {
	price  decimal.Decimal
	orders *list.List // *Order, oldest at the front
}

func newPriceLevel(price decimal.Decimal) *priceLevel {
	return &priceLevel{price: price, orders: list.New()}
}

func (pl *priceLevel) head() *Order {
	if front := pl.orders.Front(); front != nil {
		return front.Value.(*Order)
	}
	return nil
}

func (pl *priceLevel) aggregate() Level {
	qty := decimal.Zero
	for e := pl.orders.Front(); e != nil; e = e.Next() {
		qty = qty.Add(e.Value.(*Order).RemainingQuantity)
	}
	return Level{Price: pl.price, Quantity: qty, OrderCount: pl.orders.Len()}
}

func levelLess(a, b *priceLevel) bool {
	return a.price.LessThan(b.price)
}

// bookSide keeps price levels sorted ascending; bids read it from the top.
type bookSide struct {
	tree   *btree.BTreeG[*priceLevel]
	bids   bool
	orders int
}

func newBookSide(bids bool) *bookSide {
	return &bookSide{tree: btree.NewG(32, levelLess), bids: bids}
}

func (s *bookSide) level(price decimal.Decimal) (*priceLevel, bool) {
	return s.tree.Get(&priceLevel{price: price})
}

func (s *bookSide) levelOrCreate(price decimal.Decimal) *priceLevel {
	if pl, ok := s.level(price); ok {
		return pl
	}
	pl := newPriceLevel(price)
	s.tree.ReplaceOrInsert(pl)
	return pl
}

func (s *bookSide) best() (*priceLevel, bool) {
	if s.bids {
		return s.tree.Max()
	}
	return s.tree.Min()
}

// walk visits levels from best outward until fn returns false.
func (s *bookSide) walk(fn func(*priceLevel) bool) {
	if s.bids {
		s.tree.Descend(fn)
		return
	}
	s.tree.Ascend(fn)
}

type orderLocation struct {
	level   *priceLevel
	element *list.Element
	side    *bookSide
}

// OrderBook holds the resting orders of one symbol. Bids are best at the highest price,
// asks at the lowest; within a level the oldest order is matched first.
// It is not safe for concurrent use; the engine serializes access.
type OrderBook struct {
	Symbol    string
	bids      *bookSide
	asks      *bookSide
	locations map[string]orderLocation
}

func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		Symbol:    symbol,
		bids:      newBookSide(true),
		asks:      newBookSide(false),
		locations: make(map[string]orderLocation),
	}
}

func (ob *OrderBook) side(s Side) *bookSide {
	if s == Buy {
		return ob.bids
	}
	return ob.asks
}

// Insert appends the order to the queue at its price. No validation is done here.
func (ob *OrderBook) Insert(order *Order) {
	side := ob.side(order.Side)
	pl := side.levelOrCreate(order.LimitPrice())
	element := pl.orders.PushBack(order)
	side.orders++
	ob.locations[order.ID] = orderLocation{level: pl, element: element, side: side}
}

// Remove takes the order out of the book, dropping its price level once empty.
func (ob *OrderBook) Remove(orderID string) (*Order, bool) {
	loc, ok := ob.locations[orderID]
	if !ok {
		return nil, false
	}
	order := loc.level.orders.Remove(loc.element).(*Order)
	loc.side.orders--
	if loc.level.orders.Len() == 0 {
		loc.side.tree.Delete(loc.level)
	}
	delete(ob.locations, orderID)
	return order, true
}

func (ob *OrderBook) Contains(orderID string) bool {
	_, ok := ob.locations[orderID]
	return ok
}

// Len returns the number of resting orders on both sides.
func (ob *OrderBook) Len() int {
	return len(ob.locations)
}

func (ob *OrderBook) BestBid() (decimal.Decimal, bool) {
	if pl, ok := ob.bids.best(); ok {
		return pl.price, true
	}
	return decimal.Zero, false
}

func (ob *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if pl, ok := ob.asks.best(); ok {
		return pl.price, true
	}
	return decimal.Zero, false
}

func (ob *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return decimal.Zero, false
	}
	return ask.Sub(bid), true
}

// Depth returns up to levels price levels per side, best first.
func (ob *OrderBook) Depth(levels int) (bids, asks []Level) {
	return ob.sideDepth(ob.bids, levels), ob.sideDepth(ob.asks, levels)
}

func (ob *OrderBook) sideDepth(side *bookSide, levels int) []Level {
	out := make([]Level, 0)
	if levels <= 0 {
		return out
	}
	side.walk(func(pl *priceLevel) bool {
		out = append(out, pl.aggregate())
		return len(out) < levels
	})
	return out
}

// SideLen returns the number of resting orders on one side.
func (ob *OrderBook) SideLen(s Side) int {
	return ob.side(s).orders
}

// Orders returns copies of the resting orders of one side, best level first, FIFO within a level.
func (ob *OrderBook) Orders(s Side) []Order {
	out := make([]Order, 0)
	ob.side(s).walk(func(pl *priceLevel) bool {
		for e := pl.orders.Front(); e != nil; e = e.Next() {
			out = append(out, *e.Value.(*Order))
		}
		return true
	})
	return out
}

// head returns the oldest order at the best level of a side.
func (ob *OrderBook) head(s Side) *Order {
	pl, ok := ob.side(s).best()
	if !ok {
		return nil
	}
	return pl.head()
}

// Clone returns a deep copy; orders in the copy are detached from the engine.
func (ob *OrderBook) Clone() *OrderBook {
	clone := NewOrderBook(ob.Symbol)
	for _, s := range []Side{Buy, Sell} {
		ob.side(s).walk(func(pl *priceLevel) bool {
			for e := pl.orders.Front(); e != nil; e = e.Next() {
				order := *e.Value.(*Order)
				clone.Insert(&order)
			}
			return true
		})
	}
	return clone
}
