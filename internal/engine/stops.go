package engine

import (
	"slices"

	"dex-engine/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// stopReached reports whether a parked order fires at the given last trade price.
// Buy stops fire at or above the stop price, sell stops at or below it.
func (o *Order) stopReached(last decimal.Decimal) bool {
	if !o.StopPrice.Valid {
		return false
	}
	if o.Side == Buy {
		return last.GreaterThanOrEqual(o.StopPrice.Decimal)
	}
	return last.LessThanOrEqual(o.StopPrice.Decimal)
}

// triggerStops fires parked orders against the last trade price, oldest first, until none is
// reached. Trades produced by a fired order move the last price and may fire further orders.
func (e *MatchingEngine) triggerStops(m *market) []Trade {
	var trades []Trade

	for m.hasLast {
		idx := slices.IndexFunc(m.stops, func(o *Order) bool { return o.stopReached(m.lastPrice) })
		if idx < 0 {
			break
		}
		order := m.stops[idx]
		m.stops = slices.Delete(m.stops, idx, idx+1)

		e.log.WithFields(logrus.Fields{
			"event":      utils.EventStopTriggered,
			"order_id":   order.ID,
			"symbol":     order.Symbol,
			"stop_price": order.StopPrice.Decimal.String(),
			"last_price": m.lastPrice.String(),
		}).Info("Stop order triggered")

		if order.Type == Stop {
			trades = append(trades, e.sweep(m, order)...)
			continue
		}
		m.book.Insert(order)
		trades = append(trades, e.cross(m)...)
	}
	return trades
}
