package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_orders_placed_total",
			Help: "Total number of orders accepted by the matching engine",
		},
		[]string{"symbol", "side", "type"},
	)

	// Labels: reason is the rejection error kind
	OrdersRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_orders_rejected_total",
			Help: "Total number of orders rejected before reaching the book",
		},
		[]string{"reason"},
	)

	OrdersCancelledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_orders_cancelled_total",
			Help: "Total number of orders cancelled by traders or evicted for missing funds",
		},
		[]string{"symbol", "cause"},
	)

	OrdersExpiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_orders_expired_total",
			Help: "Total number of pending orders expired by the sweep",
		},
		[]string{"symbol"},
	)

	TradesExecutedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_trades_executed_total",
			Help: "Total number of trades executed",
		},
		[]string{"symbol", "kind"},
	)

	TradeVolumeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_trade_volume_total",
			Help: "Total base quantity traded",
		},
		[]string{"symbol"},
	)

	BookDepthOrders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dex_book_depth_orders",
			Help: "Current number of resting orders per book side",
		},
		[]string{"symbol", "side"},
	)

	OrderLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dex_order_latency_seconds",
			Help:    "Time spent placing and matching one order",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		},
		[]string{"type"},
	)

	SettlementForwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dex_settlement_forwarded_total",
			Help: "Trades handed to the settlement collaborator, by outcome",
		},
		[]string{"outcome"},
	)
)
