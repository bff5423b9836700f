package settlement

import (
	"context"
	"sync"
	"time"

	"dex-engine/internal/engine"
	"dex-engine/internal/metrics"
	"dex-engine/pkg/utils"

	"github.com/sirupsen/logrus"
)

// Forwarder queues trades handed over by the engine and submits them from one worker,
// so the engine never waits on the network.
type Forwarder struct {
	client  Client
	timeout time.Duration
	queue   chan engine.Trade
	log     *logrus.Entry

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func NewForwarder(client Client, queueSize int, timeout time.Duration) *Forwarder {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Forwarder{
		client:  client,
		timeout: timeout,
		queue:   make(chan engine.Trade, queueSize),
		log:     utils.Component("settlement"),
		done:    make(chan struct{}),
	}
}

// Enqueue matches the engine trade handler signature. It never blocks: trades that do not
// fit in the queue are dropped and logged.
func (f *Forwarder) Enqueue(trades []engine.Trade) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		metrics.SettlementForwardedTotal.WithLabelValues("dropped").Add(float64(len(trades)))
		return
	}
	for _, trade := range trades {
		select {
		case f.queue <- trade:
		default:
			metrics.SettlementForwardedTotal.WithLabelValues("dropped").Inc()
			f.log.WithField("trade_id", trade.ID).Warn("Settlement queue full, dropping trade")
		}
	}
}

// Start runs the worker until Stop is called. Queued trades are drained before it exits.
func (f *Forwarder) Start(ctx context.Context) {
	go func() {
		defer close(f.done)
		for trade := range f.queue {
			f.submit(ctx, trade)
		}
	}()
}

// Stop closes the queue and waits for the worker to drain it.
func (f *Forwarder) Stop() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()
	<-f.done
}

func (f *Forwarder) submit(ctx context.Context, trade engine.Trade) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	if err := f.client.SubmitTrade(ctx, trade); err != nil {
		metrics.SettlementForwardedTotal.WithLabelValues("failed").Inc()
		f.log.WithFields(logrus.Fields{
			"trade_id": trade.ID,
			"error":    err.Error(),
		}).Error("Settlement submission failed")
		return
	}
	metrics.SettlementForwardedTotal.WithLabelValues("submitted").Inc()
	f.log.WithFields(logrus.Fields{
		"event":    utils.EventTradeForwarded,
		"trade_id": trade.ID,
		"symbol":   trade.Symbol,
	}).Debug("Trade forwarded to settlement")
}
