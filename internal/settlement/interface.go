package settlement

import (
	"context"

	"dex-engine/internal/engine"
)

// Client hands executed trades to the downstream custody service that moves the funds.
type Client interface {
	SubmitTrade(ctx context.Context, trade engine.Trade) error
}
