package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dex-engine/internal/engine"
)

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) Client {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type tradePayload struct {
	TradeID     string `json:"trade_id"`
	Symbol      string `json:"symbol"`
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
	BuyOrderID  string `json:"buy_order_id"`
	SellOrderID string `json:"sell_order_id"`
	Buyer       string `json:"buyer"`
	Seller      string `json:"seller"`
	Timestamp   int64  `json:"timestamp"` // Unix milliseconds
}

// SubmitTrade posts the trade to {baseURL}/trades. Any non-2xx answer is an error.
func (c *HTTPClient) SubmitTrade(ctx context.Context, trade engine.Trade) error {
	payload := tradePayload{
		TradeID:     trade.ID,
		Symbol:      trade.Symbol,
		Price:       trade.Price.String(),
		Quantity:    trade.Quantity.String(),
		BuyOrderID:  trade.BuyOrderID,
		SellOrderID: trade.SellOrderID,
		Buyer:       trade.Buyer,
		Seller:      trade.Seller,
		Timestamp:   trade.Timestamp.UnixMilli(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/trades", bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("submit trade %s: %w", trade.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("submit trade %s: settlement answered %d: %s", trade.ID, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
