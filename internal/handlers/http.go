package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dex-engine/internal/engine"
	"dex-engine/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

const (
	defaultTradeLimit = 50
	maxTradeLimit     = 1000
)

type Handler struct {
	engine      *engine.MatchingEngine
	depthLevels int
}

func NewHandler(e *engine.MatchingEngine, depthLevels int) *Handler {
	if depthLevels <= 0 {
		depthLevels = 20
	}
	return &Handler{engine: e, depthLevels: depthLevels}
}

func (h *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/api/health", h.healthCheck).Methods("GET")
	r.HandleFunc("/api/symbols", h.listSymbols).Methods("GET")
	r.HandleFunc("/api/symbols", h.addSymbol).Methods("POST")
	r.HandleFunc("/api/orders", h.createOrder).Methods("POST")
	r.HandleFunc("/api/orders/{id}", h.getOrder).Methods("GET")
	r.HandleFunc("/api/orders/{id}", h.cancelOrder).Methods("DELETE")
	r.HandleFunc("/api/traders/{trader}/orders", h.traderOrders).Methods("GET")
	r.HandleFunc("/api/orderbook", h.orderBook).Methods("GET")
	r.HandleFunc("/api/trades", h.recentTrades).Methods("GET")
	r.HandleFunc("/api/ticker", h.ticker).Methods("GET")
	r.HandleFunc("/api/deposit", h.deposit).Methods("POST")
	r.HandleFunc("/api/withdraw", h.withdraw).Methods("POST")
	r.HandleFunc("/api/balances/{user}/{asset}", h.balance).Methods("GET")
	r.HandleFunc("/api/stats", h.stats).Methods("GET")
	r.HandleFunc("/api/match", h.matchSymbol).Methods("POST")
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Symbols())
}

func (h *Handler) addSymbol(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.engine.AddSymbol(req.Symbol); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"symbol": req.Symbol})
}

type orderRequest struct {
	Trader      string              `json:"trader"`
	Symbol      string              `json:"symbol"`
	Side        string              `json:"side"`
	Type        string              `json:"type"`
	Quantity    decimal.Decimal     `json:"quantity"`
	Price       decimal.NullDecimal `json:"price"`
	StopPrice   decimal.NullDecimal `json:"stop_price"`
	TimeInForce string              `json:"time_in_force"`
	ExpireAt    *time.Time          `json:"expire_at"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var orderReq orderRequest
	if err := json.NewDecoder(r.Body).Decode(&orderReq); err != nil {
		utils.Logger.WithError(err).Warn("Failed to decode order request")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	side, err := engine.ParseSide(orderReq.Side)
	if err != nil {
		writeError(w, err)
		return
	}
	orderType, err := engine.ParseOrderType(orderReq.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	tif, err := engine.ParseTimeInForce(orderReq.TimeInForce)
	if err != nil {
		writeError(w, err)
		return
	}

	orderID, err := h.engine.PlaceOrder(engine.OrderRequest{
		Trader:      orderReq.Trader,
		Symbol:      orderReq.Symbol,
		Side:        side,
		Type:        orderType,
		Quantity:    orderReq.Quantity,
		Price:       orderReq.Price,
		StopPrice:   orderReq.StopPrice,
		TimeInForce: tif,
		ExpireAt:    orderReq.ExpireAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	order, _ := h.engine.GetOrder(orderID)
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.engine.GetOrder(mux.Vars(r)["id"])
	if !ok {
		writeError(w, engine.ErrOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]
	if err := h.engine.CancelOrder(orderID, r.URL.Query().Get("trader")); err != nil {
		writeError(w, err)
		return
	}
	order, _ := h.engine.GetOrder(orderID)
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) traderOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.GetUserOrders(mux.Vars(r)["trader"]))
}

type orderBookResponse struct {
	Symbol  string              `json:"symbol"`
	BestBid decimal.NullDecimal `json:"best_bid"`
	BestAsk decimal.NullDecimal `json:"best_ask"`
	Spread  decimal.NullDecimal `json:"spread"`
	Bids    []engine.Level      `json:"bids"`
	Asks    []engine.Level      `json:"asks"`
}

func (h *Handler) orderBook(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	book, ok := h.engine.GetOrderBook(symbol)
	if !ok {
		writeError(w, engine.ErrSymbolNotSupported)
		return
	}

	levels := queryInt(r, "depth", h.depthLevels)
	resp := orderBookResponse{Symbol: symbol}
	resp.Bids, resp.Asks = book.Depth(levels)
	resp.BestBid.Decimal, resp.BestBid.Valid = book.BestBid()
	resp.BestAsk.Decimal, resp.BestAsk.Valid = book.BestAsk()
	resp.Spread.Decimal, resp.Spread.Valid = book.Spread()
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) recentTrades(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultTradeLimit)
	if limit > maxTradeLimit {
		limit = maxTradeLimit
	}
	writeJSON(w, http.StatusOK, h.engine.GetRecentTrades(r.URL.Query().Get("symbol"), limit))
}

func (h *Handler) ticker(w http.ResponseWriter, r *http.Request) {
	ticker, ok := h.engine.GetTicker(r.URL.Query().Get("symbol"))
	if !ok {
		http.Error(w, "No trades for symbol", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, ticker)
}

type fundsRequest struct {
	User   string          `json:"user"`
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) deposit(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.engine.Deposit)
}

func (h *Handler) withdraw(w http.ResponseWriter, r *http.Request) {
	h.moveFunds(w, r, h.engine.Withdraw)
}

func (h *Handler) moveFunds(w http.ResponseWriter, r *http.Request, move func(user, asset string, amount decimal.Decimal) error) {
	var req fundsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := move(req.User, req.Asset, req.Amount); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    req.User,
		"asset":   req.Asset,
		"balance": h.engine.Balance(req.User, req.Asset),
	})
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    vars["user"],
		"asset":   vars["asset"],
		"balance": h.engine.Balance(vars["user"], vars["asset"]),
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.GetMarketStats())
}

func (h *Handler) matchSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if err := h.engine.MatchSymbol(symbol); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"symbol": symbol, "status": "matched"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		utils.LogError(err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrOrderNotFound), errors.Is(err, engine.ErrSymbolNotSupported):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrOrderNotCancellable):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrInvalidOrderParameters),
		errors.Is(err, engine.ErrInvalidSymbol),
		errors.Is(err, engine.ErrInvalidAmount):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		utils.LogError(err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
