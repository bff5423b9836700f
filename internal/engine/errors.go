package engine

import "errors"

// Engine errors. All of them are returned before any book or ledger state changes.
var (
	ErrSymbolNotSupported     = errors.New("symbol not supported")
	ErrInvalidSymbol          = errors.New("invalid symbol")
	ErrInvalidOrderParameters = errors.New("invalid order parameters")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrOrderNotFound          = errors.New("order not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrOrderNotCancellable    = errors.New("order cannot be cancelled")
	ErrIllegalTransition      = errors.New("illegal order status transition")
)
