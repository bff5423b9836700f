package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger maps user -> asset -> balance. Balances never go negative: every mutation is
// checked in full before anything is written. The engine serializes access.
type Ledger struct {
	balances map[string]map[string]decimal.Decimal
}

// transfer is one signed balance change.
type transfer struct {
	user   string
	asset  string
	amount decimal.Decimal
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]map[string]decimal.Decimal)}
}

// Balance returns zero for unknown users and assets.
func (l *Ledger) Balance(user, asset string) decimal.Decimal {
	if assets, ok := l.balances[user]; ok {
		if amount, ok := assets[asset]; ok {
			return amount
		}
	}
	return decimal.Zero
}

// Set overwrites a balance.
func (l *Ledger) Set(user, asset string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: balance %s for %s/%s", ErrInvalidAmount, amount, user, asset)
	}
	l.set(user, asset, amount)
	return nil
}

func (l *Ledger) set(user, asset string, amount decimal.Decimal) {
	assets, ok := l.balances[user]
	if !ok {
		assets = make(map[string]decimal.Decimal)
		l.balances[user] = assets
	}
	assets[asset] = amount
}

func (l *Ledger) Deposit(user, asset string, amount decimal.Decimal) error {
	if !boundedAmount(amount) {
		return fmt.Errorf("%w: deposit out of range", ErrInvalidAmount)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: deposit of %s", ErrInvalidAmount, amount)
	}
	l.set(user, asset, l.Balance(user, asset).Add(amount))
	return nil
}

func (l *Ledger) Withdraw(user, asset string, amount decimal.Decimal) error {
	if !boundedAmount(amount) {
		return fmt.Errorf("%w: withdrawal out of range", ErrInvalidAmount)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: withdrawal of %s", ErrInvalidAmount, amount)
	}
	current := l.Balance(user, asset)
	if current.LessThan(amount) {
		return fmt.Errorf("%w: %s holds %s %s, requested %s", ErrInsufficientBalance, user, current, asset, amount)
	}
	l.set(user, asset, current.Sub(amount))
	return nil
}

// apply nets the transfers per (user, asset), rejects the batch if any resulting balance
// would be negative, and otherwise writes all of them.
func (l *Ledger) apply(transfers []transfer) error {
	type key struct{ user, asset string }
	next := make(map[key]decimal.Decimal, len(transfers))
	order := make([]key, 0, len(transfers))
	for _, t := range transfers {
		k := key{t.user, t.asset}
		current, seen := next[k]
		if !seen {
			current = l.Balance(t.user, t.asset)
			order = append(order, k)
		}
		next[k] = current.Add(t.amount)
	}
	for _, k := range order {
		if next[k].IsNegative() {
			return fmt.Errorf("%w: %s would hold %s %s", ErrInsufficientBalance, k.user, next[k], k.asset)
		}
	}
	for _, k := range order {
		l.set(k.user, k.asset, next[k])
	}
	return nil
}

// Users returns how many users hold a ledger entry.
func (l *Ledger) Users() int {
	return len(l.balances)
}

// Snapshot copies the balances of one user.
func (l *Ledger) Snapshot(user string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(l.balances[user]))
	for asset, amount := range l.balances[user] {
		out[asset] = amount
	}
	return out
}
