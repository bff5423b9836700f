package engine

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPartial   OrderStatus = "partial"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusExpired   OrderStatus = "expired"
)

// Legal status transitions. Filled, cancelled and expired are terminal.
var statusTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusPartial:   true,
		StatusFilled:    true,
		StatusCancelled: true,
		StatusExpired:   true,
	},
	StatusPartial: {
		StatusPartial:   true,
		StatusFilled:    true,
		StatusCancelled: true,
	},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return statusTransitions[s][next]
}

func (s OrderStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

func (o *Order) transition(next OrderStatus, now time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: order %s %s -> %s", ErrIllegalTransition, o.ID, o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = now
	return nil
}
