package service

import (
	"context"

	"order-status-service/internal/models"
)

// TransitionEvent describes a committed status change
type TransitionEvent struct {
	Order          *models.Order
	Status         *models.OrderStatus
	PreviousStatus *models.OrderStatus
	Comment        string
	ActorID        int64
	Paid           bool
	StockUpdated   bool
	LockChanged    bool
}

// VetoFunc returns false to cancel the action it observes
type VetoFunc func(ctx context.Context, order *models.Order, status *models.OrderStatus) bool

// StatusChangedFunc observes a committed status change
type StatusChangedFunc func(ctx context.Context, event TransitionEvent)

// Hooks holds the observers of the status workflow. The zero value has none.
type Hooks struct {
	beforeTransition []VetoFunc
	stockChange      []VetoFunc
	statusChanged    []StatusChangedFunc
}

func NewHooks() *Hooks {
	return &Hooks{}
}

// OnBeforeTransition registers an observer that may cancel a transition before anything is written
func (h *Hooks) OnBeforeTransition(fn VetoFunc) {
	h.beforeTransition = append(h.beforeTransition, fn)
}

// OnStockChange registers an observer that may skip the stock decrement of a transition
func (h *Hooks) OnStockChange(fn VetoFunc) {
	h.stockChange = append(h.stockChange, fn)
}

// OnStatusChanged registers an observer called after a transition commits
func (h *Hooks) OnStatusChanged(fn StatusChangedFunc) {
	h.statusChanged = append(h.statusChanged, fn)
}

func (h *Hooks) allowTransition(ctx context.Context, order *models.Order, status *models.OrderStatus) bool {
	if h == nil {
		return true
	}
	return allow(ctx, h.beforeTransition, order, status)
}

func (h *Hooks) allowStockChange(ctx context.Context, order *models.Order, status *models.OrderStatus) bool {
	if h == nil {
		return true
	}
	return allow(ctx, h.stockChange, order, status)
}

func (h *Hooks) notifyStatusChanged(ctx context.Context, event TransitionEvent) {
	if h == nil {
		return
	}
	for _, fn := range h.statusChanged {
		fn(ctx, event)
	}
}

func allow(ctx context.Context, observers []VetoFunc, order *models.Order, status *models.OrderStatus) bool {
	for _, fn := range observers {
		if !fn(ctx, order, status) {
			return false
		}
	}
	return true
}
