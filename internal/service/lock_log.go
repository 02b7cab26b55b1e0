package service

import (
	"context"
	"fmt"
	"time"

	"order-status-service/internal/models"
)

// LockLogStore persists lock log rows
type LockLogStore interface {
	CreateLockLog(ctx context.Context, record *models.OrderLockLog) error
	ListLockLog(ctx context.Context, orderID int64) ([]models.OrderLockLog, error)
}

// LockLog is the append-only audit trail of order lock changes
type LockLog struct {
	store LockLogStore
	now   func() time.Time
}

func NewLockLog(store LockLogStore) *LockLog {
	return &LockLog{store: store, now: time.Now}
}

// AddLog records the current lock state and status of the order
func (l *LockLog) AddLog(ctx context.Context, order *models.Order, comment string) (*models.OrderLockLog, error) {
	record := newLockRecord(order, comment, 0, l.now())
	if err := l.store.CreateLockLog(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to add lock log for order %d: %w", order.ID, err)
	}
	return record, nil
}

// List returns the lock history of an order, oldest first
func (l *LockLog) List(ctx context.Context, orderID int64) ([]models.OrderLockLog, error) {
	return l.store.ListLockLog(ctx, orderID)
}

func newLockRecord(order *models.Order, comment string, actor int64, at time.Time) *models.OrderLockLog {
	return &models.OrderLockLog{
		OrderID:     order.ID,
		StatusID:    order.StatusID,
		LockedState: order.Locked,
		Comment:     comment,
		CreatedAt:   at,
		CreatedBy:   actorID(actor),
	}
}
