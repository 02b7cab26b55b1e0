package store

import (
	"context"
	"fmt"

	"order-status-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const insertLockLog = `
	INSERT INTO order_lock_log (order_id, status_id, locked_state, comment, created_at, created_by)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id`

// CreateLockLog appends a lock event outside of a status transition
func (s *Store) CreateLockLog(ctx context.Context, record *models.OrderLockLog) error {
	return createLockLog(ctx, s.db, record)
}

func (t *sqlTx) CreateLockLog(ctx context.Context, record *models.OrderLockLog) error {
	return createLockLog(ctx, t.tx, record)
}

// ListLockLog returns the lock history of an order, oldest first
func (s *Store) ListLockLog(ctx context.Context, orderID int64) ([]models.OrderLockLog, error) {
	var records []models.OrderLockLog
	err := s.db.SelectContext(ctx, &records, `
		SELECT id, order_id, status_id, locked_state, comment, created_at, created_by
		FROM order_lock_log
		WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lock log: %w", err)
	}
	return records, nil
}

func createLockLog(ctx context.Context, q sqlx.QueryerContext, record *models.OrderLockLog) error {
	if err := sqlx.GetContext(ctx, q, &record.ID, insertLockLog,
		record.OrderID, record.StatusID, record.LockedState, record.Comment,
		record.CreatedAt, record.CreatedBy); err != nil {
		return fmt.Errorf("failed to create lock log record: %w", err)
	}
	return nil
}
