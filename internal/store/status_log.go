package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"order-status-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateStatusLog appends a status change to the order history
func (t *sqlTx) CreateStatusLog(ctx context.Context, record *models.OrderStatusLogRecord) error {
	query := `
		INSERT INTO order_status_log (order_id, status_id, comment, api_data, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	if err := t.tx.GetContext(ctx, &record.ID, query,
		record.OrderID, record.StatusID, record.Comment, nullableJSON(record.APIData),
		record.CreatedAt, record.CreatedBy); err != nil {
		return fmt.Errorf("failed to create status log record: %w", err)
	}
	return nil
}

// ListStatusLog returns the status history of an order, oldest first
func (s *Store) ListStatusLog(ctx context.Context, orderID int64) ([]models.OrderStatusLogRecord, error) {
	query := `
		SELECT l.id, l.order_id, l.status_id, l.comment, l.api_data, l.created_at, l.created_by,
		       s.name AS status_name
		FROM order_status_log l
		JOIN order_statuses s ON s.id = l.status_id
		WHERE l.order_id = $1
		ORDER BY l.created_at, l.id`

	var records []models.OrderStatusLogRecord
	if err := s.db.SelectContext(ctx, &records, query, orderID); err != nil {
		return nil, fmt.Errorf("failed to list status log: %w", err)
	}
	return records, nil
}

// GetLatestTransitionTo returns the most recent move of an order into a status,
// or nil when the order never entered it
func (s *Store) GetLatestTransitionTo(ctx context.Context, orderID, statusID int64) (*models.OrderStatusLogRecord, error) {
	query := `
		SELECT l.id, l.order_id, l.status_id, l.comment, l.api_data, l.created_at, l.created_by,
		       s.name AS status_name
		FROM order_status_log l
		JOIN order_statuses s ON s.id = l.status_id
		WHERE l.order_id = $1 AND l.status_id = $2
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT 1`

	var record models.OrderStatusLogRecord
	err := sqlx.GetContext(ctx, s.db, &record, query, orderID, statusID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest transition: %w", err)
	}
	return &record, nil
}

func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
