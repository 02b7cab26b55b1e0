package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"order-status-service/internal/models"
)

const statusColumns = `id, code, name, color, update_stock, order_lock_action, notify_customer,
	notify_recipients, customer_message_template, recipient_message_template,
	entry_requirement, requirement_message`

// GetStatusByID retrieves an order status by ID
func (s *Store) GetStatusByID(ctx context.Context, id int64) (*models.OrderStatus, error) {
	var status models.OrderStatus
	err := s.db.GetContext(ctx, &status, "SELECT "+statusColumns+" FROM order_statuses WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrStatusNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// GetStatusByCode retrieves an order status by its API code
func (s *Store) GetStatusByCode(ctx context.Context, code string) (*models.OrderStatus, error) {
	var status models.OrderStatus
	err := s.db.GetContext(ctx, &status, "SELECT "+statusColumns+" FROM order_statuses WHERE code = $1", code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrStatusNotFound, code)
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// ListStatuses retrieves all statuses
func (s *Store) ListStatuses(ctx context.Context) ([]models.OrderStatus, error) {
	var statuses []models.OrderStatus
	err := s.db.SelectContext(ctx, &statuses, "SELECT "+statusColumns+" FROM order_statuses ORDER BY id")
	return statuses, err
}

// GetStatusRecipients retrieves the team addresses notified for a status
func (s *Store) GetStatusRecipients(ctx context.Context, statusID int64) ([]models.StatusRecipient, error) {
	var recipients []models.StatusRecipient
	err := s.db.SelectContext(ctx, &recipients,
		"SELECT status_id, email FROM status_recipients WHERE status_id = $1 ORDER BY email", statusID)
	return recipients, err
}
