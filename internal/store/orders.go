package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"order-status-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, customer_email, total_amount, status_id, status_update_datetime,
	payment_processed, stock_updated, locked, created_at`

// Tx is the set of writes a status transition performs atomically
type Tx interface {
	GetOrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	CreateStatusLog(ctx context.Context, record *models.OrderStatusLogRecord) error
	UpdateOrderStatus(ctx context.Context, orderID, statusID int64, at time.Time) error
	SetPaymentProcessed(ctx context.Context, orderID int64, at time.Time) error
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	MarkStockUpdated(ctx context.Context, orderID int64) error
	SetOrderLocked(ctx context.Context, orderID int64, locked bool) error
	CreateLockLog(ctx context.Context, record *models.OrderLockLog) error
}

type sqlTx struct {
	tx *sqlx.Tx
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	return getOrder(ctx, s.db, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return getOrderItems(ctx, s.db, orderID)
}

// GetOrderForUpdate locks the order row until the transaction ends
func (t *sqlTx) GetOrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	return getOrder(ctx, t.tx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE", orderID)
}

func (t *sqlTx) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return getOrderItems(ctx, t.tx, orderID)
}

// UpdateOrderStatus moves the order to a status with a single statement
func (t *sqlTx) UpdateOrderStatus(ctx context.Context, orderID, statusID int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET status_id = $1, status_update_datetime = $2 WHERE id = $3",
		statusID, at, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}

func (t *sqlTx) SetPaymentProcessed(ctx context.Context, orderID int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET payment_processed = $1 WHERE id = $2", at, orderID)
	if err != nil {
		return fmt.Errorf("failed to mark payment processed: %w", err)
	}
	return nil
}

// DecrementStock deducts quantity from available stock
func (t *sqlTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE inventory SET available = available - $1, updated_at = NOW() WHERE product_id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock for product %d: %w", productID, err)
	}
	return nil
}

func (t *sqlTx) MarkStockUpdated(ctx context.Context, orderID int64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET stock_updated = TRUE WHERE id = $1", orderID)
	if err != nil {
		return fmt.Errorf("failed to mark stock updated: %w", err)
	}
	return nil
}

func (t *sqlTx) SetOrderLocked(ctx context.Context, orderID int64, locked bool) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE orders SET locked = $1 WHERE id = $2", locked, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order lock: %w", err)
	}
	return nil
}

func getOrder(ctx context.Context, q sqlx.QueryerContext, query string, id int64) (*models.Order, error) {
	var order models.Order
	err := sqlx.GetContext(ctx, q, &order, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func getOrderItems(ctx context.Context, q sqlx.QueryerContext, orderID int64) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := sqlx.SelectContext(ctx, q, &items,
		"SELECT id, order_id, product_id, quantity, unit_price FROM order_items WHERE order_id = $1 ORDER BY id",
		orderID)
	return items, err
}
