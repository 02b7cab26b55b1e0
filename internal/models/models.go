package models

import (
	"database/sql"
	"time"
)

// Lock actions a status may carry
const (
	LockActionNone   = ""
	LockActionLock   = "lock"
	LockActionUnlock = "unlock"
)

// Lock log comments written when a status change toggles the order lock
const (
	LockedByStatusChange   = "Locked by status change"
	UnlockedByStatusChange = "Unlocked by status change"
)

// OrderStatus is a configured node of the order workflow
type OrderStatus struct {
	ID                       int64  `db:"id" json:"id"`
	Code                     string `db:"code" json:"code"`
	Name                     string `db:"name" json:"name"`
	Color                    string `db:"color" json:"color"`
	UpdateStock              bool   `db:"update_stock" json:"update_stock"`
	OrderLockAction          string `db:"order_lock_action" json:"order_lock_action,omitempty"`
	NotifyCustomer           bool   `db:"notify_customer" json:"notify_customer"`
	NotifyRecipients         bool   `db:"notify_recipients" json:"notify_recipients"`
	CustomerMessageTemplate  string `db:"customer_message_template" json:"customer_message_template,omitempty"`
	RecipientMessageTemplate string `db:"recipient_message_template" json:"recipient_message_template,omitempty"`
	EntryRequirement         string `db:"entry_requirement" json:"entry_requirement,omitempty"`
	RequirementMessage       string `db:"requirement_message" json:"requirement_message,omitempty"`
}

// LocksOrder reports whether entering the status locks the order
func (s *OrderStatus) LocksOrder() bool {
	return s.OrderLockAction == LockActionLock
}

// UnlocksOrder reports whether entering the status unlocks the order
func (s *OrderStatus) UnlocksOrder() bool {
	return s.OrderLockAction == LockActionUnlock
}

// StatusTransition is a role-scoped edge between two statuses.
// A NULL role applies to every role.
type StatusTransition struct {
	ID          int64         `db:"id" json:"id"`
	FromStateID int64         `db:"from_state_id" json:"from_state_id"`
	ToStateID   int64         `db:"to_state_id" json:"to_state_id"`
	RoleID      sql.NullInt64 `db:"role_id" json:"-"`
	ToStateName string        `db:"to_state_name" json:"to_state_name"`
	ToStateCode string        `db:"to_state_code" json:"to_state_code"`
}

// Order is the part of the order aggregate the status workflow reads and mutates
type Order struct {
	ID                   int64        `db:"id" json:"id"`
	CustomerEmail        string       `db:"customer_email" json:"customer_email"`
	TotalAmount          int64        `db:"total_amount" json:"total_amount"`
	StatusID             int64        `db:"status_id" json:"status_id"`
	StatusUpdateDatetime sql.NullTime `db:"status_update_datetime" json:"-"`
	PaymentProcessed     sql.NullTime `db:"payment_processed" json:"-"`
	StockUpdated         bool         `db:"stock_updated" json:"stock_updated"`
	Locked               bool         `db:"locked" json:"locked"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
}

// OrderItem represents items in an order
type OrderItem struct {
	ID        int64 `db:"id" json:"id"`
	OrderID   int64 `db:"order_id" json:"order_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
	UnitPrice int64 `db:"unit_price" json:"unit_price"`
}

// OrderStatusLogRecord is one status change of an order. Rows are never updated.
type OrderStatusLogRecord struct {
	ID        int64         `db:"id" json:"id"`
	OrderID   int64         `db:"order_id" json:"order_id"`
	StatusID  int64         `db:"status_id" json:"status_id"`
	Comment   string        `db:"comment" json:"comment,omitempty"`
	APIData   []byte        `db:"api_data" json:"-"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	CreatedBy sql.NullInt64 `db:"created_by" json:"-"`

	StatusName string `db:"status_name" json:"status_name,omitempty"`
}

// OrderLockLog is one lock or unlock event of an order. Rows are never updated.
type OrderLockLog struct {
	ID          int64         `db:"id" json:"id"`
	OrderID     int64         `db:"order_id" json:"order_id"`
	StatusID    int64         `db:"status_id" json:"status_id"`
	LockedState bool          `db:"locked_state" json:"locked_state"`
	Comment     string        `db:"comment" json:"comment"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	CreatedBy   sql.NullInt64 `db:"created_by" json:"-"`
}

// StatusRecipient is a team address notified when an order enters a status
type StatusRecipient struct {
	StatusID int64  `db:"status_id" json:"status_id"`
	Email    string `db:"email" json:"email"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
