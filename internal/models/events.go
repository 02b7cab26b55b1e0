package models

import "time"

// Event types
const (
	EventTypeOrderStatusChanged         = "ORDER_STATUS_CHANGED"
	EventTypeOrderPaid                  = "ORDER_PAID"
	EventTypeOrderLockChanged           = "ORDER_LOCK_CHANGED"
	EventTypeOrderStatusChangeRequested = "ORDER_STATUS_CHANGE_REQUESTED"
	EventTypePaymentSuccess             = "PAYMENT_SUCCESS"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderStatusChangedEvent published after a status transition commits
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID          int64  `json:"order_id"`
	PreviousStatusID int64  `json:"previous_status_id"`
	StatusID         int64  `json:"status_id"`
	StatusCode       string `json:"status_code"`
	Comment          string `json:"comment,omitempty"`
	Locked           bool   `json:"locked"`
	StockUpdated     bool   `json:"stock_updated"`
}

// OrderPaidEvent published when an order enters the paid status
type OrderPaidEvent struct {
	BaseEvent
	OrderID     int64     `json:"order_id"`
	TotalAmount int64     `json:"total_amount"`
	ProcessedAt time.Time `json:"processed_at"`
}

// OrderLockChangedEvent published when a status change locks or unlocks an order
type OrderLockChangedEvent struct {
	BaseEvent
	OrderID  int64 `json:"order_id"`
	StatusID int64 `json:"status_id"`
	Locked   bool  `json:"locked"`
}

// OrderStatusChangeRequestedEvent asks the service to move an order to a status by code
type OrderStatusChangeRequestedEvent struct {
	BaseEvent
	OrderID           int64                  `json:"order_id"`
	StatusCode        string                 `json:"status_code"`
	Comment           string                 `json:"comment,omitempty"`
	SendNotifications bool                   `json:"send_notifications"`
	APIData           map[string]interface{} `json:"api_data,omitempty"`
}

// PaymentSuccessEvent published by payment service
type PaymentSuccessEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	PaymentID int64  `json:"payment_id"`
	Amount    int64  `json:"amount"`
	TxID      string `json:"tx_id"`
}
