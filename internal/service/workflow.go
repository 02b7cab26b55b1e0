package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"order-status-service/internal/models"
	"order-status-service/internal/notify"
	"order-status-service/internal/rules"
	"order-status-service/internal/store"
	"order-status-service/internal/util"

	"go.uber.org/zap"
)

// WorkflowStore is the persistence the status workflow needs
type WorkflowStore interface {
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	InTx(ctx context.Context, fn func(tx store.Tx) error) error
}

// StatusLookup resolves configured statuses
type StatusLookup interface {
	GetStatusByID(ctx context.Context, id int64) (*models.OrderStatus, error)
	GetStatusByCode(ctx context.Context, code string) (*models.OrderStatus, error)
}

// RequirementChecker decides whether an order may enter a status
type RequirementChecker interface {
	Satisfied(status *models.OrderStatus, facts rules.Facts) (bool, error)
}

// Notifier sends the emails configured on a status
type Notifier interface {
	Dispatch(ctx context.Context, msg notify.Message) error
}

// WorkflowConfig selects the paid status and how re-entering it is stamped
type WorkflowConfig struct {
	PaidStatusCode          string
	RestampPaymentOnReentry bool
}

// TransitionRequest asks for an order to be moved to a status
type TransitionRequest struct {
	StatusID          int64
	Comment           string
	SendNotifications bool
	APIData           map[string]interface{}
	ActorID           int64
}

// StatusWorkflow executes order status transitions and their side effects
type StatusWorkflow struct {
	store        WorkflowStore
	statuses     StatusLookup
	requirements RequirementChecker
	notifier     Notifier
	metrics      MetricsRecorder
	hooks        *Hooks
	cfg          WorkflowConfig
	now          func() time.Time
	logger       *zap.Logger
}

// NewStatusWorkflow creates a new status workflow
func NewStatusWorkflow(
	store WorkflowStore,
	statuses StatusLookup,
	requirements RequirementChecker,
	notifier Notifier,
	metrics MetricsRecorder,
	hooks *Hooks,
	cfg WorkflowConfig,
) *StatusWorkflow {
	return &StatusWorkflow{
		store:        store,
		statuses:     statuses,
		requirements: requirements,
		notifier:     notifier,
		metrics:      metrics,
		hooks:        hooks,
		cfg:          cfg,
		now:          time.Now,
		logger:       util.GetLogger(),
	}
}

var errSkipTransition = errors.New("transition skipped")

type transitionResult struct {
	order            *models.Order
	previousStatusID int64
	paid             bool
	stockUpdated     bool
	stockVetoed      bool
	lockChanged      bool
}

// Transition moves the order to the requested status. It returns false without
// writing anything when the order already has the status or an observer vetoes
// the change, and a *RequirementError when the order does not meet the entry
// requirement of the status. On success the order is refreshed with the
// committed state.
func (w *StatusWorkflow) Transition(ctx context.Context, order *models.Order, req TransitionRequest) (bool, error) {
	ctx, span := util.StartSpan(ctx, "StatusWorkflow.Transition", util.OrderAttr(order.ID))
	defer span.End()

	start := time.Now()
	defer func() {
		util.StatusTransitionLatency.Observe(time.Since(start).Seconds())
	}()

	if req.StatusID == order.StatusID {
		util.StatusTransitionsTotal.WithLabelValues("", util.OutcomeNoop).Inc()
		return false, nil
	}

	status, err := w.statuses.GetStatusByID(ctx, req.StatusID)
	if err != nil {
		util.StatusTransitionsTotal.WithLabelValues("", util.OutcomeError).Inc()
		return false, fmt.Errorf("failed to load status %d: %w", req.StatusID, err)
	}

	if !w.hooks.allowTransition(ctx, order, status) {
		util.StatusTransitionsTotal.WithLabelValues(status.Code, util.OutcomeVetoed).Inc()
		w.logger.Info("Status transition vetoed",
			zap.Int64("order_id", order.ID),
			zap.String("status", status.Code))
		return false, nil
	}

	// Fast path on the caller's copy; apply re-checks against the locked row.
	if status.EntryRequirement != "" {
		items, err := w.store.GetOrderItemsByOrderID(ctx, order.ID)
		if err != nil {
			util.StatusTransitionsTotal.WithLabelValues(status.Code, util.OutcomeError).Inc()
			return false, fmt.Errorf("failed to get order items: %w", err)
		}
		if err := w.checkRequirement(order, len(items), status); err != nil {
			util.StatusTransitionsTotal.WithLabelValues(status.Code, util.OutcomeRequirement).Inc()
			return false, err
		}
	}

	apiData, err := encodeAPIData(req.APIData)
	if err != nil {
		util.StatusTransitionsTotal.WithLabelValues(status.Code, util.OutcomeError).Inc()
		return false, err
	}

	var result transitionResult
	err = w.store.InTx(ctx, func(tx store.Tx) error {
		return w.apply(ctx, tx, order.ID, status, req, apiData, &result)
	})
	if errors.Is(err, errSkipTransition) {
		util.StatusTransitionsTotal.WithLabelValues(status.Code, util.OutcomeNoop).Inc()
		return false, nil
	}
	var reqErr *RequirementError
	if errors.As(err, &reqErr) {
		util.StatusTransitionsTotal.WithLabelValues(status.Code, util.OutcomeRequirement).Inc()
		return false, reqErr
	}
	if err != nil {
		util.StatusTransitionsTotal.WithLabelValues(status.Code, util.OutcomeError).Inc()
		return false, fmt.Errorf("failed to transition order %d to %s: %w", order.ID, status.Code, err)
	}

	*order = *result.order
	util.StatusTransitionsTotal.WithLabelValues(status.Code, util.OutcomeChanged).Inc()

	w.logger.Info("Order status changed",
		zap.Int64("order_id", order.ID),
		zap.Int64("previous_status_id", result.previousStatusID),
		zap.String("status", status.Code))

	w.afterCommit(ctx, order, status, req, &result)
	return true, nil
}

func (w *StatusWorkflow) checkRequirement(order *models.Order, itemsCount int, status *models.OrderStatus) error {
	ok, err := w.requirements.Satisfied(status, rules.Facts{Order: order, ItemsCount: itemsCount})
	if err != nil {
		return &RequirementError{StatusCode: status.Code, Message: requirementMessage(status), Err: err}
	}
	if !ok {
		return &RequirementError{StatusCode: status.Code, Message: requirementMessage(status)}
	}
	return nil
}

// apply performs every write of a transition inside one transaction
func (w *StatusWorkflow) apply(
	ctx context.Context,
	tx store.Tx,
	orderID int64,
	status *models.OrderStatus,
	req TransitionRequest,
	apiData []byte,
	result *transitionResult,
) error {
	current, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	if current.StatusID == status.ID {
		return errSkipTransition
	}

	if status.EntryRequirement != "" {
		items, err := tx.GetOrderItems(ctx, current.ID)
		if err != nil {
			return fmt.Errorf("failed to get order items: %w", err)
		}
		if err := w.checkRequirement(current, len(items), status); err != nil {
			return err
		}
	}

	now := w.now()
	actor := actorID(req.ActorID)
	result.previousStatusID = current.StatusID

	record := &models.OrderStatusLogRecord{
		OrderID:   current.ID,
		StatusID:  status.ID,
		Comment:   req.Comment,
		APIData:   apiData,
		CreatedAt: now,
		CreatedBy: actor,
	}
	if err := tx.CreateStatusLog(ctx, record); err != nil {
		return err
	}

	if err := tx.UpdateOrderStatus(ctx, current.ID, status.ID, now); err != nil {
		return err
	}
	current.StatusID = status.ID
	current.StatusUpdateDatetime = sql.NullTime{Time: now, Valid: true}

	if w.isPaidStatus(status) {
		result.paid = true
		if w.cfg.RestampPaymentOnReentry || !current.PaymentProcessed.Valid {
			if err := tx.SetPaymentProcessed(ctx, current.ID, now); err != nil {
				return err
			}
			current.PaymentProcessed = sql.NullTime{Time: now, Valid: true}
		}
	}

	if status.UpdateStock && !current.StockUpdated {
		if w.hooks.allowStockChange(ctx, current, status) {
			if err := decrementStock(ctx, tx, current.ID); err != nil {
				return err
			}
			current.StockUpdated = true
			result.stockUpdated = true
		} else {
			result.stockVetoed = true
		}
	}

	if locked, changes := lockChange(current, status); changes {
		if err := tx.SetOrderLocked(ctx, current.ID, locked); err != nil {
			return err
		}
		current.Locked = locked
		if err := tx.CreateLockLog(ctx, newLockRecord(current, lockComment(locked), req.ActorID, now)); err != nil {
			return err
		}
		result.lockChanged = true
	}

	result.order = current
	return nil
}

// afterCommit runs the side effects that must not undo a committed transition
func (w *StatusWorkflow) afterCommit(
	ctx context.Context,
	order *models.Order,
	status *models.OrderStatus,
	req TransitionRequest,
	result *transitionResult,
) {
	if result.paid && w.metrics != nil {
		w.metrics.OrderPaid(order)
	}
	if result.stockUpdated {
		util.StockUpdatesTotal.WithLabelValues("applied").Inc()
	}
	if result.stockVetoed {
		util.StockUpdatesTotal.WithLabelValues("vetoed").Inc()
	}
	if result.lockChanged {
		state := "unlocked"
		if order.Locked {
			state = "locked"
		}
		util.OrderLockChangesTotal.WithLabelValues(state).Inc()
	}

	var previous *models.OrderStatus
	if result.previousStatusID != 0 {
		var err error
		previous, err = w.statuses.GetStatusByID(ctx, result.previousStatusID)
		if err != nil {
			w.logger.Warn("Failed to load previous status",
				zap.Int64("order_id", order.ID),
				zap.Int64("status_id", result.previousStatusID),
				zap.Error(err))
		}
	}

	w.hooks.notifyStatusChanged(ctx, TransitionEvent{
		Order:          order,
		Status:         status,
		PreviousStatus: previous,
		Comment:        req.Comment,
		ActorID:        req.ActorID,
		Paid:           result.paid,
		StockUpdated:   result.stockUpdated,
		LockChanged:    result.lockChanged,
	})

	if req.SendNotifications && w.notifier != nil {
		err := w.notifier.Dispatch(ctx, notify.Message{
			Order:          order,
			Status:         status,
			PreviousStatus: previous,
			Comment:        req.Comment,
		})
		if err != nil {
			w.logger.Error("Failed to send status notifications",
				zap.Int64("order_id", order.ID),
				zap.String("status", status.Code),
				zap.Error(err))
		}
	}
}

func (w *StatusWorkflow) isPaidStatus(status *models.OrderStatus) bool {
	return w.cfg.PaidStatusCode != "" && status.Code == w.cfg.PaidStatusCode
}

func decrementStock(ctx context.Context, tx store.Tx, orderID int64) error {
	items, err := tx.GetOrderItems(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}

	for _, item := range items {
		if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return tx.MarkStockUpdated(ctx, orderID)
}

// lockChange returns the lock state the status asks for and whether it differs from the order's
func lockChange(order *models.Order, status *models.OrderStatus) (bool, bool) {
	switch {
	case status.LocksOrder() && !order.Locked:
		return true, true
	case status.UnlocksOrder() && order.Locked:
		return false, true
	default:
		return order.Locked, false
	}
}

func lockComment(locked bool) string {
	if locked {
		return models.LockedByStatusChange
	}
	return models.UnlockedByStatusChange
}

func requirementMessage(status *models.OrderStatus) string {
	if status.RequirementMessage != "" {
		return status.RequirementMessage
	}
	return fmt.Sprintf("The order cannot be moved to %s", status.Name)
}

func encodeAPIData(data map[string]interface{}) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode api data: %w", err)
	}
	return raw, nil
}

func actorID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
