package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"order-status-service/internal/models"
	"order-status-service/internal/notify"
	"order-status-service/internal/store"

	"github.com/stretchr/testify/mock"
)

var errInjected = errors.New("injected failure")

// memStore keeps orders in memory and applies transactions on commit only
type memStore struct {
	mu        sync.Mutex
	orders    map[int64]models.Order
	items     map[int64][]models.OrderItem
	stock     map[int64]int
	statusLog []models.OrderStatusLogRecord
	lockLog   []models.OrderLockLog
	failOn    string
	txCount   int
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[int64]models.Order),
		items:  make(map[int64][]models.OrderItem),
		stock:  make(map[int64]int),
	}
}

func (s *memStore) addOrder(order models.Order, items ...models.OrderItem) *models.Order {
	s.orders[order.ID] = order
	s.items[order.ID] = items
	copied := order
	return &copied
}

func (s *memStore) order(id int64) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", store.ErrOrderNotFound, id)
	}
	return &order, nil
}

func (s *memStore) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return s.items[orderID], nil
}

func (s *memStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	tx := &memTx{
		failOn: s.failOn,
		items:  s.items,
		orders: make(map[int64]models.Order, len(s.orders)),
		stock:  make(map[int64]int, len(s.stock)),
	}
	for id, o := range s.orders {
		tx.orders[id] = o
	}
	for id, n := range s.stock {
		tx.stock[id] = n
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.orders = tx.orders
	s.stock = tx.stock
	s.statusLog = append(s.statusLog, tx.statusLog...)
	s.lockLog = append(s.lockLog, tx.lockLog...)
	return nil
}

func (s *memStore) CreateLockLog(ctx context.Context, record *models.OrderLockLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.ID = int64(len(s.lockLog) + 1)
	s.lockLog = append(s.lockLog, *record)
	return nil
}

func (s *memStore) ListLockLog(ctx context.Context, orderID int64) ([]models.OrderLockLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OrderLockLog
	for _, r := range s.lockLog {
		if r.OrderID == orderID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memTx struct {
	failOn    string
	items     map[int64][]models.OrderItem
	orders    map[int64]models.Order
	stock     map[int64]int
	statusLog []models.OrderStatusLogRecord
	lockLog   []models.OrderLockLog
}

func (t *memTx) fail(op string) error {
	if t.failOn == op {
		return fmt.Errorf("%s: %w", op, errInjected)
	}
	return nil
}

func (t *memTx) update(orderID int64, fn func(o *models.Order)) {
	o := t.orders[orderID]
	fn(&o)
	t.orders[orderID] = o
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, orderID int64) (*models.Order, error) {
	o, ok := t.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", store.ErrOrderNotFound, orderID)
	}
	return &o, nil
}

func (t *memTx) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return t.items[orderID], nil
}

func (t *memTx) CreateStatusLog(ctx context.Context, record *models.OrderStatusLogRecord) error {
	if err := t.fail("CreateStatusLog"); err != nil {
		return err
	}
	t.statusLog = append(t.statusLog, *record)
	return nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID, statusID int64, at time.Time) error {
	t.update(orderID, func(o *models.Order) {
		o.StatusID = statusID
		o.StatusUpdateDatetime.Time, o.StatusUpdateDatetime.Valid = at, true
	})
	return nil
}

func (t *memTx) SetPaymentProcessed(ctx context.Context, orderID int64, at time.Time) error {
	t.update(orderID, func(o *models.Order) {
		o.PaymentProcessed.Time, o.PaymentProcessed.Valid = at, true
	})
	return nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	if err := t.fail("DecrementStock"); err != nil {
		return err
	}
	t.stock[productID] -= quantity
	return nil
}

func (t *memTx) MarkStockUpdated(ctx context.Context, orderID int64) error {
	t.update(orderID, func(o *models.Order) { o.StockUpdated = true })
	return nil
}

func (t *memTx) SetOrderLocked(ctx context.Context, orderID int64, locked bool) error {
	t.update(orderID, func(o *models.Order) { o.Locked = locked })
	return nil
}

func (t *memTx) CreateLockLog(ctx context.Context, record *models.OrderLockLog) error {
	if err := t.fail("CreateLockLog"); err != nil {
		return err
	}
	t.lockLog = append(t.lockLog, *record)
	return nil
}

// memStatuses serves a fixed status table
type memStatuses map[int64]*models.OrderStatus

func (m memStatuses) GetStatusByID(ctx context.Context, id int64) (*models.OrderStatus, error) {
	s, ok := m[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", store.ErrStatusNotFound, id)
	}
	return s, nil
}

func (m memStatuses) GetStatusByCode(ctx context.Context, code string) (*models.OrderStatus, error) {
	for _, s := range m {
		if s.Code == code {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", store.ErrStatusNotFound, code)
}

func (m memStatuses) ListStatuses(ctx context.Context) ([]models.OrderStatus, error) {
	out := make([]models.OrderStatus, 0, len(m))
	for id := int64(1); len(out) < len(m); id++ {
		if s, ok := m[id]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) OrderPaid(order *models.Order) {
	m.Called(order)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Dispatch(ctx context.Context, msg notify.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockPublisher) PublishOrderLockChanged(ctx context.Context, event *models.OrderLockChangedEvent) error {
	return m.Called(ctx, event).Error(0)
}

// recordingSender captures delivered emails
type recordingSender struct {
	mu   sync.Mutex
	sent []sentEmail
}

type sentEmail struct {
	To      string
	Subject string
	Body    string
}

func (r *recordingSender) SendEmail(ctx context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEmail{To: to, Subject: subject, Body: body})
	return nil
}

type noRecipients struct{}

func (noRecipients) GetStatusRecipients(ctx context.Context, statusID int64) ([]models.StatusRecipient, error) {
	return nil, nil
}
