package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"order-status-service/internal/models"
	"order-status-service/internal/service"
	"order-status-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Workflow moves orders between statuses
type Workflow interface {
	Transition(ctx context.Context, order *models.Order, req service.TransitionRequest) (bool, error)
}

// Graph answers and edits the role-scoped transition graph
type Graph interface {
	ListAvailableTransitions(ctx context.Context, roleID, fromState int64) ([]models.StatusTransition, error)
	ListAvailableTransitionsMulti(ctx context.Context, roleID int64, fromStates []int64) ([]models.StatusTransition, error)
	CanTransition(ctx context.Context, roleID, from, to int64) (bool, error)
	AddTransition(ctx context.Context, from, to, roleID int64) (*models.StatusTransition, error)
}

// Orders reads orders and their status history
type Orders interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListStatusLog(ctx context.Context, orderID int64) ([]models.OrderStatusLogRecord, error)
	GetLatestTransitionTo(ctx context.Context, orderID, statusID int64) (*models.OrderStatusLogRecord, error)
}

// LockHistory reads the lock log of an order
type LockHistory interface {
	List(ctx context.Context, orderID int64) ([]models.OrderLockLog, error)
}

// Statuses lists the configured statuses
type Statuses interface {
	ListStatuses(ctx context.Context) ([]models.OrderStatus, error)
}

// IdempotencyGuard remembers request keys that were already handled
type IdempotencyGuard interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key string) error
}

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators the HTTP handlers call
type Dependencies struct {
	Workflow       Workflow
	Graph          Graph
	Orders         Orders
	LockLog        LockHistory
	Statuses       Statuses
	Idempotency    IdempotencyGuard
	IdempotencyTTL time.Duration
	Checks         map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		deps:   deps,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/statuses", h.listStatuses)
		v1.GET("/transitions", h.listTransitions)
		v1.POST("/transitions", h.createTransition)
		v1.POST("/orders/:id/status", h.changeOrderStatus)
		v1.GET("/orders/:id/status-log", h.getStatusLog)
		v1.GET("/orders/:id/status-log/latest", h.getLatestTransition)
		v1.GET("/orders/:id/lock-log", h.getLockLog)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every backing service
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.deps.Checks {
		if err := check.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listStatuses(c *gin.Context) {
	statuses, err := h.deps.Statuses.ListStatuses(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if statuses == nil {
		statuses = []models.OrderStatus{}
	}

	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}

// listTransitions handles GET /transitions?role_id=R&from=1,2
func (h *Handler) listTransitions(c *gin.Context) {
	roleID, err := strconv.ParseInt(c.Query("role_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role_id"})
		return
	}

	fromStates, err := parseIDList(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from", "details": err.Error()})
		return
	}

	var transitions []models.StatusTransition
	if len(fromStates) == 1 {
		transitions, err = h.deps.Graph.ListAvailableTransitions(c.Request.Context(), roleID, fromStates[0])
	} else {
		transitions, err = h.deps.Graph.ListAvailableTransitionsMulti(c.Request.Context(), roleID, fromStates)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	if transitions == nil {
		transitions = []models.StatusTransition{}
	}

	c.JSON(http.StatusOK, gin.H{"transitions": transitions})
}

// CreateTransitionRequest registers an edge; a missing role applies it to every role
type CreateTransitionRequest struct {
	FromStateID int64 `json:"from_state_id" binding:"required"`
	ToStateID   int64 `json:"to_state_id" binding:"required"`
	RoleID      int64 `json:"role_id"`
}

func (h *Handler) createTransition(c *gin.Context) {
	var req CreateTransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	transition, err := h.deps.Graph.AddTransition(c.Request.Context(), req.FromStateID, req.ToStateID, req.RoleID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, transition)
}

// ChangeStatusRequest asks for an order to be moved to a status
type ChangeStatusRequest struct {
	StatusID          int64                  `json:"status_id" binding:"required"`
	Comment           string                 `json:"comment"`
	SendNotifications bool                   `json:"send_notifications"`
	APIData           map[string]interface{} `json:"api_data"`
}

// changeOrderStatus handles POST /orders/:id/status
func (h *Handler) changeOrderStatus(c *gin.Context) {
	ctx := c.Request.Context()

	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	actorID, err := optionalIDHeader(c, "X-User-ID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid X-User-ID"})
		return
	}
	roleID, err := optionalIDHeader(c, "X-Role-ID")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid X-Role-ID"})
		return
	}

	key := c.GetHeader("Idempotency-Key")
	if key != "" && h.deps.Idempotency != nil {
		claimed, err := h.deps.Idempotency.ClaimIdempotencyKey(ctx, key, h.deps.IdempotencyTTL)
		if err != nil {
			h.logger.Warn("Idempotency check unavailable", zap.String("key", key), zap.Error(err))
		} else if !claimed {
			c.JSON(http.StatusConflict, gin.H{"error": "Duplicate request", "idempotency_key": key})
			return
		}
	}

	changed, order, err := h.transition(ctx, orderID, roleID, actorID, req)
	if err != nil {
		h.releaseKey(ctx, key)
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"changed": changed,
		"order":   order,
	})
}

func (h *Handler) transition(ctx context.Context, orderID, roleID, actorID int64, req ChangeStatusRequest) (bool, *models.Order, error) {
	order, err := h.deps.Orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return false, nil, err
	}

	if roleID != 0 && order.StatusID != req.StatusID {
		allowed, err := h.deps.Graph.CanTransition(ctx, roleID, order.StatusID, req.StatusID)
		if err != nil {
			return false, nil, err
		}
		if !allowed {
			return false, nil, service.ErrTransitionNotAllowed
		}
	}

	changed, err := h.deps.Workflow.Transition(ctx, order, service.TransitionRequest{
		StatusID:          req.StatusID,
		Comment:           req.Comment,
		SendNotifications: req.SendNotifications,
		APIData:           req.APIData,
		ActorID:           actorID,
	})
	return changed, order, err
}

func (h *Handler) getStatusLog(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	if _, err := h.deps.Orders.GetOrderByID(c.Request.Context(), orderID); err != nil {
		h.writeError(c, err)
		return
	}

	records, err := h.deps.Orders.ListStatusLog(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if records == nil {
		records = []models.OrderStatusLogRecord{}
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "status_log": records})
}

// getLatestTransition handles GET /orders/:id/status-log/latest?status_id=S
func (h *Handler) getLatestTransition(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	statusID, err := strconv.ParseInt(c.Query("status_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status_id"})
		return
	}

	record, err := h.deps.Orders.GetLatestTransitionTo(c.Request.Context(), orderID, statusID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order never entered the status"})
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *Handler) getLockLog(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}

	if _, err := h.deps.Orders.GetOrderByID(c.Request.Context(), orderID); err != nil {
		h.writeError(c, err)
		return
	}

	records, err := h.deps.LockLog.List(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if records == nil {
		records = []models.OrderLockLog{}
	}

	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "lock_log": records})
}

func (h *Handler) releaseKey(ctx context.Context, key string) {
	if key == "" || h.deps.Idempotency == nil {
		return
	}
	if err := h.deps.Idempotency.ReleaseIdempotencyKey(ctx, key); err != nil {
		h.logger.Warn("Failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

// writeError maps service errors to HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var reqErr *service.RequirementError

	switch {
	case errors.As(err, &reqErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   "Status requirement not met",
			"status":  reqErr.StatusCode,
			"message": reqErr.Message,
		})
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found", "details": err.Error()})
	case errors.Is(err, service.ErrStatusNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Status not found", "details": err.Error()})
	case errors.Is(err, service.ErrTransitionNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": "Transition not allowed for role"})
	case errors.Is(err, service.ErrTransitionExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Transition already exists"})
	case errors.Is(err, service.ErrSelfTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal error",
			"details": err.Error(),
		})
	}
}

func parseOrderID(c *gin.Context) (int64, bool) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid order ID",
		})
		return 0, false
	}
	return orderID, true
}

func optionalIDHeader(c *gin.Context, name string) (int64, error) {
	value := c.GetHeader(name)
	if value == "" {
		return 0, nil
	}
	return strconv.ParseInt(value, 10, 64)
}

func parseIDList(value string) ([]int64, error) {
	ids := []int64{}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
