package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"order-status-service/internal/models"
	"order-status-service/internal/util"

	"go.uber.org/zap"
)

// StatusSource is the authoritative store of statuses
type StatusSource interface {
	GetStatusByID(ctx context.Context, id int64) (*models.OrderStatus, error)
	GetStatusByCode(ctx context.Context, code string) (*models.OrderStatus, error)
	ListStatuses(ctx context.Context) ([]models.OrderStatus, error)
}

// StatusCache holds JSON encoded values with an expiry
type StatusCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatusCatalog resolves statuses through a read-through cache
type StatusCatalog struct {
	source StatusSource
	cache  StatusCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewStatusCatalog creates a status catalog caching entries for ttl
func NewStatusCatalog(source StatusSource, cache StatusCache, ttl time.Duration) *StatusCatalog {
	return &StatusCatalog{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

func statusIDKey(id int64) string {
	return "status:" + strconv.FormatInt(id, 10)
}

func statusCodeKey(code string) string {
	return "status:code:" + code
}

// GetStatusByID resolves a status by id
func (c *StatusCatalog) GetStatusByID(ctx context.Context, id int64) (*models.OrderStatus, error) {
	return c.lookup(ctx, statusIDKey(id), func() (*models.OrderStatus, error) {
		return c.source.GetStatusByID(ctx, id)
	})
}

// GetStatusByCode resolves a status by its API code
func (c *StatusCatalog) GetStatusByCode(ctx context.Context, code string) (*models.OrderStatus, error) {
	return c.lookup(ctx, statusCodeKey(code), func() (*models.OrderStatus, error) {
		return c.source.GetStatusByCode(ctx, code)
	})
}

// ListStatuses returns every status from the source
func (c *StatusCatalog) ListStatuses(ctx context.Context) ([]models.OrderStatus, error) {
	return c.source.ListStatuses(ctx)
}

// Refresh loads every status from the source into the cache
func (c *StatusCatalog) Refresh(ctx context.Context) (int, error) {
	statuses, err := c.source.ListStatuses(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list statuses: %w", err)
	}

	for i := range statuses {
		if err := c.store(ctx, &statuses[i]); err != nil {
			return i, err
		}
	}
	return len(statuses), nil
}

func (c *StatusCatalog) lookup(ctx context.Context, key string, load func() (*models.OrderStatus, error)) (*models.OrderStatus, error) {
	var cached models.OrderStatus
	found, err := c.cache.GetJSON(ctx, key, &cached)
	switch {
	case err != nil:
		util.StatusCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("Status cache read failed", zap.String("key", key), zap.Error(err))
	case found:
		util.StatusCacheLookups.WithLabelValues("hit").Inc()
		return &cached, nil
	default:
		util.StatusCacheLookups.WithLabelValues("miss").Inc()
	}

	status, err := load()
	if err != nil {
		return nil, err
	}

	if err := c.store(ctx, status); err != nil {
		c.logger.Warn("Status cache write failed", zap.Int64("status_id", status.ID), zap.Error(err))
	}
	return status, nil
}

func (c *StatusCatalog) store(ctx context.Context, status *models.OrderStatus) error {
	if err := c.cache.SetJSON(ctx, statusIDKey(status.ID), status, c.ttl); err != nil {
		return err
	}
	return c.cache.SetJSON(ctx, statusCodeKey(status.Code), status, c.ttl)
}
