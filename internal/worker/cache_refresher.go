package worker

import (
	"context"
	"fmt"
	"time"

	"order-status-service/internal/util"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const refreshLockKey = "status-cache-refresh"

// Refresher reloads a cache and reports how many entries it wrote
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Locker is a distributed lock shared by all replicas
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// StatusCacheRefresher re-warms the status cache on a cron schedule. Only the
// replica holding the lock refreshes.
type StatusCacheRefresher struct {
	cron      *cron.Cron
	refresher Refresher
	locker    Locker
	lockTTL   time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// NewStatusCacheRefresher schedules refreshes with a cron schedule such as "@every 5m"
func NewStatusCacheRefresher(schedule string, refresher Refresher, locker Locker) (*StatusCacheRefresher, error) {
	r := &StatusCacheRefresher{
		cron:      cron.New(),
		refresher: refresher,
		locker:    locker,
		lockTTL:   time.Minute,
		timeout:   30 * time.Second,
		logger:    util.GetLogger(),
	}

	if _, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start warms the cache once and runs the schedule until ctx is cancelled
func (r *StatusCacheRefresher) Start(ctx context.Context) error {
	r.logger.Info("Starting status cache refresher")
	r.RunOnce(ctx)

	r.cron.Start()
	<-ctx.Done()

	<-r.cron.Stop().Done()
	r.logger.Info("Status cache refresher stopped")
	return nil
}

// RunOnce refreshes the cache if no other replica is doing it. It reports
// whether this call performed the refresh.
func (r *StatusCacheRefresher) RunOnce(ctx context.Context) bool {
	acquired, err := r.locker.AcquireLock(ctx, refreshLockKey, r.lockTTL)
	if err != nil {
		r.logger.Warn("Failed to acquire status cache lock", zap.Error(err))
		return false
	}
	if !acquired {
		r.logger.Debug("Status cache refresh running elsewhere")
		return false
	}
	defer func() {
		if err := r.locker.ReleaseLock(ctx, refreshLockKey); err != nil {
			r.logger.Warn("Failed to release status cache lock", zap.Error(err))
		}
	}()

	n, err := r.refresher.Refresh(ctx)
	if err != nil {
		r.logger.Error("Status cache refresh failed", zap.Int("refreshed", n), zap.Error(err))
		return true
	}

	r.logger.Info("Status cache refreshed", zap.Int("statuses", n))
	return true
}
