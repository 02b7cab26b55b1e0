package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) Refresh(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, lockKey, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockLocker) ReleaseLock(ctx context.Context, lockKey string) error {
	return m.Called(ctx, lockKey).Error(0)
}

func TestRunOnceRefreshesUnderLock(t *testing.T) {
	refresher := &mockRefresher{}
	locker := &mockLocker{}
	locker.On("AcquireLock", mock.Anything, refreshLockKey, time.Minute).Return(true, nil)
	locker.On("ReleaseLock", mock.Anything, refreshLockKey).Return(nil)
	refresher.On("Refresh", mock.Anything).Return(5, nil)

	r, err := NewStatusCacheRefresher("@every 5m", refresher, locker)
	require.NoError(t, err)

	assert.True(t, r.RunOnce(context.Background()))
	refresher.AssertExpectations(t)
	locker.AssertExpectations(t)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	refresher := &mockRefresher{}
	locker := &mockLocker{}
	locker.On("AcquireLock", mock.Anything, refreshLockKey, time.Minute).Return(false, nil)

	r, err := NewStatusCacheRefresher("@every 5m", refresher, locker)
	require.NoError(t, err)

	assert.False(t, r.RunOnce(context.Background()))
	refresher.AssertNotCalled(t, "Refresh", mock.Anything)
	locker.AssertNotCalled(t, "ReleaseLock", mock.Anything, mock.Anything)
}

func TestRunOnceReleasesLockAfterFailure(t *testing.T) {
	refresher := &mockRefresher{}
	locker := &mockLocker{}
	locker.On("AcquireLock", mock.Anything, refreshLockKey, time.Minute).Return(true, nil)
	locker.On("ReleaseLock", mock.Anything, refreshLockKey).Return(nil)
	refresher.On("Refresh", mock.Anything).Return(0, errors.New("database unavailable"))

	r, err := NewStatusCacheRefresher("@every 5m", refresher, locker)
	require.NoError(t, err)

	assert.True(t, r.RunOnce(context.Background()))
	locker.AssertCalled(t, "ReleaseLock", mock.Anything, refreshLockKey)
}

func TestNewStatusCacheRefresherRejectsBadSchedule(t *testing.T) {
	_, err := NewStatusCacheRefresher("every now and then", &mockRefresher{}, &mockLocker{})

	assert.ErrorContains(t, err, "invalid refresh schedule")
}
