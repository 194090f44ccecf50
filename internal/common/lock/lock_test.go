package lock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"hiring-pipeline/internal/common/errors"
	"hiring-pipeline/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	mr, client := setupMiniredis(t)
	locker := NewRedisLocker(client, 5*time.Second, 0, logger.NewTestLogger(t))
	key := ApplicationKey("app-1")

	release, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))

	_, err = locker.Lock(context.Background(), key)
	assert.Equal(t, errors.ErrCodeLockUnavailable, errors.CodeOf(err))

	release()
	assert.False(t, mr.Exists(key))

	release2, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)
	release2()
}

func TestRedisLocker_ReleaseKeepsForeignToken(t *testing.T) {
	mr, client := setupMiniredis(t)
	locker := NewRedisLocker(client, time.Second, 0, logger.NewTestLogger(t))
	key := ApplicationKey("app-2")

	release, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)

	// Lock expired and another replica took it over.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(key, "other-replica"))

	release()
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "other-replica", got)
}

func TestRedisLocker_WaitsForHolder(t *testing.T) {
	_, client := setupMiniredis(t)
	locker := NewRedisLocker(client, 5*time.Second, time.Second, logger.NewTestLogger(t))
	locker.retry = 5 * time.Millisecond
	key := ApplicationKey("app-3")

	release, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		release()
	}()

	release2, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)
	release2()
}

func TestRedisLocker_RedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewRedisLocker(client, 5*time.Second, 0, logger.NewTestLogger(t))
	locker.newToken = func() string { return "tok" }
	key := ApplicationKey("app-4")

	mock.ExpectSetNX(key, "tok", 5*time.Second).SetErr(fmt.Errorf("connection reset"))

	_, err := locker.Lock(context.Background(), key)
	assert.Equal(t, errors.ErrCodeExternalService, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_HeldElsewhere(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewRedisLocker(client, 5*time.Second, 0, logger.NewTestLogger(t))
	locker.newToken = func() string { return "tok" }
	key := ApplicationKey("app-5")

	mock.ExpectSetNX(key, "tok", 5*time.Second).SetVal(false)

	_, err := locker.Lock(context.Background(), key)
	assert.Equal(t, errors.ErrCodeLockUnavailable, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoop(t *testing.T) {
	release, err := Noop{}.Lock(context.Background(), "anything")
	require.NoError(t, err)
	release()
}
