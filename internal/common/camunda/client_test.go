package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"hiring-pipeline/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{
		RequestTimeout: time.Second,
		RetryConfig: &RetryConfig{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   5 * time.Millisecond,
		},
	}}
}

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	c := testClient()
	calls := 0

	result, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, stderrors.New("rpc error: code = Unavailable desc = connection refused")
		}
		return "ok", nil
	}, "publish-message")

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	c := testClient()
	calls := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, stderrors.New("context deadline exceeded")
	}, "publish-message")

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, errors.ErrCodeTimeout, errors.CodeOf(err))
}

func TestExecuteWithRetry_DoesNotRetryPermanentErrors(t *testing.T) {
	c := testClient()
	calls := 0

	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, stderrors.New("rpc error: code = AlreadyExists desc = message with id 'evt-1' already exists")
	}, "publish-message")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, stderrors.Is(err, errors.ErrDuplicateAction))
}

func TestExecuteWithRetry_StopsOnCancel(t *testing.T) {
	c := testClient()
	c.config.RetryConfig.BaseDelay = time.Hour
	c.config.RetryConfig.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ExecuteWithRetry(ctx, func(context.Context) (interface{}, error) {
		return nil, stderrors.New("unavailable")
	}, "publish-message")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTimeout, errors.CodeOf(err))
}

func TestMapZeebeError(t *testing.T) {
	c := testClient()

	tests := []struct {
		msg  string
		want errors.ErrorCode
	}{
		{"connection reset by peer", errors.ErrCodeExternalService},
		{"deadline exceeded", errors.ErrCodeTimeout},
		{"process instance not found", errors.ErrCodeNotFound},
		{"message already exists", errors.ErrCodeDuplicateAction},
		{"rpc error: code = Unauthenticated", errors.ErrCodeAuthentication},
		{"something odd", errors.ErrCodeExternalService},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := c.mapZeebeError(stderrors.New(tt.msg), "publish-message", 0)
			assert.Equal(t, tt.want, errors.CodeOf(err))
		})
	}
}

func TestMapZeebeError_KeepsStandardErrors(t *testing.T) {
	c := testClient()
	in := errors.NewValidationError("bad variables")

	assert.Same(t, in, c.mapZeebeError(in, "publish-message", 0))
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(stderrors.New("Unavailable: broker unreachable")))
	assert.True(t, isRetryableZeebeError(stderrors.New("RESOURCE_EXHAUSTED")))
	assert.False(t, isRetryableZeebeError(stderrors.New("invalid argument")))
}
