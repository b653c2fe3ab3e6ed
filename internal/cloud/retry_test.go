package cloud

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestWithRetryRetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		if calls < 3 {
			return &NetworkError{Op: "test", Message: "transient", Retryable: true}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestWithRetryStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return &NetworkError{Op: "test", Message: "transient", Retryable: true}
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestWithRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return &NetworkError{Op: "test", Message: "permanent"}
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestWithRetryPlainErrorNotRetried(t *testing.T) {
	calls := 0
	sentinel := errors.New("boom")
	err := withRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, calls)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   1.0,
	}, func() error {
		calls++
		cancel()
		return &NetworkError{Op: "test", Message: "transient", Retryable: true}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestWithRetryReturnsContextErrorFromAttempt(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), fastRetryConfig(), func() error {
		calls++
		return context.DeadlineExceeded
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, calls)
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	retryable := []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
	for _, status := range retryable {
		require.True(t, isRetryableHTTPStatus(status), "status %d", status)
	}
	for _, status := range []int{http.StatusOK, http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound} {
		require.False(t, isRetryableHTTPStatus(status), "status %d", status)
	}
}

func TestNetworkErrorFormatting(t *testing.T) {
	wrapped := errors.New("connection refused")
	err := &NetworkError{Op: "transcribe", Message: "request failed", Err: wrapped}
	require.Equal(t, "transcribe: request failed: connection refused", err.Error())
	require.ErrorIs(t, err, wrapped)

	bare := &NetworkError{Op: "enhance", Message: "status 401: unauthorized"}
	require.Equal(t, "enhance: status 401: unauthorized", bare.Error())

	require.True(t, IsNetworkError(err))
	require.False(t, IsNetworkError(errors.New("other")))
}
