package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shiki2014/binan/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2,
		JitterRange: 0.2,
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, JitterRange: 0.2}

	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(1, 0))
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(2, 0))
	assert.Equal(t, 400*time.Millisecond, cfg.Backoff(3, 0))
	assert.Equal(t, time.Second, cfg.Backoff(10, 0), "capped")
	assert.Equal(t, 480*time.Millisecond, cfg.Backoff(3, 1))
	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(1, -1), "never below the base delay")
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &common.APIError{Code: -1003, Message: "Too many requests"}, true},
		{"server busy wrapped", fmt.Errorf("klines: %w", &common.APIError{Code: -1008}), true},
		{"translated timeout", &APIError{Code: -1007}, true},
		{"bad precision", &common.APIError{Code: -1111, Message: "Precision is over the maximum"}, false},
		{"would trigger", &common.APIError{Code: -2021}, false},
		{"network", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, true},
		{"cancelled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}

func TestRequestScheduler_RetriesTransientErrors(t *testing.T) {
	s := NewRequestScheduler(0, fastRetry(4), zap.NewNop())
	calls := 0
	err := s.Do(context.Background(), "klines", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &common.APIError{Code: -1003}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRequestScheduler_GivesUp(t *testing.T) {
	s := NewRequestScheduler(0, fastRetry(3), zap.NewNop())
	calls := 0
	err := s.Do(context.Background(), "klines", func(ctx context.Context) error {
		calls++
		return &common.APIError{Code: -1001}
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")

	var apiErr *common.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestRequestScheduler_NoRetryOnRejection(t *testing.T) {
	s := NewRequestScheduler(0, fastRetry(5), zap.NewNop())
	calls := 0
	err := s.Do(context.Background(), "stopOrder", func(ctx context.Context) error {
		calls++
		return &common.APIError{Code: -2021}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, translate(err, DefaultAgreementCode), domain.ErrWouldTrigger)
}

func TestRequestScheduler_StopsOnCancel(t *testing.T) {
	s := NewRequestScheduler(0, RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := s.Do(ctx, "klines", func(ctx context.Context) error {
		calls++
		cancel()
		return &common.APIError{Code: -1003}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRequestScheduler_Spacing(t *testing.T) {
	s := NewRequestScheduler(20*time.Millisecond, fastRetry(1), zap.NewNop())
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Do(context.Background(), "ping", func(ctx context.Context) error { return nil }))
	}
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestTranslate(t *testing.T) {
	err := translate(fmt.Errorf("marketOrder: %w", &common.APIError{Code: -4411, Message: "sign agreement"}), DefaultAgreementCode)
	assert.ErrorIs(t, err, domain.ErrAgreementRequired)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, int64(-4411), apiErr.Code)

	custom := translate(&common.APIError{Code: -4999}, -4999)
	assert.ErrorIs(t, custom, domain.ErrAgreementRequired)

	plain := errors.New("eof")
	assert.Same(t, plain, translate(plain, DefaultAgreementCode))
}
