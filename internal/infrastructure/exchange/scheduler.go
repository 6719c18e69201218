package exchange

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/shiki2014/binan/internal/infrastructure/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryConfig controls how failed requests are retried.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	JitterRange float64       `yaml:"jitter_range"`
}

// DefaultRetryConfig returns the policy used when nothing is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		JitterRange: 0.2,
	}
}

// Backoff returns the wait before the given retry attempt, attempt starting at 1.
// The jitter term is drawn by the caller so tests can pin it.
func (c RetryConfig) Backoff(attempt int, jitter float64) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt-1))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	d += d * c.JitterRange * jitter
	if d < float64(c.BaseDelay) {
		d = float64(c.BaseDelay)
	}
	return time.Duration(d)
}

// RequestScheduler spaces exchange requests out and retries transient failures.
// Every adapter call goes through Do so the whole process shares one budget.
type RequestScheduler struct {
	limiter *rate.Limiter
	retry   RetryConfig
	logger  *zap.Logger
	jitter  func() float64
}

// NewRequestScheduler allows one request per spacing. A zero spacing disables pacing.
func NewRequestScheduler(spacing time.Duration, retry RetryConfig, logger *zap.Logger) *RequestScheduler {
	limit := rate.Inf
	if spacing > 0 {
		limit = rate.Every(spacing)
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	if retry.Multiplier < 1 {
		retry.Multiplier = 1
	}
	return &RequestScheduler{
		limiter: rate.NewLimiter(limit, 1),
		retry:   retry,
		logger:  logger,
		jitter:  func() float64 { return rand.Float64()*2 - 1 },
	}
}

// Do runs fn under the rate limit, retrying while the error is retryable.
func (s *RequestScheduler) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			metrics.Requests.WithLabelValues("ok").Inc()
			return nil
		}
		if !Retryable(lastErr) || attempt == s.retry.MaxAttempts {
			break
		}
		metrics.Requests.WithLabelValues("retry").Inc()

		delay := s.retry.Backoff(attempt, s.jitter())
		s.logger.Warn("Retrying exchange request",
			zap.String("request", name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	metrics.Requests.WithLabelValues("error").Inc()
	if Retryable(lastErr) && s.retry.MaxAttempts > 1 {
		return fmt.Errorf("%s: max retry attempts (%d) exceeded: %w", name, s.retry.MaxAttempts, lastErr)
	}
	return fmt.Errorf("%s: %w", name, lastErr)
}

// retryableCodes are Binance codes for overload, rate limits and unknown
// server-side outcomes.
var retryableCodes = map[int64]bool{
	-1000: true, // UNKNOWN
	-1001: true, // DISCONNECTED
	-1003: true, // TOO_MANY_REQUESTS
	-1007: true, // TIMEOUT
	-1008: true, // SERVER_BUSY
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return retryableCodes[apiErr.Code]
	}
	var raw *common.APIError
	if errors.As(err, &raw) {
		return retryableCodes[raw.Code]
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
