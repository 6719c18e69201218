package main

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// nextAligned returns the first time after now that sits offset past a
// multiple of interval. Multiples are counted from the zero time, so a 12h
// interval lands on 00:00 and 12:00 UTC.
func nextAligned(now time.Time, interval, offset time.Duration) time.Time {
	offset %= interval
	if offset < 0 {
		offset += interval
	}
	next := now.Truncate(interval).Add(offset)
	for !next.After(now) {
		next = next.Add(interval)
	}
	return next
}

// runAligned calls job at every aligned slot until ctx is done.
func runAligned(ctx context.Context, name string, interval, offset time.Duration, log *zap.Logger, job func(ctx context.Context)) {
	for {
		next := nextAligned(time.Now(), interval, offset)
		log.Info("Next run scheduled", zap.String("job", name), zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		job(ctx)
	}
}

// runEvery calls job immediately and then on every tick until ctx is done.
func runEvery(ctx context.Context, interval time.Duration, job func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
