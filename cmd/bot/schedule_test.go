package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextAligned(t *testing.T) {
	at := func(h, m, s int) time.Time { return time.Date(2024, 3, 1, h, m, s, 0, time.UTC) }

	tests := []struct {
		name   string
		now    time.Time
		offset time.Duration
		want   time.Time
	}{
		{"before the slot", at(11, 59, 0), 4 * time.Second, at(12, 0, 4)},
		{"inside the offset", at(12, 0, 2), 4 * time.Second, at(12, 0, 4)},
		{"exactly on the slot", at(12, 0, 4), 4 * time.Second, time.Date(2024, 3, 2, 0, 0, 4, 0, time.UTC)},
		{"negative offset runs before the boundary", at(10, 0, 0), -time.Hour + 4*time.Second, at(11, 0, 4)},
		{"after the negative slot", at(11, 30, 0), -time.Hour + 4*time.Second, at(23, 0, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextAligned(tt.now, 12*time.Hour, tt.offset))
		})
	}
}

func TestRunEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		runEvery(ctx, 5*time.Millisecond, func(ctx context.Context) {
			if calls.Add(1) == 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runEvery did not stop")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}
