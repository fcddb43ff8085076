package ratelimiting

import (
	"context"
	"fmt"
	"time"
)

// RequestLimiter spaces outgoing requests so at most limit of them finish within any window
type RequestLimiter interface {
	// Limit waits for a free slot and runs operation. Returns false if the wait would outlast ctx.
	Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool
	// LimitCancelable is like Limit, but operation may decline to run by returning false.
	// A declined operation does not consume a slot.
	LimitCancelable(ctx context.Context, maxOperationTime time.Duration, operation func() bool) bool
}

// windowLimiter hands out limit slots. Each slot remembers when its last request finished,
// and is reusable once that is a full window ago.
type windowLimiter struct {
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	slots chan time.Time
}

func NewWindowLimitRequestLimiter(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *windowLimiter {
	if limit < 1 {
		panic(fmt.Sprintf("window limiter needs a positive limit, got %d", limit))
	}

	slots := make(chan time.Time, limit)
	unused := nowFunc().Add(-window)
	for range limit {
		slots <- unused
	}

	return &windowLimiter{
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,
		slots:     slots,
	}
}

// NewRealtimeWindowLimiter is a window limiter driven by the wall clock
func NewRealtimeWindowLimiter(limit int, window time.Duration) RequestLimiter {
	return NewWindowLimitRequestLimiter(limit, window, time.Now, time.After)
}

var _ RequestLimiter = (*windowLimiter)(nil)

func (l *windowLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func()) bool {
	return l.LimitCancelable(ctx, maxOperationTime, func() bool {
		operation()
		return true
	})
}

func (l *windowLimiter) LimitCancelable(ctx context.Context, maxOperationTime time.Duration, operation func() bool) bool {
	var lastFinished time.Time
	select {
	case lastFinished = <-l.slots:
	case <-ctx.Done():
		return false
	}

	// The slot goes back untouched unless the operation runs
	release := lastFinished
	defer func() {
		l.slots <- release
	}()

	wait := l.window - l.nowFunc().Sub(lastFinished)
	if deadline, ok := ctx.Deadline(); ok && max(wait, 0)+maxOperationTime > deadline.Sub(l.nowFunc()) {
		return false
	}

	if wait > 0 {
		select {
		case <-l.afterFunc(wait):
		case <-ctx.Done():
			return false
		}
	}

	if !operation() {
		return false
	}
	release = l.nowFunc()
	return true
}
