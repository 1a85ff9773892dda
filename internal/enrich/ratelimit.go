package enrich

import (
	"context"
	"sync"
	"time"

	applog "essentia/internal/log"
)

const maxBackoffFactor = 64

// Limiter paces requests per source. Each source has one logical lane:
// concurrent callers queue on the lane mutex, so the minimum interval holds
// no matter how many goroutines fan out above it. Failures widen the
// interval by a doubling factor until a success resets it.
type Limiter struct {
	mu      sync.Mutex
	budgets map[Source]*budget
}

type budget struct {
	lane sync.Mutex // held across the wait so grants serialize

	mu       sync.Mutex // guards the fields below
	interval time.Duration
	factor   int
	last     time.Time
}

// NewLimiter builds a Limiter with a minimum inter-request interval per
// source. Sources not listed are unpaced.
func NewLimiter(intervals map[Source]time.Duration) *Limiter {
	budgets := make(map[Source]*budget, len(intervals))
	for source, interval := range intervals {
		budgets[source] = &budget{interval: interval, factor: 1}
	}
	return &Limiter{budgets: budgets}
}

func (l *Limiter) budget(source Source) *budget {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.budgets[source]
	if !ok {
		b = &budget{factor: 1}
		l.budgets[source] = b
	}
	return b
}

// Acquire blocks until the source's backoff-adjusted interval has elapsed
// since the last granted request, then records the grant. Cancelling the
// context releases the caller without disturbing the bookkeeping.
func (l *Limiter) Acquire(ctx context.Context, source Source) error {
	b := l.budget(source)

	b.lane.Lock()
	defer b.lane.Unlock()

	b.mu.Lock()
	wait := b.interval*time.Duration(b.factor) - time.Since(b.last)
	b.mu.Unlock()

	if wait > 0 {
		applog.Debug(ctx, "rate limiter pausing", "source", string(source), "wait", wait.String())
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	b.mu.Lock()
	b.last = time.Now()
	b.mu.Unlock()
	return nil
}

// ReportFailure doubles the source's backoff factor up to a ceiling.
func (l *Limiter) ReportFailure(source Source) {
	b := l.budget(source)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.factor < maxBackoffFactor {
		b.factor *= 2
		if b.factor > maxBackoffFactor {
			b.factor = maxBackoffFactor
		}
	}
}

// ReportSuccess resets the source's backoff factor.
func (l *Limiter) ReportSuccess(source Source) {
	b := l.budget(source)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.factor = 1
}

// backoffFactor exposes the current factor for tests.
func (l *Limiter) backoffFactor(source Source) int {
	b := l.budget(source)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.factor
}
