package enrich

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiterEnforcesInterval(t *testing.T) {
	l := NewLimiter(map[Source]time.Duration{SourcePubChem: 30 * time.Millisecond})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Acquire(ctx, SourcePubChem); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("three grants took %v, want at least 60ms", elapsed)
	}
}

func TestLimiterSerializesConcurrentCallers(t *testing.T) {
	l := NewLimiter(map[Source]time.Duration{SourcePubChem: 20 * time.Millisecond})
	ctx := context.Background()

	var (
		mu     sync.Mutex
		grants []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(ctx, SourcePubChem); err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(grants); i++ {
		for j := 0; j < i; j++ {
			gap := grants[i].Sub(grants[j])
			if gap < 0 {
				gap = -gap
			}
			if gap < 15*time.Millisecond {
				t.Fatalf("grants %d and %d only %v apart", j, i, gap)
			}
		}
	}
}

func TestLimiterUnlistedSourceIsUnpaced(t *testing.T) {
	l := NewLimiter(nil)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := l.Acquire(ctx, SourceGoodScents); err != nil {
			t.Fatalf("acquire: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("unpaced source waited %v", elapsed)
	}
}

func TestLimiterBackoffDoublesAndResets(t *testing.T) {
	l := NewLimiter(map[Source]time.Duration{SourcePubChem: time.Second})

	if got := l.backoffFactor(SourcePubChem); got != 1 {
		t.Fatalf("initial factor = %d, want 1", got)
	}

	l.ReportFailure(SourcePubChem)
	l.ReportFailure(SourcePubChem)
	if got := l.backoffFactor(SourcePubChem); got != 4 {
		t.Fatalf("factor after two failures = %d, want 4", got)
	}

	for i := 0; i < 20; i++ {
		l.ReportFailure(SourcePubChem)
	}
	if got := l.backoffFactor(SourcePubChem); got != maxBackoffFactor {
		t.Fatalf("factor = %d, want ceiling %d", got, maxBackoffFactor)
	}

	l.ReportSuccess(SourcePubChem)
	if got := l.backoffFactor(SourcePubChem); got != 1 {
		t.Fatalf("factor after success = %d, want 1", got)
	}

	// Failures on one source never widen another.
	if got := l.backoffFactor(SourceGoodScents); got != 1 {
		t.Fatalf("unrelated source factor = %d, want 1", got)
	}
}

func TestLimiterAcquireHonorsContext(t *testing.T) {
	l := NewLimiter(map[Source]time.Duration{SourcePubChem: time.Minute})
	ctx := context.Background()

	if err := l.Acquire(ctx, SourcePubChem); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.Acquire(ctx, SourcePubChem)
	if err == nil {
		t.Fatal("expected context error while waiting out the interval")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("acquire did not release promptly on cancellation")
	}
}
