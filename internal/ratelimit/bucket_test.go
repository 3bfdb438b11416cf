package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_AllowWithinCapacity(t *testing.T) {
	l := NewLimiter(time.Hour, 24*time.Hour)

	for i := 0; i < 5; i++ {
		res := l.Allow("key-a", 5)
		if !res.Allowed {
			t.Fatalf("request %d: want allowed, got denied (tokens remaining %v)", i, res.Remaining)
		}
	}
}

func TestLimiter_DeniesWhenExhausted(t *testing.T) {
	l := NewLimiter(time.Hour, 24*time.Hour)

	for i := 0; i < 2; i++ {
		if res := l.Allow("key-b", 2); !res.Allowed {
			t.Fatalf("seed request %d unexpectedly denied", i)
		}
	}

	res := l.Allow("key-b", 2)
	if res.Allowed {
		t.Fatal("want denied after exhausting bucket, got allowed")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", res.RetryAfter)
	}
}

func TestLimiter_RefillsOverTime(t *testing.T) {
	l := NewLimiter(time.Hour, 24*time.Hour)

	if res := l.Allow("key-c", 1); !res.Allowed {
		t.Fatal("seed request unexpectedly denied")
	}
	if res := l.Allow("key-c", 1); res.Allowed {
		t.Fatal("want denied immediately after consuming the only token")
	}

	b := l.buckets["key-c"]
	b.mu.Lock()
	b.lastRefill = b.lastRefill.Add(-2 * time.Second)
	b.mu.Unlock()

	res := l.Allow("key-c", 1)
	if !res.Allowed {
		t.Fatal("want allowed after simulated refill window, got denied")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLimiter(time.Hour, 24*time.Hour)

	l.Allow("key-d", 1)
	res := l.Allow("key-e", 1)
	if !res.Allowed {
		t.Fatal("a separate key must not be affected by another key's bucket")
	}
}

func TestLimiter_SweepEvictsIdleBuckets(t *testing.T) {
	l := NewLimiter(time.Hour, time.Minute)

	l.Allow("idle-key", 3)
	if l.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", l.ActiveCount())
	}

	b := l.buckets["idle-key"]
	b.mu.Lock()
	b.lastRefill = b.lastRefill.Add(-2 * time.Minute)
	b.mu.Unlock()

	l.sweep()

	if l.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d after sweep, want 0", l.ActiveCount())
	}
}

func TestLimiter_StartStop(t *testing.T) {
	l := NewLimiter(10*time.Millisecond, time.Millisecond)
	l.Allow("transient", 1)

	l.Start()
	time.Sleep(50 * time.Millisecond)
	l.Stop()

	if l.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0 after sweeper runs", l.ActiveCount())
	}
}
