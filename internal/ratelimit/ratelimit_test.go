package ratelimit

import (
	"sync"
	"testing"
	"time"
)

// fixedClock lets tests drive the sliding window deterministically
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(cfg Config) (*Limiter, *fixedClock) {
	clock := &fixedClock{now: time.Unix(1700000000, 0)}
	l := New(cfg)
	l.now = clock.Now
	return l, clock
}

func TestCheckCeiling(t *testing.T) {
	l, _ := newTestLimiter(Config{Window: time.Minute, Limit: 3})

	for i := 0; i < 3; i++ {
		if result := l.Check("svc-a", ""); !result.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}

	result := l.Check("svc-a", "")
	if result.Allowed {
		t.Fatalf("request over ceiling should be denied")
	}
	if result.RetryAfter <= 0 || result.RetryAfter > time.Minute {
		t.Fatalf("unexpected retry-after: %v", result.RetryAfter)
	}

	// Other identifiers are unaffected
	if result := l.Check("svc-b", ""); !result.Allowed {
		t.Fatalf("independent identifier should be allowed")
	}
}

func TestWindowExpiry(t *testing.T) {
	l, clock := newTestLimiter(Config{Window: time.Minute, Limit: 2})

	l.Check("id", "")
	l.Check("id", "")
	if l.Check("id", "").Allowed {
		t.Fatalf("should be at ceiling")
	}

	clock.Advance(61 * time.Second)
	if !l.Check("id", "").Allowed {
		t.Fatalf("window should have expired")
	}
}

func TestDeniedRequestsNotRecorded(t *testing.T) {
	l, clock := newTestLimiter(Config{Window: time.Minute, Limit: 1})

	l.Check("id", "")
	for i := 0; i < 10; i++ {
		l.Check("id", "")
	}
	// Only the single allowed request occupies the window
	clock.Advance(61 * time.Second)
	if !l.Check("id", "").Allowed {
		t.Fatalf("denied requests must not extend the window")
	}
}

func TestPerTypeLimitReplacesDefault(t *testing.T) {
	l, _ := newTestLimiter(Config{
		Window:     time.Minute,
		Limit:      1,
		TypeLimits: map[string]int{"tick": 5},
	})

	// The typed ceiling applies instead of the default
	for i := 0; i < 5; i++ {
		if !l.Check("id", "tick").Allowed {
			t.Fatalf("typed request %d should be allowed", i)
		}
	}
	if l.Check("id", "tick").Allowed {
		t.Fatalf("typed ceiling should deny")
	}

	// The untyped window is independent of the typed one
	if !l.Check("id", "").Allowed {
		t.Fatalf("untyped request should be allowed")
	}

	// Unconfigured types fall back to the default ceiling
	if l.Check("id", "other").Allowed {
		t.Fatalf("unconfigured type shares the default window, already full")
	}
}

func TestStats(t *testing.T) {
	l, _ := newTestLimiter(Config{Window: time.Minute, Limit: 5})

	l.Check("id", "")
	l.Check("id", "")

	stats := l.Stats("id", "")
	if stats.Count != 2 {
		t.Fatalf("expected count 2, got %d", stats.Count)
	}
	if stats.Remaining != 3 {
		t.Fatalf("expected remaining 3, got %d", stats.Remaining)
	}
	if stats.Limit != 5 {
		t.Fatalf("expected limit 5, got %d", stats.Limit)
	}
}

func TestRemove(t *testing.T) {
	l, _ := newTestLimiter(Config{
		Window:     time.Minute,
		Limit:      1,
		TypeLimits: map[string]int{"tick": 1},
	})

	l.Check("id", "")
	l.Check("id", "tick")
	l.Remove("id")

	if !l.Check("id", "").Allowed || !l.Check("id", "tick").Allowed {
		t.Fatalf("Remove should clear all windows for the identifier")
	}
}

func TestConcurrentCheck(t *testing.T) {
	l := New(Config{Window: time.Minute, Limit: 100})

	var wg sync.WaitGroup
	allowed := make([]int, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if l.Check("shared", "").Allowed {
					allowed[g]++
				}
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for _, n := range allowed {
		total += n
	}
	if total != 100 {
		t.Fatalf("expected exactly 100 allowed across goroutines, got %d", total)
	}
}
