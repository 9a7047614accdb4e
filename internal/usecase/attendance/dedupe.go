package attendance

import (
	"sync"
	"time"
)

// recentGuard remembers the last check-in per NIM and device for a short
// window so a badge held against the scanner is not counted twice.
type recentGuard struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

func newRecentGuard(window time.Duration) *recentGuard {
	return &recentGuard{window: window, seen: make(map[string]time.Time)}
}

// claim reserves key at now. It fails with the age of the previous claim
// when that one is still inside the window.
func (g *recentGuard) claim(key string, now time.Time) (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for k, at := range g.seen {
		if now.Sub(at) > g.window {
			delete(g.seen, k)
		}
	}

	if at, ok := g.seen[key]; ok {
		if since := now.Sub(at); since < g.window {
			return since, false
		}
	}
	g.seen[key] = now
	return 0, true
}

// release forgets a claim that was not followed by a successful write.
func (g *recentGuard) release(key string, at time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen[key].Equal(at) {
		delete(g.seen, key)
	}
}
