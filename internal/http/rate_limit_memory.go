package httpx

import (
	"context"
	"slices"
	"sync"
	"time"
)

const rateLimiterSweepInterval = time.Minute

// memoryRateLimiter keeps a log of admission times per key. It serves a
// single API process; use the redis limiter when several share traffic.
type memoryRateLimiter struct {
	mu   sync.Mutex
	logs map[string]*hitLog
	now  func() time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

type hitLog struct {
	hits   []time.Time
	window time.Duration
}

// NewMemoryRateLimiter returns a process-local limiter. Close stops its
// sweeper goroutine.
func NewMemoryRateLimiter() RateLimiter {
	return newMemoryRateLimiter(time.Now)
}

func newMemoryRateLimiter(now func() time.Time) *memoryRateLimiter {
	l := &memoryRateLimiter{
		logs: make(map[string]*hitLog),
		now:  now,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

func (l *memoryRateLimiter) Allow(_ context.Context, key string, rule rateRule) rateDecision {
	if rule.limit <= 0 {
		return rateDecision{allowed: true}
	}
	window := rule.windowOrDefault()
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	log, ok := l.logs[key]
	if !ok {
		log = &hitLog{window: window}
		l.logs[key] = log
	}
	log.window = window
	log.prune(now)

	decision := rateDecision{count: len(log.hits)}
	if len(log.hits) < rule.limit {
		log.hits = append(log.hits, now)
		decision.allowed = true
		decision.count = len(log.hits)
	}
	decision.resetAt = log.hits[0].Add(window)
	return decision
}

// prune drops admissions at or before now-window.
func (h *hitLog) prune(now time.Time) {
	cutoff := now.Add(-h.window)
	i := slices.IndexFunc(h.hits, func(t time.Time) bool { return t.After(cutoff) })
	if i < 0 {
		h.hits = h.hits[:0]
		return
	}
	h.hits = h.hits[i:]
}

func (l *memoryRateLimiter) sweepLoop() {
	defer close(l.done)
	ticker := time.NewTicker(rateLimiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep(l.now())
		case <-l.stop:
			return
		}
	}
}

func (l *memoryRateLimiter) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, log := range l.logs {
		log.prune(now)
		if len(log.hits) == 0 {
			delete(l.logs, key)
		}
	}
}

func (l *memoryRateLimiter) Close() {
	l.once.Do(func() {
		close(l.stop)
		<-l.done
	})
}
