package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalwork-ai/agent-relay/internal/models"
)

// memoryLimiter is the single-instance fallback: a sliding one-minute window
// of request timestamps per user.
type memoryLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	rpm      int
	window   time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func newMemoryLimiter(rpm int) *memoryLimiter {
	return newMemoryLimiterWithWindow(rpm, time.Minute)
}

func newMemoryLimiterWithWindow(rpm int, window time.Duration) *memoryLimiter {
	l := &memoryLimiter{
		requests: make(map[string][]time.Time),
		rpm:      rpm,
		window:   window,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *memoryLimiter) Allow(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	kept := l.requests[userID][:0]
	for _, at := range l.requests[userID] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	l.requests[userID] = kept

	if len(kept) >= l.rpm {
		limitErr := models.NewRateLimitExceededError(
			fmt.Sprintf("rate limit exceeded (%d requests per minute)", l.rpm), nil)
		limitErr.RetryAfter = int(l.window.Seconds()/2) + 1
		return limitErr
	}

	l.requests[userID] = append(kept, now)
	return nil
}

// cleanup drops idle users so the map does not grow with every user ever
// seen.
func (l *memoryLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-l.window)
			for userID, times := range l.requests {
				kept := times[:0]
				for _, at := range times {
					if at.After(cutoff) {
						kept = append(kept, at)
					}
				}
				if len(kept) == 0 {
					delete(l.requests, userID)
				} else {
					l.requests[userID] = kept
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *memoryLimiter) Close() error {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	return nil
}
