package limiter

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rohmanhakim/nextmuni/pkg/timeutil"
)

// RateLimiter keeps requests to a scraped host polite.
// Responsibilities:
// - Bookkeep each hostname's last fetch timestamp
// - Back off a host that answers 429/5xx, reset once it recovers
// - Block a caller until the host may be contacted again
type RateLimiter interface {
	Wait(ctx context.Context, host string) error
	MarkLastFetchAsNow(host string)
	Backoff(host string)
	ResetBackoff(host string)
}

type ConcurrentRateLimiter struct {
	mu          sync.RWMutex
	rngMu       sync.Mutex
	baseDelay   time.Duration
	jitter      time.Duration
	maxBackoff  time.Duration
	hostTimings map[string]hostTiming
	rng         *rand.Rand
}

func NewConcurrentRateLimiter(baseDelay, jitter time.Duration, randomSeed int64) *ConcurrentRateLimiter {
	if randomSeed == 0 {
		randomSeed = time.Now().UnixNano()
	}
	return &ConcurrentRateLimiter{
		baseDelay:   baseDelay,
		jitter:      jitter,
		maxBackoff:  30 * time.Second,
		hostTimings: make(map[string]hostTiming),
		rng:         rand.New(rand.NewSource(randomSeed)),
	}
}

func (r *ConcurrentRateLimiter) BaseDelay() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.baseDelay
}

func (r *ConcurrentRateLimiter) Jitter() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jitter
}

// HostTimings returns a copy of the per-host state.
func (r *ConcurrentRateLimiter) HostTimings() map[string]hostTiming {
	r.mu.RLock()
	defer r.mu.RUnlock()

	copyMap := make(map[string]hostTiming, len(r.hostTimings))
	for k, v := range r.hostTimings {
		copyMap[k] = v
	}
	return copyMap
}

// exponentialBackoffDelay computes exponential backoff based on count.
// Caller must hold r.mu.
func (r *ConcurrentRateLimiter) exponentialBackoffDelay(backoffCount int) time.Duration {
	initialBackoff := 1 * time.Second
	multiplier := 2.0

	delay := float64(initialBackoff) * math.Pow(multiplier, float64(backoffCount-1))
	if delay > float64(r.maxBackoff) {
		delay = float64(r.maxBackoff)
	}
	return time.Duration(delay)
}

// Backoff triggers exponential backoff for the given host.
func (r *ConcurrentRateLimiter) Backoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing := r.hostTimings[host]
	timing.backoffCount++
	timing.backoffDelay = r.exponentialBackoffDelay(timing.backoffCount)
	r.hostTimings[host] = timing
}

// ResetBackoff clears backoff state after a successful request.
func (r *ConcurrentRateLimiter) ResetBackoff(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing, exists := r.hostTimings[host]
	if exists {
		timing.backoffCount = 0
		timing.backoffDelay = 0
		r.hostTimings[host] = timing
	}
}

func (r *ConcurrentRateLimiter) MarkLastFetchAsNow(host string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timing := r.hostTimings[host]
	timing.lastFetchAt = time.Now()
	r.hostTimings[host] = timing
}

// computeJitter returns a pseudo-random duration in [0, max).
func (r *ConcurrentRateLimiter) computeJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}

	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return time.Duration(r.rng.Int63n(int64(max)))
}

// ResolveDelay computes how long a caller must still wait before contacting host.
// FinalDelay = max(BaseDelay, BackoffDelay) + Jitter, minus time already elapsed.
func (r *ConcurrentRateLimiter) ResolveDelay(host string) time.Duration {
	r.mu.RLock()
	timing, exists := r.hostTimings[host]
	base := r.baseDelay
	jitter := r.jitter
	r.mu.RUnlock()

	// never contacted: no delay
	if !exists || timing.lastFetchAt.IsZero() {
		return 0
	}

	finalDelay := timeutil.MaxDuration([]time.Duration{base, timing.backoffDelay})
	finalDelay += r.computeJitter(jitter)

	elapsed := time.Since(timing.lastFetchAt)
	if elapsed < finalDelay {
		return finalDelay - elapsed
	}
	return 0
}

// Wait blocks until host may be contacted or ctx is done.
func (r *ConcurrentRateLimiter) Wait(ctx context.Context, host string) error {
	return timeutil.Sleep(ctx, r.ResolveDelay(host))
}
