package limiter

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// workSlice is how long callers may run between pauses
const workSlice = 10 * time.Millisecond

// CPULimiter throttles feature reads to roughly maxPercent of one core's
// time. Shared by all finder workers.
type CPULimiter struct {
	mu         sync.Mutex
	maxPercent float64
	lastSleep  time.Time
}

// NewCPULimiter creates a new CPU limiter; 0 or >= 100 disables it
func NewCPULimiter(maxPercent float64) *CPULimiter {
	return &CPULimiter{
		maxPercent: maxPercent,
		lastSleep:  time.Now(),
	}
}

// Enabled reports whether Throttle can ever sleep
func (l *CPULimiter) Enabled() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxPercent > 0 && l.maxPercent < 100
}

// Throttle pauses the caller when a work slice has elapsed since the last
// pause. The pause is (100-max)/max of the slice, so 25% sleeps 30ms per 10ms.
// It returns early with the context error on cancellation.
func (l *CPULimiter) Throttle(ctx context.Context) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	pct := l.maxPercent
	if pct <= 0 || pct >= 100 || time.Since(l.lastSleep) <= workSlice {
		l.mu.Unlock()
		runtime.Gosched()
		return ctx.Err()
	}
	l.lastSleep = time.Now()
	l.mu.Unlock()

	pause := time.Duration(float64(workSlice) * ((100.0 - pct) / pct))
	timer := time.NewTimer(pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetMaxPercent updates the maximum CPU percentage
func (l *CPULimiter) SetMaxPercent(maxPercent float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxPercent = maxPercent
}
