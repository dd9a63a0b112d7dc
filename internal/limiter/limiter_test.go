package limiter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDisabledLimiterNeverSleeps(t *testing.T) {
	tests := []struct {
		name string
		pct  float64
	}{
		{"zero", 0},
		{"hundred", 100},
		{"above", 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewCPULimiter(tt.pct)
			if l.Enabled() {
				t.Fatalf("Enabled() = true for %v%%", tt.pct)
			}
			start := time.Now()
			for i := 0; i < 100; i++ {
				if err := l.Throttle(context.Background()); err != nil {
					t.Fatalf("Throttle: %v", err)
				}
			}
			if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
				t.Errorf("disabled limiter slept for %v", elapsed)
			}
		})
	}
}

func TestNilLimiter(t *testing.T) {
	var l *CPULimiter
	if l.Enabled() {
		t.Error("nil limiter reports enabled")
	}
	if err := l.Throttle(context.Background()); err != nil {
		t.Errorf("nil Throttle: %v", err)
	}
}

func TestThrottleSleepsAfterWorkSlice(t *testing.T) {
	l := NewCPULimiter(50)
	l.lastSleep = time.Now().Add(-time.Second)

	start := time.Now()
	if err := l.Throttle(context.Background()); err != nil {
		t.Fatalf("Throttle: %v", err)
	}
	if elapsed := time.Since(start); elapsed < workSlice {
		t.Errorf("Throttle slept %v, want at least %v", elapsed, workSlice)
	}
}

func TestThrottleHonorsCancel(t *testing.T) {
	l := NewCPULimiter(1) // 990ms pause
	l.lastSleep = time.Now().Add(-time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Throttle(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSetMaxPercent(t *testing.T) {
	l := NewCPULimiter(0)
	l.SetMaxPercent(20)
	if !l.Enabled() {
		t.Error("limiter should be enabled after SetMaxPercent(20)")
	}
}
