package garmin

import (
	"context"
	"sync"
	"time"

	"sport-activities/internal/metrics"
)

// Throttle holds requests back after Garmin answers 429 with a Retry-After
type Throttle struct {
	mu        sync.RWMutex
	until     time.Time
	last429At time.Time
	holds     int
}

// ThrottleStatus represents the current cool-down state
type ThrottleStatus struct {
	Throttled bool
	Until     time.Time
	Last429At time.Time
	Holds     int
}

// NewThrottle creates a throttle with no cool-down active
func NewThrottle() *Throttle {
	return &Throttle{}
}

// Hold starts or extends a cool-down of d from now
func (t *Throttle) Hold(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.last429At = now
	t.holds++
	if until := now.Add(d); until.After(t.until) {
		t.until = until
	}
	metrics.GarminThrottled.Set(1)
}

// Wait blocks until any cool-down has passed or ctx is done
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.RLock()
	remaining := time.Until(t.until)
	t.mu.RUnlock()

	if remaining <= 0 {
		metrics.GarminThrottled.Set(0)
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		metrics.GarminThrottled.Set(0)
		return nil
	}
}

// Status returns the current cool-down state
func (t *Throttle) Status() ThrottleStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return ThrottleStatus{
		Throttled: time.Now().Before(t.until),
		Until:     t.until,
		Last429At: t.last429At,
		Holds:     t.holds,
	}
}
