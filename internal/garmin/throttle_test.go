package garmin

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestThrottleDefaults(t *testing.T) {
	th := NewThrottle()
	status := th.Status()

	if status.Throttled {
		t.Error("Expected new throttle to be open")
	}
	if err := th.Wait(context.Background()); err != nil {
		t.Errorf("Expected Wait to return immediately, got %v", err)
	}
}

func TestThrottleHold(t *testing.T) {
	th := NewThrottle()
	th.Hold(50 * time.Millisecond)

	status := th.Status()
	if !status.Throttled {
		t.Error("Expected throttle to be active")
	}
	if status.Holds != 1 {
		t.Errorf("Expected 1 hold, got %d", status.Holds)
	}

	start := time.Now()
	if err := th.Wait(context.Background()); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Expected Wait to block for the cool-down, returned after %v", elapsed)
	}
}

func TestThrottleHoldNeverShortens(t *testing.T) {
	th := NewThrottle()
	th.Hold(time.Minute)
	th.Hold(time.Second)

	if until := time.Until(th.Status().Until); until < 50*time.Second {
		t.Errorf("Expected the longer cool-down to win, %v left", until)
	}
}

func TestThrottleWaitCanceled(t *testing.T) {
	th := NewThrottle()
	th.Hold(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := th.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}
