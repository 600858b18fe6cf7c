package announce

import (
	"context"
	"testing"
	"time"
)

func TestThrottleSuppressesRepeats(t *testing.T) {
	mock := NewMock()
	th := NewThrottle(mock, 2*time.Second)

	base := time.Now()
	th.now = func() time.Time { return base }

	ctx := context.Background()
	th.Speak(ctx, "Go forward, the target is ahead")
	th.Speak(ctx, "Go forward, the target is ahead")
	th.Speak(ctx, "Go forward, the target is ahead")

	if got := len(mock.Spoken()); got != 1 {
		t.Fatalf("Expected 1 delivery of a repeated command, got %d", got)
	}
}

func TestThrottlePassesChangedCommand(t *testing.T) {
	mock := NewMock()
	th := NewThrottle(mock, 2*time.Second)

	base := time.Now()
	th.now = func() time.Time { return base }

	ctx := context.Background()
	th.Speak(ctx, "Turn slightly left")
	th.Speak(ctx, "Go forward, the target is ahead")

	spoken := mock.Spoken()
	if len(spoken) != 2 {
		t.Fatalf("Expected changed command to pass, got %d deliveries", len(spoken))
	}
	if spoken[1] != "Go forward, the target is ahead" {
		t.Errorf("Unexpected second command %q", spoken[1])
	}
}

func TestThrottleRepeatsAfterHoldOff(t *testing.T) {
	mock := NewMock()
	th := NewThrottle(mock, 2*time.Second)

	base := time.Now()
	th.now = func() time.Time { return base }

	ctx := context.Background()
	th.Speak(ctx, "Turn around, the target is behind you")

	th.now = func() time.Time { return base.Add(3 * time.Second) }
	th.Speak(ctx, "Turn around, the target is behind you")

	if got := len(mock.Spoken()); got != 2 {
		t.Fatalf("Expected re-delivery after hold-off, got %d", got)
	}
}

func TestThrottleCloseForwards(t *testing.T) {
	mock := NewMock()
	th := NewThrottle(mock, time.Second)
	th.Close()
	if !mock.Closed() {
		t.Error("Expected Close to forward to the wrapped speaker")
	}
}
