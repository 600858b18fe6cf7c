// Package announce delivers navigation commands to the user.
//
// Synthesis itself is an external concern; this package defines the Speaker
// seam, a console fallback, and a repeat-suppression wrapper so the same
// instruction is not re-announced every frame.
package announce

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// Speaker voices a navigation command. Implementations must be safe for
// sequential reuse; the pipeline issues at most one Speak at a time.
type Speaker interface {
	// Speak delivers the command text to the user.
	Speak(ctx context.Context, text string) error

	// Close releases any resources held by the speaker.
	Close() error
}

// Console writes commands to a writer, one per line. It is the default
// speaker for headless runs and tests.
type Console struct {
	W io.Writer
}

// Speak implements Speaker.
func (c *Console) Speak(_ context.Context, text string) error {
	_, err := fmt.Fprintln(c.W, text)
	return err
}

// Close implements Speaker.
func (c *Console) Close() error { return nil }

// Throttle wraps a Speaker and drops a command when it repeats the previous
// one within the hold-off window. A changed command always goes through, so
// sustained-failure messaging stays a single stable line instead of a
// rapid-fire cascade.
type Throttle struct {
	speaker Speaker
	holdOff time.Duration

	mu     sync.Mutex
	last   string
	lastAt time.Time

	now func() time.Time
}

// NewThrottle wraps a speaker with repeat suppression.
func NewThrottle(s Speaker, holdOff time.Duration) *Throttle {
	return &Throttle{
		speaker: s,
		holdOff: holdOff,
		now:     time.Now,
	}
}

// Speak delivers the command unless it duplicates the previous one within
// the hold-off window. Suppressed commands return nil.
func (t *Throttle) Speak(ctx context.Context, text string) error {
	t.mu.Lock()
	now := t.now()
	if text == t.last && now.Sub(t.lastAt) < t.holdOff {
		t.mu.Unlock()
		return nil
	}
	t.last = text
	t.lastAt = now
	t.mu.Unlock()

	return t.speaker.Speak(ctx, text)
}

// Close implements Speaker.
func (t *Throttle) Close() error { return t.speaker.Close() }
