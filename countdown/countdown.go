// Package countdown derives the response deadline for a negotiation round.
// The remaining time is a pure function of the record's createdAt, so a
// restart simply re-derives it; nothing is persisted.
package countdown

import (
	"fmt"
	"sync"
	"time"
)

// ResponseWindow is how long a party has to answer before the round lapses.
const ResponseWindow = 48 * time.Hour

// Remaining returns the time left in the response window, clamped at zero.
func Remaining(createdAt, now time.Time) time.Duration {
	left := ResponseWindow - now.Sub(createdAt)
	if left < 0 {
		return 0
	}
	return left
}

// Format renders a duration as zero-padded "HH : MM : SS".
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d : %02d : %02d", h, m, s)
}

// Timer ticks down the response window every second. Resetting it to a new
// createdAt (a counter-offer restarts the clock) discards all prior countdown
// state.
type Timer struct {
	now      func() time.Time
	interval time.Duration
	ch       chan time.Duration

	mu        sync.Mutex
	createdAt time.Time
	stop      chan struct{}
	stopOnce  sync.Once
	started   bool
}

// NewTimer builds a stopped timer anchored at createdAt.
func NewTimer(createdAt time.Time) *Timer {
	return &Timer{
		now:       time.Now,
		interval:  time.Second,
		ch:        make(chan time.Duration, 1),
		createdAt: createdAt,
		stop:      make(chan struct{}),
	}
}

// WithClock overrides the time source.
func (t *Timer) WithClock(now func() time.Time) *Timer {
	if now != nil {
		t.now = now
	}
	return t
}

// WithInterval overrides the tick interval.
func (t *Timer) WithInterval(d time.Duration) *Timer {
	if d > 0 {
		t.interval = d
	}
	return t
}

// C delivers the remaining duration on every tick. Stale ticks are dropped
// rather than queued, so a slow consumer always sees the freshest value.
func (t *Timer) C() <-chan time.Duration {
	return t.ch
}

// Remaining returns the time currently left in the window.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	createdAt := t.createdAt
	t.mu.Unlock()
	return Remaining(createdAt, t.now())
}

// Reset re-anchors the countdown at a new createdAt and emits immediately.
func (t *Timer) Reset(createdAt time.Time) {
	t.mu.Lock()
	t.createdAt = createdAt
	t.mu.Unlock()
	t.emit()
}

// Start begins ticking. Starting twice is a no-op.
func (t *Timer) Start() {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.mu.Unlock()

	t.emit()
	go t.loop()
}

// Stop halts the timer. Safe to call more than once.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Timer) loop() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.emit()
		}
	}
}

func (t *Timer) emit() {
	left := t.Remaining()
	select {
	case t.ch <- left:
	default:
		// Drop the stale value and replace it.
		select {
		case <-t.ch:
		default:
		}
		select {
		case t.ch <- left:
		default:
		}
	}
}
