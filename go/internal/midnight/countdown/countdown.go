// Package countdown derives a whole-second countdown from a target end time.
package countdown

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/roscoeevans/Skulking/go/internal/midnight/timerslot"
)

// Config tunes presentation. Zero values take the defaults below.
type Config struct {
	// UrgentThreshold is the remaining seconds at or below which Urgent
	// reports true.
	UrgentThreshold int
	// Default is the remaining value shown when no target is set.
	Default int
	// ProgressSpan is the duration that maps to a full progress ring.
	ProgressSpan time.Duration
}

const (
	DefaultUrgentThreshold = 10
	DefaultProgressSpan    = 10 * time.Minute
)

// Timer is a countdown toward a target time. The zero target means "none".
type Timer struct {
	mu    sync.Mutex
	clock clockwork.Clock
	cfg   Config
	tick  *timerslot.Slot

	target    time.Time
	remaining int
	completed bool

	onTick     []func(remaining int)
	onComplete []func()
}

// New creates a stopped timer with no target.
func New(clock clockwork.Clock, cfg Config) *Timer {
	if cfg.UrgentThreshold <= 0 {
		cfg.UrgentThreshold = DefaultUrgentThreshold
	}
	if cfg.ProgressSpan <= 0 {
		cfg.ProgressSpan = DefaultProgressSpan
	}
	return &Timer{
		clock:     clock,
		cfg:       cfg,
		tick:      timerslot.New(clock, "countdown"),
		remaining: cfg.Default,
	}
}

// OnTick registers fn to run after every recomputation.
func (t *Timer) OnTick(fn func(remaining int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTick = append(t.onTick, fn)
}

// OnComplete registers fn to run once when the remaining time first
// reaches zero for the current target.
func (t *Timer) OnComplete(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onComplete = append(t.onComplete, fn)
}

// Reset points the timer at a new target. A nil target stops ticking and
// shows the default value.
func (t *Timer) Reset(target *time.Time) {
	t.mu.Lock()
	if target != nil && !target.IsZero() && t.target.Equal(*target) {
		// Same deadline re-delivered by a refetch.
		t.mu.Unlock()
		return
	}
	t.tick.Cancel()
	t.completed = false
	if target == nil || target.IsZero() {
		t.target = time.Time{}
		t.remaining = t.cfg.Default
		t.mu.Unlock()
		return
	}
	t.target = *target
	ticks, done := t.evaluate()
	t.mu.Unlock()
	t.emit(ticks, done)
}

// Stop cancels ticking and keeps the last remaining value.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tick.Cancel()
}

// evaluate recomputes remaining and schedules the next tick. Callers hold mu.
func (t *Timer) evaluate() ([]func(int), []func()) {
	left := t.target.Sub(t.clock.Now())
	if left < 0 {
		left = 0
	}
	t.remaining = int(left / time.Second)

	var done []func()
	if t.remaining == 0 {
		if !t.completed {
			t.completed = true
			done = append(done, t.onComplete...)
			log.Debug().Time("target", t.target).Msg("countdown complete")
		}
	} else {
		next := left % time.Second
		if next == 0 {
			next = time.Second
		}
		t.tick.Schedule(next, t.onFire)
	}
	return append([]func(int){}, t.onTick...), done
}

func (t *Timer) onFire(gen uint64) {
	t.mu.Lock()
	if !t.tick.Claim(gen) {
		t.mu.Unlock()
		return
	}
	ticks, done := t.evaluate()
	t.mu.Unlock()
	t.emit(ticks, done)
}

func (t *Timer) emit(ticks []func(int), done []func()) {
	remaining := t.Remaining()
	for _, fn := range ticks {
		fn(remaining)
	}
	for _, fn := range done {
		fn()
	}
}

// Remaining returns whole seconds left, floored and never negative.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Completed reports whether the current target has been reached.
func (t *Timer) Completed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

// Display renders the remaining time as M:SS.
func (t *Timer) Display() string {
	return Format(t.Remaining())
}

// Urgent reports whether a running countdown is at or below the urgent
// threshold.
func (t *Timer) Urgent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.target.IsZero() && t.remaining <= t.cfg.UrgentThreshold
}

// Progress is a rough 0..1 fraction of the progress span still remaining.
func (t *Timer) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.target.IsZero() {
		return 0
	}
	p := float64(t.remaining) / t.cfg.ProgressSpan.Seconds()
	if p > 1 {
		p = 1
	}
	return p
}

// Format renders seconds as M:SS.
func Format(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
