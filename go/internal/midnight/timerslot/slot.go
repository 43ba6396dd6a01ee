// Package timerslot owns at most one pending timer per named slot.
//
// A Slot carries no lock of its own: every method must be called while
// holding the owner's mutex. Timer callbacks run on their own goroutine,
// so a callback must take the owner's lock and then Claim its generation
// before acting. A generation that was cancelled or replaced is refused,
// which is what keeps a late fire from a superseded timer from causing a
// second transition.
package timerslot

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Slot is a single timer position.
type Slot struct {
	name  string
	clock clockwork.Clock
	timer clockwork.Timer
	gen   uint64
}

// New returns an empty slot. The name is only used in logs.
func New(clock clockwork.Clock, name string) *Slot {
	return &Slot{name: name, clock: clock}
}

// Schedule replaces any pending timer with one firing fn after d. fn
// receives the generation it was scheduled under.
func (s *Slot) Schedule(d time.Duration, fn func(gen uint64)) uint64 {
	s.stop()
	s.gen++
	gen := s.gen
	if d < 0 {
		d = 0
	}
	s.timer = s.clock.AfterFunc(d, func() { fn(gen) })
	log.Debug().Str("slot", s.name).Uint64("gen", gen).Dur("duration", d).Msg("timer scheduled")
	return gen
}

// Claim reports whether gen is the live generation and, if so, marks the
// slot as no longer pending.
func (s *Slot) Claim(gen uint64) bool {
	if s.timer == nil || gen != s.gen {
		log.Debug().Str("slot", s.name).Uint64("gen", gen).Uint64("live", s.gen).Msg("discarding stale timer fire")
		return false
	}
	s.timer = nil
	return true
}

// Cancel stops any pending timer and invalidates its generation.
func (s *Slot) Cancel() {
	if s.timer == nil {
		return
	}
	s.stop()
	s.gen++
	log.Debug().Str("slot", s.name).Msg("cancelled pending timer")
}

// Pending reports whether a timer is scheduled and not yet claimed.
func (s *Slot) Pending() bool {
	return s.timer != nil
}

func (s *Slot) stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
