// Package activity runs the filler content shown to participants while the
// night plays out. It is deliberately isolated from game state: nothing here
// reads or writes the engine's snapshots, and the only output leaving the
// package is the results handoff.
package activity

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/roscoeevans/Skulking/go/internal/midnight/timerslot"
)

var (
	ErrNotRunning      = errors.New("activity session not running")
	ErrAlreadyAnswered = errors.New("item already resolved")
	ErrInvalidChoice   = errors.New("choice out of range")
	ErrEmptyCatalog    = errors.New("activity catalog is empty")
)

// Config tunes pacing.
type Config struct {
	AdvanceMin time.Duration
	AdvanceMax time.Duration
	// Seed fixes the shuffle and delays. Zero picks a random seed.
	Seed uint64
}

const (
	DefaultAdvanceMin = 500 * time.Millisecond
	DefaultAdvanceMax = 1500 * time.Millisecond
)

// Snapshot is the engine's current presentation state.
type Snapshot struct {
	Item Item
	// Position counts items shown this session, starting at 0.
	Position int
	Deadline time.Time
	Resolved bool
	Score    int
	Running  bool
}

// Engine owns one activity session.
type Engine struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	cfg     Config
	rng     *rand.Rand
	catalog []Item
	durable Store
	session Store

	running  bool
	order    []int
	position int
	started  time.Time
	resolved bool
	outcomes []Outcome
	score    int
	stats    LifetimeStats

	expiry  *timerslot.Slot
	advance *timerslot.Slot

	listeners []func(Snapshot)
}

// NewEngine builds an idle engine. durable holds lifetime stats and session
// receives the end-of-night handoff; either may be nil.
func NewEngine(clock clockwork.Clock, catalog []Item, durable, session Store, cfg Config) (*Engine, error) {
	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}
	for _, item := range catalog {
		if err := item.Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.AdvanceMin <= 0 {
		cfg.AdvanceMin = DefaultAdvanceMin
	}
	if cfg.AdvanceMax < cfg.AdvanceMin {
		cfg.AdvanceMax = cfg.AdvanceMin
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Engine{
		clock:   clock,
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		catalog: append([]Item(nil), catalog...),
		durable: durable,
		session: session,
		expiry:  timerslot.New(clock, "activity-expiry"),
		advance: timerslot.New(clock, "activity-advance"),
	}, nil
}

// OnChange registers fn to receive a snapshot after every transition.
func (e *Engine) OnChange(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Start begins a new session with a fresh shuffle and counts it toward
// lifetime stats. Starting a running engine restarts it.
func (e *Engine) Start(ctx context.Context) {
	stats := LoadLifetimeStats(ctx, e.durable)
	stats.SessionsPlayed++

	e.mu.Lock()
	e.expiry.Cancel()
	e.advance.Cancel()
	e.running = true
	e.order = e.rng.Perm(len(e.catalog))
	e.position = 0
	e.outcomes = nil
	e.score = 0
	e.stats = stats
	e.beginItem()
	snap, listeners := e.snapshotLocked(), e.listenersLocked()
	e.mu.Unlock()

	SaveLifetimeStats(ctx, e.durable, stats)
	log.Info().Int("catalog_size", len(e.catalog)).Int("sessions_played", stats.SessionsPlayed).Msg("activity session started")
	notify(listeners, snap)
}

// Current returns the presentation state.
func (e *Engine) Current() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Answer records the participant's choice for the current item.
func (e *Engine) Answer(ctx context.Context, choice int) (Outcome, error) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return Outcome{}, ErrNotRunning
	}
	if e.resolved {
		e.mu.Unlock()
		return Outcome{}, ErrAlreadyAnswered
	}
	item := e.currentLocked()
	if choice < 0 || choice >= len(item.Options) {
		e.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: %d of %d", ErrInvalidChoice, choice, len(item.Options))
	}

	e.expiry.Cancel()
	outcome := Outcome{
		ItemID:  item.ID,
		Kind:    item.Kind,
		Prompt:  item.Prompt,
		Choice:  choice,
		Elapsed: e.clock.Since(e.started),
	}
	if item.Scored() {
		correct := choice == item.Answer
		outcome.Correct = &correct
		if correct {
			e.score++
			e.stats.TotalCorrect++
		}
	}
	e.stats.TotalAnswered++
	stats := e.stats
	e.resolveLocked(outcome)
	snap, listeners := e.snapshotLocked(), e.listenersLocked()
	e.mu.Unlock()

	SaveLifetimeStats(ctx, e.durable, stats)
	notify(listeners, snap)
	return outcome, nil
}

// End stops the session and writes the handoff for the results view.
func (e *Engine) End(ctx context.Context) Handoff {
	e.mu.Lock()
	e.expiry.Cancel()
	e.advance.Cancel()
	wasRunning := e.running
	e.running = false
	h := Handoff{
		Outcomes:      append([]Outcome(nil), e.outcomes...),
		Score:         e.score,
		LifetimeStats: e.stats,
	}
	snap, listeners := e.snapshotLocked(), e.listenersLocked()
	e.mu.Unlock()

	if !wasRunning {
		return h
	}
	WriteHandoff(ctx, e.session, h)
	log.Info().Int("played", len(h.Outcomes)).Int("score", h.Score).Msg("activity session ended")
	notify(listeners, snap)
	return h
}

// Outcomes returns the outcomes recorded so far.
func (e *Engine) Outcomes() []Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Outcome(nil), e.outcomes...)
}

// LifetimeStats returns the in-memory lifetime counters.
func (e *Engine) LifetimeStats() LifetimeStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) currentLocked() Item {
	return e.catalog[e.order[e.position%len(e.order)]]
}

// beginItem enters the current item. Callers hold mu.
func (e *Engine) beginItem() {
	e.advance.Cancel()
	e.started = e.clock.Now()
	e.resolved = false
	e.expiry.Schedule(e.currentLocked().TimeLimit, e.onExpire)
}

// resolveLocked records an outcome and schedules the move to the next item.
func (e *Engine) resolveLocked(o Outcome) {
	e.resolved = true
	e.outcomes = append(e.outcomes, o)
	e.advance.Schedule(e.randomDelay(), e.onAdvance)
}

func (e *Engine) onExpire(gen uint64) {
	e.mu.Lock()
	if !e.expiry.Claim(gen) || !e.running || e.resolved {
		e.mu.Unlock()
		return
	}
	item := e.currentLocked()
	e.resolveLocked(Outcome{
		ItemID:  item.ID,
		Kind:    item.Kind,
		Prompt:  item.Prompt,
		Choice:  NoChoice,
		Elapsed: item.TimeLimit,
	})
	snap, listeners := e.snapshotLocked(), e.listenersLocked()
	e.mu.Unlock()

	log.Debug().Str("item_id", item.ID).Msg("activity timed out")
	notify(listeners, snap)
}

func (e *Engine) onAdvance(gen uint64) {
	e.mu.Lock()
	if !e.advance.Claim(gen) || !e.running {
		e.mu.Unlock()
		return
	}
	e.position++
	e.beginItem()
	snap, listeners := e.snapshotLocked(), e.listenersLocked()
	e.mu.Unlock()

	notify(listeners, snap)
}

func (e *Engine) randomDelay() time.Duration {
	span := e.cfg.AdvanceMax - e.cfg.AdvanceMin
	if span <= 0 {
		return e.cfg.AdvanceMin
	}
	return e.cfg.AdvanceMin + time.Duration(e.rng.Int64N(int64(span)+1))
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		Position: e.position,
		Resolved: e.resolved,
		Score:    e.score,
		Running:  e.running,
	}
	if len(e.order) > 0 {
		s.Item = e.currentLocked()
		s.Deadline = e.started.Add(s.Item.TimeLimit)
	}
	return s
}

func (e *Engine) listenersLocked() []func(Snapshot) {
	return append([]func(Snapshot){}, e.listeners...)
}

func notify(listeners []func(Snapshot), s Snapshot) {
	for _, fn := range listeners {
		fn(s)
	}
}
