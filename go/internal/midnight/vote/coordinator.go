// Package vote mediates a participant's vote with an optimistic local value.
package vote

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Submitter sends a vote to the engine.
type Submitter func(ctx context.Context, target uuid.UUID) error

// State is what a voting view renders.
type State struct {
	Displayed uuid.UUID
	Confirmed uuid.UUID
	InFlight  bool
	Err       error
}

// Coordinator holds the displayed vote for one participant. Voting for
// yourself means "no kill".
//
// At most one submission is in flight. Taps made meanwhile overwrite a single
// pending target which is sent once the in-flight call succeeds. Any failure
// reverts the display to the last confirmed vote and drops the pending
// target.
type Coordinator struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	self   uuid.UUID
	submit Submitter

	confirmed  uuid.UUID
	displayed  uuid.UUID
	inFlight   bool
	pending    uuid.UUID
	hasPending bool
	err        error

	listeners []func(State)
}

// New creates a coordinator seeded with the server-confirmed vote, or self
// when there is none.
func New(self uuid.UUID, confirmed *uuid.UUID, submit Submitter) *Coordinator {
	c := &Coordinator{self: self, submit: submit}
	c.confirmed = c.orSelf(confirmed)
	c.displayed = c.confirmed
	return c
}

func (c *Coordinator) orSelf(v *uuid.UUID) uuid.UUID {
	if v == nil || *v == uuid.Nil {
		return c.self
	}
	return *v
}

// OnChange registers fn to receive the state after each change.
func (c *Coordinator) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Tap shows target immediately and submits it. It does not wait for the
// engine; the call outlives ctx cancellation once issued.
func (c *Coordinator) Tap(ctx context.Context, target uuid.UUID) {
	c.mu.Lock()
	c.displayed = target
	c.err = nil
	if c.inFlight {
		c.pending = target
		c.hasPending = true
		st, ls := c.stateLocked(), c.listenersLocked()
		c.mu.Unlock()
		log.Debug().Str("target", target.String()).Msg("vote queued behind in-flight submission")
		emit(ls, st)
		return
	}
	c.inFlight = true
	c.wg.Add(1)
	st, ls := c.stateLocked(), c.listenersLocked()
	c.mu.Unlock()

	emit(ls, st)
	go c.run(context.WithoutCancel(ctx), target)
}

func (c *Coordinator) run(ctx context.Context, target uuid.UUID) {
	defer c.wg.Done()
	for {
		err := c.submit(ctx, target)

		c.mu.Lock()
		if err != nil {
			c.displayed = c.confirmed
			c.inFlight = false
			c.hasPending = false
			c.err = err
			st, ls := c.stateLocked(), c.listenersLocked()
			c.mu.Unlock()
			log.Warn().Err(err).Str("target", target.String()).Msg("vote submission failed, reverting")
			emit(ls, st)
			return
		}

		c.confirmed = target
		if c.hasPending && c.pending != target {
			target = c.pending
			c.hasPending = false
			st, ls := c.stateLocked(), c.listenersLocked()
			c.mu.Unlock()
			emit(ls, st)
			continue
		}
		c.hasPending = false
		c.inFlight = false
		st, ls := c.stateLocked(), c.listenersLocked()
		c.mu.Unlock()
		emit(ls, st)
		return
	}
}

// Observe applies a server-confirmed vote. It only reaches the display when
// nothing is in flight.
func (c *Coordinator) Observe(confirmed *uuid.UUID) {
	c.mu.Lock()
	c.confirmed = c.orSelf(confirmed)
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	changed := c.displayed != c.confirmed
	c.displayed = c.confirmed
	st, ls := c.stateLocked(), c.listenersLocked()
	c.mu.Unlock()
	if changed {
		emit(ls, st)
	}
}

// State returns the current vote state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Displayed returns the vote to highlight.
func (c *Coordinator) Displayed() uuid.UUID {
	return c.State().Displayed
}

// IsNoKill reports whether the displayed vote is for self.
func (c *Coordinator) IsNoKill() bool {
	return c.State().Displayed == c.self
}

// Wait blocks until no submission is in flight.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) stateLocked() State {
	return State{Displayed: c.displayed, Confirmed: c.confirmed, InFlight: c.inFlight, Err: c.err}
}

func (c *Coordinator) listenersLocked() []func(State) {
	return append([]func(State){}, c.listeners...)
}

func emit(listeners []func(State), s State) {
	for _, fn := range listeners {
		fn(s)
	}
}
