// Package notify delivers payload-free "something changed" signals keyed by
// logical table. Receivers always refetch; a signal never carries state.
package notify

import (
	"context"
	"errors"
	"sync"
)

// Table is a logical remote table whose changes are signalled.
type Table string

const (
	TableState Table = "ms_game_state"
	TableVotes Table = "ms_votes"
)

// Tables lists every signalled table.
func Tables() []Table {
	return []Table{TableState, TableVotes}
}

// Handler receives a change signal.
type Handler func(Table)

// Subscription is the cancellation token returned by Subscribe.
type Subscription interface {
	Unsubscribe() error
}

// Notifier subscribes to change signals.
type Notifier interface {
	Subscribe(ctx context.Context, table Table, h Handler) (Subscription, error)
}

// Publisher emits change signals. Engines call it after each mutation.
type Publisher interface {
	Publish(ctx context.Context, table Table) error
}

// Fanout publishes every signal to each of its publishers in order. A failing
// publisher does not stop the rest.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, table Table) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, table); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Signal is the wire form of a change signal.
type Signal struct {
	Table Table `json:"table"`
}

// registry tracks local handlers for transports that fan out one remote
// stream to many subscribers.
type registry struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[Table]map[uint64]Handler
}

func newRegistry() *registry {
	return &registry{subs: make(map[Table]map[uint64]Handler)}
}

// add registers h and reports whether it is the table's first handler.
func (r *registry) add(table Table, h Handler) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	first := len(r.subs[table]) == 0
	if r.subs[table] == nil {
		r.subs[table] = make(map[uint64]Handler)
	}
	r.subs[table][r.nextID] = h
	return r.nextID, first
}

// remove drops a handler and reports whether the table has none left.
func (r *registry) remove(table Table, id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs[table], id)
	if len(r.subs[table]) == 0 {
		delete(r.subs, table)
		return true
	}
	return false
}

func (r *registry) handlers(table Table) []Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Handler, 0, len(r.subs[table]))
	for _, h := range r.subs[table] {
		out = append(out, h)
	}
	return out
}

func (r *registry) tables() []Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Table, 0, len(r.subs))
	for t := range r.subs {
		out = append(out, t)
	}
	return out
}

func (r *registry) dispatch(table Table) {
	for _, h := range r.handlers(table) {
		h(table)
	}
}

func (r *registry) dispatchAll() {
	for _, t := range r.tables() {
		r.dispatch(t)
	}
}

// handle is the Subscription for registry-backed transports.
type handle struct {
	once  sync.Once
	table Table
	id    uint64
	drop  func(Table, uint64) error
}

func (h *handle) Unsubscribe() error {
	var err error
	h.once.Do(func() { err = h.drop(h.table, h.id) })
	return err
}
