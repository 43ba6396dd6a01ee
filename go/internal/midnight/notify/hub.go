package notify

import (
	"context"
)

// Hub is an in-process Notifier and Publisher. Handlers run on their own
// goroutine, as they would behind a network transport.
type Hub struct {
	reg *registry
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{reg: newRegistry()}
}

var (
	_ Notifier  = (*Hub)(nil)
	_ Publisher = (*Hub)(nil)
)

func (h *Hub) Subscribe(_ context.Context, table Table, fn Handler) (Subscription, error) {
	id, _ := h.reg.add(table, fn)
	return &handle{table: table, id: id, drop: func(t Table, id uint64) error {
		h.reg.remove(t, id)
		return nil
	}}, nil
}

func (h *Hub) Publish(_ context.Context, table Table) error {
	for _, fn := range h.reg.handlers(table) {
		go fn(table)
	}
	return nil
}

// Subscribers returns how many handlers are registered for table.
func (h *Hub) Subscribers(table Table) int {
	return len(h.reg.handlers(table))
}
