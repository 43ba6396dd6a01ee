package notify

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

type recorder struct {
	mu   sync.Mutex
	seen []Table
}

func (r *recorder) handle(t Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, t)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestHubDeliversOnlySubscribedTable(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	var state, votes recorder
	if _, err := hub.Subscribe(ctx, TableState, state.handle); err != nil {
		t.Fatal(err)
	}
	sub, err := hub.Subscribe(ctx, TableVotes, votes.handle)
	if err != nil {
		t.Fatal(err)
	}

	_ = hub.Publish(ctx, TableState)
	waitFor(t, func() bool { return state.count() == 1 })
	if votes.count() != 0 {
		t.Errorf("Expected no votes signal, got %d", votes.count())
	}

	if err := sub.Unsubscribe(); err != nil {
		t.Fatal(err)
	}
	if err := sub.Unsubscribe(); err != nil {
		t.Errorf("Expected second unsubscribe to be a no-op, got %v", err)
	}
	if n := hub.Subscribers(TableVotes); n != 0 {
		t.Errorf("Expected 0 votes subscribers, got %d", n)
	}
	_ = hub.Publish(ctx, TableVotes)
	time.Sleep(10 * time.Millisecond)
	if votes.count() != 0 {
		t.Errorf("Expected no delivery after unsubscribe, got %d", votes.count())
	}
}

func TestGatewayToWebSocketNotifier(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := NewGateway(DefaultGatewayConfig())
	go gw.Start(ctx)
	srv := httptest.NewServer(gw)
	defer srv.Close()

	client := NewWebSocketNotifier("ws"+strings.TrimPrefix(srv.URL, "http"), 10*time.Millisecond)
	var rec recorder
	if _, err := client.Subscribe(ctx, TableVotes, rec.handle); err != nil {
		t.Fatal(err)
	}
	go client.Start(ctx)
	waitFor(t, func() bool { return gw.Connections() == 1 })

	_ = gw.Publish(ctx, TableState)
	_ = gw.Publish(ctx, TableVotes)
	waitFor(t, func() bool { return rec.count() == 1 })

	rec.mu.Lock()
	got := rec.seen[0]
	rec.mu.Unlock()
	if got != TableVotes {
		t.Errorf("Expected %s, got %s", TableVotes, got)
	}
}

func TestWebSocketNotifierSignalsAfterReconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := NewGateway(DefaultGatewayConfig())
	gwCtx, stopGateway := context.WithCancel(ctx)
	go gw.Start(gwCtx)
	srv := httptest.NewServer(gw)
	defer srv.Close()

	client := NewWebSocketNotifier("ws"+strings.TrimPrefix(srv.URL, "http"), 10*time.Millisecond)
	var rec recorder
	_, _ = client.Subscribe(ctx, TableState, rec.handle)
	go client.Start(ctx)
	waitFor(t, func() bool { return gw.Connections() == 1 })

	// dropping every connection forces the client to redial
	stopGateway()
	waitFor(t, func() bool { return rec.count() >= 1 })
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Table) error {
	return errors.New("broker down")
}

func TestFanoutPublishesPastFailures(t *testing.T) {
	hub := NewHub()
	var rec recorder
	if _, err := hub.Subscribe(context.Background(), TableVotes, rec.handle); err != nil {
		t.Fatal(err)
	}

	err := Fanout{failingPublisher{}, hub}.Publish(context.Background(), TableVotes)
	if err == nil {
		t.Errorf("Expected the broker failure to be reported")
	}
	waitFor(t, func() bool { return rec.count() == 1 })
}
