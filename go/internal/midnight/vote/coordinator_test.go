package vote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type call struct {
	target uuid.UUID
	reply  chan error
}

type scriptedEngine struct {
	calls chan call
}

func newScriptedEngine() *scriptedEngine {
	return &scriptedEngine{calls: make(chan call, 8)}
}

func (s *scriptedEngine) submit(ctx context.Context, target uuid.UUID) error {
	c := call{target: target, reply: make(chan error)}
	s.calls <- c
	return <-c.reply
}

func (s *scriptedEngine) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-s.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a vote submission")
		return call{}
	}
}

var errOffline = errors.New("offline")

func TestDefaultsToSelf(t *testing.T) {
	self := uuid.New()
	c := New(self, nil, nil)
	if c.Displayed() != self || !c.IsNoKill() {
		t.Errorf("Expected default vote to be self")
	}
}

func TestFailedVoteRevertsToConfirmed(t *testing.T) {
	self, alice, bob := uuid.New(), uuid.New(), uuid.New()
	eng := newScriptedEngine()
	c := New(self, &alice, eng.submit)

	c.Tap(context.Background(), bob)
	if c.Displayed() != bob {
		t.Errorf("Expected optimistic display of bob")
	}
	got := eng.next(t)
	if got.target != bob {
		t.Errorf("Expected submission for bob, got %s", got.target)
	}
	got.reply <- errOffline
	c.Wait()

	st := c.State()
	if st.Displayed != alice {
		t.Errorf("Expected rollback to alice, got %s", st.Displayed)
	}
	if !errors.Is(st.Err, errOffline) {
		t.Errorf("Expected error to be surfaced, got %v", st.Err)
	}
	if st.InFlight {
		t.Errorf("Expected guard to clear after failure")
	}
}

func TestEchoIgnoredWhileInFlight(t *testing.T) {
	self, alice, bob, carol := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	eng := newScriptedEngine()
	c := New(self, &alice, eng.submit)

	c.Tap(context.Background(), bob)
	got := eng.next(t)

	c.Observe(&alice)
	if c.Displayed() != bob {
		t.Errorf("Expected in-flight vote to hold the display, got %s", c.Displayed())
	}

	got.reply <- nil
	c.Wait()
	if st := c.State(); st.Displayed != bob || st.Confirmed != bob || st.Err != nil {
		t.Errorf("Expected bob confirmed, got %+v", st)
	}

	c.Observe(&carol)
	if c.Displayed() != carol {
		t.Errorf("Expected echoes to be trusted after success, got %s", c.Displayed())
	}
}

func TestLastTapWins(t *testing.T) {
	self, alice, bob, carol := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	eng := newScriptedEngine()
	c := New(self, nil, eng.submit)
	ctx := context.Background()

	c.Tap(ctx, alice)
	first := eng.next(t)
	c.Tap(ctx, bob)
	c.Tap(ctx, carol)
	if c.Displayed() != carol {
		t.Errorf("Expected latest tap to show, got %s", c.Displayed())
	}

	first.reply <- nil
	second := eng.next(t)
	if second.target != carol {
		t.Errorf("Expected pending carol to be sent next, got %s", second.target)
	}
	second.reply <- nil
	c.Wait()

	if st := c.State(); st.Confirmed != carol || st.Displayed != carol {
		t.Errorf("Expected carol confirmed, got %+v", st)
	}
	select {
	case extra := <-eng.calls:
		t.Errorf("Expected no further submissions, got %s", extra.target)
	default:
	}
}

func TestPendingFailureRevertsToLastConfirmed(t *testing.T) {
	self, alice, bob := uuid.New(), uuid.New(), uuid.New()
	eng := newScriptedEngine()
	c := New(self, nil, eng.submit)
	ctx := context.Background()

	c.Tap(ctx, alice)
	first := eng.next(t)
	c.Tap(ctx, bob)
	first.reply <- nil
	second := eng.next(t)
	second.reply <- errOffline
	c.Wait()

	if st := c.State(); st.Displayed != alice || st.Err == nil {
		t.Errorf("Expected rollback to alice with error, got %+v", st)
	}
}
