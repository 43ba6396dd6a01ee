package statesync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/quick"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/roscoeevans/Skulking/go/internal/midnight/engine"
	"github.com/roscoeevans/Skulking/go/internal/midnight/engine/stubengine"
	"github.com/roscoeevans/Skulking/go/internal/midnight/notify"
	"github.com/roscoeevans/Skulking/go/internal/midnight/roles"
	"github.com/roscoeevans/Skulking/go/internal/models"
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

// countingEngine counts reads against a real engine.
type countingEngine struct {
	engine.Engine
	privateReads atomic.Int64
	publicReads  atomic.Int64
	versionReads atomic.Int64
}

func (c *countingEngine) GetPrivateView(ctx context.Context, id uuid.UUID) (models.PrivateViewState, error) {
	c.privateReads.Add(1)
	return c.Engine.GetPrivateView(ctx, id)
}

func (c *countingEngine) GetPublicState(ctx context.Context) (models.PublicGameState, error) {
	c.publicReads.Add(1)
	return c.Engine.GetPublicState(ctx)
}

func (c *countingEngine) StateVersion(ctx context.Context) (int64, error) {
	c.versionReads.Add(1)
	return c.Engine.StateVersion(ctx)
}

// scriptedEngine returns queued private views in order.
type scriptedEngine struct {
	engine.Engine
	mu    sync.Mutex
	views []models.PrivateViewState
}

func (s *scriptedEngine) GetPrivateView(context.Context, uuid.UUID) (models.PrivateViewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.views[0]
	s.views = s.views[1:]
	return v, nil
}

type failingNotifier struct{}

func (failingNotifier) Subscribe(context.Context, notify.Table, notify.Handler) (notify.Subscription, error) {
	return nil, errors.New("realtime unavailable")
}

func TestVersionGateKeepsMaximum(t *testing.T) {
	f := func(versions []uint16) bool {
		if len(versions) == 0 {
			return true
		}
		s := NewStore()
		var want int64
		for _, v := range versions {
			s.ApplyPrivate(models.PrivateViewState{Version: int64(v)})
			s.ApplyPublic(models.PublicGameState{Version: int64(v)})
			want = max(want, int64(v))
		}
		p, _ := s.Private()
		g, _ := s.Public()
		if p.Version != want || g.Version != want || s.LastSeen() != want {
			t.Errorf("Expected version %d, got private %d public %d", want, p.Version, g.Version)
			return false
		}
		return true
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestEqualVersionReplaces(t *testing.T) {
	s := NewStore()
	s.ApplyPrivate(models.PrivateViewState{Version: 4, Phase: models.PhaseNight})
	if !s.ApplyPrivate(models.PrivateViewState{Version: 4, Phase: models.PhaseDiscussion}) {
		t.Errorf("Expected equal version to apply")
	}
	if v, _ := s.Private(); v.Phase != models.PhaseDiscussion {
		t.Errorf("Expected full replacement, got %s", v.Phase)
	}
}

func TestStalePrivateViewIsDiscarded(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	eng := &scriptedEngine{views: []models.PrivateViewState{{Version: 5, IsMyTurn: true}, {Version: 3}}}
	metrics := &CountingMetrics{}
	c := NewClient(eng, nil, clockwork.NewFakeClock(), DefaultConfig(), WithMetrics(metrics))
	_ = c.Bind(ctx, id, models.SessionTypeMidnight)

	var applied []int64
	c.OnPrivate(func(v models.PrivateViewState) { applied = append(applied, v.Version) })

	if _, ok, err := c.FetchPrivateView(ctx, id); !ok || err != nil {
		t.Fatalf("Expected first view to apply, got ok=%v err=%v", ok, err)
	}
	if _, ok, _ := c.FetchPrivateView(ctx, id); ok {
		t.Errorf("Expected older view to be discarded")
	}
	v, _ := c.Store().Private()
	if v.Version != 5 || !v.IsMyTurn {
		t.Errorf("Expected version 5 to survive, got %+v", v)
	}
	if len(applied) != 1 || metrics.Discards.Load() != 1 {
		t.Errorf("Expected one applied and one discard, got %v and %d", applied, metrics.Discards.Load())
	}
}

func setupStub(t *testing.T) (*stubengine.Engine, *notify.Hub, []models.Participant) {
	t.Helper()
	hub := notify.NewHub()
	stub := stubengine.New(clockwork.NewFakeClock(), hub, 5)
	var ps []models.Participant
	for _, n := range []string{"ana", "ben", "cy"} {
		p, err := stub.Join(context.Background(), n)
		if err != nil {
			t.Fatal(err)
		}
		ps = append(ps, p)
	}
	return stub, hub, ps
}

func TestChangeSignalRefetchesBoth(t *testing.T) {
	ctx := context.Background()
	stub, hub, ps := setupStub(t)
	eng := &countingEngine{Engine: stub}
	c := NewClient(eng, hub, clockwork.NewFakeClock(), DefaultConfig())
	defer c.Close()

	if err := c.Bind(ctx, ps[0].ID, models.SessionTypeMidnight); err != nil {
		t.Fatal(err)
	}
	if n := c.Subscribed(); n != 2 {
		t.Fatalf("Expected 2 subscriptions, got %d", n)
	}

	_ = hub.Publish(ctx, notify.TableVotes)
	waitFor(t, func() bool { return eng.privateReads.Load() >= 1 && eng.publicReads.Load() >= 1 })

	v, ok := c.Store().Private()
	if !ok || v.ParticipantCount != 3 {
		t.Errorf("Expected a fetched private view, got %+v", v)
	}
}

func TestResumeRefetchesOnlyWhenNewer(t *testing.T) {
	ctx := context.Background()
	stub, _, ps := setupStub(t)
	eng := &countingEngine{Engine: stub}
	c := NewClient(eng, nil, clockwork.NewFakeClock(), DefaultConfig())
	defer c.Close()
	_ = c.Bind(ctx, ps[0].ID, models.SessionTypeMidnight)

	refetched, err := c.Resume(ctx)
	if err != nil || !refetched {
		t.Fatalf("Expected first resume to refetch, got %v %v", refetched, err)
	}
	reads := eng.privateReads.Load()

	refetched, err = c.Resume(ctx)
	if err != nil || refetched {
		t.Errorf("Expected no refetch at the same version, got %v %v", refetched, err)
	}
	if eng.privateReads.Load() != reads {
		t.Errorf("Expected no extra private reads")
	}

	if _, err := stub.Join(ctx, "dee"); err != nil {
		t.Fatal(err)
	}
	refetched, _ = c.Resume(ctx)
	if !refetched {
		t.Errorf("Expected refetch after the version moved")
	}
	if eng.versionReads.Load() != 3 {
		t.Errorf("Expected 3 version reads, got %d", eng.versionReads.Load())
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	stub, hub, ps := setupStub(t)
	c := NewClient(stub, hub, clockwork.NewFakeClock(), DefaultConfig())

	_ = c.Bind(ctx, ps[0].ID, models.SessionTypeMidnight)
	_ = c.Bind(ctx, ps[0].ID, models.SessionTypeMidnight)
	if n := hub.Subscribers(notify.TableState); n != 1 {
		t.Errorf("Expected rebinding the same identity to keep 1 subscriber, got %d", n)
	}

	_ = c.Bind(ctx, ps[0].ID, models.SessionTypeTrickTaking)
	if n := hub.Subscribers(notify.TableState) + hub.Subscribers(notify.TableVotes); n != 0 {
		t.Errorf("Expected session type change to release subscriptions, got %d", n)
	}

	_ = c.Bind(ctx, ps[1].ID, models.SessionTypeMidnight)
	if n := hub.Subscribers(notify.TableVotes); n != 1 {
		t.Errorf("Expected new identity to subscribe once, got %d", n)
	}

	c.Close()
	if n := hub.Subscribers(notify.TableState) + hub.Subscribers(notify.TableVotes); n != 0 {
		t.Errorf("Expected close to release everything, got %d", n)
	}
	if err := c.Bind(ctx, ps[0].ID, models.SessionTypeMidnight); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestSubscribeFailureDegradesSilently(t *testing.T) {
	ctx := context.Background()
	stub, _, ps := setupStub(t)
	metrics := &CountingMetrics{}
	c := NewClient(stub, failingNotifier{}, clockwork.NewFakeClock(), DefaultConfig(), WithMetrics(metrics))
	defer c.Close()

	if err := c.Bind(ctx, ps[0].ID, models.SessionTypeMidnight); err != nil {
		t.Errorf("Expected bind to succeed without realtime, got %v", err)
	}
	if c.Subscribed() != 0 || metrics.SubscribeFailure.Load() != 1 {
		t.Errorf("Expected no subscriptions and one recorded failure")
	}
	if refetched, err := c.Resume(ctx); err != nil || !refetched {
		t.Errorf("Expected resume to still work, got %v %v", refetched, err)
	}
}

func TestPollFallback(t *testing.T) {
	ctx := context.Background()
	stub, _, ps := setupStub(t)
	clock := clockwork.NewFakeClock()
	cfg := DefaultConfig()
	cfg.PollInterval = 5 * time.Second
	c := NewClient(stub, nil, clock, cfg)
	defer c.Close()
	_ = c.Bind(ctx, ps[0].ID, models.SessionTypeMidnight)

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(5 * time.Second)
	waitFor(t, func() bool {
		_, ok := c.Store().Private()
		return ok
	})
}

func TestMutationRefreshesOwnView(t *testing.T) {
	ctx := context.Background()
	stub, _, ps := setupStub(t)
	c := NewClient(stub, nil, clockwork.NewFakeClock(), DefaultConfig())
	defer c.Close()
	_ = c.Bind(ctx, ps[0].ID, models.SessionTypeMidnight)

	if err := c.SkipCurrentStep(ctx); err == nil {
		t.Errorf("Expected skip outside the night to be rejected")
	}

	cfg := engine.DefaultSessionConfig()
	cfg.RoleSet = roles.Expand(roles.Preset(roles.PresetStandard, len(ps)))
	if err := c.ConfigureSession(ctx, cfg); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		v, _ := c.Store().Private()
		return v.Phase == models.PhaseDeal
	})

	if err := c.MarkReady(ctx); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		v, _ := c.Store().Private()
		return v.IsReady
	})
}

// flakyEngine fails private reads while failPrivate is set.
type flakyEngine struct {
	engine.Engine
	failPrivate atomic.Bool
}

func (f *flakyEngine) GetPrivateView(ctx context.Context, id uuid.UUID) (models.PrivateViewState, error) {
	if f.failPrivate.Load() {
		return models.PrivateViewState{}, errors.New("private read failed")
	}
	return f.Engine.GetPrivateView(ctx, id)
}

func TestResumeRetriesAfterPartialRefresh(t *testing.T) {
	ctx := context.Background()
	stub, _, ps := setupStub(t)
	eng := &flakyEngine{Engine: stub}
	c := NewClient(eng, nil, clockwork.NewFakeClock(), DefaultConfig())
	defer c.Close()
	_ = c.Bind(ctx, ps[0].ID, models.SessionTypeMidnight)
	if err := c.Refresh(ctx); err != nil {
		t.Fatal(err)
	}
	held := c.Store().PrivateVersion()

	if _, err := stub.Join(ctx, "late"); err != nil {
		t.Fatal(err)
	}
	eng.failPrivate.Store(true)
	c.HandleChange(notify.TableState)
	eng.failPrivate.Store(false)

	if c.Store().PublicVersion() <= held || c.Store().PrivateVersion() != held {
		t.Fatalf("Expected only the public state to advance, got public %d private %d",
			c.Store().PublicVersion(), c.Store().PrivateVersion())
	}

	refetched, err := c.Resume(ctx)
	if err != nil || !refetched {
		t.Fatalf("Expected resume to refetch the stale private view, got %v %v", refetched, err)
	}
	remote, _ := stub.StateVersion(ctx)
	if v := c.Store().PrivateVersion(); v != remote {
		t.Errorf("Expected private version %d, got %d", remote, v)
	}
	if v, _ := c.Store().Private(); v.ParticipantCount != 4 {
		t.Errorf("Expected the late joiner to be counted, got %d", v.ParticipantCount)
	}
}

// gatedEngine holds public reads until release is closed.
type gatedEngine struct {
	engine.Engine
	started     chan struct{}
	release     chan struct{}
	once        sync.Once
	publicReads atomic.Int64
}

func (g *gatedEngine) GetPublicState(ctx context.Context) (models.PublicGameState, error) {
	g.publicReads.Add(1)
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.Engine.GetPublicState(ctx)
}

func TestCloseDuringChangeLeavesStoreEmpty(t *testing.T) {
	ctx := context.Background()
	stub, hub, ps := setupStub(t)
	eng := &gatedEngine{Engine: stub, started: make(chan struct{}), release: make(chan struct{})}
	c := NewClient(eng, hub, clockwork.NewFakeClock(), DefaultConfig())
	_ = c.Bind(ctx, ps[0].ID, models.SessionTypeMidnight)

	_ = hub.Publish(ctx, notify.TableState)
	<-eng.started

	done := make(chan struct{})
	go func() {
		c.Close()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Expected close to wait for the in-flight refetch")
	case <-time.After(20 * time.Millisecond):
	}
	close(eng.release)
	<-done

	if _, ok := c.Store().Public(); ok {
		t.Errorf("Expected no public state after close")
	}
	if _, ok := c.Store().Private(); ok {
		t.Errorf("Expected no private view after close")
	}

	reads := eng.publicReads.Load()
	c.HandleChange(notify.TableVotes)
	if n := eng.publicReads.Load(); n != reads {
		t.Errorf("Expected no refetch after close, got %d reads", n-reads)
	}
}
