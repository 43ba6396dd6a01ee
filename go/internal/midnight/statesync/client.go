// Package statesync keeps a client's copy of the remote game state fresh.
// Change signals and resume checks both funnel into one version-gated apply
// step, so racing refetches cannot move the view backwards.
package statesync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/roscoeevans/Skulking/go/internal/midnight/engine"
	"github.com/roscoeevans/Skulking/go/internal/midnight/notify"
	"github.com/roscoeevans/Skulking/go/internal/models"
)

var ErrClosed = errors.New("sync client closed")

// Config tunes background work.
type Config struct {
	// FetchTimeout bounds each background refetch.
	FetchTimeout time.Duration
	// PollInterval enables a periodic version check when positive.
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{FetchTimeout: 10 * time.Second}
}

// Client owns the cached snapshots for one participant and session.
type Client struct {
	eng      engine.Engine
	probe    engine.VersionReader
	notifier notify.Notifier
	clock    clockwork.Clock
	store    *Store
	metrics  Metrics
	cfg      Config

	// applyMu serialises apply-and-notify so listeners observe snapshots in
	// version order. Listeners must not fetch synchronously.
	applyMu sync.Mutex

	mu          sync.Mutex
	participant uuid.UUID
	sessionType models.SessionType
	subs        []notify.Subscription
	stopPoll    context.CancelFunc
	closed      bool
	onPrivate   []func(models.PrivateViewState)
	onPublic    []func(models.PublicGameState)

	background sync.WaitGroup
}

// Option customises a Client.
type Option func(*Client)

// WithProbe uses r for the cheap version read instead of the engine.
func WithProbe(r engine.VersionReader) Option {
	return func(c *Client) { c.probe = r }
}

func WithMetrics(m Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates an unbound client. notifier may be nil, in which case
// only resume checks and polling keep the state fresh.
func NewClient(eng engine.Engine, notifier notify.Notifier, clock clockwork.Clock, cfg Config, opts ...Option) *Client {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	c := &Client{
		eng:      eng,
		probe:    eng,
		notifier: notifier,
		clock:    clock,
		store:    NewStore(),
		metrics:  NoOpMetrics{},
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store exposes the cached snapshots.
func (c *Client) Store() *Store { return c.store }

// Participant returns the bound participant, or uuid.Nil.
func (c *Client) Participant() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participant
}

// OnPrivate registers fn for every applied private view.
func (c *Client) OnPrivate(fn func(models.PrivateViewState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPrivate = append(c.onPrivate, fn)
}

// OnPublic registers fn for every applied public state.
func (c *Client) OnPublic(fn func(models.PublicGameState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPublic = append(c.onPublic, fn)
}

// FetchPrivateView fetches the participant's view and applies it when id is
// the bound participant. applied is false when the result was older than
// the held view and was dropped.
func (c *Client) FetchPrivateView(ctx context.Context, id uuid.UUID) (view models.PrivateViewState, applied bool, err error) {
	start := c.clock.Now()
	view, err = c.eng.GetPrivateView(ctx, id)
	c.metrics.RecordFetch(KindPrivate, err == nil, c.clock.Since(start))
	if err != nil {
		return models.PrivateViewState{}, false, err
	}
	if c.Participant() != id {
		// identity changed while the call was in flight
		return view, false, nil
	}
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if c.isClosed() {
		return view, false, nil
	}
	if !c.store.ApplyPrivate(view) {
		c.metrics.RecordDiscard(KindPrivate)
		log.Debug().Int64("version", view.Version).Int64("held_version", c.store.PrivateVersion()).Msg("discarded stale private view")
		return view, false, nil
	}
	c.mu.Lock()
	listeners := append([]func(models.PrivateViewState){}, c.onPrivate...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(view)
	}
	return view, true, nil
}

// FetchPublicState fetches and applies the public state.
func (c *Client) FetchPublicState(ctx context.Context) (state models.PublicGameState, applied bool, err error) {
	start := c.clock.Now()
	state, err = c.eng.GetPublicState(ctx)
	c.metrics.RecordFetch(KindPublic, err == nil, c.clock.Since(start))
	if err != nil {
		return models.PublicGameState{}, false, err
	}
	c.applyMu.Lock()
	defer c.applyMu.Unlock()
	if c.isClosed() {
		return state, false, nil
	}
	if !c.store.ApplyPublic(state) {
		c.metrics.RecordDiscard(KindPublic)
		log.Debug().Int64("version", state.Version).Msg("discarded stale public state")
		return state, false, nil
	}
	c.mu.Lock()
	listeners := append([]func(models.PublicGameState){}, c.onPublic...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
	return state, true, nil
}

// Refresh refetches both snapshots concurrently. The private view is only
// fetched while a participant is bound.
func (c *Client) Refresh(ctx context.Context) error {
	id := c.Participant()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, _, err := c.FetchPublicState(ctx)
		return err
	})
	if id != uuid.Nil {
		g.Go(func() error {
			_, _, err := c.FetchPrivateView(ctx, id)
			return err
		})
	}
	return g.Wait()
}

// HandleChange reacts to a change signal by refetching both snapshots.
// Failures are logged; the next signal or resume retries.
func (c *Client) HandleChange(table notify.Table) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.background.Add(1)
	c.mu.Unlock()
	defer c.background.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FetchTimeout)
	defer cancel()
	if err := c.Refresh(ctx); err != nil {
		log.Warn().Err(err).Str("table", string(table)).Msg("refresh after change signal failed")
	}
}

// Resume performs the cheap version read and refetches only when the
// remote version is strictly newer than the held private view. An unbound
// client compares against the public state instead. A newer public state
// alone does not count, since it may have been applied while the private
// fetch failed.
func (c *Client) Resume(ctx context.Context) (refetched bool, err error) {
	start := c.clock.Now()
	remote, err := c.probe.StateVersion(ctx)
	c.metrics.RecordFetch(KindVersion, err == nil, c.clock.Since(start))
	if err != nil {
		return false, err
	}
	lastSeen := c.store.PublicVersion()
	if c.Participant() != uuid.Nil {
		lastSeen = c.store.PrivateVersion()
	}
	if remote <= lastSeen {
		c.metrics.RecordResume(false)
		return false, nil
	}
	log.Debug().Int64("remote_version", remote).Int64("last_seen", lastSeen).Msg("remote state is newer, refetching")
	c.metrics.RecordResume(true)
	return true, c.Refresh(ctx)
}

// Bind scopes the client to a participant and session type. Subscriptions
// exist only for a bound participant in a night-phase session; any other
// combination tears them down. A failed subscribe leaves the client relying
// on Resume and polling.
func (c *Client) Bind(ctx context.Context, id uuid.UUID, sessionType models.SessionType) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if id == c.participant && sessionType == c.sessionType && (len(c.subs) > 0 || !c.wantsSubscriptions(id, sessionType)) {
		c.mu.Unlock()
		return nil
	}
	old := c.detachLocked()
	if id != c.participant {
		c.store.Reset()
	}
	c.participant = id
	c.sessionType = sessionType
	c.mu.Unlock()
	release(old)

	if id == uuid.Nil || sessionType != models.SessionTypeMidnight {
		return nil
	}

	var subs []notify.Subscription
	if c.notifier != nil {
		subs = c.subscribe(ctx)
	}
	c.mu.Lock()
	if c.closed || c.participant != id || c.sessionType != sessionType {
		// superseded while subscribing
		c.mu.Unlock()
		release(subs)
		return nil
	}
	c.subs = subs
	if c.cfg.PollInterval > 0 {
		c.startPollLocked()
	}
	c.mu.Unlock()

	log.Info().Str("participant_id", id.String()).Int("subscriptions", len(subs)).Msg("sync client bound")
	return nil
}

// Unbind clears the participant identity and releases every subscription.
func (c *Client) Unbind() {
	c.mu.Lock()
	old := c.detachLocked()
	c.participant = uuid.Nil
	c.sessionType = ""
	c.store.Reset()
	c.mu.Unlock()
	release(old)
}

// Close unbinds and waits for background refreshes to finish. Nothing is
// applied once Close has begun, so the store is empty when it returns.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Unbind()
	c.background.Wait()

	// an apply that passed the closed check before the flag was set holds
	// applyMu until it is done
	c.applyMu.Lock()
	c.store.Reset()
	c.applyMu.Unlock()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Subscribed reports how many subscriptions are held.
func (c *Client) Subscribed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Client) wantsSubscriptions(id uuid.UUID, sessionType models.SessionType) bool {
	return c.notifier != nil && id != uuid.Nil && sessionType == models.SessionTypeMidnight
}

func (c *Client) subscribe(ctx context.Context) []notify.Subscription {
	var subs []notify.Subscription
	for _, table := range notify.Tables() {
		sub, err := c.notifier.Subscribe(ctx, table, c.HandleChange)
		c.metrics.RecordSubscribe(err == nil)
		if err != nil {
			log.Warn().Err(err).Str("table", string(table)).Msg("subscribe failed, relying on resume checks")
			release(subs)
			return nil
		}
		subs = append(subs, sub)
	}
	return subs
}

// detachLocked hands back the held subscriptions for release outside the
// lock and stops polling.
func (c *Client) detachLocked() []notify.Subscription {
	old := c.subs
	c.subs = nil
	if c.stopPoll != nil {
		c.stopPoll()
		c.stopPoll = nil
	}
	return old
}

func release(subs []notify.Subscription) {
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("failed to release subscription")
		}
	}
}

func (c *Client) startPollLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	c.stopPoll = cancel
	ticker := c.clock.NewTicker(c.cfg.PollInterval)
	c.background.Add(1)
	go func() {
		defer c.background.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				rctx, rcancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
				if _, err := c.Resume(rctx); err != nil && ctx.Err() == nil {
					log.Warn().Err(err).Msg("poll check failed")
				}
				rcancel()
			}
		}
	}()
}

// afterMutation refreshes in the background so a participant sees the
// effect of their own call even when no change signal arrives.
func (c *Client) afterMutation() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.background.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.FetchTimeout)
		defer cancel()
		if err := c.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("refresh after mutation failed")
		}
	}()
}
