// Package session is the explicitly owned object for one participant in one
// game. It is built when the participant joins, feeds every applied snapshot
// into the night, vote and countdown components, and is closed when the
// participant leaves.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/roscoeevans/Skulking/go/internal/midnight/activity"
	"github.com/roscoeevans/Skulking/go/internal/midnight/countdown"
	"github.com/roscoeevans/Skulking/go/internal/midnight/engine"
	"github.com/roscoeevans/Skulking/go/internal/midnight/night"
	"github.com/roscoeevans/Skulking/go/internal/midnight/roles"
	"github.com/roscoeevans/Skulking/go/internal/midnight/statesync"
	"github.com/roscoeevans/Skulking/go/internal/midnight/vote"
	"github.com/roscoeevans/Skulking/go/internal/models"
)

var ErrNotAdmin = errors.New("only the admin can do that")

const relistTimeout = 10 * time.Second

// Config collects the tunables of the owned components.
type Config struct {
	Night     night.Config
	Activity  activity.Config
	Countdown countdown.Config
	// Catalog overrides the activity bank; nil uses the default one.
	Catalog []activity.Item
	// AutoAdvance lets an admin session begin and end voting when the
	// countdowns run out.
	AutoAdvance bool
}

// Stores are the device-local stores used by the activity layer.
type Stores struct {
	Durable activity.Store
	Session activity.Store
}

// Snapshot is the whole-screen state.
type Snapshot struct {
	Phase        models.Phase
	Version      int64
	Self         models.Participant
	Participants []models.Participant
	Private      models.PrivateViewState

	Night      night.Snapshot
	Activity   activity.Snapshot
	Vote       vote.State
	Discussion string
	Voting     string
	Urgent     bool

	SetupError string
	Summary    *activity.Summary
}

// Session owns the sync client and every per-participant component.
type Session struct {
	client *statesync.Client
	clock  clockwork.Clock
	cfg    Config
	stores Stores

	Night      *night.Controller
	Activity   *activity.Engine
	Discussion *countdown.Timer
	Voting     *countdown.Timer

	mu           sync.Mutex
	self         models.Participant
	participants []models.Participant
	phase        models.Phase
	vote         *vote.Coordinator
	setupErr     string
	summary      *activity.Summary
	closed       bool
	relisting    bool
	relistAgain  bool

	listeners []func(Snapshot)
	admin     sync.WaitGroup
	// background tracks roster relists and retired vote coordinators.
	background sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
}

// Open joins the given participant to the client's game and performs the
// first refresh.
func Open(ctx context.Context, client *statesync.Client, clock clockwork.Clock, self models.Participant, stores Stores, cfg Config) (*Session, error) {
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = activity.DefaultCatalog()
	}
	act, err := activity.NewEngine(clock, catalog, stores.Durable, stores.Session, cfg.Activity)
	if err != nil {
		return nil, err
	}
	s := &Session{
		client:     client,
		clock:      clock,
		cfg:        cfg,
		stores:     stores,
		self:       self,
		Activity:   act,
		Discussion: countdown.New(clock, cfg.Countdown),
		Voting:     countdown.New(clock, cfg.Countdown),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.Night = night.NewController(clock, self.ID, client.SubmitNightAction, cfg.Night)
	s.vote = vote.New(self.ID, nil, client.SubmitVote)

	s.Discussion.OnComplete(func() { s.autoAdvance(models.PhaseDiscussion) })
	s.Voting.OnComplete(func() { s.autoAdvance(models.PhaseVoting) })
	client.OnPrivate(s.apply)

	if err := s.refreshParticipants(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to list participants")
	}
	if err := client.Bind(ctx, self.ID, models.SessionTypeMidnight); err != nil {
		s.cancel()
		return nil, err
	}
	if err := client.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial refresh failed")
	}
	log.Info().Str("participant_id", self.ID.String()).Bool("admin", self.IsAdmin).Msg("session opened")
	return s, nil
}

// OnChange registers fn for screen-level changes.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Vote returns the coordinator for the current voting round.
func (s *Session) Vote() *vote.Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vote
}

// Resume is called when the client regains focus.
func (s *Session) Resume(ctx context.Context) {
	if _, err := s.client.Resume(ctx); err != nil {
		log.Warn().Err(err).Msg("resume check failed")
	}
}

// Close ends any running activity, releases subscriptions and stops timers.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	v := s.vote
	s.mu.Unlock()

	s.cancel()
	s.client.Close()
	s.Activity.End(ctx)
	s.Night.Reset()
	s.Discussion.Stop()
	s.Voting.Stop()
	s.admin.Wait()
	v.Wait()
	s.background.Wait()
	log.Info().Str("participant_id", s.self.ID.String()).Msg("session closed")
}

// apply routes an applied private view to the components. Phase edges start
// and stop the activity layer and open a fresh vote each voting round. It
// runs on the sync client's apply path, so roster fetches happen elsewhere.
func (s *Session) apply(view models.PrivateViewState) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.phase
	s.phase = view.Phase
	if view.ParticipantCount != len(s.participants) {
		s.relistLocked()
	}
	if view.Phase == models.PhaseVoting && prev != models.PhaseVoting {
		s.retireLocked(s.vote)
		s.vote = vote.New(s.self.ID, view.MyVote, s.client.SubmitVote)
	}
	v := s.vote
	s.mu.Unlock()

	ctx := context.Background()

	switch {
	case view.Phase == models.PhaseNight && prev != models.PhaseNight:
		s.Activity.Start(ctx)
	case view.Phase != models.PhaseNight && prev == models.PhaseNight:
		s.Activity.End(ctx)
	}
	s.Night.Apply(view)
	v.Observe(view.MyVote)
	s.Discussion.Reset(view.DiscussionEndAt)
	s.Voting.Reset(view.VotingEndAt)

	if view.Phase == models.PhaseResults && prev != models.PhaseResults {
		if h, ok := activity.ReadHandoff(ctx, s.stores.Session); ok {
			sum := activity.Summarize(h)
			s.mu.Lock()
			s.summary = &sum
			s.mu.Unlock()
		}
	}
	if prev != view.Phase {
		log.Info().Str("from", string(prev)).Str("to", string(view.Phase)).Int64("version", view.Version).Msg("phase changed")
	}
	s.emit()
}

// relistLocked refreshes the roster in the background. A change seen while
// a relist is in flight makes it run once more.
func (s *Session) relistLocked() {
	if s.relisting {
		s.relistAgain = true
		return
	}
	s.relisting = true
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		for {
			ctx, cancel := context.WithTimeout(s.ctx, relistTimeout)
			err := s.refreshParticipants(ctx)
			cancel()
			if err != nil && s.ctx.Err() == nil {
				log.Warn().Err(err).Msg("failed to list participants")
			}
			s.mu.Lock()
			if !s.relistAgain || s.closed {
				s.relisting = false
				closed := s.closed
				s.mu.Unlock()
				if !closed {
					s.emit()
				}
				return
			}
			s.relistAgain = false
			s.mu.Unlock()
		}
	}()
}

// retireLocked keeps Close waiting on a replaced coordinator's submission.
func (s *Session) retireLocked(old *vote.Coordinator) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		old.Wait()
	}()
}

func (s *Session) refreshParticipants(ctx context.Context) error {
	ps, err := s.client.ListParticipants(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.participants = ps
	for _, p := range ps {
		if p.ID == s.self.ID {
			s.self = p
		}
	}
	s.mu.Unlock()
	s.Night.SetParticipants(ps)
	return nil
}

// Snapshot assembles the current screen state.
func (s *Session) Snapshot() Snapshot {
	view, _ := s.client.Store().Private()
	s.mu.Lock()
	snap := Snapshot{
		Phase:        s.phase,
		Version:      view.Version,
		Self:         s.self,
		Participants: append([]models.Participant(nil), s.participants...),
		Private:      view,
		Vote:         s.vote.State(),
		SetupError:   s.setupErr,
		Summary:      s.summary,
	}
	s.mu.Unlock()
	snap.Night = s.Night.Snapshot()
	snap.Activity = s.Activity.Current()
	snap.Discussion = s.Discussion.Display()
	snap.Voting = s.Voting.Display()
	snap.Urgent = s.Discussion.Urgent() || s.Voting.Urgent()
	return snap
}

func (s *Session) emit() {
	s.mu.Lock()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.mu.Unlock()
	if len(listeners) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
}

// autoAdvance runs when a countdown completes.
func (s *Session) autoAdvance(phase models.Phase) {
	s.mu.Lock()
	run := s.cfg.AutoAdvance && s.self.IsAdmin && s.phase == phase && !s.closed
	if run {
		s.admin.Add(1)
	}
	s.mu.Unlock()
	if !run {
		return
	}
	go func() {
		defer s.admin.Done()
		ctx := context.Background()
		var err error
		switch phase {
		case models.PhaseDiscussion:
			err = s.BeginVoting(ctx)
		case models.PhaseVoting:
			err = s.EndVoting(ctx)
		}
		if err != nil {
			log.Warn().Err(err).Str("phase", string(phase)).Msg("auto advance failed")
		}
	}()
}

// Configure validates the setup locally and sends it to the engine. On
// failure the admin stays on setup and SetupError carries the message.
func (s *Session) Configure(ctx context.Context, cfg engine.SessionConfig) error {
	if err := s.requireAdmin(); err != nil {
		return s.setupFailed(err)
	}
	if err := roles.ValidatePool(cfg.RoleSet, s.participantCount()); err != nil {
		return s.setupFailed(&engine.ValidationError{Op: "configure_session", Reason: err.Error()})
	}
	if err := s.client.ConfigureSession(ctx, cfg); err != nil {
		return s.setupFailed(err)
	}
	s.mu.Lock()
	s.setupErr = ""
	s.mu.Unlock()
	return nil
}

// ConfigurePreset configures the session from a named preset and the
// default rules.
func (s *Session) ConfigurePreset(ctx context.Context, preset string) error {
	cfg := engine.DefaultSessionConfig()
	cfg.RoleSet = roles.Expand(roles.Preset(preset, s.participantCount()))
	return s.Configure(ctx, cfg)
}

func (s *Session) MarkReady(ctx context.Context) error {
	return s.client.MarkReady(ctx)
}

func (s *Session) SkipStep(ctx context.Context) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	return s.client.SkipCurrentStep(ctx)
}

func (s *Session) BeginVoting(ctx context.Context) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	return s.client.BeginVoting(ctx)
}

func (s *Session) EndVoting(ctx context.Context) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	return s.client.EndVoting(ctx)
}

func (s *Session) Rematch(ctx context.Context) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	s.mu.Lock()
	s.summary = nil
	s.mu.Unlock()
	return s.client.Rematch(ctx)
}

func (s *Session) requireAdmin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.self.IsAdmin {
		return &engine.ValidationError{Op: "admin", Reason: ErrNotAdmin.Error(), Err: ErrNotAdmin}
	}
	return nil
}

func (s *Session) setupFailed(err error) error {
	s.mu.Lock()
	s.setupErr = engine.UserMessage(err)
	s.mu.Unlock()
	s.emit()
	return err
}

func (s *Session) participantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

// Participant looks up a participant by id.
func (s *Session) Participant(id uuid.UUID) (models.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.ID == id {
			return p, true
		}
	}
	return models.Participant{}, false
}
