package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/roscoeevans/Skulking/go/internal/midnight/activity"
	"github.com/roscoeevans/Skulking/go/internal/midnight/night"
	"github.com/roscoeevans/Skulking/go/internal/midnight/roles"
	"github.com/roscoeevans/Skulking/go/internal/midnight/session"
	"github.com/roscoeevans/Skulking/go/internal/models"
)

const (
	tickInterval   = 250 * time.Millisecond
	configureRetry = 5 * time.Second
	rematchPause   = 5 * time.Second
	noKillOneIn    = 5
)

// Bot plays one participant's side of the game by reading the session
// snapshot on every tick and doing whatever a person at that screen would.
type Bot struct {
	session *session.Session
	clock   clockwork.Clock
	rng     *rand.Rand
	preset  string
	players int
	limit   int

	games atomic.Int64

	nextConfigure time.Time
	readyVersion  int64
	activityPos   int
	thinkUntil    time.Time
	seerChosen    bool
	voted         bool
	inResults     bool
	resultsAt     time.Time
	rematchSent   bool
}

func newBot(s *session.Session, clock clockwork.Clock, f Flags) *Bot {
	seed := f.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Bot{
		session:      s,
		clock:        clock,
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		preset:       f.Preset,
		players:      f.Players,
		limit:        f.Games,
		readyVersion: -1,
		activityPos:  -1,
	}
}

// Games returns how many games have reached results.
func (b *Bot) Games() int {
	return int(b.games.Load())
}

// Run ticks until the game limit is reached or ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	ticker := b.clock.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if b.step(ctx) {
				return nil
			}
		}
	}
}

// step acts on the current snapshot and reports whether the bot is done.
func (b *Bot) step(ctx context.Context) bool {
	snap := b.session.Snapshot()
	if snap.Phase != models.PhaseNight {
		b.activityPos = -1
	}
	if snap.Phase != models.PhaseVoting {
		b.voted = false
	}
	if snap.Phase != models.PhaseResults {
		b.inResults = false
		b.rematchSent = false
	}

	switch snap.Phase {
	case models.PhaseSetup:
		b.configure(ctx, snap)
	case models.PhaseDeal:
		if !snap.Private.IsReady && snap.Version != b.readyVersion {
			b.readyVersion = snap.Version
			if err := b.session.MarkReady(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to mark ready")
			}
		}
	case models.PhaseNight:
		b.playActivity(ctx, snap.Activity)
		b.playNight(ctx, snap.Night)
	case models.PhaseVoting:
		if !b.voted {
			b.vote(ctx, snap)
		}
	case models.PhaseResults:
		return b.finish(ctx, snap)
	}
	return false
}

func (b *Bot) configure(ctx context.Context, snap session.Snapshot) {
	if !snap.Self.IsAdmin || len(snap.Participants) < b.players {
		return
	}
	now := b.clock.Now()
	if now.Before(b.nextConfigure) {
		return
	}
	b.nextConfigure = now.Add(configureRetry)
	if err := b.session.ConfigurePreset(ctx, b.preset); err != nil {
		log.Warn().Err(err).Str("preset", b.preset).Int("players", len(snap.Participants)).Msg("configure rejected")
		return
	}
	log.Info().Str("preset", b.preset).Int("players", len(snap.Participants)).Msg("session configured")
}

func (b *Bot) playActivity(ctx context.Context, a activity.Snapshot) {
	if !a.Running || a.Resolved {
		return
	}
	if a.Position != b.activityPos {
		b.activityPos = a.Position
		var think time.Duration
		if span := a.Item.TimeLimit * 3 / 4; span > 0 {
			think = time.Duration(b.rng.Int64N(int64(span)))
		}
		b.thinkUntil = a.Deadline.Add(-a.Item.TimeLimit).Add(think)
	}
	if b.clock.Now().Before(b.thinkUntil) {
		return
	}
	o, err := b.session.Activity.Answer(ctx, b.rng.IntN(len(a.Item.Options)))
	if err != nil {
		if !errors.Is(err, activity.ErrAlreadyAnswered) && !errors.Is(err, activity.ErrNotRunning) {
			log.Warn().Err(err).Str("item_id", a.Item.ID).Msg("activity answer failed")
		}
		return
	}
	ev := log.Debug().Str("item_id", o.ItemID).Dur("elapsed", o.Elapsed)
	if o.Correct != nil {
		ev = ev.Bool("correct", *o.Correct)
	}
	ev.Msg("activity answered")
}

func (b *Bot) playNight(ctx context.Context, n night.Snapshot) {
	if n.View != night.ViewRoleAction {
		b.seerChosen = false
	}
	switch n.View {
	case night.ViewRoleAction:
		if n.Submitting {
			return
		}
		if n.Spec.Role == roles.Seer && !b.seerChosen {
			b.seerChosen = true
			if b.rng.IntN(2) == 0 {
				if err := b.session.Night.SetSeerMode(night.SeerTwoCenters); err != nil {
					log.Warn().Err(err).Msg("failed to switch seer mode")
				}
				return
			}
		}
		if len(n.Selection) < n.Spec.Required {
			b.pickTargets(n)
			return
		}
		if n.CanSubmit {
			if err := b.session.Night.Submit(ctx); err != nil {
				log.Warn().Err(err).Str("role", string(n.Spec.Role)).Msg("night action failed")
			}
		}
	case night.ViewToast:
		if n.Result != nil && n.Result.IsReveal() {
			log.Info().Str("result", string(n.Result.Kind)).Int("cards", len(n.Result.Roles)).Msg("night result revealed")
			if err := b.session.Night.Dismiss(); err != nil {
				log.Debug().Err(err).Msg("result already dismissed")
			}
		}
	}
}

func (b *Bot) pickTargets(n night.Snapshot) {
	count := len(n.Selection)
	for _, i := range b.rng.Perm(len(n.Spec.Selectable)) {
		if count >= n.Spec.Required {
			return
		}
		pos := n.Spec.Selectable[i]
		if slices.Contains(n.Selection, pos) {
			continue
		}
		if err := b.session.Night.Select(pos); err != nil {
			log.Debug().Err(err).Str("position", string(pos)).Msg("select refused")
			return
		}
		count++
	}
}

func (b *Bot) vote(ctx context.Context, snap session.Snapshot) {
	var others []uuid.UUID
	for _, p := range snap.Participants {
		if p.ID != snap.Self.ID {
			others = append(others, p.ID)
		}
	}
	target := snap.Self.ID
	if len(others) > 0 && b.rng.IntN(noKillOneIn) != 0 {
		target = others[b.rng.IntN(len(others))]
	}
	b.session.Vote().Tap(ctx, target)
	b.voted = true

	name := "nobody"
	if target != snap.Self.ID {
		if p, ok := b.session.Participant(target); ok {
			name = p.Name
		}
	}
	log.Info().Str("target", name).Msg("vote cast")
}

func (b *Bot) finish(ctx context.Context, snap session.Snapshot) bool {
	now := b.clock.Now()
	if !b.inResults {
		b.inResults = true
		b.resultsAt = now
		b.games.Add(1)
		b.report(snap)
	}
	if b.Games() >= b.limit {
		return true
	}
	if snap.Self.IsAdmin && !b.rematchSent && now.Sub(b.resultsAt) >= rematchPause {
		b.rematchSent = true
		if err := b.session.Rematch(ctx); err != nil {
			log.Warn().Err(err).Msg("rematch failed")
		}
	}
	return false
}

func (b *Bot) report(snap session.Snapshot) {
	deaths := make([]string, 0, len(snap.Private.Deaths))
	for _, id := range snap.Private.Deaths {
		if p, ok := b.session.Participant(id); ok {
			deaths = append(deaths, p.Name)
		}
	}
	ev := log.Info().
		Str("winner", snap.Private.Winner).
		Strs("deaths", deaths).
		Str("final_role", roles.Name(snap.Private.FinalRole)).
		Int("game", b.Games())
	if s := snap.Summary; s != nil {
		ev = ev.Int("answered", s.Answered).Int("correct", s.Correct).Str("lifetime", s.LifetimeLine)
	}
	ev.Msg("game over")
}
