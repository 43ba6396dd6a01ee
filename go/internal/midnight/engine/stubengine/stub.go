// Package stubengine is an in-memory authoritative engine for development
// and tests. It resolves the night, tallies votes and publishes change
// signals the same way the hosted engine does.
package stubengine

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/roscoeevans/Skulking/go/internal/midnight/engine"
	"github.com/roscoeevans/Skulking/go/internal/midnight/notify"
	"github.com/roscoeevans/Skulking/go/internal/midnight/roles"
	"github.com/roscoeevans/Skulking/go/internal/models"
)

// Winner values.
const (
	WinnerVillage  = "village"
	WinnerWerewolf = "werewolf"
	WinnerTanner   = "tanner"
)

// Engine is a single-session engine held in memory.
type Engine struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	rng       *rand.Rand
	publisher notify.Publisher

	version      int64
	phase        models.Phase
	participants []models.Participant
	cfg          engine.SessionConfig
	configured   bool

	board     map[models.Position]models.RoleID
	starting  map[uuid.UUID]models.RoleID
	ready     map[uuid.UUID]bool
	order     []models.NightStep
	step      int
	results   map[uuid.UUID][]models.ActionResult
	votes     map[uuid.UUID]uuid.UUID
	deaths    []uuid.UUID
	winner    string
	discussAt *time.Time
	votingAt  *time.Time
}

var _ engine.Engine = (*Engine)(nil)

// New creates an engine in the setup phase. publisher may be nil.
func New(clock clockwork.Clock, publisher notify.Publisher, seed uint64) *Engine {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Engine{
		clock:     clock,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		publisher: publisher,
		version:   1,
		phase:     models.PhaseSetup,
		cfg:       engine.DefaultSessionConfig(),
	}
}

func (e *Engine) StateVersion(_ context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version, nil
}

func (e *Engine) GetPublicState(_ context.Context) (models.PublicGameState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := models.PublicGameState{
		RoleSet:           slices.Clone(e.cfg.RoleSet),
		NightStep:         e.step,
		NightOrder:        e.publicOrder(),
		DiscussionSeconds: e.cfg.DiscussionSeconds,
		VotingSeconds:     e.cfg.VotingSeconds,
		LoneWolfPeek:      e.cfg.LoneWolfPeek,
		TieAllDie:         e.cfg.TieAllDie,
		DiscussionEndAt:   e.discussAt,
		VotingEndAt:       e.votingAt,
		ReadyParticipants: e.readyList(),
		Deaths:            slices.Clone(e.deaths),
		Winner:            e.winner,
		Version:           e.version,
	}
	if e.phase == models.PhaseResults {
		s.StartingRoles = e.startingCopy()
	}
	return s, nil
}

func (e *Engine) GetPrivateView(_ context.Context, id uuid.UUID) (models.PrivateViewState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isParticipant(id) {
		return models.PrivateViewState{}, engine.Reject("get_private_view", "not a participant")
	}
	v := models.PrivateViewState{
		Phase:             e.phase,
		ParticipantCount:  len(e.participants),
		ReadyCount:        len(e.ready),
		DiscussionSeconds: e.cfg.DiscussionSeconds,
		VotingSeconds:     e.cfg.VotingSeconds,
		Version:           e.version,
	}
	if e.phase == models.PhaseSetup {
		return v, nil
	}

	v.StartingRole = e.starting[id]
	v.IsReady = e.ready[id]
	v.NightStep = e.step
	v.NightTotal = len(e.order)
	if e.phase == models.PhaseNight && e.step < len(e.order) && e.order[e.step].ParticipantID == id {
		v.IsMyTurn = true
		v.NightRole = e.order[e.step].Role
	}
	v.PrivateResults = slices.Clone(e.results[id])
	if v.StartingRole == roles.Werewolf {
		v.WerewolfAllies = e.holders(roles.Werewolf)
	}
	v.DiscussionEndAt = e.discussAt
	v.VotingEndAt = e.votingAt
	if target, ok := e.votes[id]; ok {
		v.MyVote = &target
	}
	if e.phase == models.PhaseResults {
		v.FinalRole = e.board[models.ParticipantPosition(id)]
		v.Deaths = slices.Clone(e.deaths)
		v.Winner = e.winner
		v.Votes = e.votesCopy()
		v.StartingRoles = e.startingCopy()
	}
	return v, nil
}

func (e *Engine) ListParticipants(_ context.Context) ([]models.Participant, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.participants), nil
}

// Join adds a participant. The first to join administers the session.
func (e *Engine) Join(ctx context.Context, name string) (models.Participant, error) {
	const op = "join"
	name = strings.TrimSpace(name)
	e.mu.Lock()
	if name == "" {
		e.mu.Unlock()
		return models.Participant{}, engine.Reject(op, "name is required")
	}
	if e.phase != models.PhaseSetup {
		e.mu.Unlock()
		return models.Participant{}, engine.Reject(op, "game already started")
	}
	for _, p := range e.participants {
		if strings.EqualFold(p.Name, name) {
			e.mu.Unlock()
			return models.Participant{}, engine.Reject(op, "name %q is taken", name)
		}
	}
	p := models.Participant{
		ID:       uuid.New(),
		Name:     name,
		IsAdmin:  len(e.participants) == 0,
		JoinedAt: e.clock.Now(),
	}
	e.participants = append(e.participants, p)
	e.version++
	e.mu.Unlock()

	log.Info().Str("participant_id", p.ID.String()).Str("name", name).Msg("participant joined")
	e.publish(ctx, notify.TableState)
	return p, nil
}

// ConfigureSession validates the role pool, deals and moves to the deal
// phase.
func (e *Engine) ConfigureSession(ctx context.Context, cfg engine.SessionConfig) error {
	const op = "configure_session"
	e.mu.Lock()
	if e.phase != models.PhaseSetup {
		e.mu.Unlock()
		return engine.Reject(op, "session is not in setup")
	}
	if err := roles.ValidatePool(cfg.RoleSet, len(e.participants)); err != nil {
		e.mu.Unlock()
		return engine.Reject(op, "%s", err.Error())
	}
	if cfg.DiscussionSeconds <= 0 || cfg.VotingSeconds <= 0 {
		e.mu.Unlock()
		return engine.Reject(op, "timers must be positive")
	}
	e.cfg = cfg
	e.cfg.RoleSet = slices.Clone(cfg.RoleSet)
	e.configured = true
	e.deal()
	e.mu.Unlock()

	log.Info().Int("participants", e.participantCount()).Msg("session configured")
	e.publish(ctx, notify.TableState)
	return nil
}

func (e *Engine) MarkReady(ctx context.Context, id uuid.UUID) error {
	const op = "mark_ready"
	e.mu.Lock()
	if !e.isParticipant(id) {
		e.mu.Unlock()
		return engine.Reject(op, "not a participant")
	}
	if e.phase != models.PhaseDeal {
		e.mu.Unlock()
		return engine.Reject(op, "nothing to be ready for")
	}
	e.ready[id] = true
	if len(e.ready) == len(e.participants) {
		e.phase = models.PhaseNight
		e.step = 0
		e.settleNight()
	}
	e.version++
	e.mu.Unlock()

	e.publish(ctx, notify.TableState)
	return nil
}

func (e *Engine) SubmitNightAction(ctx context.Context, a engine.NightAction) (models.ActionResult, error) {
	const op = "submit_night_action"
	e.mu.Lock()
	if e.phase != models.PhaseNight || e.step >= len(e.order) {
		e.mu.Unlock()
		return models.ActionResult{}, engine.Reject(op, "no night step in progress")
	}
	cur := e.order[e.step]
	if cur.ParticipantID != a.ParticipantID {
		e.mu.Unlock()
		return models.ActionResult{}, engine.Reject(op, "not your turn")
	}
	res, err := e.resolve(cur, a)
	if err != nil {
		e.mu.Unlock()
		return models.ActionResult{}, err
	}
	e.results[a.ParticipantID] = append(e.results[a.ParticipantID], res)
	e.step++
	e.settleNight()
	e.version++
	e.mu.Unlock()

	log.Info().Str("participant_id", a.ParticipantID.String()).Str("action", string(a.Kind)).Str("result", string(res.Kind)).Msg("night action resolved")
	e.publish(ctx, notify.TableState)
	return res, nil
}

func (e *Engine) SkipCurrentStep(ctx context.Context) error {
	e.mu.Lock()
	if e.phase != models.PhaseNight || e.step >= len(e.order) {
		e.mu.Unlock()
		return engine.Reject("skip_current_step", "no night step in progress")
	}
	skipped := e.order[e.step]
	e.step++
	e.settleNight()
	e.version++
	e.mu.Unlock()

	log.Info().Int("step", skipped.Step).Str("role", string(skipped.Role)).Msg("night step skipped")
	e.publish(ctx, notify.TableState)
	return nil
}

func (e *Engine) BeginVoting(ctx context.Context) error {
	e.mu.Lock()
	if e.phase != models.PhaseDiscussion {
		e.mu.Unlock()
		return engine.Reject("begin_voting", "discussion is not in progress")
	}
	e.phase = models.PhaseVoting
	end := e.clock.Now().Add(time.Duration(e.cfg.VotingSeconds) * time.Second)
	e.votingAt = &end
	e.version++
	e.mu.Unlock()

	e.publish(ctx, notify.TableState)
	return nil
}

func (e *Engine) SubmitVote(ctx context.Context, id, target uuid.UUID) error {
	const op = "submit_vote"
	e.mu.Lock()
	if e.phase != models.PhaseVoting {
		e.mu.Unlock()
		return engine.Reject(op, "voting is closed")
	}
	if !e.isParticipant(id) || !e.isParticipant(target) {
		e.mu.Unlock()
		return engine.Reject(op, "unknown participant")
	}
	e.votes[id] = target
	e.version++
	e.mu.Unlock()

	e.publish(ctx, notify.TableVotes)
	return nil
}

func (e *Engine) EndVoting(ctx context.Context) error {
	e.mu.Lock()
	if e.phase != models.PhaseVoting {
		e.mu.Unlock()
		return engine.Reject("end_voting", "voting is not in progress")
	}
	e.deaths = Tally(e.participants, e.votes, e.cfg.TieAllDie)
	e.winner = e.decideWinner()
	e.phase = models.PhaseResults
	e.version++
	deaths, winner := len(e.deaths), e.winner
	e.mu.Unlock()

	log.Info().Int("deaths", deaths).Str("winner", winner).Msg("voting ended")
	e.publish(ctx, notify.TableState)
	return nil
}

// Rematch deals a fresh game to the same participants with the same setup.
func (e *Engine) Rematch(ctx context.Context) error {
	e.mu.Lock()
	if e.phase != models.PhaseResults || !e.configured {
		e.mu.Unlock()
		return engine.Reject("rematch", "game has not finished")
	}
	e.deal()
	e.mu.Unlock()

	e.publish(ctx, notify.TableState)
	return nil
}

// Tally returns who dies. A vote for oneself is a vote for nobody. Only
// targets with more than one vote can die; a tie for the most votes kills
// every tied target when tieAllDie is set and nobody otherwise.
func Tally(participants []models.Participant, votes map[uuid.UUID]uuid.UUID, tieAllDie bool) []uuid.UUID {
	counts := make(map[uuid.UUID]int)
	for voter, target := range votes {
		if voter != target {
			counts[target]++
		}
	}
	most := 0
	for _, n := range counts {
		most = max(most, n)
	}
	if most < 2 {
		return nil
	}
	var top []uuid.UUID
	for _, p := range participants {
		if counts[p.ID] == most {
			top = append(top, p.ID)
		}
	}
	if len(top) > 1 && !tieAllDie {
		return nil
	}
	return top
}

// deal shuffles the role set onto the board. Callers hold mu.
func (e *Engine) deal() {
	pool := slices.Clone(e.cfg.RoleSet)
	e.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	e.board = make(map[models.Position]models.RoleID, len(pool))
	e.starting = make(map[uuid.UUID]models.RoleID, len(e.participants))
	for i, p := range e.participants {
		e.board[models.ParticipantPosition(p.ID)] = pool[i]
		e.starting[p.ID] = pool[i]
	}
	for i, pos := range models.CenterPositions() {
		e.board[pos] = pool[len(e.participants)+i]
	}
	e.ready = make(map[uuid.UUID]bool)
	e.results = make(map[uuid.UUID][]models.ActionResult)
	e.votes = make(map[uuid.UUID]uuid.UUID)
	e.deaths = nil
	e.winner = ""
	e.discussAt = nil
	e.votingAt = nil
	e.step = 0
	e.order = e.nightOrder()
	e.phase = models.PhaseDeal
	e.version++
}

// nightOrder lists acting participants in role wake order. Werewolves act
// only when a single one was dealt and lone wolf peeking is on.
func (e *Engine) nightOrder() []models.NightStep {
	var order []models.NightStep
	for _, role := range roles.NightOrder() {
		holders := e.holders(role)
		if role == roles.Werewolf && (!e.cfg.LoneWolfPeek || len(holders) != 1) {
			continue
		}
		for _, id := range holders {
			order = append(order, models.NightStep{Step: len(order), Role: role, ParticipantID: id})
		}
	}
	return order
}

// publicOrder is the night order as everyone may see it. Who wakes is
// public, which role they wake as is not until results.
func (e *Engine) publicOrder() []models.NightStep {
	order := slices.Clone(e.order)
	if e.phase == models.PhaseResults {
		return order
	}
	for i := range order {
		order[i].Role = ""
	}
	return order
}

// settleNight moves to discussion once every step is done.
func (e *Engine) settleNight() {
	if e.phase != models.PhaseNight || e.step < len(e.order) {
		return
	}
	e.phase = models.PhaseDiscussion
	end := e.clock.Now().Add(time.Duration(e.cfg.DiscussionSeconds) * time.Second)
	e.discussAt = &end
}

func (e *Engine) resolve(cur models.NightStep, a engine.NightAction) (models.ActionResult, error) {
	const op = "submit_night_action"
	want, count, centerOnly := expected(cur.Role, a.Kind)
	if want == "" || a.Kind != want {
		return models.ActionResult{}, engine.Reject(op, "%s cannot %s", roles.Name(cur.Role), a.Kind)
	}
	if len(a.Targets) != count {
		return models.ActionResult{}, engine.Reject(op, "expected %d target(s), got %d", count, len(a.Targets))
	}
	seen := make(map[models.Position]bool, len(a.Targets))
	for _, pos := range a.Targets {
		id, _, isCenter, err := pos.Parse()
		if err != nil {
			return models.ActionResult{}, engine.Reject(op, "%s", err.Error())
		}
		if isCenter != centerOnly {
			return models.ActionResult{}, engine.Reject(op, "invalid target %s", pos)
		}
		if !isCenter && (id == cur.ParticipantID || !e.isParticipant(id)) {
			return models.ActionResult{}, engine.Reject(op, "invalid target %s", pos)
		}
		if seen[pos] {
			return models.ActionResult{}, engine.Reject(op, "duplicate target %s", pos)
		}
		seen[pos] = true
	}

	switch a.Kind {
	case models.ActionLookCenter:
		if count == 1 {
			return models.ActionResult{Kind: models.ResultSawRole, Roles: []models.RoleID{e.board[a.Targets[0]]}}, nil
		}
		return models.ActionResult{Kind: models.ResultSawRoles, Roles: []models.RoleID{e.board[a.Targets[0]], e.board[a.Targets[1]]}}, nil
	case models.ActionLookPlayer:
		return models.ActionResult{Kind: models.ResultSawRole, Roles: []models.RoleID{e.board[a.Targets[0]]}}, nil
	case models.ActionSwapWithSelf:
		self := models.ParticipantPosition(cur.ParticipantID)
		e.board[self], e.board[a.Targets[0]] = e.board[a.Targets[0]], e.board[self]
		return models.ActionResult{Kind: models.ResultNewRole, Roles: []models.RoleID{e.board[self]}, Robbed: a.Targets[0]}, nil
	default:
		e.board[a.Targets[0]], e.board[a.Targets[1]] = e.board[a.Targets[1]], e.board[a.Targets[0]]
		return models.ActionResult{Kind: models.ResultSwapped}, nil
	}
}

// expected returns the action shape a role may submit for kind.
func expected(role models.RoleID, kind models.ActionKind) (want models.ActionKind, count int, centerOnly bool) {
	switch role {
	case roles.Werewolf:
		return models.ActionLookCenter, 1, true
	case roles.Seer:
		if kind == models.ActionLookCenter {
			return models.ActionLookCenter, 2, true
		}
		return models.ActionLookPlayer, 1, false
	case roles.Robber:
		return models.ActionSwapWithSelf, 1, false
	case roles.Troublemaker:
		return models.ActionSwapPlayers, 2, false
	}
	return "", 0, false
}

// decideWinner applies end-of-game rules to final roles. Callers hold mu.
func (e *Engine) decideWinner() string {
	werewolfAlive := false
	for _, p := range e.participants {
		if e.board[models.ParticipantPosition(p.ID)] == roles.Werewolf {
			werewolfAlive = true
		}
	}
	for _, id := range e.deaths {
		if e.board[models.ParticipantPosition(id)] == roles.Tanner {
			return WinnerTanner
		}
	}
	for _, id := range e.deaths {
		if e.board[models.ParticipantPosition(id)] == roles.Werewolf {
			return WinnerVillage
		}
	}
	if !werewolfAlive && len(e.deaths) == 0 {
		return WinnerVillage
	}
	return WinnerWerewolf
}

func (e *Engine) holders(role models.RoleID) []uuid.UUID {
	var out []uuid.UUID
	for _, p := range e.participants {
		if e.starting[p.ID] == role {
			out = append(out, p.ID)
		}
	}
	return out
}

func (e *Engine) isParticipant(id uuid.UUID) bool {
	return slices.ContainsFunc(e.participants, func(p models.Participant) bool { return p.ID == id })
}

func (e *Engine) readyList() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(e.ready))
	for _, p := range e.participants {
		if e.ready[p.ID] {
			out = append(out, p.ID)
		}
	}
	return out
}

func (e *Engine) startingCopy() map[uuid.UUID]models.RoleID {
	out := make(map[uuid.UUID]models.RoleID, len(e.starting))
	for k, v := range e.starting {
		out[k] = v
	}
	return out
}

func (e *Engine) votesCopy() map[uuid.UUID]uuid.UUID {
	out := make(map[uuid.UUID]uuid.UUID, len(e.votes))
	for k, v := range e.votes {
		out[k] = v
	}
	return out
}

func (e *Engine) participantCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.participants)
}

func (e *Engine) publish(ctx context.Context, table notify.Table) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, table); err != nil {
		log.Warn().Err(err).Str("table", string(table)).Msg("failed to publish change signal")
	}
}
