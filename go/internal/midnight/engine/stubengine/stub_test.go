package stubengine

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/roscoeevans/Skulking/go/internal/midnight/engine"
	"github.com/roscoeevans/Skulking/go/internal/midnight/notify"
	"github.com/roscoeevans/Skulking/go/internal/midnight/roles"
	"github.com/roscoeevans/Skulking/go/internal/models"
)

func joinAll(t *testing.T, e *Engine, names ...string) []models.Participant {
	t.Helper()
	var out []models.Participant
	for _, n := range names {
		p, err := e.Join(context.Background(), n)
		if err != nil {
			t.Fatalf("Expected %s to join, got %v", n, err)
		}
		out = append(out, p)
	}
	return out
}

func standardConfig(n int) engine.SessionConfig {
	cfg := engine.DefaultSessionConfig()
	cfg.RoleSet = roles.Expand(roles.Preset(roles.PresetStandard, n))
	return cfg
}

// actFor builds a legal action for whoever holds the current step.
func actFor(step models.NightStep, ps []models.Participant) engine.NightAction {
	var others []models.Position
	for _, p := range ps {
		if p.ID != step.ParticipantID {
			others = append(others, models.ParticipantPosition(p.ID))
		}
	}
	a := engine.NightAction{ParticipantID: step.ParticipantID}
	switch step.Role {
	case roles.Werewolf:
		a.Kind, a.Targets = models.ActionLookCenter, models.CenterPositions()[:1]
	case roles.Seer:
		a.Kind, a.Targets = models.ActionLookPlayer, others[:1]
	case roles.Robber:
		a.Kind, a.Targets = models.ActionSwapWithSelf, others[:1]
	case roles.Troublemaker:
		a.Kind, a.Targets = models.ActionSwapPlayers, others[:2]
	}
	return a
}

func TestFirstJoinerIsAdmin(t *testing.T) {
	e := New(clockwork.NewFakeClock(), nil, 1)
	ps := joinAll(t, e, "ana", "ben")
	if !ps[0].IsAdmin || ps[1].IsAdmin {
		t.Errorf("Expected only the first joiner to be admin, got %+v", ps)
	}
	if _, err := e.Join(context.Background(), "ANA"); err == nil {
		t.Errorf("Expected duplicate name to be rejected")
	}
}

func TestConfigureRejectsBadPool(t *testing.T) {
	e := New(clockwork.NewFakeClock(), nil, 1)
	joinAll(t, e, "ana", "ben", "cy")
	cfg := engine.DefaultSessionConfig()
	cfg.RoleSet = []models.RoleID{roles.Villager, roles.Villager, roles.Villager, roles.Villager, roles.Villager, roles.Villager}
	err := e.ConfigureSession(context.Background(), cfg)
	var v *engine.ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if e.phase != models.PhaseSetup {
		t.Errorf("Expected phase to stay setup, got %s", e.phase)
	}
}

func TestFullRoundPublishesAndVersions(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	hub := notify.NewHub()
	e := New(clock, hub, 7)

	ps := joinAll(t, e, "ana", "ben", "cy", "dee")
	if err := e.ConfigureSession(ctx, standardConfig(len(ps))); err != nil {
		t.Fatal(err)
	}
	before, _ := e.StateVersion(ctx)
	for _, p := range ps {
		if err := e.MarkReady(ctx, p.ID); err != nil {
			t.Fatal(err)
		}
	}
	after, _ := e.StateVersion(ctx)
	if after <= before {
		t.Errorf("Expected version to grow, got %d then %d", before, after)
	}

	for {
		pub, _ := e.GetPublicState(ctx)
		step, ok := pub.CurrentStep()
		if !ok {
			break
		}
		if step.Role != "" {
			t.Fatalf("Expected the public night order to hide roles, got %s", step.Role)
		}
		view, err := e.GetPrivateView(ctx, step.ParticipantID)
		if err != nil {
			t.Fatal(err)
		}
		if !view.IsMyTurn || view.NightRole == "" {
			t.Fatalf("Expected the actor to be told it is their turn, got %+v", view)
		}
		step.Role = view.NightRole
		res, err := e.SubmitNightAction(ctx, actFor(step, ps))
		if err != nil {
			t.Fatalf("Expected %s action to resolve, got %v", step.Role, err)
		}
		if err := res.Validate(); err != nil {
			t.Errorf("Expected a well-formed result, got %v", err)
		}
		view, _ = e.GetPrivateView(ctx, step.ParticipantID)
		if len(view.PrivateResults) == 0 {
			t.Errorf("Expected the result to be recorded for %s", step.Role)
		}
	}

	view, _ := e.GetPrivateView(ctx, ps[0].ID)
	if view.Phase != models.PhaseDiscussion || view.DiscussionEndAt == nil {
		t.Fatalf("Expected discussion with a deadline, got %+v", view)
	}
	if err := e.BeginVoting(ctx); err != nil {
		t.Fatal(err)
	}
	for _, p := range ps {
		if err := e.SubmitVote(ctx, p.ID, ps[1].ID); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.EndVoting(ctx); err != nil {
		t.Fatal(err)
	}
	view, _ = e.GetPrivateView(ctx, ps[0].ID)
	if view.Phase != models.PhaseResults || view.Winner == "" || len(view.Deaths) != 1 || view.Deaths[0] != ps[1].ID {
		t.Errorf("Expected results with ben dead, got %+v", view)
	}
	pub, _ := e.GetPublicState(ctx)
	for _, step := range pub.NightOrder {
		if step.Role == "" {
			t.Errorf("Expected results to reveal the role of step %d", step.Step)
		}
	}

	if err := e.Rematch(ctx); err != nil {
		t.Fatal(err)
	}
	view, _ = e.GetPrivateView(ctx, ps[0].ID)
	if view.Phase != models.PhaseDeal || len(view.PrivateResults) != 0 || view.IsReady {
		t.Errorf("Expected a fresh deal, got %+v", view)
	}
}

func TestWrongTurnIsRejected(t *testing.T) {
	ctx := context.Background()
	e := New(clockwork.NewFakeClock(), nil, 3)
	ps := joinAll(t, e, "ana", "ben", "cy")
	_ = e.ConfigureSession(ctx, standardConfig(len(ps)))
	for _, p := range ps {
		_ = e.MarkReady(ctx, p.ID)
	}
	pub, _ := e.GetPublicState(ctx)
	step, ok := pub.CurrentStep()
	if !ok {
		t.Skip("no night actors dealt to participants")
	}
	view, _ := e.GetPrivateView(ctx, step.ParticipantID)
	step.Role = view.NightRole
	var other uuid.UUID
	for _, p := range ps {
		if p.ID != step.ParticipantID {
			other = p.ID
		}
	}
	a := actFor(step, ps)
	a.ParticipantID = other
	if _, err := e.SubmitNightAction(ctx, a); err == nil {
		t.Errorf("Expected out-of-turn action to be rejected")
	}
	a = actFor(step, ps)
	a.Targets = nil
	if _, err := e.SubmitNightAction(ctx, a); err == nil {
		t.Errorf("Expected missing targets to be rejected")
	}
	v, _ := e.StateVersion(ctx)
	if v != pub.Version {
		t.Errorf("Expected rejected actions to leave version %d, got %d", pub.Version, v)
	}
}

func TestTally(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	ps := []models.Participant{{ID: a}, {ID: b}, {ID: c}, {ID: d}}

	tests := []struct {
		name      string
		votes     map[uuid.UUID]uuid.UUID
		tieAllDie bool
		want      []uuid.UUID
	}{
		{"everyone abstains", map[uuid.UUID]uuid.UUID{a: a, b: b, c: c, d: d}, true, nil},
		{"single votes never kill", map[uuid.UUID]uuid.UUID{a: b, b: c, c: d, d: a}, true, nil},
		{"plurality", map[uuid.UUID]uuid.UUID{a: c, b: c, c: a, d: d}, true, []uuid.UUID{c}},
		{"tie all die", map[uuid.UUID]uuid.UUID{a: c, b: c, c: a, d: a}, true, []uuid.UUID{a, c}},
		{"tie nobody dies", map[uuid.UUID]uuid.UUID{a: c, b: c, c: a, d: a}, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tally(ps, tt.votes, tt.tieAllDie)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestDecideWinner(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	e := New(clockwork.NewFakeClock(), nil, 1)
	e.participants = []models.Participant{{ID: a}, {ID: b}}
	e.board = map[models.Position]models.RoleID{
		models.ParticipantPosition(a): roles.Werewolf,
		models.ParticipantPosition(b): roles.Tanner,
	}

	e.deaths = []uuid.UUID{a, b}
	if w := e.decideWinner(); w != WinnerTanner {
		t.Errorf("Expected tanner, got %s", w)
	}
	e.deaths = []uuid.UUID{a}
	if w := e.decideWinner(); w != WinnerVillage {
		t.Errorf("Expected village, got %s", w)
	}
	e.deaths = nil
	if w := e.decideWinner(); w != WinnerWerewolf {
		t.Errorf("Expected werewolf, got %s", w)
	}
	e.board[models.ParticipantPosition(a)] = roles.Villager
	if w := e.decideWinner(); w != WinnerVillage {
		t.Errorf("Expected village with no werewolf and no deaths, got %s", w)
	}
}
