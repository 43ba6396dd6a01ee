// Package engine describes the remote authoritative game engine and carries
// its connect transport. The engine resolves actions, orders turns and
// decides winners; the client only calls it and observes it.
package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/roscoeevans/Skulking/go/internal/models"
)

// SessionConfig is the admin's setup for a game.
type SessionConfig struct {
	RoleSet           []models.RoleID `json:"role_set"`
	DiscussionSeconds int             `json:"discussion_seconds"`
	VotingSeconds     int             `json:"voting_seconds"`
	LoneWolfPeek      bool            `json:"lone_wolf_peek"`
	TieAllDie         bool            `json:"tie_all_die"`
}

// DefaultSessionConfig returns setup defaults with an empty role set.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		DiscussionSeconds: 300,
		VotingSeconds:     30,
		LoneWolfPeek:      true,
		TieAllDie:         true,
	}
}

// NightAction is one participant's night move.
type NightAction struct {
	ParticipantID uuid.UUID         `json:"player"`
	Kind          models.ActionKind `json:"action_type"`
	Targets       []models.Position `json:"targets"`
}

// VersionReader is the cheap version-only read used before a full refetch.
type VersionReader interface {
	StateVersion(ctx context.Context) (int64, error)
}

// Engine is the remote engine contract.
type Engine interface {
	VersionReader

	GetPrivateView(ctx context.Context, participantID uuid.UUID) (models.PrivateViewState, error)
	GetPublicState(ctx context.Context) (models.PublicGameState, error)
	ListParticipants(ctx context.Context) ([]models.Participant, error)
	Join(ctx context.Context, name string) (models.Participant, error)

	ConfigureSession(ctx context.Context, cfg SessionConfig) error
	MarkReady(ctx context.Context, participantID uuid.UUID) error
	SubmitNightAction(ctx context.Context, action NightAction) (models.ActionResult, error)
	SkipCurrentStep(ctx context.Context) error
	BeginVoting(ctx context.Context) error
	SubmitVote(ctx context.Context, participantID, target uuid.UUID) error
	EndVoting(ctx context.Context) error
	Rematch(ctx context.Context) error
}
