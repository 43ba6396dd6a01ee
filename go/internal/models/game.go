package models

import (
	"time"

	"github.com/google/uuid"
)

// Phase is the coarse game phase reported by the engine.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseDeal       Phase = "deal"
	PhaseNight      Phase = "night"
	PhaseDiscussion Phase = "discussion"
	PhaseVoting     Phase = "voting"
	PhaseResults    Phase = "results"
)

// SessionType identifies which game a session is running.
type SessionType string

const (
	SessionTypeMidnight    SessionType = "midnight_society"
	SessionTypeTrickTaking SessionType = "skulking"
)

// RoleID is the identity key of a role in the role catalog.
type RoleID string

// NightStep pairs a step index with the participant acting in it.
type NightStep struct {
	Step          int       `json:"step"`
	Role          RoleID    `json:"role"`
	ParticipantID uuid.UUID `json:"player_id"`
}

// PublicGameState is the engine's shared game record. Clients hold a
// read-only cached copy.
type PublicGameState struct {
	RoleSet           []RoleID             `json:"role_set"`
	NightStep         int                  `json:"night_step"`
	NightOrder        []NightStep          `json:"night_order"`
	DiscussionSeconds int                  `json:"discussion_seconds"`
	VotingSeconds     int                  `json:"voting_seconds"`
	LoneWolfPeek      bool                 `json:"lone_wolf_peek"`
	TieAllDie         bool                 `json:"tie_all_die"`
	DiscussionEndAt   *time.Time           `json:"discussion_end_at,omitempty"`
	VotingEndAt       *time.Time           `json:"voting_end_at,omitempty"`
	StartingRoles     map[uuid.UUID]RoleID `json:"starting_roles,omitempty"`
	ReadyParticipants []uuid.UUID          `json:"ready_players"`
	Deaths            []uuid.UUID          `json:"deaths"`
	Winner            string               `json:"winner"`
	Version           int64                `json:"state_version"`
}

// CurrentStep returns the night step currently acting, if any.
func (s *PublicGameState) CurrentStep() (NightStep, bool) {
	if s.NightStep < 0 || s.NightStep >= len(s.NightOrder) {
		return NightStep{}, false
	}
	return s.NightOrder[s.NightStep], true
}
