package models

import (
	"time"

	"github.com/google/uuid"
)

// PrivateViewState is the engine's projection of the game for one
// participant. It is the only source the client renders hidden information
// from.
type PrivateViewState struct {
	Phase             Phase `json:"phase"`
	ParticipantCount  int   `json:"player_count"`
	ReadyCount        int   `json:"ready_count"`
	DiscussionSeconds int   `json:"discussion_seconds"`
	VotingSeconds     int   `json:"voting_seconds"`
	Version           int64 `json:"state_version"`

	StartingRole RoleID `json:"starting_role,omitempty"`
	IsReady      bool   `json:"is_ready,omitempty"`

	NightStep      int            `json:"night_step,omitempty"`
	NightTotal     int            `json:"night_total,omitempty"`
	IsMyTurn       bool           `json:"is_my_turn,omitempty"`
	NightRole      RoleID         `json:"night_role,omitempty"`
	PrivateResults []ActionResult `json:"private_results,omitempty"`
	WerewolfAllies []uuid.UUID    `json:"werewolf_allies,omitempty"`

	DiscussionEndAt *time.Time `json:"discussion_end_at,omitempty"`
	VotingEndAt     *time.Time `json:"voting_end_at,omitempty"`
	MyVote          *uuid.UUID `json:"my_vote,omitempty"`

	FinalRole     RoleID                  `json:"final_role,omitempty"`
	Deaths        []uuid.UUID             `json:"deaths,omitempty"`
	Winner        string                  `json:"winner,omitempty"`
	Votes         map[uuid.UUID]uuid.UUID `json:"votes,omitempty"`
	StartingRoles map[uuid.UUID]RoleID    `json:"starting_roles,omitempty"`
}

// Participant is a member of a session.
type Participant struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsAdmin  bool      `json:"is_admin"`
	JoinedAt time.Time `json:"joined_at"`
}
