package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// CenterCards is the number of shared face-down positions.
const CenterCards = 3

// Position addresses a card on the board: "P:<participant id>" for a
// participant's card or "C:<n>" for a center card.
type Position string

var ErrInvalidPosition = errors.New("invalid position")

// ParticipantPosition returns the board position of a participant's card.
func ParticipantPosition(id uuid.UUID) Position {
	return Position("P:" + id.String())
}

// CenterPosition returns the board position of the n-th center card.
func CenterPosition(n int) Position {
	return Position("C:" + strconv.Itoa(n))
}

// CenterPositions lists every center position in board order.
func CenterPositions() []Position {
	out := make([]Position, 0, CenterCards)
	for i := 0; i < CenterCards; i++ {
		out = append(out, CenterPosition(i))
	}
	return out
}

// Parse splits a position into either a participant id or a center index.
func (p Position) Parse() (participant uuid.UUID, center int, isCenter bool, err error) {
	prefix, rest, ok := strings.Cut(string(p), ":")
	if !ok {
		return uuid.Nil, 0, false, fmt.Errorf("%w: %q", ErrInvalidPosition, p)
	}
	switch prefix {
	case "P":
		id, err := uuid.Parse(rest)
		if err != nil {
			return uuid.Nil, 0, false, fmt.Errorf("%w: %q", ErrInvalidPosition, p)
		}
		return id, 0, false, nil
	case "C":
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 || n >= CenterCards {
			return uuid.Nil, 0, false, fmt.Errorf("%w: %q", ErrInvalidPosition, p)
		}
		return uuid.Nil, n, true, nil
	default:
		return uuid.Nil, 0, false, fmt.Errorf("%w: %q", ErrInvalidPosition, p)
	}
}

// ActionKind is the tag sent to the engine with a night action.
type ActionKind string

const (
	ActionLookCenter   ActionKind = "LOOK_CENTER"
	ActionLookPlayer   ActionKind = "LOOK_PLAYER"
	ActionSwapWithSelf ActionKind = "SWAP_WITH_SELF"
	ActionSwapPlayers  ActionKind = "SWAP_PLAYERS"
)

// ResultKind enumerates the closed set of night action results.
type ResultKind string

const (
	ResultSawRole  ResultKind = "saw_role"
	ResultSawRoles ResultKind = "saw_roles"
	ResultNewRole  ResultKind = "new_role"
	ResultSwapped  ResultKind = "swapped"
)

var ErrUnknownResult = errors.New("unknown action result")

// ActionResult is what the engine reports back to the acting participant.
// Roles holds one entry for ResultSawRole and ResultNewRole, two for
// ResultSawRoles and none for ResultSwapped.
type ActionResult struct {
	Kind  ResultKind
	Roles []RoleID
	// Robbed is the position taken from when Kind is ResultNewRole.
	Robbed Position
}

// IsReveal reports whether the result carries hidden information the
// participant has to remember.
func (r ActionResult) IsReveal() bool {
	switch r.Kind {
	case ResultSawRole, ResultSawRoles, ResultNewRole:
		return true
	case ResultSwapped:
		return false
	}
	return false
}

// Validate checks the payload matches its kind.
func (r ActionResult) Validate() error {
	switch r.Kind {
	case ResultSawRole, ResultNewRole:
		if len(r.Roles) != 1 {
			return fmt.Errorf("%w: %s wants 1 role, got %d", ErrUnknownResult, r.Kind, len(r.Roles))
		}
	case ResultSawRoles:
		if len(r.Roles) != 2 {
			return fmt.Errorf("%w: %s wants 2 roles, got %d", ErrUnknownResult, r.Kind, len(r.Roles))
		}
	case ResultSwapped:
		if len(r.Roles) != 0 {
			return fmt.Errorf("%w: swapped carries no roles", ErrUnknownResult)
		}
	default:
		return fmt.Errorf("%w: kind %q", ErrUnknownResult, r.Kind)
	}
	return nil
}

type actionResultWire struct {
	SawRole  RoleID   `json:"saw_role,omitempty"`
	SawRoles []RoleID `json:"saw_roles,omitempty"`
	NewRole  RoleID   `json:"new_role,omitempty"`
	Robbed   Position `json:"robbed,omitempty"`
	Swapped  bool     `json:"swapped,omitempty"`
}

// MarshalJSON encodes the result in the engine's keyed object form.
func (r ActionResult) MarshalJSON() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	var w actionResultWire
	switch r.Kind {
	case ResultSawRole:
		w.SawRole = r.Roles[0]
	case ResultSawRoles:
		w.SawRoles = r.Roles
	case ResultNewRole:
		w.NewRole = r.Roles[0]
		w.Robbed = r.Robbed
	case ResultSwapped:
		w.Swapped = true
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the keyed object form. Exactly one result key must
// be present.
func (r *ActionResult) UnmarshalJSON(data []byte) error {
	var w actionResultWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var out ActionResult
	set := 0
	if w.SawRole != "" {
		out = ActionResult{Kind: ResultSawRole, Roles: []RoleID{w.SawRole}}
		set++
	}
	if len(w.SawRoles) > 0 {
		out = ActionResult{Kind: ResultSawRoles, Roles: w.SawRoles}
		set++
	}
	if w.NewRole != "" {
		out = ActionResult{Kind: ResultNewRole, Roles: []RoleID{w.NewRole}, Robbed: w.Robbed}
		set++
	}
	if w.Swapped {
		out = ActionResult{Kind: ResultSwapped}
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: %s", ErrUnknownResult, string(data))
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*r = out
	return nil
}
