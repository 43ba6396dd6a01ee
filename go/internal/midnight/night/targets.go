package night

import (
	"github.com/google/uuid"

	"github.com/roscoeevans/Skulking/go/internal/midnight/roles"
	"github.com/roscoeevans/Skulking/go/internal/models"
)

// SeerMode picks between the seer's two actions.
type SeerMode string

const (
	SeerOnePlayer  SeerMode = "player"
	SeerTwoCenters SeerMode = "center"
)

// ActionSpec is the submission contract for the acting role.
type ActionSpec struct {
	Role        models.RoleID
	Kind        models.ActionKind
	Selectable  []models.Position
	Required    int
	Instruction string
}

// Allows reports whether pos may be selected.
func (s ActionSpec) Allows(pos models.Position) bool {
	for _, p := range s.Selectable {
		if p == pos {
			return true
		}
	}
	return false
}

// SpecFor returns the contract for role acting as self. Roles without a
// night action report false.
func SpecFor(role models.RoleID, self uuid.UUID, participants []models.Participant, mode SeerMode) (ActionSpec, bool) {
	switch role {
	case roles.Werewolf:
		return ActionSpec{
			Role:        role,
			Kind:        models.ActionLookCenter,
			Selectable:  models.CenterPositions(),
			Required:    1,
			Instruction: "You are the lone Werewolf. Choose a center card to peek at.",
		}, true
	case roles.Seer:
		if mode == SeerTwoCenters {
			return ActionSpec{
				Role:        role,
				Kind:        models.ActionLookCenter,
				Selectable:  models.CenterPositions(),
				Required:    2,
				Instruction: "Choose two center cards to look at.",
			}, true
		}
		return ActionSpec{
			Role:        role,
			Kind:        models.ActionLookPlayer,
			Selectable:  others(self, participants),
			Required:    1,
			Instruction: "Choose one player's card to look at.",
		}, true
	case roles.Robber:
		return ActionSpec{
			Role:        role,
			Kind:        models.ActionSwapWithSelf,
			Selectable:  others(self, participants),
			Required:    1,
			Instruction: "Choose a player to swap cards with. You'll see your new role.",
		}, true
	case roles.Troublemaker:
		return ActionSpec{
			Role:        role,
			Kind:        models.ActionSwapPlayers,
			Selectable:  others(self, participants),
			Required:    2,
			Instruction: "Choose two players to swap their cards.",
		}, true
	}
	return ActionSpec{}, false
}

func others(self uuid.UUID, participants []models.Participant) []models.Position {
	out := make([]models.Position, 0, len(participants))
	for _, p := range participants {
		if p.ID != self {
			out = append(out, models.ParticipantPosition(p.ID))
		}
	}
	return out
}
