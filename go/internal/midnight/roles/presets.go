package roles

import (
	"errors"
	"fmt"

	"github.com/roscoeevans/Skulking/go/internal/models"
)

// Preset names.
const (
	PresetBeginner = "beginner"
	PresetStandard = "standard"
	PresetChaotic  = "chaotic"
)

var (
	ErrWrongCardCount = errors.New("role count must equal participants + 3")
	ErrNoWerewolf     = errors.New("at least one werewolf is required")
	ErrTooManyCopies  = errors.New("role exceeds its maximum count")
	ErrUnknownRole    = errors.New("unknown role")
)

// CardCount is the number of cards dealt for a participant count: one each
// plus the center cards.
func CardCount(participants int) int {
	return participants + models.CenterCards
}

// Preset returns role counts for the named preset. Unknown names fall back
// to the standard preset.
func Preset(name string, participants int) map[models.RoleID]int {
	total := CardCount(participants)
	var counts map[models.RoleID]int
	switch name {
	case PresetBeginner:
		counts = map[models.RoleID]int{Werewolf: 2, Seer: 1, Robber: 1}
	case PresetChaotic:
		counts = map[models.RoleID]int{Werewolf: 2, Seer: 1, Robber: 1, Troublemaker: 1, Tanner: 1}
	default:
		counts = map[models.RoleID]int{Werewolf: 2, Seer: 1, Robber: 1, Troublemaker: 1}
	}
	used := 0
	for _, n := range counts {
		used += n
	}
	if v := total - used; v > 0 {
		counts[Villager] = v
	}
	return counts
}

// Expand flattens counts into a role pool in catalog order.
func Expand(counts map[models.RoleID]int) []models.RoleID {
	var pool []models.RoleID
	for _, d := range All() {
		for i := 0; i < counts[d.ID]; i++ {
			pool = append(pool, d.ID)
		}
	}
	return pool
}

// ValidatePool checks a role pool is dealable for the given number of
// participants.
func ValidatePool(pool []models.RoleID, participants int) error {
	counts := make(map[models.RoleID]int, len(pool))
	for _, id := range pool {
		if _, ok := catalog[id]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownRole, id)
		}
		counts[id]++
	}
	if want := CardCount(participants); len(pool) != want {
		return fmt.Errorf("%w: have %d, need %d", ErrWrongCardCount, len(pool), want)
	}
	if counts[Werewolf] < 1 {
		return ErrNoWerewolf
	}
	for id, n := range counts {
		if limit := catalog[id].MaxCount; n > limit {
			return fmt.Errorf("%w: %s x%d (max %d)", ErrTooManyCopies, catalog[id].Name, n, limit)
		}
	}
	return nil
}
