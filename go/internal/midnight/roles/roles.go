package roles

import (
	"sort"

	"github.com/roscoeevans/Skulking/go/internal/models"
)

// Team is the side a role wins with.
type Team string

const (
	TeamVillage  Team = "village"
	TeamWerewolf Team = "werewolf"
	TeamTanner   Team = "tanner"
)

const (
	Werewolf     models.RoleID = "werewolf"
	Seer         models.RoleID = "seer"
	Robber       models.RoleID = "robber"
	Troublemaker models.RoleID = "troublemaker"
	Tanner       models.RoleID = "tanner"
	Villager     models.RoleID = "villager"
)

// Definition is a static catalog entry. NightOrder 0 means no night action.
type Definition struct {
	ID               models.RoleID
	Name             string
	Emoji            string
	Team             Team
	NightOrder       int
	NightDescription string
	DiscussionTip    string
	MaxCount         int
}

var catalog = map[models.RoleID]Definition{
	Werewolf: {
		ID:               Werewolf,
		Name:             "Werewolf",
		Emoji:            "🐺",
		Team:             TeamWerewolf,
		NightOrder:       1,
		NightDescription: "Open your eyes and look for other Werewolves. If you are the only Werewolf, you may look at one center card.",
		DiscussionTip:    "Blend in. Deflect suspicion. Claim a village role.",
		MaxCount:         3,
	},
	Seer: {
		ID:               Seer,
		Name:             "Seer",
		Emoji:            "🔮",
		Team:             TeamVillage,
		NightOrder:       2,
		NightDescription: "Look at one other player's card, or two center cards.",
		DiscussionTip:    "Share what you learned, but be careful: a Werewolf might claim Seer too.",
		MaxCount:         1,
	},
	Robber: {
		ID:               Robber,
		Name:             "Robber",
		Emoji:            "🦝",
		Team:             TeamVillage,
		NightOrder:       3,
		NightDescription: "Swap your card with another player's card and look at your new role.",
		DiscussionTip:    "You know your NEW role. If you robbed a Werewolf, you're now on their team!",
		MaxCount:         1,
	},
	Troublemaker: {
		ID:               Troublemaker,
		Name:             "Troublemaker",
		Emoji:            "🃏",
		Team:             TeamVillage,
		NightOrder:       4,
		NightDescription: "Swap the cards of two OTHER players without looking at them.",
		DiscussionTip:    "You know who got swapped, but not what they became.",
		MaxCount:         1,
	},
	Tanner: {
		ID:               Tanner,
		Name:             "Tanner",
		Emoji:            "💀",
		Team:             TeamTanner,
		NightOrder:       0,
		NightDescription: "No night action. Your goal is to get yourself killed during the vote.",
		DiscussionTip:    "Act suspicious enough to get voted out, but not so obvious that people catch on.",
		MaxCount:         1,
	},
	Villager: {
		ID:               Villager,
		Name:             "Villager",
		Emoji:            "🧑‍🌾",
		Team:             TeamVillage,
		NightOrder:       0,
		NightDescription: "No night action. Sleep soundly.",
		DiscussionTip:    "You have no information. Rely on logic and reading people.",
		MaxCount:         5,
	},
}

// Lookup returns the definition for id.
func Lookup(id models.RoleID) (Definition, bool) {
	d, ok := catalog[id]
	return d, ok
}

// All returns every role, night actors first in night order, then the rest
// by id.
func All() []Definition {
	out := make([]Definition, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.NightOrder == 0) != (b.NightOrder == 0) {
			return a.NightOrder != 0
		}
		if a.NightOrder != b.NightOrder {
			return a.NightOrder < b.NightOrder
		}
		return a.ID < b.ID
	})
	return out
}

// NightOrder lists the roles that act at night, in the order they act.
func NightOrder() []models.RoleID {
	var out []models.RoleID
	for _, d := range All() {
		if d.NightOrder > 0 {
			out = append(out, d.ID)
		}
	}
	return out
}

// Name returns a display name, falling back to the raw id for unknown roles.
func Name(id models.RoleID) string {
	if d, ok := catalog[id]; ok {
		return d.Name
	}
	return string(id)
}
