package roles

import (
	"errors"
	"testing"
	"testing/quick"

	"github.com/roscoeevans/Skulking/go/internal/models"
)

func TestNightOrder(t *testing.T) {
	want := []models.RoleID{Werewolf, Seer, Robber, Troublemaker}
	got := NightOrder()
	if len(got) != len(want) {
		t.Fatalf("Expected %d night roles, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected night order %v, got %v", want, got)
			break
		}
	}
}

func TestLookup(t *testing.T) {
	d, ok := Lookup(Robber)
	if !ok || d.Name != "Robber" || d.Team != TeamVillage {
		t.Errorf("Expected robber definition, got %+v (found=%v)", d, ok)
	}
	if _, ok := Lookup("mason"); ok {
		t.Errorf("Expected unknown role to be missing")
	}
	if Name("mason") != "mason" {
		t.Errorf("Expected raw id for unknown role name")
	}
}

func TestPresetFillsWithVillagers(t *testing.T) {
	f := func(n uint8) bool {
		participants := int(n%4) + 3
		for _, name := range []string{PresetBeginner, PresetStandard, PresetChaotic, "bogus"} {
			pool := Expand(Preset(name, participants))
			if len(pool) != CardCount(participants) {
				t.Errorf("Expected %d cards for preset %s, got %d", CardCount(participants), name, len(pool))
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 20}); err != nil {
		t.Error(err)
	}
}

func TestUnknownPresetIsStandard(t *testing.T) {
	a := Preset("bogus", 5)
	b := Preset(PresetStandard, 5)
	for id, n := range b {
		if a[id] != n {
			t.Errorf("Expected %s=%d, got %d", id, n, a[id])
		}
	}
}

func TestValidatePool(t *testing.T) {
	tests := []struct {
		name  string
		pool  []models.RoleID
		count int
		want  error
	}{
		{"standard five", Expand(Preset(PresetStandard, 5)), 5, nil},
		{"short", []models.RoleID{Werewolf, Seer}, 3, ErrWrongCardCount},
		{"no wolf", []models.RoleID{Seer, Robber, Troublemaker, Villager, Villager, Villager}, 3, ErrNoWerewolf},
		{"two seers", []models.RoleID{Werewolf, Seer, Seer, Villager, Villager, Villager}, 3, ErrTooManyCopies},
		{"unknown", []models.RoleID{Werewolf, "mason", Villager, Villager, Villager, Villager}, 3, ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePool(tt.pool, tt.count)
			if tt.want == nil && err != nil {
				t.Errorf("Expected valid pool, got %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}
