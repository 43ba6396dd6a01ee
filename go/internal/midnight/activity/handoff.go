package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// HandoffKey is the session-scoped key the results view reads.
const HandoffKey = "ms_night_activity_results"

// Outcome records one played item. Choice is NoChoice on timeout and
// Correct is nil for polls and timeouts.
type Outcome struct {
	ItemID  string        `json:"item_id"`
	Kind    Kind          `json:"type"`
	Prompt  string        `json:"question"`
	Choice  int           `json:"chosen_index"`
	Correct *bool         `json:"correct"`
	Elapsed time.Duration `json:"-"`
}

// NoChoice is the Choice of a timed-out outcome.
const NoChoice = -1

// Answered reports whether the participant picked an option.
func (o Outcome) Answered() bool {
	return o.Choice != NoChoice
}

// MarshalJSON writes Elapsed as whole milliseconds.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type alias Outcome
	return json.Marshal(struct {
		alias
		Elapsed int64 `json:"time_ms"`
	}{alias(o), o.Elapsed.Milliseconds()})
}

// UnmarshalJSON reads Elapsed from whole milliseconds.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	type alias Outcome
	var w struct {
		alias
		Elapsed int64 `json:"time_ms"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*o = Outcome(w.alias)
	o.Elapsed = time.Duration(w.Elapsed) * time.Millisecond
	return nil
}

// Handoff is what the night hands to its results view.
type Handoff struct {
	Outcomes      []Outcome     `json:"outcomes"`
	Score         int           `json:"score"`
	LifetimeStats LifetimeStats `json:"lifetimeStats"`
}

// WriteHandoff stores h under HandoffKey. Failures are logged only.
func WriteHandoff(ctx context.Context, store Store, h Handoff) {
	if store == nil {
		return
	}
	raw, err := json.Marshal(h)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode activity handoff")
		return
	}
	if err := store.Put(ctx, HandoffKey, raw); err != nil {
		log.Warn().Err(err).Str("key", HandoffKey).Msg("failed to write activity handoff")
	}
}

// ReadHandoff loads the handoff. Missing or malformed data yields an empty
// handoff and false.
func ReadHandoff(ctx context.Context, store Store) (Handoff, bool) {
	if store == nil {
		return Handoff{}, false
	}
	raw, found, err := store.Get(ctx, HandoffKey)
	if err != nil || !found {
		return Handoff{}, false
	}
	var h Handoff
	if err := json.Unmarshal(raw, &h); err != nil {
		log.Warn().Err(err).Str("key", HandoffKey).Msg("corrupt activity handoff, ignoring")
		return Handoff{}, false
	}
	return h, true
}

// Summary is the headline of the results view.
type Summary struct {
	Correct  int
	Answered int
	// Fastest is the quickest answered time, zero when nothing was answered.
	Fastest       time.Duration
	LifetimeLine  string
	LifetimeStats LifetimeStats
}

// Summarize condenses a handoff for display.
func Summarize(h Handoff) Summary {
	s := Summary{Correct: h.Score, LifetimeStats: h.LifetimeStats}
	for _, o := range h.Outcomes {
		if !o.Answered() {
			continue
		}
		s.Answered++
		if s.Fastest == 0 || o.Elapsed < s.Fastest {
			s.Fastest = o.Elapsed
		}
	}
	s.LifetimeLine = lifetimeLine(h.LifetimeStats)
	return s
}

func lifetimeLine(l LifetimeStats) string {
	games := "games"
	if l.SessionsPlayed == 1 {
		games = "game"
	}
	return fmt.Sprintf("Lifetime: %d correct across %d %s", l.TotalCorrect, l.SessionsPlayed, games)
}
