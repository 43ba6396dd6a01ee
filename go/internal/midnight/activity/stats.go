package activity

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
)

// StatsKey is the durable key holding lifetime stats.
const StatsKey = "ms_night_activity_stats"

// Store is a small key-value store. Get reports found=false for a missing
// key.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
}

// LifetimeStats survives across sessions on one device.
type LifetimeStats struct {
	TotalCorrect   int `json:"totalCorrect"`
	TotalAnswered  int `json:"totalAnswered"`
	SessionsPlayed int `json:"sessionsPlayed"`
}

var errCorruptStats = errors.New("corrupt lifetime stats")

func (s LifetimeStats) validate() error {
	if s.TotalCorrect < 0 || s.TotalAnswered < 0 || s.SessionsPlayed < 0 || s.TotalCorrect > s.TotalAnswered {
		return errCorruptStats
	}
	return nil
}

// LoadLifetimeStats reads stats from store. A missing, unreadable or
// malformed record yields zero stats.
func LoadLifetimeStats(ctx context.Context, store Store) LifetimeStats {
	if store == nil {
		return LifetimeStats{}
	}
	raw, found, err := store.Get(ctx, StatsKey)
	if err != nil {
		log.Warn().Err(err).Str("key", StatsKey).Msg("failed to read lifetime stats, using defaults")
		return LifetimeStats{}
	}
	if !found {
		return LifetimeStats{}
	}
	var stats LifetimeStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		log.Warn().Err(err).Str("key", StatsKey).Msg("corrupt lifetime stats, resetting")
		return LifetimeStats{}
	}
	if err := stats.validate(); err != nil {
		log.Warn().Err(err).Str("key", StatsKey).Interface("stats", stats).Msg("corrupt lifetime stats, resetting")
		return LifetimeStats{}
	}
	return stats
}

// SaveLifetimeStats writes stats to store. Failures are logged only.
func SaveLifetimeStats(ctx context.Context, store Store, stats LifetimeStats) {
	if store == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode lifetime stats")
		return
	}
	if err := store.Put(ctx, StatsKey, raw); err != nil {
		log.Warn().Err(err).Str("key", StatsKey).Msg("failed to persist lifetime stats")
	}
}
