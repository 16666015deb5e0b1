package storage

import (
	"context"

	"memory-pairs-server/game"
)

// StatsStore abstracts persistence for player statistics, round history and the leaderboard.
// Implementations can be swapped for testing (fakes) or different backends.
type StatsStore interface {
	// Read
	LoadStats(ctx context.Context, userID string, historyLimit int) (*game.Stats, error)
	ListRounds(ctx context.Context, userID string, limit int) ([]game.RoundSummary, error)
	ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error)
	GetLeaderboardEntryByUserID(ctx context.Context, userID string) (*LeaderboardEntry, error)

	// Write
	SaveRound(ctx context.Context, userID, displayName string, summary game.RoundSummary, stats *game.Stats) error
	ResetStats(ctx context.Context, userID string) error

	// Lifecycle
	Close()
}

// Ensure *Store implements StatsStore at compile time.
var _ StatsStore = (*Store)(nil)
