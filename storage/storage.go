package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"memory-pairs-server/game"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 200
	defaultRoundsLimit      = 50
	maxRoundsLimit          = 500
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS player_stats (
	user_id          TEXT PRIMARY KEY,
	display_name     TEXT NOT NULL DEFAULT '',
	perfect_games    INT  NOT NULL DEFAULT 0,
	best_time_sec    DOUBLE PRECISION,
	min_moves        INT,
	games_played     INT  NOT NULL DEFAULT 0,
	games_completed  INT  NOT NULL DEFAULT 0,
	total_moves      INT  NOT NULL DEFAULT 0,
	total_matches    INT  NOT NULL DEFAULT 0,
	total_mismatches INT  NOT NULL DEFAULT 0,
	total_time_sec   DOUBLE PRECISION NOT NULL DEFAULT 0,
	current_streak   INT  NOT NULL DEFAULT 0,
	best_streak      INT  NOT NULL DEFAULT 0,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_player_stats_best_time ON player_stats(best_time_sec ASC NULLS LAST);
CREATE TABLE IF NOT EXISTS round_history (
	id            UUID PRIMARY KEY,
	user_id       TEXT NOT NULL,
	played_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	total_pairs   INT NOT NULL,
	matched_pairs INT NOT NULL,
	mismatches    INT NOT NULL,
	moves         INT NOT NULL,
	elapsed_sec   DOUBLE PRECISION NOT NULL,
	timed         BOOLEAN NOT NULL,
	perfect       BOOLEAN NOT NULL,
	completed     BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_round_history_user ON round_history(user_id, played_at DESC);
`

const upsertStatsSQL = `
INSERT INTO player_stats (user_id, display_name, perfect_games, best_time_sec, min_moves, games_played, games_completed,
	total_moves, total_matches, total_mismatches, total_time_sec, current_streak, best_streak, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
ON CONFLICT (user_id) DO UPDATE SET
	display_name = EXCLUDED.display_name,
	perfect_games = EXCLUDED.perfect_games,
	best_time_sec = EXCLUDED.best_time_sec,
	min_moves = EXCLUDED.min_moves,
	games_played = EXCLUDED.games_played,
	games_completed = EXCLUDED.games_completed,
	total_moves = EXCLUDED.total_moves,
	total_matches = EXCLUDED.total_matches,
	total_mismatches = EXCLUDED.total_mismatches,
	total_time_sec = EXCLUDED.total_time_sec,
	current_streak = EXCLUDED.current_streak,
	best_streak = EXCLUDED.best_streak,
	updated_at = now()`

// Store persists and retrieves player statistics.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the tables exist.
// If databaseURL is empty, NewStore returns (nil, nil) and no persistence occurs.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// statsRow mirrors one player_stats row; NULL columns stand for the +Inf sentinels.
type statsRow struct {
	PerfectGames    int
	BestTimeSec     *float64
	MinMoves        *int
	GamesPlayed     int
	GamesCompleted  int
	TotalMoves      int
	TotalMatches    int
	TotalMismatches int
	TotalTimeSec    float64
	CurrentStreak   int
	BestStreak      int
}

func rowFromStats(st *game.Stats) statsRow {
	return statsRow{
		PerfectGames:    st.PerfectGames,
		BestTimeSec:     nullableFloat(st.BestTime),
		MinMoves:        nullableMoves(st.MinMoves),
		GamesPlayed:     st.GamesPlayed,
		GamesCompleted:  st.GamesCompleted,
		TotalMoves:      st.TotalMoves,
		TotalMatches:    st.TotalMatches,
		TotalMismatches: st.TotalMismatches,
		TotalTimeSec:    st.TotalTimeSec,
		CurrentStreak:   st.CurrentStreak,
		BestStreak:      st.BestStreak,
	}
}

func (r statsRow) toStats(historyLimit int) *game.Stats {
	st := game.NewStats(historyLimit)
	st.PerfectGames = r.PerfectGames
	if r.BestTimeSec != nil {
		st.BestTime = *r.BestTimeSec
	}
	if r.MinMoves != nil {
		st.MinMoves = float64(*r.MinMoves)
	}
	st.GamesPlayed = r.GamesPlayed
	st.GamesCompleted = r.GamesCompleted
	st.TotalMoves = r.TotalMoves
	st.TotalMatches = r.TotalMatches
	st.TotalMismatches = r.TotalMismatches
	st.TotalTimeSec = r.TotalTimeSec
	st.CurrentStreak = r.CurrentStreak
	st.BestStreak = r.BestStreak
	return st
}

func nullableFloat(f float64) *float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

func nullableMoves(f float64) *int {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	n := int(f)
	return &n
}

func clampPage(limit, offset, def, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// LoadStats returns the stored statistics for userID with its most recent rounds as History.
// Unknown users get an empty aggregate.
func (s *Store) LoadStats(ctx context.Context, userID string, historyLimit int) (*game.Stats, error) {
	if s == nil || s.pool == nil || userID == "" {
		return game.NewStats(historyLimit), nil
	}
	var r statsRow
	err := s.pool.QueryRow(ctx, `
		SELECT perfect_games, best_time_sec, min_moves, games_played, games_completed,
			total_moves, total_matches, total_mismatches, total_time_sec, current_streak, best_streak
		FROM player_stats WHERE user_id = $1`, userID).Scan(
		&r.PerfectGames, &r.BestTimeSec, &r.MinMoves, &r.GamesPlayed, &r.GamesCompleted,
		&r.TotalMoves, &r.TotalMatches, &r.TotalMismatches, &r.TotalTimeSec, &r.CurrentStreak, &r.BestStreak)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return game.NewStats(historyLimit), nil
		}
		return nil, fmt.Errorf("loading stats for %s: %w", userID, err)
	}
	st := r.toStats(historyLimit)
	if historyLimit > 0 {
		rounds, err := s.queryRounds(ctx, `
			SELECT * FROM (
				SELECT id, played_at, total_pairs, matched_pairs, mismatches, moves, elapsed_sec, timed, perfect, completed
				FROM round_history WHERE user_id = $1
				ORDER BY played_at DESC LIMIT $2
			) recent ORDER BY played_at ASC`, userID, historyLimit)
		if err != nil {
			return nil, err
		}
		st.History = rounds
	}
	return st, nil
}

// SaveRound records one scored round and the aggregate it produced, in one transaction.
func (s *Store) SaveRound(ctx context.Context, userID, displayName string, summary game.RoundSummary, stats *game.Stats) error {
	if s == nil || s.pool == nil {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	endedAt := summary.EndedAt
	if endedAt.IsZero() {
		endedAt = time.Now()
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO round_history (id, user_id, played_at, total_pairs, matched_pairs, mismatches, moves, elapsed_sec, timed, perfect, completed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		summary.RoundID, userID, endedAt, summary.TotalPairs, summary.MatchedPairs, summary.Mismatches, summary.Moves,
		summary.ElapsedSec, summary.Timed, summary.Perfect, summary.Completed)
	if err != nil {
		return fmt.Errorf("inserting round %s: %w", summary.RoundID, err)
	}

	r := rowFromStats(stats)
	_, err = tx.Exec(ctx, upsertStatsSQL,
		userID, displayName, r.PerfectGames, r.BestTimeSec, r.MinMoves, r.GamesPlayed, r.GamesCompleted,
		r.TotalMoves, r.TotalMatches, r.TotalMismatches, r.TotalTimeSec, r.CurrentStreak, r.BestStreak)
	if err != nil {
		return fmt.Errorf("saving stats for %s: %w", userID, err)
	}
	return tx.Commit(ctx)
}

// ResetStats deletes a player's aggregate and round history.
func (s *Store) ResetStats(ctx context.Context, userID string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM round_history WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting history for %s: %w", userID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM player_stats WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("deleting stats for %s: %w", userID, err)
	}
	return tx.Commit(ctx)
}

// ListRounds returns a player's rounds, newest first.
func (s *Store) ListRounds(ctx context.Context, userID string, limit int) ([]game.RoundSummary, error) {
	if s == nil || s.pool == nil {
		return []game.RoundSummary{}, nil
	}
	limit, _ = clampPage(limit, 0, defaultRoundsLimit, maxRoundsLimit)
	return s.queryRounds(ctx, `
		SELECT id, played_at, total_pairs, matched_pairs, mismatches, moves, elapsed_sec, timed, perfect, completed
		FROM round_history WHERE user_id = $1
		ORDER BY played_at DESC LIMIT $2`, userID, limit)
}

func (s *Store) queryRounds(ctx context.Context, sql string, args ...any) ([]game.RoundSummary, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying rounds: %w", err)
	}
	defer rows.Close()
	out := []game.RoundSummary{}
	for rows.Next() {
		var r game.RoundSummary
		var playedAt time.Time
		if err := rows.Scan(&r.RoundID, &playedAt, &r.TotalPairs, &r.MatchedPairs, &r.Mismatches, &r.Moves,
			&r.ElapsedSec, &r.Timed, &r.Perfect, &r.Completed); err != nil {
			return nil, err
		}
		r.EndedAt = playedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// LeaderboardEntry is a single row for the leaderboard API.
type LeaderboardEntry struct {
	UserID         string   `json:"user_id"`
	DisplayName    string   `json:"display_name"`
	BestTimeSec    *float64 `json:"best_time_sec"`
	MinMoves       *int     `json:"min_moves"`
	PerfectGames   int      `json:"perfect_games"`
	GamesCompleted int      `json:"games_completed"`
	IsCurrentUser  bool     `json:"is_current_user,omitempty"`
}

// ListLeaderboard returns players with a timed completed round, fastest first.
func (s *Store) ListLeaderboard(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	if s == nil || s.pool == nil {
		return []LeaderboardEntry{}, nil
	}
	limit, offset = clampPage(limit, offset, defaultLeaderboardLimit, maxLeaderboardLimit)
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, display_name, best_time_sec, min_moves, perfect_games, games_completed
		FROM player_stats
		WHERE best_time_sec IS NOT NULL
		ORDER BY best_time_sec ASC, min_moves ASC NULLS LAST, perfect_games DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.BestTimeSec, &e.MinMoves, &e.PerfectGames, &e.GamesCompleted); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetLeaderboardEntryByUserID returns one player's entry, or (nil, nil) if not found.
func (s *Store) GetLeaderboardEntryByUserID(ctx context.Context, userID string) (*LeaderboardEntry, error) {
	if s == nil || s.pool == nil || userID == "" {
		return nil, nil
	}
	var e LeaderboardEntry
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, display_name, best_time_sec, min_moves, perfect_games, games_completed
		FROM player_stats
		WHERE user_id = $1`,
		userID).Scan(&e.UserID, &e.DisplayName, &e.BestTimeSec, &e.MinMoves, &e.PerfectGames, &e.GamesCompleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}
