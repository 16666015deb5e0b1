package game

import (
	"encoding/json"
	"math"
	"time"

	"github.com/samber/lo"
)

// DefaultHistoryLimit is used when a Stats value is created without an explicit limit.
const DefaultHistoryLimit = 20

// RoundSummary is the outcome of one round as folded into Stats.
type RoundSummary struct {
	RoundID      string    `json:"roundId"`
	TotalPairs   int       `json:"totalPairs"`
	MatchedPairs int       `json:"matchedPairs"`
	Mismatches   int       `json:"mismatches"`
	Moves        int       `json:"moves"`
	ElapsedSec   float64   `json:"elapsedSec"`
	Timed        bool      `json:"timed"`
	Perfect      bool      `json:"perfect"`
	Completed    bool      `json:"completed"`
	EndedAt      time.Time `json:"endedAt"`
}

// Stats is the cross-round aggregate for one player. Reset never touches it.
//
// BestTime (seconds) and MinMoves hold +Inf until the first completed round.
type Stats struct {
	PerfectGames    int
	BestTime        float64
	MinMoves        float64
	GamesPlayed     int
	GamesCompleted  int
	TotalMoves      int
	TotalMatches    int
	TotalMismatches int
	TotalTimeSec    float64
	CurrentStreak   int
	BestStreak      int
	History         []RoundSummary

	// HistoryLimit caps History; 0 keeps no history.
	HistoryLimit int
}

// NewStats returns an empty aggregate.
func NewStats(historyLimit int) *Stats {
	s := &Stats{HistoryLimit: historyLimit}
	s.Reset()
	return s
}

// Reset restores the aggregate to its initial values. HistoryLimit is kept.
func (s *Stats) Reset() {
	limit := s.HistoryLimit
	*s = Stats{
		BestTime:     math.Inf(1),
		MinMoves:     math.Inf(1),
		History:      []RoundSummary{},
		HistoryLimit: limit,
	}
}

// HasBestTime reports whether a timed round has been completed.
func (s *Stats) HasBestTime() bool {
	return !math.IsInf(s.BestTime, 1)
}

// HasMinMoves reports whether any round has been completed.
func (s *Stats) HasMinMoves() bool {
	return !math.IsInf(s.MinMoves, 1)
}

// Record folds one round into the aggregate.
func (s *Stats) Record(r RoundSummary) {
	s.GamesPlayed++
	s.TotalMoves += r.Moves
	s.TotalMatches += r.MatchedPairs
	s.TotalMismatches += r.Mismatches

	if r.Perfect {
		s.PerfectGames++
		s.CurrentStreak++
		if s.CurrentStreak > s.BestStreak {
			s.BestStreak = s.CurrentStreak
		}
	} else {
		s.CurrentStreak = 0
	}

	if r.Completed {
		s.GamesCompleted++
		s.MinMoves = math.Min(s.MinMoves, float64(r.Moves))
		if r.Timed {
			s.BestTime = math.Min(s.BestTime, r.ElapsedSec)
			s.TotalTimeSec += r.ElapsedSec
		}
	}

	s.History = append(s.History, r)
	if over := len(s.History) - s.HistoryLimit; over > 0 {
		s.History = lo.Drop(s.History, over)
	}
}

// AverageMoves is the mean move count over completed rounds still in History.
func (s *Stats) AverageMoves() float64 {
	completed := lo.Filter(s.History, func(r RoundSummary, _ int) bool { return r.Completed })
	if len(completed) == 0 {
		return 0
	}
	return lo.MeanBy(completed, func(r RoundSummary) float64 { return float64(r.Moves) })
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Stats) Clone() *Stats {
	c := *s
	c.History = append([]RoundSummary{}, s.History...)
	return &c
}

type statsJSON struct {
	PerfectGames    int            `json:"perfectGames"`
	BestTime        *float64       `json:"bestTime"`
	MinMoves        *float64       `json:"minMoves"`
	GamesPlayed     int            `json:"gamesPlayed"`
	GamesCompleted  int            `json:"gamesCompleted"`
	TotalMoves      int            `json:"totalMoves"`
	TotalMatches    int            `json:"totalMatches"`
	TotalMismatches int            `json:"totalMismatches"`
	TotalTimeSec    float64        `json:"totalTimeSec"`
	CurrentStreak   int            `json:"currentStreak"`
	BestStreak      int            `json:"bestStreak"`
	History         []RoundSummary `json:"history"`
	HistoryLimit    int            `json:"historyLimit"`
	// AverageMoves is derived from History and ignored when decoding.
	AverageMoves float64 `json:"averageMoves"`
}

// MarshalJSON encodes the +Inf sentinels as null; encoding/json rejects infinities.
func (s Stats) MarshalJSON() ([]byte, error) {
	history := s.History
	if history == nil {
		history = []RoundSummary{}
	}
	return json.Marshal(statsJSON{
		PerfectGames:    s.PerfectGames,
		BestTime:        finiteOrNil(s.BestTime),
		MinMoves:        finiteOrNil(s.MinMoves),
		GamesPlayed:     s.GamesPlayed,
		GamesCompleted:  s.GamesCompleted,
		TotalMoves:      s.TotalMoves,
		TotalMatches:    s.TotalMatches,
		TotalMismatches: s.TotalMismatches,
		TotalTimeSec:    s.TotalTimeSec,
		CurrentStreak:   s.CurrentStreak,
		BestStreak:      s.BestStreak,
		History:         history,
		HistoryLimit:    s.HistoryLimit,
		AverageMoves:    s.AverageMoves(),
	})
}

// UnmarshalJSON reads null or missing sentinels back as +Inf.
func (s *Stats) UnmarshalJSON(data []byte) error {
	var v statsJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Stats{
		PerfectGames:    v.PerfectGames,
		BestTime:        nilToInf(v.BestTime),
		MinMoves:        nilToInf(v.MinMoves),
		GamesPlayed:     v.GamesPlayed,
		GamesCompleted:  v.GamesCompleted,
		TotalMoves:      v.TotalMoves,
		TotalMatches:    v.TotalMatches,
		TotalMismatches: v.TotalMismatches,
		TotalTimeSec:    v.TotalTimeSec,
		CurrentStreak:   v.CurrentStreak,
		BestStreak:      v.BestStreak,
		History:         v.History,
		HistoryLimit:    v.HistoryLimit,
	}
	if s.History == nil {
		s.History = []RoundSummary{}
	}
	return nil
}

func finiteOrNil(f float64) *float64 {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	return &f
}

func nilToInf(f *float64) float64 {
	if f == nil {
		return math.Inf(1)
	}
	return *f
}
