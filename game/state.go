package game

import (
	"time"

	"github.com/google/uuid"
)

// TurnPhase represents where the current two-card attempt stands.
type TurnPhase int

const (
	FirstFlip TurnPhase = iota
	SecondFlip
	Resolve
)

// String returns the protocol string for a TurnPhase.
func (tp TurnPhase) String() string {
	switch tp {
	case FirstFlip:
		return "first_flip"
	case SecondFlip:
		return "second_flip"
	case Resolve:
		return "resolve"
	default:
		return "unknown"
	}
}

// State is the per-round record. It is overwritten by every reset.
type State struct {
	ID           string
	Board        *Board
	TotalPairs   int
	MatchedPairs int
	Mismatches   int

	Phase          TurnPhase
	FlippedIndices []int

	// StartedAt is set by the first flip of the round; zero means the timer never ran.
	StartedAt  time.Time
	FinishedAt time.Time
	Finished   bool
}

// NewState returns a round-start State for a rows x cols board.
func NewState(rows, cols int) *State {
	s := &State{}
	s.Reset(rows, cols)
	return s
}

// Reset reinitializes every round field in place.
func (s *State) Reset(rows, cols int) {
	board := NewBoard(rows, cols)
	*s = State{
		ID:             uuid.NewString(),
		Board:          board,
		TotalPairs:     board.Pairs(),
		Phase:          FirstFlip,
		FlippedIndices: make([]int, 0, 2),
	}
}

// Moves is the number of two-card attempts made so far.
func (s *State) Moves() int {
	return s.MatchedPairs + s.Mismatches
}

// Completed reports whether every pair of a non-empty round has been matched.
// Only completed rounds feed BestTime and MinMoves.
func (s *State) Completed() bool {
	return s.TotalPairs > 0 && s.MatchedPairs == s.TotalPairs
}

// IsPerfect reports a round with every pair matched and no mismatches.
// A zero-pair round satisfies this trivially.
func (s *State) IsPerfect() bool {
	return s.Mismatches == 0 && s.MatchedPairs == s.TotalPairs
}

// Elapsed is the time between the first flip and the end of the round
// (or now, while the round is still running). Zero if the timer never started.
func (s *State) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := now
	if !s.FinishedAt.IsZero() {
		end = s.FinishedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}
