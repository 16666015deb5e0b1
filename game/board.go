package game

import (
	"math/rand"
)

// CardState represents the current state of a card.
type CardState int

const (
	Hidden CardState = iota
	Revealed
	Matched
)

// String returns the string representation of a CardState.
func (cs CardState) String() string {
	switch cs {
	case Hidden:
		return "hidden"
	case Revealed:
		return "revealed"
	case Matched:
		return "matched"
	default:
		return "unknown"
	}
}

// Card represents a single card on the board.
type Card struct {
	Index  int
	PairID int
	State  CardState
}

// Board represents the game board.
type Board struct {
	Rows  int
	Cols  int
	Cards []Card
}

// NewBoard creates a new board with randomly shuffled pairs.
// An odd trailing card is dropped so every card has a partner.
func NewBoard(rows, cols int) *Board {
	numPairs := rows * cols / 2
	if numPairs < 0 {
		numPairs = 0
	}
	totalCards := numPairs * 2

	cards := make([]Card, totalCards)
	for i := 0; i < numPairs; i++ {
		cards[2*i] = Card{PairID: i, State: Hidden}
		cards[2*i+1] = Card{PairID: i, State: Hidden}
	}

	rand.Shuffle(totalCards, func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})

	for i := range cards {
		cards[i].Index = i
	}

	return &Board{
		Rows:  rows,
		Cols:  cols,
		Cards: cards,
	}
}

// Pairs returns the number of pairs on the board.
func (b *Board) Pairs() int {
	return len(b.Cards) / 2
}

// AllMatched returns true if every card on the board is in the Matched state.
func AllMatched(board *Board) bool {
	for _, card := range board.Cards {
		if card.State != Matched {
			return false
		}
	}
	return true
}
