package game

import "time"

// CardView is the client-facing representation of a card.
// PairID is only included when the card is revealed or matched.
type CardView struct {
	Index  int    `json:"index"`
	PairID *int   `json:"pairId,omitempty"`
	State  string `json:"state"`
}

// RoundStateMsg is the full round state sent to the player.
type RoundStateMsg struct {
	Type           string     `json:"type"`
	RoundID        string     `json:"roundId"`
	Rows           int        `json:"rows"`
	Cols           int        `json:"cols"`
	Cards          []CardView `json:"cards"`
	Phase          string     `json:"phase"`
	FlippedIndices []int      `json:"flippedIndices"`
	TotalPairs     int        `json:"totalPairs"`
	MatchedPairs   int        `json:"matchedPairs"`
	Mismatches     int        `json:"mismatches"`
	Moves          int        `json:"moves"`
	ElapsedMs      int64      `json:"elapsedMs"`
	// StartedAtUnixMs lets the client run its own clock; omitted until the first flip.
	StartedAtUnixMs int64 `json:"startedAtUnixMs,omitempty"`
	Finished        bool  `json:"finished"`
}

// RoundOverMsg is sent once per round, after it has been scored.
type RoundOverMsg struct {
	Type    string       `json:"type"`
	Summary RoundSummary `json:"summary"`
	Stats   *Stats       `json:"stats"`
}

// StatsMsg carries the player's statistics.
type StatsMsg struct {
	Type  string `json:"type"`
	Stats *Stats `json:"stats"`
}

// SessionReadyMsg opens every connection to a session, before the first round_state.
type SessionReadyMsg struct {
	Type      string `json:"type"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Guest     bool   `json:"guest"`
	Resumed   bool   `json:"resumed"`
	BoardRows int    `json:"boardRows"`
	BoardCols int    `json:"boardCols"`
}

// ErrorMsg is sent when a player action is rejected.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// BuildCardViews constructs the client-facing card list.
// Hidden cards do not expose their pairId.
func BuildCardViews(board *Board) []CardView {
	views := make([]CardView, len(board.Cards))
	for i, card := range board.Cards {
		cv := CardView{
			Index: card.Index,
			State: card.State.String(),
		}
		if card.State == Revealed || card.State == Matched {
			pairID := card.PairID
			cv.PairID = &pairID
		}
		views[i] = cv
	}
	return views
}

// BuildRoundState returns the round view at time now.
func BuildRoundState(st *State, now time.Time) RoundStateMsg {
	flipped := append([]int{}, st.FlippedIndices...)
	msg := RoundStateMsg{
		Type:           "round_state",
		RoundID:        st.ID,
		Rows:           st.Board.Rows,
		Cols:           st.Board.Cols,
		Cards:          BuildCardViews(st.Board),
		Phase:          st.Phase.String(),
		FlippedIndices: flipped,
		TotalPairs:     st.TotalPairs,
		MatchedPairs:   st.MatchedPairs,
		Mismatches:     st.Mismatches,
		Moves:          st.Moves(),
		ElapsedMs:      st.Elapsed(now).Milliseconds(),
		Finished:       st.Finished,
	}
	if !st.StartedAt.IsZero() {
		msg.StartedAtUnixMs = st.StartedAt.UnixMilli()
	}
	return msg
}
