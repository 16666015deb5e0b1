package game

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"memory-pairs-server/gameerrors"
	"memory-pairs-server/wsutil"
)

// ActionType enumerates the kinds of actions a session can process.
type ActionType int

const (
	ActionFlipCard ActionType = iota
	ActionStartRound
	ActionEndRound
	ActionResetStats
	ActionStatsSnapshot
	ActionRebind          // player reconnected; replace Send
	ActionResolveMismatch // internal: fired after the reveal timer expires
	ActionClose
)

// Action is sent into a session's action channel.
type Action struct {
	Type    ActionType
	Index   int         // card index (for FlipCard)
	RoundID string      // round the action belongs to (for ResolveMismatch)
	NewSend chan []byte // for ActionRebind
	Reply   chan *Stats // for ActionStatsSnapshot
}

// Options sizes the rounds a session plays.
type Options struct {
	Rows            int
	Cols            int
	RevealDuration  time.Duration
	FeedbackTimeout time.Duration
	HistoryLimit    int
}

// Session is one player's game: the current round, the player's statistics and
// the audio collaborator. State and Stats are owned by the Run goroutine; the
// exported operations may be called directly only when Run is not running.
type Session struct {
	UserID string
	Name   string
	Guest  bool

	State    *State
	Stats    *Stats
	Feedback Feedback
	Send     chan []byte

	// Now is the session clock; defaults to time.Now.
	Now func() time.Time

	// OnRoundEnd is called after every EndGame with a copy of the updated statistics.
	OnRoundEnd func(userID, name string, summary RoundSummary, stats *Stats)
	// OnStatsReset is called after the player's statistics were reset.
	OnStatsReset func(userID string)

	Actions chan Action
	Done    chan struct{}

	opts              Options
	revealTimerCancel chan struct{}
}

// NewSession creates a session with a fresh round. A nil stats starts an empty aggregate.
func NewSession(userID, name string, opts Options, stats *Stats, send chan []byte) *Session {
	if stats == nil {
		stats = NewStats(opts.HistoryLimit)
	}
	stats.HistoryLimit = opts.HistoryLimit
	return &Session{
		UserID:   userID,
		Name:     name,
		State:    NewState(opts.Rows, opts.Cols),
		Stats:    stats,
		Feedback: NopFeedback{},
		Send:     send,
		Now:      time.Now,
		Actions:  make(chan Action, 16),
		Done:     make(chan struct{}),
		opts:     opts,
	}
}

func (s *Session) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Run is the session loop. It processes actions sequentially until ctx is
// cancelled or ActionClose arrives. It should be run as a goroutine.
func (s *Session) Run(ctx context.Context) {
	defer close(s.Done)
	defer s.cancelRevealTimer()

	Notify(s.Feedback, s.opts.FeedbackTimeout, "init", func(ctx context.Context, fb Feedback) error {
		if err := fb.InitContext(ctx); err != nil {
			return err
		}
		return fb.PlayBGM(ctx)
	})
	s.greet(false)
	s.broadcastState()

	for {
		select {
		case <-ctx.Done():
			return
		case action := <-s.Actions:
			switch action.Type {
			case ActionFlipCard:
				s.handleFlipCard(action.Index)
			case ActionStartRound:
				s.ResetGame()
				s.broadcastState()
			case ActionEndRound:
				s.handleEndRound()
			case ActionResetStats:
				s.ResetStats()
				s.broadcastStats()
			case ActionStatsSnapshot:
				if action.Reply != nil {
					action.Reply <- s.Stats.Clone()
				}
			case ActionRebind:
				if action.NewSend != nil {
					s.Send = action.NewSend
					if r, ok := s.Feedback.(rebinder); ok {
						r.Rebind(action.NewSend)
					}
				}
				s.greet(true)
				s.broadcastState()
			case ActionResolveMismatch:
				if s.ResolveMismatch(action.RoundID) {
					s.broadcastState()
				}
			case ActionClose:
				return
			}
		}
	}
}

// Post queues an action for the Run loop. It returns ErrSessionClosed once the loop has exited.
func (s *Session) Post(a Action) error {
	select {
	case <-s.Done:
		return gameerrors.ErrSessionClosed
	default:
	}
	select {
	case s.Actions <- a:
		return nil
	case <-s.Done:
		return gameerrors.ErrSessionClosed
	}
}

// StatsSnapshot asks the Run loop for a copy of the statistics.
func (s *Session) StatsSnapshot(ctx context.Context) (*Stats, error) {
	reply := make(chan *Stats, 1)
	if err := s.Post(Action{Type: ActionStatsSnapshot, Reply: reply}); err != nil {
		return nil, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-s.Done:
		return nil, gameerrors.ErrSessionClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResetGame starts a new round. Statistics are not touched.
func (s *Session) ResetGame() {
	s.cancelRevealTimer()
	s.State.Reset(s.opts.Rows, s.opts.Cols)
}

// ResetStats clears the player's statistics.
func (s *Session) ResetStats() {
	s.Stats.Reset()
	slog.Info("stats reset", "tag", "game", "user", s.UserID)
	if s.OnStatsReset != nil {
		s.OnStatsReset(s.UserID)
	}
}

// EndGame scores the current round and folds it into the statistics.
// The statistics are updated before any feedback is emitted, and feedback
// never blocks the caller. A round can be scored only once.
func (s *Session) EndGame() (RoundSummary, error) {
	st := s.State
	if st.Finished {
		return RoundSummary{}, gameerrors.ErrRoundFinished
	}
	s.cancelRevealTimer()

	now := s.now()
	st.FinishedAt = now
	st.Finished = true
	elapsed := st.Elapsed(now)

	summary := RoundSummary{
		RoundID:      st.ID,
		TotalPairs:   st.TotalPairs,
		MatchedPairs: st.MatchedPairs,
		Mismatches:   st.Mismatches,
		Moves:        st.Moves(),
		ElapsedSec:   elapsed.Seconds(),
		Timed:        !st.StartedAt.IsZero(),
		Perfect:      st.IsPerfect(),
		Completed:    st.Completed(),
		EndedAt:      now,
	}
	s.Stats.Record(summary)

	slog.Info("round ended", "tag", "game", "user", s.UserID, "round", st.ID,
		"moves", summary.Moves, "mismatches", summary.Mismatches, "perfect", summary.Perfect, "completed", summary.Completed)

	if summary.Completed {
		Notify(s.Feedback, s.opts.FeedbackTimeout, "win", func(ctx context.Context, fb Feedback) error {
			return fb.PlayWin(ctx)
		})
	}
	if s.OnRoundEnd != nil {
		s.OnRoundEnd(s.UserID, s.Name, summary, s.Stats.Clone())
	}
	return summary, nil
}

// FlipCard reveals one card. When the flip completes the round, the round is
// scored and its summary returned.
func (s *Session) FlipCard(cardIndex int) (*RoundSummary, error) {
	st := s.State
	if st.Finished {
		return nil, gameerrors.ErrRoundFinished
	}
	if st.Phase == Resolve {
		return nil, gameerrors.ErrNotYourPhase
	}
	if cardIndex < 0 || cardIndex >= len(st.Board.Cards) {
		return nil, fmt.Errorf("%w: index %d out of bounds", gameerrors.ErrInvalidCard, cardIndex)
	}
	card := &st.Board.Cards[cardIndex]
	if card.State != Hidden {
		return nil, fmt.Errorf("%w: card %d is already %s", gameerrors.ErrInvalidCard, cardIndex, card.State)
	}

	if st.StartedAt.IsZero() {
		st.StartedAt = s.now()
	}
	card.State = Revealed
	st.FlippedIndices = append(st.FlippedIndices, cardIndex)

	if st.Phase == FirstFlip {
		st.Phase = SecondFlip
		return nil, nil
	}

	card1 := &st.Board.Cards[st.FlippedIndices[0]]
	card2 := &st.Board.Cards[st.FlippedIndices[1]]

	if card1.PairID != card2.PairID {
		st.Mismatches++
		st.Phase = Resolve
		s.playTone(MismatchToneHz)
		s.startRevealTimer(st.ID)
		return nil, nil
	}

	card1.State = Matched
	card2.State = Matched
	st.MatchedPairs++
	st.FlippedIndices = st.FlippedIndices[:0]
	st.Phase = FirstFlip
	s.playTone(MatchToneHz)

	if AllMatched(st.Board) {
		summary, err := s.EndGame()
		if err != nil {
			return nil, err
		}
		return &summary, nil
	}
	return nil, nil
}

// ResolveMismatch hides the two cards of a failed attempt. It ignores
// timers left over from an earlier or finished round and reports whether anything changed.
func (s *Session) ResolveMismatch(roundID string) bool {
	st := s.State
	if roundID != st.ID || st.Phase != Resolve || st.Finished {
		return false
	}
	for _, idx := range st.FlippedIndices {
		st.Board.Cards[idx].State = Hidden
	}
	st.FlippedIndices = st.FlippedIndices[:0]
	st.Phase = FirstFlip
	s.cancelRevealTimer()
	return true
}

func (s *Session) playTone(freq float64) {
	Notify(s.Feedback, s.opts.FeedbackTimeout, "tone", func(ctx context.Context, fb Feedback) error {
		return fb.PlayTone(ctx, freq, toneDuration)
	})
}

// cancelRevealTimer stops a pending mismatch reveal. Safe if none is running.
func (s *Session) cancelRevealTimer() {
	if s.revealTimerCancel != nil {
		close(s.revealTimerCancel)
		s.revealTimerCancel = nil
	}
}

// startRevealTimer schedules ActionResolveMismatch for roundID after the reveal duration.
func (s *Session) startRevealTimer(roundID string) {
	s.cancelRevealTimer()
	cancel := make(chan struct{})
	s.revealTimerCancel = cancel
	delay := s.opts.RevealDuration
	go func() {
		select {
		case <-time.After(delay):
			select {
			case s.Actions <- Action{Type: ActionResolveMismatch, RoundID: roundID}:
			case <-s.Done:
			case <-cancel:
			}
		case <-cancel:
		}
	}()
}

func (s *Session) handleFlipCard(cardIndex int) {
	summary, err := s.FlipCard(cardIndex)
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.broadcastState()
	if summary != nil {
		s.broadcastRoundOver(*summary)
	}
}

func (s *Session) handleEndRound() {
	summary, err := s.EndGame()
	if err != nil {
		s.sendError(err.Error())
		return
	}
	s.broadcastState()
	s.broadcastRoundOver(summary)
}

func (s *Session) greet(resumed bool) {
	wsutil.SendJSON(s.Send, SessionReadyMsg{
		Type:      "session_ready",
		UserID:    s.UserID,
		Name:      s.Name,
		Guest:     s.Guest,
		Resumed:   resumed,
		BoardRows: s.opts.Rows,
		BoardCols: s.opts.Cols,
	})
}

func (s *Session) sendError(message string) {
	wsutil.SendJSON(s.Send, ErrorMsg{Type: "error", Message: message})
}

func (s *Session) broadcastState() {
	wsutil.SendJSON(s.Send, BuildRoundState(s.State, s.now()))
}

func (s *Session) broadcastStats() {
	wsutil.SendJSON(s.Send, StatsMsg{Type: "stats", Stats: s.Stats.Clone()})
}

func (s *Session) broadcastRoundOver(summary RoundSummary) {
	wsutil.SendJSON(s.Send, RoundOverMsg{Type: "round_over", Summary: summary, Stats: s.Stats.Clone()})
}
