package game

import (
	"context"
	"log/slog"
	"time"
)

// Feedback is the audio collaborator. Implementations may block or fail;
// the session only ever calls it through Notify, after state has been committed.
type Feedback interface {
	InitContext(ctx context.Context) error
	PlayBGM(ctx context.Context) error
	PlayWin(ctx context.Context) error
	PlayTone(ctx context.Context, freqHz float64, duration time.Duration) error
}

// NopFeedback discards every cue.
type NopFeedback struct{}

func (NopFeedback) InitContext(context.Context) error                     { return nil }
func (NopFeedback) PlayBGM(context.Context) error                         { return nil }
func (NopFeedback) PlayWin(context.Context) error                         { return nil }
func (NopFeedback) PlayTone(context.Context, float64, time.Duration) error { return nil }

// Tones played on match attempts.
const (
	MatchToneHz    = 880
	MismatchToneHz = 220
	toneDuration   = 120 * time.Millisecond
)

// Notify runs cue on its own goroutine with a bounded context and returns immediately.
// Errors are logged; nothing is reported back to the caller.
func Notify(fb Feedback, timeout time.Duration, name string, cue func(ctx context.Context, fb Feedback) error) {
	if fb == nil {
		return
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("feedback panicked", "tag", "game", "cue", name, "panic", r)
			}
		}()
		if err := cue(ctx, fb); err != nil {
			slog.Warn("feedback failed", "tag", "game", "cue", name, "err", err)
		}
	}()
}
