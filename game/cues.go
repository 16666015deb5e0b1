package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"memory-pairs-server/wsutil"
)

// SoundMsg asks the client to play an audio cue.
type SoundMsg struct {
	Type       string  `json:"type"`
	Cue        string  `json:"cue"`
	FreqHz     float64 `json:"freqHz,omitempty"`
	DurationMs int64   `json:"durationMs,omitempty"`
}

var errCueDropped = errors.New("sound cue dropped: client buffer full or closed")

// Cue names carried by SoundMsg.
const (
	CueInit = "init"
	CueBGM  = "bgm"
	CueWin  = "win"
	CueTone = "tone"
)

// SoundCues is a Feedback that forwards each cue to the player's client as a
// "sound" message. Playback happens in the browser.
type SoundCues struct {
	mu   sync.Mutex
	send chan []byte
}

// NewSoundCues creates cues that write to send.
func NewSoundCues(send chan []byte) *SoundCues {
	return &SoundCues{send: send}
}

// Rebind points the cues at a new client connection.
func (c *SoundCues) Rebind(send chan []byte) {
	c.mu.Lock()
	c.send = send
	c.mu.Unlock()
}

func (c *SoundCues) emit(ctx context.Context, msg SoundMsg) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	send := c.send
	c.mu.Unlock()
	if !wsutil.SendJSON(send, msg) {
		return errCueDropped
	}
	return nil
}

func (c *SoundCues) InitContext(ctx context.Context) error {
	return c.emit(ctx, SoundMsg{Type: "sound", Cue: CueInit})
}

func (c *SoundCues) PlayBGM(ctx context.Context) error {
	return c.emit(ctx, SoundMsg{Type: "sound", Cue: CueBGM})
}

func (c *SoundCues) PlayWin(ctx context.Context) error {
	return c.emit(ctx, SoundMsg{Type: "sound", Cue: CueWin})
}

func (c *SoundCues) PlayTone(ctx context.Context, freqHz float64, duration time.Duration) error {
	return c.emit(ctx, SoundMsg{Type: "sound", Cue: CueTone, FreqHz: freqHz, DurationMs: duration.Milliseconds()})
}

// rebinder is implemented by feedback that is tied to a client connection.
type rebinder interface {
	Rebind(send chan []byte)
}
