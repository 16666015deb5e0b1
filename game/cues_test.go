package game

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func readSound(t *testing.T, ch chan []byte) SoundMsg {
	t.Helper()
	select {
	case data := <-ch:
		var msg SoundMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sound message")
	}
	return SoundMsg{}
}

func TestSoundCues_Tone(t *testing.T) {
	send := make(chan []byte, 4)
	cues := NewSoundCues(send)

	if err := cues.PlayTone(context.Background(), MatchToneHz, toneDuration); err != nil {
		t.Fatalf("PlayTone: %v", err)
	}
	msg := readSound(t, send)
	if msg.Type != "sound" || msg.Cue != CueTone {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.FreqHz != MatchToneHz || msg.DurationMs != 120 {
		t.Errorf("expected 880Hz/120ms, got %vHz/%dms", msg.FreqHz, msg.DurationMs)
	}
}

func TestSoundCues_FullBufferFails(t *testing.T) {
	send := make(chan []byte, 1)
	cues := NewSoundCues(send)

	if err := cues.PlayWin(context.Background()); err != nil {
		t.Fatalf("first cue: %v", err)
	}
	if err := cues.PlayWin(context.Background()); err == nil {
		t.Error("expected error when client buffer is full")
	}
}

func TestSoundCues_CancelledContext(t *testing.T) {
	send := make(chan []byte, 1)
	cues := NewSoundCues(send)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := cues.PlayBGM(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
	if len(send) != 0 {
		t.Error("no message should be sent for a cancelled cue")
	}
}

func TestSessionRebindMovesCues(t *testing.T) {
	oldSend := make(chan []byte, 64)
	newSend := make(chan []byte, 64)
	s := NewSession("u1", "Alice", Options{Rows: 2, Cols: 2, RevealDuration: time.Second, HistoryLimit: 5}, nil, oldSend)
	cues := NewSoundCues(oldSend)
	s.Feedback = cues

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	if err := s.Post(Action{Type: ActionRebind, NewSend: newSend}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	// The snapshot round trip guarantees the rebind was processed.
	if _, err := s.StatsSnapshot(ctx); err != nil {
		t.Fatalf("StatsSnapshot: %v", err)
	}

	for len(newSend) > 0 {
		<-newSend
	}
	if err := cues.PlayWin(context.Background()); err != nil {
		t.Fatalf("PlayWin: %v", err)
	}
	if msg := readSound(t, newSend); msg.Cue != CueWin {
		t.Errorf("expected win cue on new connection, got %+v", msg)
	}
}
