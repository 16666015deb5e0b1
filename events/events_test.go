package events

import (
	"context"
	"encoding/json"
	"testing"

	"memory-pairs-server/game"
)

func TestNewRoundEvent_NoBestTime(t *testing.T) {
	stats := game.NewStats(5)
	ev := NewRoundEvent("u1", "Alice", false, game.RoundSummary{RoundID: "r1"}, stats)

	if ev.BestTime != nil {
		t.Errorf("expected nil best time, got %v", *ev.BestTime)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	json.Unmarshal(data, &m)
	if m["bestTime"] != nil {
		t.Errorf("expected null bestTime, got %v", m["bestTime"])
	}
	if m["userId"] != "u1" {
		t.Errorf("expected userId=u1, got %v", m["userId"])
	}
}

func TestNewRoundEvent_CarriesStats(t *testing.T) {
	stats := game.NewStats(5)
	summary := game.RoundSummary{RoundID: "r2", MatchedPairs: 8, Moves: 8, ElapsedSec: 12, Timed: true, Perfect: true, Completed: true}
	stats.Record(summary)

	ev := NewRoundEvent("u1", "Alice", true, summary, stats)

	if ev.PerfectGames != 1 {
		t.Errorf("expected PerfectGames=1, got %d", ev.PerfectGames)
	}
	if ev.BestTime == nil || *ev.BestTime != 12 {
		t.Errorf("expected BestTime=12, got %v", ev.BestTime)
	}
	if !ev.Guest || ev.Summary.RoundID != "r2" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestNewWithoutURLIsNop(t *testing.T) {
	p, err := New("", "memory.rounds.completed")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := p.(NopPublisher); !ok {
		t.Errorf("expected NopPublisher, got %T", p)
	}
	if err := p.PublishRound(context.Background(), RoundEvent{}); err != nil {
		t.Errorf("NopPublisher.PublishRound: %v", err)
	}
	p.Close()
}
