package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"memory-pairs-server/game"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		summary game.RoundSummary
		want    string
	}{
		{game.RoundSummary{Perfect: true, Completed: true}, OutcomePerfect},
		{game.RoundSummary{Completed: true, Mismatches: 3}, OutcomeCompleted},
		{game.RoundSummary{MatchedPairs: 2}, OutcomeAbandoned},
	}
	for _, tt := range tests {
		if got := Outcome(tt.summary); got != tt.want {
			t.Errorf("Outcome(%+v)=%q, want %q", tt.summary, got, tt.want)
		}
	}
}

func TestObserveRound(t *testing.T) {
	m := New()

	m.ObserveRound(game.RoundSummary{Perfect: true, Completed: true, Moves: 8, ElapsedSec: 20, Timed: true})
	m.ObserveRound(game.RoundSummary{MatchedPairs: 1, Moves: 3})

	if got := testutil.ToFloat64(m.RoundsEnded.WithLabelValues(OutcomePerfect)); got != 1 {
		t.Errorf("expected 1 perfect round, got %v", got)
	}
	if got := testutil.ToFloat64(m.RoundsEnded.WithLabelValues(OutcomeAbandoned)); got != 1 {
		t.Errorf("expected 1 abandoned round, got %v", got)
	}
	if got := testutil.CollectAndCount(m.RoundSeconds); got != 1 {
		t.Errorf("expected round duration histogram to be collected, got %d", got)
	}
}

func TestObserveRound_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRound(game.RoundSummary{Completed: true})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ConnectedWS.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "memory_websocket_clients 1") {
		t.Errorf("expected gauge in exposition, got:\n%s", body)
	}
}

func TestHelpers(t *testing.T) {
	m := New()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.ClientConnected()
	m.MessageRateLimited()
	m.PersistFailed()

	if got := testutil.ToFloat64(m.ActiveSessions); got != 1 {
		t.Errorf("expected 1 active session, got %v", got)
	}
	if got := testutil.ToFloat64(m.ConnectedWS); got != 1 {
		t.Errorf("expected 1 connected client, got %v", got)
	}
	if got := testutil.ToFloat64(m.RateLimited); got != 1 {
		t.Errorf("expected 1 rate-limited message, got %v", got)
	}

	var nilMetrics *Metrics
	nilMetrics.SessionOpened()
	nilMetrics.ClientDisconnected()
	nilMetrics.PersistFailed()
}
