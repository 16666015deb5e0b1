package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"memory-pairs-server/auth"
	"memory-pairs-server/config"
	"memory-pairs-server/game"
	"memory-pairs-server/gameerrors"
	"memory-pairs-server/storage"
)

type fakeVerifier struct{}

func (fakeVerifier) Verify(token string) (auth.Identity, error) {
	if token != "good" {
		return auth.Identity{}, gameerrors.ErrUnauthorized
	}
	return auth.Identity{UserID: "user-1", Name: "Ada"}, nil
}

type fakeStats struct {
	stats  *game.Stats
	err    error
	resets []string
}

func (f *fakeStats) Stats(_ context.Context, userID string) (*game.Stats, error) {
	return f.stats, f.err
}

func (f *fakeStats) ResetStats(_ context.Context, userID string) error {
	f.resets = append(f.resets, userID)
	return f.err
}

type fakeStore struct {
	rounds      []game.RoundSummary
	roundsLimit int
	leaderboard []storage.LeaderboardEntry
	entry       *storage.LeaderboardEntry
}

func (f *fakeStore) LoadStats(context.Context, string, int) (*game.Stats, error) { return nil, nil }

func (f *fakeStore) ListRounds(_ context.Context, _ string, limit int) ([]game.RoundSummary, error) {
	f.roundsLimit = limit
	return f.rounds, nil
}

func (f *fakeStore) ListLeaderboard(context.Context, int, int) ([]storage.LeaderboardEntry, error) {
	return f.leaderboard, nil
}

func (f *fakeStore) GetLeaderboardEntryByUserID(context.Context, string) (*storage.LeaderboardEntry, error) {
	return f.entry, nil
}

func (f *fakeStore) SaveRound(context.Context, string, string, game.RoundSummary, *game.Stats) error {
	return nil
}

func (f *fakeStore) ResetStats(context.Context, string) error { return nil }
func (f *fakeStore) Close()                                  {}

func do(h http.HandlerFunc, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestCORSPreflight(t *testing.T) {
	h := NewHandler(config.Defaults(), nil, &fakeStats{}, fakeVerifier{})
	rec := do(h.PlayerStats, http.MethodOptions, "/api/stats", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestPlayerStats_RequiresAuth(t *testing.T) {
	h := NewHandler(config.Defaults(), nil, &fakeStats{}, fakeVerifier{})
	if rec := do(h.PlayerStats, http.MethodGet, "/api/stats", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(h.PlayerStats, http.MethodGet, "/api/stats", "bad"); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad token, got %d", rec.Code)
	}

	noAuth := NewHandler(config.Defaults(), nil, &fakeStats{}, nil)
	if rec := do(noAuth.PlayerStats, http.MethodGet, "/api/stats", "good"); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 when auth is disabled, got %d", rec.Code)
	}
}

func TestPlayerStats_Get(t *testing.T) {
	stats := &fakeStats{stats: game.NewStats(5)}
	h := NewHandler(config.Defaults(), nil, stats, fakeVerifier{})

	rec := do(h.PlayerStats, http.MethodGet, "/api/stats", "good")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["bestTime"]; !ok || body["bestTime"] != nil {
		t.Errorf("expected bestTime null for a fresh aggregate, got %v", body["bestTime"])
	}
	if body["perfectGames"] != float64(0) {
		t.Errorf("expected perfectGames 0, got %v", body["perfectGames"])
	}
}

func TestPlayerStats_GetError(t *testing.T) {
	h := NewHandler(config.Defaults(), nil, &fakeStats{err: errors.New("db down")}, fakeVerifier{})
	if rec := do(h.PlayerStats, http.MethodGet, "/api/stats", "good"); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestPlayerStats_Delete(t *testing.T) {
	stats := &fakeStats{}
	h := NewHandler(config.Defaults(), nil, stats, fakeVerifier{})

	rec := do(h.PlayerStats, http.MethodDelete, "/api/stats", "good")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(stats.resets) != 1 || stats.resets[0] != "user-1" {
		t.Errorf("expected reset for user-1, got %v", stats.resets)
	}
}

func TestPlayerStats_MethodNotAllowed(t *testing.T) {
	h := NewHandler(config.Defaults(), nil, &fakeStats{}, fakeVerifier{})
	if rec := do(h.PlayerStats, http.MethodPost, "/api/stats", "good"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHistory(t *testing.T) {
	store := &fakeStore{rounds: []game.RoundSummary{{RoundID: "r2"}, {RoundID: "r1"}}}
	h := NewHandler(config.Defaults(), store, &fakeStats{}, fakeVerifier{})

	rec := do(h.History, http.MethodGet, "/api/history?limit=2", "good")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var rounds []game.RoundSummary
	json.Unmarshal(rec.Body.Bytes(), &rounds)
	if len(rounds) != 2 || rounds[0].RoundID != "r2" {
		t.Errorf("unexpected rounds %+v", rounds)
	}
	if store.roundsLimit != 2 {
		t.Errorf("expected limit 2 passed to store, got %d", store.roundsLimit)
	}
}

func TestHistory_NoStore(t *testing.T) {
	h := NewHandler(config.Defaults(), nil, &fakeStats{}, fakeVerifier{})
	rec := do(h.History, http.MethodGet, "/api/history", "good")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("expected empty list, got %q", body)
	}
}

func TestLeaderboard_MarksCurrentUserOnPage(t *testing.T) {
	best := 12.5
	store := &fakeStore{leaderboard: []storage.LeaderboardEntry{
		{UserID: "user-2", BestTimeSec: &best},
		{UserID: "user-1", BestTimeSec: &best},
	}}
	h := NewHandler(config.Defaults(), store, &fakeStats{}, fakeVerifier{})

	rec := do(h.Leaderboard, http.MethodGet, "/api/leaderboard", "good")
	var resp LeaderboardResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Entries[1].IsCurrentUser || resp.Entries[0].IsCurrentUser {
		t.Errorf("expected only user-1 marked, got %+v", resp.Entries)
	}
	if resp.CurrentUserEntry != nil {
		t.Error("current user entry should be omitted when already on the page")
	}
}

func TestLeaderboard_AppendsCurrentUserOffPage(t *testing.T) {
	store := &fakeStore{
		leaderboard: []storage.LeaderboardEntry{{UserID: "user-2"}},
		entry:       &storage.LeaderboardEntry{UserID: "user-1", PerfectGames: 3},
	}
	h := NewHandler(config.Defaults(), store, &fakeStats{}, fakeVerifier{})

	rec := do(h.Leaderboard, http.MethodGet, "/api/leaderboard?limit=1", "good")
	var resp LeaderboardResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.CurrentUserEntry == nil || !resp.CurrentUserEntry.IsCurrentUser || resp.CurrentUserEntry.PerfectGames != 3 {
		t.Errorf("expected current user entry, got %+v", resp.CurrentUserEntry)
	}
}

func TestLeaderboard_Anonymous(t *testing.T) {
	store := &fakeStore{entry: &storage.LeaderboardEntry{UserID: "user-1"}}
	h := NewHandler(config.Defaults(), store, &fakeStats{}, fakeVerifier{})

	rec := do(h.Leaderboard, http.MethodGet, "/api/leaderboard", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp LeaderboardResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Entries == nil || len(resp.Entries) != 0 || resp.CurrentUserEntry != nil {
		t.Errorf("unexpected anonymous response %+v", resp)
	}
}

func TestHealthz(t *testing.T) {
	rec := do(Healthz, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"status\":\"ok\"}\n" {
		t.Errorf("unexpected healthz response %d %q", rec.Code, rec.Body.String())
	}
}
