package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/samber/lo"

	"memory-pairs-server/auth"
	"memory-pairs-server/config"
	"memory-pairs-server/game"
	"memory-pairs-server/storage"
)

// StatsService reads and resets a player's statistics wherever they live.
type StatsService interface {
	Stats(ctx context.Context, userID string) (*game.Stats, error)
	ResetStats(ctx context.Context, userID string) error
}

// Handler holds dependencies for API handlers.
type Handler struct {
	Config   *config.Config
	Store    storage.StatsStore
	Stats    StatsService
	Verifier auth.Verifier
}

// NewHandler creates a new API handler. store and verifier may be nil.
func NewHandler(cfg *config.Config, store storage.StatsStore, stats StatsService, verifier auth.Verifier) *Handler {
	return &Handler{
		Config:   cfg,
		Store:    store,
		Stats:    stats,
		Verifier: verifier,
	}
}

// CORS sets CORS headers on the response. Call before writing body.
func CORS(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

// extractUserID validates the Authorization header and returns the user ID, or empty string on failure.
func (h *Handler) extractUserID(r *http.Request) string {
	if h.Verifier == nil {
		return ""
	}
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return ""
	}
	id, err := h.Verifier.Verify(token)
	if err != nil {
		slog.Debug("rejected bearer token", "tag", "api", "err", err)
		return ""
	}
	return id.UserID
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "tag", "api", "err", err)
	}
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

// PlayerStats serves GET (current statistics) and DELETE (reset) for the authenticated user.
func (h *Handler) PlayerStats(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := h.extractUserID(r)
	if userID == "" {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	if r.Method == http.MethodDelete {
		if err := h.Stats.ResetStats(r.Context(), userID); err != nil {
			slog.Error("reset stats failed", "tag", "api", "user", userID, "err", err)
			http.Error(w, "failed to reset statistics", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	st, err := h.Stats.Stats(r.Context(), userID)
	if err != nil {
		slog.Error("load stats failed", "tag", "api", "user", userID, "err", err)
		http.Error(w, "failed to load statistics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// History returns the authenticated user's most recent rounds, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := h.extractUserID(r)
	if userID == "" {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	list := []game.RoundSummary{}
	if h.Store != nil {
		rounds, err := h.Store.ListRounds(r.Context(), userID, queryInt(r, "limit"))
		if err != nil {
			slog.Error("list rounds failed", "tag", "api", "user", userID, "err", err)
			http.Error(w, "failed to load history", http.StatusInternalServerError)
			return
		}
		if rounds != nil {
			list = rounds
		}
	}
	writeJSON(w, http.StatusOK, list)
}

// LeaderboardResponse is the JSON structure for /api/leaderboard.
type LeaderboardResponse struct {
	Entries          []storage.LeaderboardEntry `json:"entries"`
	CurrentUserEntry *storage.LeaderboardEntry  `json:"current_user_entry"`
}

// Leaderboard returns the fastest players, plus the caller's own entry when it
// is not already on the page.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	if CORS(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries := []storage.LeaderboardEntry{}
	if h.Store != nil {
		list, err := h.Store.ListLeaderboard(r.Context(), queryInt(r, "limit"), queryInt(r, "offset"))
		if err != nil {
			slog.Error("list leaderboard failed", "tag", "api", "err", err)
			http.Error(w, "failed to load leaderboard", http.StatusInternalServerError)
			return
		}
		if list != nil {
			entries = list
		}
	}

	var currentUserEntry *storage.LeaderboardEntry
	authUserID := h.extractUserID(r)
	if authUserID != "" && h.Store != nil {
		_, idx, found := lo.FindIndexOf(entries, func(e storage.LeaderboardEntry) bool { return e.UserID == authUserID })
		if found {
			entries[idx].IsCurrentUser = true
		} else {
			cur, err := h.Store.GetLeaderboardEntryByUserID(r.Context(), authUserID)
			if err != nil {
				slog.Warn("current user leaderboard entry failed", "tag", "api", "user", authUserID, "err", err)
			} else if cur != nil {
				cur.IsCurrentUser = true
				currentUserEntry = cur
			}
		}
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{Entries: entries, CurrentUserEntry: currentUserEntry})
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
