package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"memory-pairs-server/config"
	"memory-pairs-server/events"
	"memory-pairs-server/game"
	"memory-pairs-server/metrics"
	"memory-pairs-server/storage"
)

const (
	guestUserIDPrefix = "guest:"

	// persistQueueSize bounds the pending writes of one session.
	persistQueueSize = 64
	persistTimeout   = 5 * time.Second
)

// GuestUserID returns a fresh user ID for an unauthenticated player.
func GuestUserID() string {
	return guestUserIDPrefix + uuid.NewString()
}

// IsGuest reports whether userID belongs to an unauthenticated player.
func IsGuest(userID string) bool {
	return strings.HasPrefix(userID, guestUserIDPrefix)
}

type entry struct {
	session *game.Session
	cues    *game.SoundCues
	send    chan []byte
	guest   bool

	// persist serializes this session's store writes and event publishing.
	persist     chan func(ctx context.Context)
	detachTimer *time.Timer
}

// Manager owns every live session, keyed by user ID.
type Manager struct {
	cfg       *config.Config
	store     storage.StatsStore
	publisher events.Publisher
	metrics   *metrics.Metrics

	reconnectTimeout time.Duration

	ctx context.Context
	mu  sync.Mutex
	// sessions holds at most one entry per user.
	sessions map[string]*entry
	workers  sync.WaitGroup
}

// NewManager creates a Manager. store, publisher and m may be nil.
// Sessions run until ctx is cancelled or they are closed.
func NewManager(ctx context.Context, cfg *config.Config, store storage.StatsStore, publisher events.Publisher, m *metrics.Metrics) *Manager {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Manager{
		cfg:              cfg,
		store:            store,
		publisher:        publisher,
		metrics:          m,
		reconnectTimeout: time.Duration(cfg.ReconnectTimeoutSec) * time.Second,
		ctx:              ctx,
		sessions:         make(map[string]*entry),
	}
}

func (m *Manager) options() game.Options {
	return game.Options{
		Rows:            m.cfg.BoardRows,
		Cols:            m.cfg.BoardCols,
		RevealDuration:  time.Duration(m.cfg.RevealDurationMS) * time.Millisecond,
		FeedbackTimeout: time.Duration(m.cfg.FeedbackTimeoutMS) * time.Millisecond,
		HistoryLimit:    m.cfg.HistoryLimit,
	}
}

// Open returns userID's session bound to send. A live session is resumed
// (resumed=true); otherwise the player's statistics are loaded and a new
// session is started.
func (m *Manager) Open(ctx context.Context, userID, name string, guest bool, send chan []byte) (*game.Session, bool, error) {
	if s, ok := m.resume(userID, send); ok {
		return s, true, nil
	}

	var stats *game.Stats
	if !guest && m.store != nil {
		loaded, err := m.store.LoadStats(ctx, userID, m.cfg.HistoryLimit)
		if err != nil {
			return nil, false, fmt.Errorf("loading statistics: %w", err)
		}
		stats = loaded
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Another connection may have opened the session while stats were loading.
	if e, ok := m.sessions[userID]; ok && m.rebindLocked(e, send) {
		return e.session, true, nil
	}

	s := game.NewSession(userID, name, m.options(), stats, send)
	s.Guest = guest
	e := &entry{
		session: s,
		cues:    game.NewSoundCues(send),
		send:    send,
		guest:   guest,
		persist: make(chan func(ctx context.Context), persistQueueSize),
	}
	s.Feedback = e.cues
	s.OnRoundEnd = func(userID, name string, summary game.RoundSummary, stats *game.Stats) {
		m.metrics.ObserveRound(summary)
		m.enqueue(e, "save round", func(ctx context.Context) error {
			if e.guest || m.store == nil {
				return nil
			}
			return m.store.SaveRound(ctx, userID, name, summary, stats)
		})
		m.enqueue(e, "publish round", func(ctx context.Context) error {
			return m.publisher.PublishRound(ctx, events.NewRoundEvent(userID, name, e.guest, summary, stats))
		})
	}
	s.OnStatsReset = func(userID string) {
		m.enqueue(e, "reset stats", func(ctx context.Context) error {
			if e.guest || m.store == nil {
				return nil
			}
			return m.store.ResetStats(ctx, userID)
		})
	}
	m.sessions[userID] = e
	m.metrics.SessionOpened()

	m.workers.Add(1)
	go m.persistLoop(e)
	go m.watch(userID, e)
	go s.Run(m.ctx)

	slog.Info("session opened", "tag", "sessions", "user", userID, "guest", guest)
	return s, false, nil
}

func (m *Manager) resume(userID string, send chan []byte) (*game.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok || !m.rebindLocked(e, send) {
		return nil, false
	}
	slog.Info("session resumed", "tag", "sessions", "user", userID)
	return e.session, true
}

// rebindLocked points a live session at send. It reports false if the session has ended.
func (m *Manager) rebindLocked(e *entry, send chan []byte) bool {
	if e.detachTimer != nil {
		e.detachTimer.Stop()
		e.detachTimer = nil
	}
	if err := e.session.Post(game.Action{Type: game.ActionRebind, NewSend: send}); err != nil {
		return false
	}
	e.send = send
	return true
}

// Detach marks the connection behind send as gone. If no client reopens the
// session within the reconnect window, the session is closed.
func (m *Manager) Detach(userID string, send chan []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok || e.send != send {
		return
	}
	if e.detachTimer != nil {
		e.detachTimer.Stop()
	}
	e.detachTimer = time.AfterFunc(m.reconnectTimeout, func() {
		m.mu.Lock()
		expired := m.sessions[userID] == e && e.send == send
		if expired {
			delete(m.sessions, userID)
		}
		m.mu.Unlock()
		if expired {
			slog.Info("reconnect window expired", "tag", "sessions", "user", userID)
			closeSession(e)
		}
	})
}

// Get returns the live session for userID, if any.
func (m *Manager) Get(userID string) (*game.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Stats returns userID's statistics from the live session or, failing that, the store.
func (m *Manager) Stats(ctx context.Context, userID string) (*game.Stats, error) {
	if s, ok := m.Get(userID); ok {
		if st, err := s.StatsSnapshot(ctx); err == nil {
			return st, nil
		}
	}
	if m.store == nil || IsGuest(userID) {
		return game.NewStats(m.cfg.HistoryLimit), nil
	}
	return m.store.LoadStats(ctx, userID, m.cfg.HistoryLimit)
}

// ResetStats clears userID's statistics in the live session and the store.
func (m *Manager) ResetStats(ctx context.Context, userID string) error {
	if s, ok := m.Get(userID); ok {
		if err := s.Post(game.Action{Type: game.ActionResetStats}); err == nil {
			return nil
		}
	}
	if m.store == nil || IsGuest(userID) {
		return nil
	}
	return m.store.ResetStats(ctx, userID)
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown closes every session and waits for their pending writes.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.sessions))
	for userID, e := range m.sessions {
		if e.detachTimer != nil {
			e.detachTimer.Stop()
		}
		entries = append(entries, e)
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	for _, e := range entries {
		closeSession(e)
	}

	done := make(chan struct{})
	go func() {
		m.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown: pending session writes abandoned", "tag", "sessions")
	}
}

// closeSession stops the session loop. ErrSessionClosed only means it already stopped.
func closeSession(e *entry) {
	if err := e.session.Post(game.Action{Type: game.ActionClose}); err != nil {
		slog.Debug("session already closed", "tag", "sessions", "user", e.session.UserID, "err", err)
	}
}

// watch forgets the session once its loop exits and stops its writer.
func (m *Manager) watch(userID string, e *entry) {
	<-e.session.Done
	m.mu.Lock()
	if m.sessions[userID] == e {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	// The session goroutine is the only sender on persist and it has exited.
	close(e.persist)
	m.metrics.SessionClosed()
	slog.Info("session closed", "tag", "sessions", "user", userID)
}

// enqueue hands a write to the session's writer without blocking the session loop.
func (m *Manager) enqueue(e *entry, what string, job func(ctx context.Context) error) {
	wrapped := func(ctx context.Context) {
		if err := job(ctx); err != nil {
			slog.Warn(what+" failed", "tag", "sessions", "user", e.session.UserID, "err", err)
			m.metrics.PersistFailed()
		}
	}
	select {
	case e.persist <- wrapped:
	default:
		slog.Warn(what+" dropped: write queue full", "tag", "sessions", "user", e.session.UserID)
		m.metrics.PersistFailed()
	}
}

func (m *Manager) persistLoop(e *entry) {
	defer m.workers.Done()
	for job := range e.persist {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		job(ctx)
		cancel()
	}
}
