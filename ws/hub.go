package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"memory-pairs-server/auth"
	"memory-pairs-server/config"
	"memory-pairs-server/game"
	"memory-pairs-server/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionManager is what the Hub needs from the session manager.
type SessionManager interface {
	Open(ctx context.Context, userID, name string, guest bool, send chan []byte) (*game.Session, bool, error)
	Detach(userID string, send chan []byte)
}

// Hub maintains the set of active clients.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Sessions   SessionManager
	Verifier   auth.Verifier
	Config     *config.Config
	Metrics    *metrics.Metrics

	// done is closed when Run returns.
	done chan struct{}
}

// NewHub creates a new Hub. verifier may be nil when authentication is disabled.
func NewHub(cfg *config.Config, sessions SessionManager, verifier auth.Verifier, m *metrics.Metrics) *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Sessions:   sessions,
		Verifier:   verifier,
		Config:     cfg,
		Metrics:    m,
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. Should be run as a goroutine.
// When ctx is cancelled, Run returns and no longer accepts registrations.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received, stopping", "tag", "ws")
			return
		case client := <-h.Register:
			h.Clients[client] = true
			h.Metrics.ClientConnected()
			slog.Debug("client connected", "tag", "ws", "clients", len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				close(client.Send)
				h.Metrics.ClientDisconnected()
				slog.Debug("client disconnected", "tag", "ws", "clients", len(h.Clients), "user", client.UserID)

				// Keep the session for a rejoin; the manager closes it if none comes.
				if client.UserID != "" {
					h.Sessions.Detach(client.UserID, client.Send)
				}
			}
		}
	}
}

// register hands c to the Run loop. It reports false once the hub has stopped.
func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

// unregister hands c back to the Run loop; a stopped hub drops it.
func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) newLimiter() *rate.Limiter {
	if h.Config.RateLimitPerSec <= 0 {
		return nil
	}
	burst := h.Config.RateLimitBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.Config.RateLimitPerSec), burst)
}

// ServeWS handles WebSocket upgrade requests and creates a new Client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "tag", "ws", "err", err)
		return
	}

	client := &Client{
		Hub:     h,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		limiter: h.newLimiter(),
	}

	if !h.register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
