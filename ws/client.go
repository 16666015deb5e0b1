package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"memory-pairs-server/game"
	"memory-pairs-server/gameerrors"
	"memory-pairs-server/sessions"
	"memory-pairs-server/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// openTimeout bounds loading a player's statistics when a session opens.
	openTimeout = 5 * time.Second
)

// Client is a middleman between the websocket connection and the player's session.
type Client struct {
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	UserID  string
	Name    string
	Guest   bool
	Session *game.Session

	limiter *rate.Limiter
}

// ReadPump pumps messages from the websocket connection to the session.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "tag", "ws", "user", c.UserID, "err", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(data []byte) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.Hub.Metrics.MessageRateLimited()
		c.sendError("Too many messages. Slow down.")
		return
	}

	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError("Invalid message format.")
		return
	}

	switch envelope.Type {
	case MsgAuth:
		c.handleAuth(envelope.Raw)
	case MsgGuest:
		c.handleGuest(envelope.Raw)
	case MsgStartRound:
		c.post(game.Action{Type: game.ActionStartRound})
	case MsgFlipCard:
		c.handleFlipCard(envelope.Raw)
	case MsgEndRound:
		c.post(game.Action{Type: game.ActionEndRound})
	case MsgGetStats:
		c.handleGetStats()
	case MsgResetStats:
		c.post(game.Action{Type: game.ActionResetStats})
	default:
		c.sendError("Unknown message type: " + envelope.Type)
	}
}

func (c *Client) handleAuth(raw json.RawMessage) {
	if c.Session != nil {
		c.sendError("Session already open.")
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Token == "" {
		c.sendError("Invalid auth message.")
		return
	}
	if c.Hub.Verifier == nil {
		c.sendError("Sign-in is not available. Play as a guest.")
		return
	}
	id, err := c.Hub.Verifier.Verify(msg.Token)
	if err != nil {
		slog.Warn("token rejected", "tag", "ws", "err", err)
		if errors.Is(err, gameerrors.ErrAuthNotEnabled) {
			c.sendError("Sign-in is not available. Play as a guest.")
			return
		}
		c.sendError("Sign-in failed. Please sign in again.")
		return
	}
	c.open(id.UserID, id.Name, false)
}

func (c *Client) handleGuest(raw json.RawMessage) {
	if c.Session != nil {
		c.sendError("Session already open.")
		return
	}
	var msg GuestMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid guest message.")
		return
	}
	name := strings.TrimSpace(msg.Name)
	if n := utf8.RuneCountInString(name); n < 1 || n > c.Hub.Config.MaxNameLength {
		c.sendError(fmt.Sprintf("Name must be between 1 and %d characters.", c.Hub.Config.MaxNameLength))
		return
	}
	c.open(sessions.GuestUserID(), name, true)
}

// open attaches the client to the player's session. The session greets the
// client with session_ready and the current round.
func (c *Client) open(userID, name string, guest bool) {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	s, resumed, err := c.Hub.Sessions.Open(ctx, userID, name, guest, c.Send)
	if err != nil {
		slog.Error("opening session failed", "tag", "ws", "user", userID, "err", err)
		c.sendError("Could not load your statistics. Try again.")
		return
	}
	c.UserID = userID
	c.Name = name
	c.Guest = guest
	c.Session = s
	slog.Info("client attached", "tag", "ws", "user", userID, "guest", guest, "resumed", resumed)
}

func (c *Client) handleFlipCard(raw json.RawMessage) {
	var msg FlipCardMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError("Invalid flip_card message.")
		return
	}
	c.post(game.Action{Type: game.ActionFlipCard, Index: msg.Index})
}

func (c *Client) handleGetStats() {
	if c.Session == nil {
		c.sendError("No session. Send auth or guest first.")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	st, err := c.Session.StatsSnapshot(ctx)
	if err != nil {
		c.sendError("Session ended. Reconnect to continue.")
		return
	}
	wsutil.SendJSON(c.Send, game.StatsMsg{Type: "stats", Stats: st})
}

func (c *Client) post(a game.Action) {
	if c.Session == nil {
		c.sendError("No session. Send auth or guest first.")
		return
	}
	if err := c.Session.Post(a); err != nil {
		c.sendError("Session ended. Reconnect to continue.")
	}
}

func (c *Client) sendError(message string) {
	wsutil.SendJSON(c.Send, ErrorMsg{Type: "error", Message: message})
}
