package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"memory-pairs-server/game"
)

// RoundEvent is published once per scored round.
type RoundEvent struct {
	UserID       string            `json:"userId"`
	Name         string            `json:"name"`
	Guest        bool              `json:"guest"`
	Summary      game.RoundSummary `json:"summary"`
	PerfectGames int               `json:"perfectGames"`
	BestTime     *float64          `json:"bestTime"`
	PublishedAt  int64             `json:"publishedAtUnixMs"`
}

// NewRoundEvent builds the event for a round from the statistics it produced.
func NewRoundEvent(userID, name string, guest bool, summary game.RoundSummary, stats *game.Stats) RoundEvent {
	ev := RoundEvent{
		UserID:       userID,
		Name:         name,
		Guest:        guest,
		Summary:      summary,
		PerfectGames: stats.PerfectGames,
		PublishedAt:  time.Now().UnixMilli(),
	}
	if stats.HasBestTime() {
		best := stats.BestTime
		ev.BestTime = &best
	}
	return ev
}

// Publisher delivers round events to other services. Delivery is best effort.
type Publisher interface {
	PublishRound(ctx context.Context, ev RoundEvent) error
	Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishRound(context.Context, RoundEvent) error { return nil }
func (NopPublisher) Close()                                        {}

// NATSPublisher publishes round events as JSON on a NATS subject.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// New connects to NATS at url. An empty url disables publishing.
func New(url, subject string) (Publisher, error) {
	if url == "" {
		return NopPublisher{}, nil
	}
	opts := []nats.Option{
		nats.Name("memory-pairs-server"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "tag", "events", "err", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("NATS reconnected", "tag", "events", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	slog.Info("connected to NATS", "tag", "events", "subject", subject)
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// PublishRound encodes ev and publishes it. The context only bounds the flush.
func (p *NATSPublisher) PublishRound(ctx context.Context, ev RoundEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding round event: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publishing round event: %w", err)
	}
	return p.nc.FlushWithContext(ctx)
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		slog.Warn("draining NATS connection", "tag", "events", "err", err)
	}
}
