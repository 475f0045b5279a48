// Package events publishes build lifecycle events to NATS JetStream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/deepankarm/docver/internal/config"
)

// Event types emitted over the build lifecycle.
const (
	TypeBuildStarted   = "build.started"
	TypeVersionBuilt   = "build.version"
	TypeBuildCompleted = "build.completed"
	TypeBuildFailed    = "build.failed"
)

// Event is the wire payload for a build lifecycle event.
type Event struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	Version   string    `json:"version,omitempty"`
	Latest    string    `json:"latest,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits build events. The Noop implementation is used when events
// are not configured.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// NoopPublisher discards all events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close()                               {}

// NATSPublisher publishes events to a JetStream stream.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATSPublisher connects to NATS and ensures the configured stream exists.
func NewNATSPublisher(ctx context.Context, cfg *config.EventsConfig) (*NATSPublisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, fmt.Errorf("events are not enabled")
	}

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject},
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.Stream, err)
	}

	slog.Info("NATS event publisher initialized",
		"url", cfg.URL, "subject", cfg.Subject, "stream", cfg.Stream)

	return &NATSPublisher{conn: conn, js: js, subject: cfg.Subject}, nil
}

// Publish sends one event; failures are returned, not fatal to the build.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, p.subject, payload); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close drains the underlying connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
