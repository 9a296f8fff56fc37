// Package notify announces published manifests on a NATS subject.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/slidebuilder/internal/config"
	"git.home.luguber.info/inful/slidebuilder/internal/logfields"
	"git.home.luguber.info/inful/slidebuilder/internal/manifest"
)

// EventType identifies manifest publication events.
const EventType = "manifest.published"

// ManifestEvent is the payload published after a manifest has been persisted.
type ManifestEvent struct {
	Type      string    `json:"type"`
	Owner     string    `json:"owner"`
	RunID     string    `json:"run_id"`
	Generated int64     `json:"generated"`
	Hash      string    `json:"hash"`
	Success   int       `json:"success"`
	Failure   int       `json:"failure"`
	Timestamp time.Time `json:"timestamp"`
}

// NewManifestEvent builds the event for m.
func NewManifestEvent(runID string, m *manifest.Manifest) ManifestEvent {
	success, failure := m.Counts()
	hash, _ := m.Hash()
	return ManifestEvent{
		Type:      EventType,
		Owner:     m.Owner,
		RunID:     runID,
		Generated: m.Generated,
		Hash:      hash,
		Success:   success,
		Failure:   failure,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher sends manifest events somewhere.
type Publisher interface {
	PublishManifest(ctx context.Context, event ManifestEvent) error
	Close()
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishManifest(context.Context, ManifestEvent) error { return nil }
func (NoopPublisher) Close()                                                {}

// NATSPublisher publishes events with core NATS.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// New returns a NATS publisher when a URL is configured and a NoopPublisher otherwise.
func New(cfg config.NotifyConfig) (Publisher, error) {
	if cfg.NATSURL == "" {
		return NoopPublisher{}, nil
	}
	p, err := NewNATSPublisher(cfg.NATSURL, cfg.Subject)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		return nil, fmt.Errorf("notify subject is required")
	}
	conn, err := nats.Connect(url,
		nats.Name("slidebuilder"),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("NATS publisher connected", logfields.URL(url), "subject", subject)
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// PublishManifest marshals event and waits for the server to acknowledge the flush.
func (p *NATSPublisher) PublishManifest(ctx context.Context, event ManifestEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	slog.Debug("Published manifest event",
		logfields.Owner(event.Owner),
		logfields.RunID(event.RunID),
		"subject", p.subject)
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
