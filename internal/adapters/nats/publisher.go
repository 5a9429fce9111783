package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/tripline/internal/core/ports"
)

const (
	// StreamName is the JetStream stream holding every timeline subject.
	StreamName = "TIMELINE_EVENTS"
	// SubjectPrefix is the root of all timeline subjects.
	SubjectPrefix = "timeline"
)

// EventSubject is where events of kind for a trip are published.
func EventSubject(kind, tripHash string) string {
	return SubjectPrefix + "." + kind + "." + tripHash
}

// GenerationSubject carries generation observations for a trip.
func GenerationSubject(tripHash string) string {
	return EventSubject("generation", tripHash)
}

// GenerationMessage is the payload published on GenerationSubject.
type GenerationMessage struct {
	TripHash  string    `json:"trip_hash"`
	Generated bool      `json:"generated"`
	At        time.Time `json:"at"`
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the timeline stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ".>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    1 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist
		if _, err := js.UpdateStream(&cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishTimelineEvent publishes ev on timeline.<kind>.<trip>.
func (p *Publisher) PublishTimelineEvent(ctx context.Context, ev ports.TimelineEvent) error {
	if err := checkToken(ev.TripHash); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(EventSubject(ev.Kind, ev.TripHash), data, nats.Context(ctx))
	return err
}

// PublishGenerationStatus records one generation observation for a trip.
func (p *Publisher) PublishGenerationStatus(ctx context.Context, tripHash string, generated bool) error {
	if err := checkToken(tripHash); err != nil {
		return err
	}
	data, err := json.Marshal(GenerationMessage{TripHash: tripHash, Generated: generated, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(GenerationSubject(tripHash), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for readiness checks.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// checkToken rejects trip hashes that would change the subject hierarchy.
func checkToken(tripHash string) error {
	if tripHash == "" || strings.ContainsAny(tripHash, ".*> \t\r\n") {
		return fmt.Errorf("invalid trip hash %q for subject", tripHash)
	}
	return nil
}
