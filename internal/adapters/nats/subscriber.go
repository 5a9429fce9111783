package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/tripline/internal/core/domain"
)

// Subscriber implements ports.GenerationStatusSource using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// ObserveGenerationStatus streams observations published for tripHash after
// the call. The subscription ends and the channel closes when ctx is done.
func (s *Subscriber) ObserveGenerationStatus(ctx context.Context, tripHash string) (<-chan domain.GenerationStatus, error) {
	if err := checkToken(tripHash); err != nil {
		return nil, err
	}

	ch := make(chan domain.GenerationStatus, 8)
	var (
		mu     sync.Mutex
		closed bool
	)
	deliver := func(st domain.GenerationStatus) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- st:
		case <-ctx.Done():
		}
	}

	sub, err := s.js.Subscribe(GenerationSubject(tripHash), func(msg *nats.Msg) {
		var m GenerationMessage
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			deliver(domain.GenerationStatus{Err: fmt.Errorf("decode generation message: %w", err)})
			return
		}
		deliver(domain.GenerationStatus{Generated: m.Generated})
	},
		nats.DeliverNew(),
		nats.AckNone(),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", GenerationSubject(tripHash), err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()
	return ch, nil
}

// Close drains the connection.
func (s *Subscriber) Close() {
	_ = s.conn.Drain()
}
