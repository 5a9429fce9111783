package http

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/tripline/internal/adapters/nats"
	"github.com/samirrijal/tripline/internal/pkg/logging"
	"github.com/samirrijal/tripline/internal/pkg/metrics"
)

// wsMessage is sent by clients to follow or stop following a trip.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Trip    string `json:"trip"`    // trip hash
	Channel string `json:"channel"` // "events" | "generation" (default: events)
}

// wsSubject maps a channel and trip hash to the NATS subject to relay.
func wsSubject(channel, trip string) (string, bool) {
	switch channel {
	case "", "events":
		return natsadapter.SubjectPrefix + ".*." + trip, true
	case "generation":
		return natsadapter.GenerationSubject(trip), true
	default:
		return "", false
	}
}

// WebSocketHandler relays timeline events from NATS to connected clients.
// Clients send {"action":"subscribe","trip":"<hash>","channel":"events"}.
// Connecting with ?trip=<hash> subscribes to that trip's events right away.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	log := logging.Component("ws")

	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remote := c.RemoteAddr().String()
		log.Info("client connected", "remote", remote)

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription)

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		subscribe := func(subject string) error {
			s, err := nc.Subscribe(subject, func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				return err
			}
			subs[subject] = s
			return nil
		}

		if trip := c.Query("trip"); trip != "" {
			if !tripHashPattern.MatchString(trip) {
				_ = writeJSON(map[string]string{"error": "invalid trip hash"})
				return
			}
			subject, _ := wsSubject("events", trip)
			if err := subscribe(subject); err != nil {
				log.Error("default subscribe failed", "subject", subject, "error", err)
				return
			}
		}

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			if !tripHashPattern.MatchString(m.Trip) {
				_ = writeJSON(map[string]string{"error": "invalid trip hash"})
				continue
			}
			subject, ok := wsSubject(m.Channel, m.Trip)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				if err := subscribe(subject); err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				s, exists := subs[subject]
				if !exists {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
					continue
				}
				_ = s.Unsubscribe()
				delete(subs, subject)
				_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Info("client disconnected", "remote", remote)
	}
}
