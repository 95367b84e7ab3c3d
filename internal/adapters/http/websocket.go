package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/neargrid/internal/adapters/nats"
	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// wsRequest is sent by clients to follow or leave a thread's comments.
// An empty ThreadID means every thread.
type wsRequest struct {
	Action   string `json:"action"` // "subscribe" | "unsubscribe"
	ThreadID string `json:"thread_id"`
}

// wsFrame is everything the server writes. Exactly one of Event, Status and
// Error is set.
type wsFrame struct {
	Event    *domain.CommentEvent `json:"event,omitempty"`
	Status   string               `json:"status,omitempty"`
	Error    string               `json:"error,omitempty"`
	ThreadID string               `json:"thread_id,omitempty"`
}

// wsSubject maps a subscription request to the NATS subject it relays.
func wsSubject(threadID string) string {
	if threadID == "" {
		return natsadapter.CommentSubjects
	}
	return natsadapter.CommentSubject(threadID)
}

// commentRelay forwards comment events for the threads one client follows.
type commentRelay struct {
	nc   *nats.Conn
	conn *websocket.Conn

	writeMu sync.Mutex
	subs    map[string]*nats.Subscription // thread id -> subscription
}

func (r *commentRelay) send(f wsFrame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteMessage(websocket.TextMessage, data)
}

func (r *commentRelay) ping() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteMessage(websocket.PingMessage, nil)
}

func (r *commentRelay) handle(req wsRequest) wsFrame {
	switch req.Action {
	case "subscribe":
		if _, ok := r.subs[req.ThreadID]; ok {
			return wsFrame{Status: "already subscribed", ThreadID: req.ThreadID}
		}
		sub, err := r.nc.Subscribe(wsSubject(req.ThreadID), func(msg *nats.Msg) {
			ev, err := natsadapter.DecodeCommentEvent(msg.Data)
			if err != nil {
				slog.Debug("ws relay skipped malformed event", "subject", msg.Subject, "error", err)
				return
			}
			_ = r.send(wsFrame{Event: ev})
		})
		if err != nil {
			return wsFrame{Error: "subscribe failed: " + err.Error()}
		}
		r.subs[req.ThreadID] = sub
		return wsFrame{Status: "subscribed", ThreadID: req.ThreadID}

	case "unsubscribe":
		sub, ok := r.subs[req.ThreadID]
		if !ok {
			return wsFrame{Error: "not subscribed", ThreadID: req.ThreadID}
		}
		_ = sub.Unsubscribe()
		delete(r.subs, req.ThreadID)
		return wsFrame{Status: "unsubscribed", ThreadID: req.ThreadID}
	}
	return wsFrame{Error: "unknown action: " + req.Action}
}

func (r *commentRelay) close() {
	for _, sub := range r.subs {
		_ = sub.Unsubscribe()
	}
}

// WebSocketHandler upgrades to WebSocket and relays comment events from NATS.
// Clients send {"action":"subscribe","thread_id":"<uuid>"} and receive
// {"event":{...}} frames until they unsubscribe or disconnect.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remote := c.RemoteAddr().String()
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		relay := &commentRelay{nc: nc, conn: c, subs: make(map[string]*nats.Subscription)}
		if nc == nil {
			_ = relay.send(wsFrame{Error: "event relay unavailable"})
			return
		}
		defer relay.close()

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if relay.ping() != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		slog.Info("ws client connected", "remote", remote)
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			var req wsRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				_ = relay.send(wsFrame{Error: "invalid JSON"})
				continue
			}
			if err := relay.send(relay.handle(req)); err != nil {
				break
			}
		}
		slog.Info("ws client disconnected", "remote", remote, "subscriptions", len(relay.subs))
	}
}
