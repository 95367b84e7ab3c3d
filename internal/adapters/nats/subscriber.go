package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeCommentEvents delivers every new comment event to handler. Each
// instance gets its own ephemeral consumer so all of them see every event.
func (s *Subscriber) SubscribeCommentEvents(ctx context.Context, handler func(ctx context.Context, ev *domain.CommentEvent) error) error {
	sub, err := s.js.Subscribe(CommentSubjects, func(msg *nats.Msg) {
		ev, err := DecodeCommentEvent(msg.Data)
		if err != nil {
			slog.Warn("dropping malformed comment event", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, ev); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// DecodeCommentEvent parses a comment event payload.
func DecodeCommentEvent(data []byte) (*domain.CommentEvent, error) {
	var ev domain.CommentEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.ThreadID == "" || ev.Comment.ID == "" {
		return nil, fmt.Errorf("comment event missing thread or comment id")
	}
	return &ev, nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
