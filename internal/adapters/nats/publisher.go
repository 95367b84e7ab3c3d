package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

const (
	commentSubjectPrefix = "neargrid.comments."
	threadSubjectPrefix  = "neargrid.threads."

	// CommentSubjects matches every comment event.
	CommentSubjects = commentSubjectPrefix + ">"
)

// CommentSubject is the subject carrying comment events of one thread.
func CommentSubject(threadID string) string {
	return commentSubjectPrefix + threadID
}

// Streams returns the JetStream streams NearGrid publishes to.
func Streams() []nats.StreamConfig {
	return []nats.StreamConfig{
		{
			Name:      "NEARGRID_COMMENTS",
			Subjects:  []string{CommentSubjects},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "NEARGRID_THREADS",
			Subjects:  []string{threadSubjectPrefix + ">"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	for _, cfg := range Streams() {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishThreadCreated(ctx context.Context, t *domain.Thread) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(threadSubjectPrefix+"created", data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishCommentEvent(ctx context.Context, ev *domain.CommentEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(CommentSubject(ev.ThreadID), data, nats.Context(ctx))
	return err
}

// Ping reports whether the connection is up.
func (p *Publisher) Ping() error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats status %s", p.conn.Status())
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("neargrid"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
