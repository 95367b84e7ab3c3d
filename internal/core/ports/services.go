package ports

import (
	"context"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishThreadCreated(ctx context.Context, thread *domain.Thread) error
	PublishCommentEvent(ctx context.Context, event *domain.CommentEvent) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeCommentEvents(ctx context.Context, handler func(ctx context.Context, event *domain.CommentEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// CommentSubmitter confirms a pending comment with the backend and returns
// the stored version.
type CommentSubmitter interface {
	Submit(ctx context.Context, pending domain.Comment) (*domain.Comment, error)
}
