package ports

import (
	"context"
	"time"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

// ThreadRepository persists threads.
type ThreadRepository interface {
	Create(ctx context.Context, thread *domain.Thread) error
	UpsertBatch(ctx context.Context, threads []domain.Thread) error
	GetByID(ctx context.Context, id string) (*domain.Thread, error)
	FindNearby(ctx context.Context, lat, lon, radiusMeters float64, limit int) ([]domain.Thread, error)
}

// CommentCursor is the keyset position after the last comment of a page.
type CommentCursor struct {
	CreatedAt time.Time
	ID        string
}

// CommentRepository persists comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	Delete(ctx context.Context, threadID, commentID string) error
	// ListByThread returns up to limit comments older than after (newest first).
	// A nil cursor starts from the newest comment.
	ListByThread(ctx context.Context, threadID string, after *CommentCursor, limit int) ([]domain.Comment, error)
}
