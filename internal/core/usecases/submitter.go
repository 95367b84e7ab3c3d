package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/core/ports"
)

// DirectSubmitter confirms comments by writing them straight to the
// repository and announcing them on the event bus.
type DirectSubmitter struct {
	comments  ports.CommentRepository
	publisher ports.EventPublisher
	origin    string
}

// NewDirectSubmitter creates a DirectSubmitter. publisher may be nil.
func NewDirectSubmitter(comments ports.CommentRepository, publisher ports.EventPublisher, origin string) *DirectSubmitter {
	return &DirectSubmitter{comments: comments, publisher: publisher, origin: origin}
}

// Submit persists the pending comment under a server-assigned id.
func (d *DirectSubmitter) Submit(ctx context.Context, pending domain.Comment) (*domain.Comment, error) {
	c := pending
	c.ID = ""
	c.Pending = false

	if err := d.comments.Create(ctx, &c); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	if d.publisher != nil {
		ev := &domain.CommentEvent{
			Type:     domain.CommentCreated,
			Origin:   d.origin,
			ThreadID: c.ThreadID,
			Comment:  c,
			At:       time.Now().UTC(),
		}
		if err := d.publisher.PublishCommentEvent(ctx, ev); err != nil {
			slog.WarnContext(ctx, "publish comment event failed", "comment_id", c.ID, "error", err)
		}
	}

	return &c, nil
}
