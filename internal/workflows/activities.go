package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/core/ports"
	"github.com/samirrijal/neargrid/internal/pkg/metrics"
	"github.com/samirrijal/neargrid/internal/pkg/telemetry"
)

// CommentActivities holds the activity implementations for PublishCommentWorkflow.
type CommentActivities struct {
	Comments  ports.CommentRepository
	Publisher ports.EventPublisher
}

// PersistComment stores the comment under its id, which makes retries safe.
// Placeholder ids are dropped and the database assigns one.
func (a *CommentActivities) PersistComment(ctx context.Context, pending domain.Comment) (domain.Comment, error) {
	c := pending
	if domain.IsTemporaryID(c.ID) {
		c.ID = ""
	}
	c.Pending = false
	if err := a.Comments.Create(ctx, &c); err != nil {
		return domain.Comment{}, fmt.Errorf("persist comment: %w", err)
	}
	return c, nil
}

// PublishComment announces a confirmed comment to the other instances.
func (a *CommentActivities) PublishComment(ctx context.Context, ev domain.CommentEvent) error {
	if a.Publisher == nil {
		slog.WarnContext(ctx, "no publisher configured, comment event dropped", "comment_id", ev.Comment.ID)
		return nil
	}
	if err := a.Publisher.PublishCommentEvent(ctx, &ev); err != nil {
		return fmt.Errorf("publish comment %s: %w", ev.Comment.ID, err)
	}
	return nil
}

// DeleteComment removes a persisted comment (saga compensation). A comment
// that is already gone counts as deleted.
func (a *CommentActivities) DeleteComment(ctx context.Context, threadID, commentID string) error {
	err := a.Comments.Delete(ctx, threadID, commentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete comment %s: %w", commentID, err)
	}
	metrics.OptimisticUpdates.WithLabelValues("compensated").Inc()
	trace.SpanFromContext(ctx).AddEvent(telemetry.MetricCommentsRetracted)
	slog.InfoContext(ctx, "comment deleted (saga compensation)", "comment_id", commentID)
	return nil
}
