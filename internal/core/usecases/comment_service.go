package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/core/ports"
	"github.com/samirrijal/neargrid/internal/pkg/metrics"
	"github.com/samirrijal/neargrid/internal/pkg/querycache"
	"github.com/samirrijal/neargrid/internal/pkg/telemetry"
)

const (
	defaultCommentLimit = 20
	maxCommentLimit     = 100
)

// CommentLens addresses the comment list of a cached page.
var CommentLens = querycache.ListLens[domain.CommentPage, domain.Comment]{
	Get: func(p domain.CommentPage) []domain.Comment { return p.Comments },
	Set: func(p domain.CommentPage, items []domain.Comment) domain.CommentPage {
		p.Comments = items
		return p
	},
}

// CommentsKey addresses every cached comment list of a thread.
func CommentsKey(threadID string) querycache.Key {
	return querycache.Key{"comments", threadID}
}

// CommentService lists and mutates thread comments. Lists are served from a
// paginated query cache that is updated optimistically on writes.
type CommentService struct {
	comments  ports.CommentRepository
	submitter ports.CommentSubmitter
	publisher ports.EventPublisher
	store     *querycache.Store
	origin    string
	tracer    trace.Tracer

	now   func() time.Time
	newID func() string
}

// NewCommentService creates a new CommentService. publisher may be nil.
func NewCommentService(
	comments ports.CommentRepository,
	submitter ports.CommentSubmitter,
	publisher ports.EventPublisher,
	store *querycache.Store,
	origin string,
) *CommentService {
	return &CommentService{
		comments:  comments,
		submitter: submitter,
		publisher: publisher,
		store:     store,
		origin:    origin,
		tracer:    otel.Tracer("neargrid/usecases/comments"),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return domain.TempIDPrefix + uuid.NewString() },
	}
}

// List returns one page of a thread's comments, newest first. An empty cursor
// asks for the first page.
func (s *CommentService) List(ctx context.Context, threadID, cursor string, limit int) (*domain.CommentPage, error) {
	if threadID == "" {
		return nil, fmt.Errorf("%w: thread id is required", domain.ErrInvalidInput)
	}
	if limit <= 0 || limit > maxCommentLimit {
		limit = defaultCommentLimit
	}

	key := append(CommentsKey(threadID), strconv.Itoa(limit))

	if data, ok := querycache.GetInfinite[domain.CommentPage](s.store, key); ok {
		if page, ok := data.PageFor(cursor); ok {
			metrics.CacheHits.WithLabelValues("comments").Inc()
			return &page, nil
		}
	}
	metrics.CacheMisses.WithLabelValues("comments").Inc()

	var after *ports.CommentCursor
	if cursor != "" {
		c, err := DecodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		after = c
	}

	rows, err := s.comments.ListByThread(ctx, threadID, after, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	page := domain.CommentPage{Comments: rows}
	if len(rows) > limit {
		page.Comments = rows[:limit]
		page.HasMore = true
		page.NextCursor = EncodeCursor(rows[limit-1])
	}
	if page.Comments == nil {
		page.Comments = []domain.Comment{}
	}

	if cursor == "" {
		querycache.SetInfinite(s.store, key, querycache.InfiniteData[domain.CommentPage]{
			Pages:      []domain.CommentPage{page},
			PageParams: []any{""},
		})
	} else if !querycache.AppendPage(s.store, key, cursor, page) {
		// A later page cached on its own would be taken for the newest one.
		slog.DebugContext(ctx, "comment page not cached", "thread_id", threadID, "cursor", cursor)
	}

	return &page, nil
}

// Post adds a comment. The comment appears in cached lists immediately as a
// pending placeholder, which is swapped for the stored comment once the
// submitter confirms it or withdrawn if submission fails.
func (s *CommentService) Post(ctx context.Context, threadID, authorID, content string) (*domain.Comment, error) {
	content = strings.TrimSpace(content)
	if threadID == "" || authorID == "" {
		return nil, fmt.Errorf("%w: thread id and author id are required", domain.ErrInvalidInput)
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "CommentService.Post")
	defer span.End()

	pending := domain.Comment{
		ID:        s.newID(),
		ThreadID:  threadID,
		AuthorID:  authorID,
		Content:   content,
		Pending:   true,
		CreatedAt: s.now(),
	}
	key := CommentsKey(threadID)
	querycache.AddItem(s.store, key, CommentLens, pending)
	span.SetAttributes(attribute.String("comment.temp_id", pending.ID))

	confirmed, err := s.submitter.Submit(ctx, pending)
	if err != nil {
		querycache.RemoveItem(s.store, key, CommentLens, querycache.IDOf[domain.Comment], pending.ID)
		metrics.OptimisticUpdates.WithLabelValues("rolled_back").Inc()
		span.AddEvent(telemetry.MetricCommentRollbacks)
		span.RecordError(err)
		return nil, fmt.Errorf("submit comment: %w", err)
	}

	querycache.ReplaceItem(s.store, key, CommentLens, querycache.IDOf[domain.Comment], pending.ID, *confirmed)
	metrics.OptimisticUpdates.WithLabelValues("confirmed").Inc()
	span.AddEvent(telemetry.MetricCommentsPosted)

	return confirmed, nil
}

// Delete removes a comment from cached lists right away and then from the
// repository. If the repository refuses, cached lists are invalidated so the
// next read reflects the server state.
func (s *CommentService) Delete(ctx context.Context, threadID, commentID string) error {
	if threadID == "" || commentID == "" {
		return fmt.Errorf("%w: thread id and comment id are required", domain.ErrInvalidInput)
	}
	// Placeholders never reach the repository.
	if domain.IsTemporaryID(commentID) {
		return domain.ErrNotFound
	}

	key := CommentsKey(threadID)
	querycache.RemoveItem(s.store, key, CommentLens, querycache.IDOf[domain.Comment], commentID)

	if err := s.comments.Delete(ctx, threadID, commentID); err != nil {
		s.store.Invalidate(key)
		metrics.OptimisticUpdates.WithLabelValues("invalidated").Inc()
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete comment: %w", err)
	}

	if s.publisher != nil {
		ev := &domain.CommentEvent{
			Type:     domain.CommentDeleted,
			Origin:   s.origin,
			ThreadID: threadID,
			Comment:  domain.Comment{ID: commentID, ThreadID: threadID},
			At:       s.now(),
		}
		if err := s.publisher.PublishCommentEvent(ctx, ev); err != nil {
			slog.WarnContext(ctx, "publish comment deleted failed", "comment_id", commentID, "error", err)
		}
	}
	return nil
}

// ApplyEvent folds a comment event produced by another instance into the
// local cache. Applying the same event twice has no further effect.
func (s *CommentService) ApplyEvent(ctx context.Context, ev *domain.CommentEvent) error {
	if ev == nil || ev.Origin == s.origin {
		return nil
	}
	key := CommentsKey(ev.ThreadID)
	idOf := querycache.IDOf[domain.Comment]

	switch ev.Type {
	case domain.CommentCreated:
		if querycache.ContainsItem(s.store, key, CommentLens, idOf, ev.Comment.ID) {
			querycache.ReplaceItem(s.store, key, CommentLens, idOf, ev.Comment.ID, ev.Comment)
		} else {
			querycache.AddItem(s.store, key, CommentLens, ev.Comment)
		}
	case domain.CommentDeleted:
		querycache.RemoveItem(s.store, key, CommentLens, idOf, ev.Comment.ID)
	default:
		return fmt.Errorf("unknown comment event type %q", ev.Type)
	}

	metrics.EventsApplied.WithLabelValues(string(ev.Type)).Inc()
	return nil
}
