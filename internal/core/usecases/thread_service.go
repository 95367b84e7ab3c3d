package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/core/ports"
)

const maxContentRunes = 2000

// ThreadService handles thread-related business logic.
type ThreadService struct {
	threads   ports.ThreadRepository
	publisher ports.EventPublisher
	cache     ports.CacheService
}

// NewThreadService creates a new ThreadService.
func NewThreadService(threads ports.ThreadRepository, publisher ports.EventPublisher, cache ports.CacheService) *ThreadService {
	return &ThreadService{threads: threads, publisher: publisher, cache: cache}
}

// GetByID returns a single thread.
func (s *ThreadService) GetByID(ctx context.Context, id string) (*domain.Thread, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: thread id is required", domain.ErrInvalidInput)
	}
	return s.threads.GetByID(ctx, id)
}

// Create stores a new thread and drops cached map lookups so it shows up on
// the next region change.
func (s *ThreadService) Create(ctx context.Context, t *domain.Thread) (*domain.Thread, error) {
	t.Content = strings.TrimSpace(t.Content)
	if t.AuthorID == "" {
		return nil, fmt.Errorf("%w: author_id is required", domain.ErrInvalidInput)
	}
	if err := validateContent(t.Content); err != nil {
		return nil, err
	}
	if !t.Location.Valid() {
		return nil, fmt.Errorf("%w: location out of range", domain.ErrInvalidInput)
	}

	if err := s.threads.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.DeletePrefix(ctx, MapCachePrefix); err != nil {
			slog.WarnContext(ctx, "map cache invalidation failed", "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishThreadCreated(ctx, t); err != nil {
			slog.WarnContext(ctx, "publish thread created failed", "thread_id", t.ID, "error", err)
		}
	}

	return t, nil
}

func validateContent(content string) error {
	if content == "" {
		return fmt.Errorf("%w: content must not be empty", domain.ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > maxContentRunes {
		return fmt.Errorf("%w: content too long (max %d characters)", domain.ErrInvalidInput, maxContentRunes)
	}
	return nil
}
