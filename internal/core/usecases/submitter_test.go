package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/core/usecases"
)

func TestDirectSubmitter_Submit(t *testing.T) {
	pub := &mockPublisher{}
	sub := usecases.NewDirectSubmitter(&mockCommentRepo{}, pub, "node-a")

	c, err := sub.Submit(context.Background(), domain.Comment{ID: "temp-1", ThreadID: "t-1", Content: "hi", Pending: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != "c-server" || c.Pending {
		t.Errorf("unexpected comment %+v", c)
	}
	if len(pub.comments) != 1 || pub.comments[0].Origin != "node-a" {
		t.Errorf("expected one event from node-a, got %+v", pub.comments)
	}
}

func TestDirectSubmitter_Submit_RepoError(t *testing.T) {
	boom := errors.New("insert failed")
	repo := &mockCommentRepo{createFn: func(ctx context.Context, c *domain.Comment) error { return boom }}
	pub := &mockPublisher{}
	sub := usecases.NewDirectSubmitter(repo, pub, "node-a")

	if _, err := sub.Submit(context.Background(), domain.Comment{ID: "temp-1", ThreadID: "t-1"}); !errors.Is(err, boom) {
		t.Fatalf("expected repo error, got %v", err)
	}
	if len(pub.comments) != 0 {
		t.Errorf("expected no events, got %d", len(pub.comments))
	}
}
