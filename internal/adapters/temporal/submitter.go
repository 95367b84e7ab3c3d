package temporaladapter

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/neargrid/internal/core/domain"
	"github.com/samirrijal/neargrid/internal/pkg/metrics"
	"github.com/samirrijal/neargrid/internal/workflows"
)

// Submitter implements ports.CommentSubmitter by running
// PublishCommentWorkflow and waiting for its result.
type Submitter struct {
	client    client.Client
	taskQueue string
	origin    string
}

// NewSubmitter creates a Submitter that starts workflows on taskQueue.
func NewSubmitter(c client.Client, taskQueue, origin string) *Submitter {
	return &Submitter{client: c, taskQueue: taskQueue, origin: origin}
}

// Submit starts the workflow for pending, keyed by its temporary id so a
// retried request never stores the comment twice.
func (s *Submitter) Submit(ctx context.Context, pending domain.Comment) (*domain.Comment, error) {
	opts := client.StartWorkflowOptions{
		ID:        "comment-" + pending.ID,
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, workflows.PublishCommentWorkflow, workflows.PublishCommentInput{
		Pending: pending,
		Origin:  s.origin,
	})
	if err != nil {
		return nil, fmt.Errorf("start comment workflow: %w", err)
	}
	metrics.WorkflowsStarted.WithLabelValues("publish_comment").Inc()

	var stored domain.Comment
	if err := run.Get(ctx, &stored); err != nil {
		return nil, fmt.Errorf("comment workflow %s: %w", run.GetID(), err)
	}
	return &stored, nil
}
