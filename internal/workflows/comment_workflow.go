package workflows

import (
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

// PublishCommentInput is the input for PublishCommentWorkflow.
type PublishCommentInput struct {
	Pending domain.Comment
	Origin  string
}

// PublishCommentWorkflow persists a comment and announces it. If the
// announcement fails the comment is deleted again (saga compensation) so no
// instance ends up showing a comment the others never heard about.
func PublishCommentWorkflow(ctx workflow.Context, input PublishCommentInput) (domain.Comment, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting comment workflow", "threadID", input.Pending.ThreadID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// The id is fixed before the first attempt so a retried PersistComment
	// writes the same row instead of a second one.
	c := input.Pending
	if c.ID == "" || domain.IsTemporaryID(c.ID) {
		if err := workflow.SideEffect(ctx, func(workflow.Context) any {
			return uuid.NewString()
		}).Get(&c.ID); err != nil {
			return domain.Comment{}, err
		}
	}
	c.Pending = false

	// Step 1: Persist
	var stored domain.Comment
	if err := workflow.ExecuteActivity(ctx, "PersistComment", c).Get(ctx, &stored); err != nil {
		return domain.Comment{}, err
	}

	// Step 2: Publish
	ev := domain.CommentEvent{
		Type:     domain.CommentCreated,
		Origin:   input.Origin,
		ThreadID: stored.ThreadID,
		Comment:  stored,
		At:       workflow.Now(ctx).UTC(),
	}
	if err := workflow.ExecuteActivity(ctx, "PublishComment", ev).Get(ctx, nil); err != nil {
		logger.Warn("publish failed, compensating", "commentID", stored.ID, "error", err)
		// Compensate: delete the comment
		_ = workflow.ExecuteActivity(ctx, "DeleteComment", stored.ThreadID, stored.ID).Get(ctx, nil)
		return domain.Comment{}, err
	}

	logger.Info("Comment published", "commentID", stored.ID)
	return stored, nil
}
