package workflows

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/neargrid/internal/core/domain"
)

type commentWorkflowSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite

	env *testsuite.TestWorkflowEnvironment
}

func (s *commentWorkflowSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterActivity(&CommentActivities{})
}

func (s *commentWorkflowSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func TestCommentWorkflowSuite(t *testing.T) {
	suite.Run(t, new(commentWorkflowSuite))
}

var pending = domain.Comment{ID: "temp-1", ThreadID: "t-1", AuthorID: "u-1", Content: "hi", Pending: true}

// toPersist matches the comment handed to PersistComment: the placeholder
// with a real id and the pending flag cleared.
var toPersist = mock.MatchedBy(func(c domain.Comment) bool {
	_, err := uuid.Parse(c.ID)
	return err == nil && !c.Pending && c.ThreadID == pending.ThreadID && c.Content == pending.Content
})

func (s *commentWorkflowSuite) TestPersistsAndPublishes() {
	stored := domain.Comment{ID: "c-1", ThreadID: "t-1", AuthorID: "u-1", Content: "hi"}
	s.env.OnActivity("PersistComment", mock.Anything, toPersist).Return(stored, nil).Once()
	s.env.OnActivity("PublishComment", mock.Anything, mock.MatchedBy(func(ev domain.CommentEvent) bool {
		return ev.Type == domain.CommentCreated && ev.Origin == "node-a" && ev.Comment.ID == "c-1"
	})).Return(nil).Once()

	s.env.ExecuteWorkflow(PublishCommentWorkflow, PublishCommentInput{Pending: pending, Origin: "node-a"})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())

	var got domain.Comment
	s.NoError(s.env.GetWorkflowResult(&got))
	s.Equal("c-1", got.ID)
	s.False(got.Pending)
}

func (s *commentWorkflowSuite) TestCompensatesWhenPublishFails() {
	stored := domain.Comment{ID: "c-1", ThreadID: "t-1"}
	s.env.OnActivity("PersistComment", mock.Anything, toPersist).Return(stored, nil)
	s.env.OnActivity("PublishComment", mock.Anything, mock.Anything).Return(errors.New("nats down"))
	s.env.OnActivity("DeleteComment", mock.Anything, "t-1", "c-1").Return(nil).Once()

	s.env.ExecuteWorkflow(PublishCommentWorkflow, PublishCommentInput{Pending: pending, Origin: "node-a"})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *commentWorkflowSuite) TestPersistFailureSkipsPublish() {
	s.env.OnActivity("PersistComment", mock.Anything, toPersist).Return(domain.Comment{}, errors.New("db down"))

	s.env.ExecuteWorkflow(PublishCommentWorkflow, PublishCommentInput{Pending: pending, Origin: "node-a"})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func (s *commentWorkflowSuite) TestPersistRetryReusesID() {
	var ids []string
	s.env.OnActivity("PersistComment", mock.Anything, toPersist).Return(
		func(ctx context.Context, c domain.Comment) (domain.Comment, error) {
			ids = append(ids, c.ID)
			if len(ids) == 1 {
				return domain.Comment{}, errors.New("connection reset after commit")
			}
			return c, nil
		}).Times(2)
	s.env.OnActivity("PublishComment", mock.Anything, mock.Anything).Return(nil).Once()

	s.env.ExecuteWorkflow(PublishCommentWorkflow, PublishCommentInput{Pending: pending, Origin: "node-a"})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	s.Require().Len(ids, 2)
	s.Equal(ids[0], ids[1])
	s.False(domain.IsTemporaryID(ids[0]))

	var got domain.Comment
	s.NoError(s.env.GetWorkflowResult(&got))
	s.Equal(ids[0], got.ID)
}

func (s *commentWorkflowSuite) TestKeepsConfirmedID() {
	input := pending
	input.ID = "6f1c2b9e-3a4d-4c5e-8f70-123456789abc"
	s.env.OnActivity("PersistComment", mock.Anything, mock.MatchedBy(func(c domain.Comment) bool {
		return c.ID == input.ID
	})).Return(domain.Comment{ID: input.ID, ThreadID: "t-1"}, nil).Once()
	s.env.OnActivity("PublishComment", mock.Anything, mock.Anything).Return(nil).Once()

	s.env.ExecuteWorkflow(PublishCommentWorkflow, PublishCommentInput{Pending: input, Origin: "node-a"})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}
