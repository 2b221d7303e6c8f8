package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/welisten/apiserver/types"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
	ListByFeedback(ctx context.Context, feedbackID int64) ([]types.Comment, error)
	AppendReply(ctx context.Context, commentID int64, reply types.Reply) (types.Comment, error)
}

// FeedbackChecker reports whether a visible feedback exists.
type FeedbackChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// UserRepository resolves users for author expansion.
type UserRepository interface {
	ListByIDs(ctx context.Context, ids []int64) (map[int64]types.User, error)
}

// CommentService encapsulates comment use-cases.
type CommentService struct {
	comments CommentRepository
	feedback FeedbackChecker
	users    UserRepository
	logger   zerolog.Logger
}

func NewCommentService(comments CommentRepository, feedback FeedbackChecker, users UserRepository, logger zerolog.Logger) *CommentService {
	return &CommentService{
		comments: comments,
		feedback: feedback,
		users:    users,
		logger:   logger,
	}
}

// Add attaches a comment to a visible feedback.
func (s *CommentService) Add(ctx context.Context, userID, feedbackID int64, text string) (types.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Comment{}, invalid("text", "Text is required")
	}
	if feedbackID < 1 {
		return types.Comment{}, invalid("feedbackId", "Feedback id is required")
	}

	if err := s.requireFeedback(ctx, feedbackID); err != nil {
		return types.Comment{}, err
	}

	comment, err := s.comments.Create(ctx, types.Comment{
		FeedbackID: feedbackID,
		UserID:     userID,
		Text:       text,
	})
	if err != nil {
		return types.Comment{}, persistence("create comment", err)
	}
	return comment, nil
}

// ListByFeedback returns the comments of a feedback, newest first, with
// comment and reply authors expanded.
func (s *CommentService) ListByFeedback(ctx context.Context, feedbackID int64) ([]types.Comment, error) {
	if err := s.requireFeedback(ctx, feedbackID); err != nil {
		return nil, err
	}

	comments, err := s.comments.ListByFeedback(ctx, feedbackID)
	if err != nil {
		return nil, persistence("list comments", err)
	}

	users, err := s.users.ListByIDs(ctx, authorIDs(comments))
	if err != nil {
		return nil, persistence("list comment authors", err)
	}

	for i := range comments {
		comments[i].Author = s.author(users, comments[i].UserID)
		for j := range comments[i].Replies {
			comments[i].Replies[j].Author = s.author(users, comments[i].Replies[j].UserID)
		}
	}
	return comments, nil
}

// Reply appends a reply to a comment.
func (s *CommentService) Reply(ctx context.Context, userID, commentID int64, text string) (types.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Comment{}, invalid("text", "Text is required")
	}
	if commentID < 1 {
		return types.Comment{}, invalid("commentId", "Comment id is required")
	}

	comment, err := s.comments.AppendReply(ctx, commentID, types.Reply{UserID: userID, Text: text})
	if err != nil {
		return types.Comment{}, persistence("append reply", err)
	}
	return comment, nil
}

func (s *CommentService) requireFeedback(ctx context.Context, feedbackID int64) error {
	exists, err := s.feedback.Exists(ctx, feedbackID)
	if err != nil {
		return persistence("lookup feedback", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (s *CommentService) author(users map[int64]types.User, id int64) *types.User {
	if user, ok := users[id]; ok {
		return &user
	}
	s.logger.Warn().Int64("user_id", id).Msg("comment author not found, using placeholder")
	return types.PlaceholderUser(id)
}

func authorIDs(comments []types.Comment) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	add := func(id int64) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, comment := range comments {
		add(comment.UserID)
		for _, reply := range comment.Replies {
			add(reply.UserID)
		}
	}
	return ids
}
