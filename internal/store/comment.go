package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/welisten/apiserver/types"
)

const commentColumns = `id, feedback_id, user_id, text, replies, created_at, updated_at`

// storedReply is the JSONB shape of an embedded reply.
type storedReply struct {
	UserID    int64     `json:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// CommentRepository handles persistence for comments and their replies.
type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment types.Comment) (types.Comment, error) {
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	comment.Replies = []types.Reply{}

	const query = `
		INSERT INTO comments (feedback_id, user_id, text, replies, created_at, updated_at)
		VALUES ($1, $2, $3, '[]'::jsonb, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		comment.FeedbackID,
		comment.UserID,
		comment.Text,
		comment.CreatedAt,
		comment.UpdatedAt,
	).Scan(&comment.ID); err != nil {
		return types.Comment{}, err
	}
	return comment, nil
}

// ListByFeedback returns the comments of a feedback, newest first.
func (r *CommentRepository) ListByFeedback(ctx context.Context, feedbackID int64) ([]types.Comment, error) {
	query := `
		SELECT ` + commentColumns + `
		FROM comments
		WHERE feedback_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, feedbackID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []types.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, comment)
	}
	return comments, rows.Err()
}

// AppendReply appends a reply to the comment's reply list in one statement.
func (r *CommentRepository) AppendReply(ctx context.Context, commentID int64, reply types.Reply) (types.Comment, error) {
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(storedReply{
		UserID:    reply.UserID,
		Text:      reply.Text,
		CreatedAt: reply.CreatedAt,
	})
	if err != nil {
		return types.Comment{}, err
	}

	query := `
		UPDATE comments
		SET replies = replies || jsonb_build_array($1::jsonb),
			updated_at = $2
		WHERE id = $3
		RETURNING ` + commentColumns
	comment, err := scanComment(r.db.QueryRowContext(ctx, query, string(payload), reply.CreatedAt, commentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Comment{}, ErrNotFound
		}
		return types.Comment{}, err
	}
	return comment, nil
}

func scanComment(row rowScanner) (types.Comment, error) {
	var comment types.Comment
	var repliesJSON []byte
	if err := row.Scan(
		&comment.ID,
		&comment.FeedbackID,
		&comment.UserID,
		&comment.Text,
		&repliesJSON,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	); err != nil {
		return types.Comment{}, err
	}

	var stored []storedReply
	if len(repliesJSON) > 0 {
		if err := json.Unmarshal(repliesJSON, &stored); err != nil {
			return types.Comment{}, err
		}
	}
	comment.Replies = make([]types.Reply, 0, len(stored))
	for _, reply := range stored {
		comment.Replies = append(comment.Replies, types.Reply{
			UserID:    reply.UserID,
			Text:      reply.Text,
			CreatedAt: reply.CreatedAt,
		})
	}
	return comment, nil
}
