package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/welisten/apiserver/types"
)

// CommentService is the comment use-case surface served over HTTP.
type CommentService interface {
	Add(ctx context.Context, userID, feedbackID int64, text string) (types.Comment, error)
	ListByFeedback(ctx context.Context, feedbackID int64) ([]types.Comment, error)
	Reply(ctx context.Context, userID, commentID int64, text string) (types.Comment, error)
}

// CommentHandler provides HTTP handlers for comments and replies.
type CommentHandler struct {
	commentService CommentService
}

func NewCommentHandler(commentService CommentService) *CommentHandler {
	return &CommentHandler{commentService: commentService}
}

// CommentRouter registers comment routes on the given router.
func CommentRouter(r chi.Router, commentService CommentService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewCommentHandler(commentService)

	r.With(authMiddleware).Post("/", handler.AddComment)
	r.With(authMiddleware).Post("/reply", handler.Reply)
	r.Get("/{feedbackID}", handler.ListComments)
}

func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AddCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.commentService.Add(r.Context(), userID, req.FeedbackID, req.Text)
	if err != nil {
		writeServiceError(w, r, err, feedbackNotFound)
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	feedbackID, err := parseIDParam(r, "feedbackID", "feedback")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comments, err := h.commentService.ListByFeedback(r.Context(), feedbackID)
	if err != nil {
		writeServiceError(w, r, err, feedbackNotFound)
		return
	}

	writeJSON(w, http.StatusOK, CommentListResponse{Comments: comments})
}

func (h *CommentHandler) Reply(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ReplyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := h.commentService.Reply(r.Context(), userID, req.CommentID, req.Text)
	if err != nil {
		writeServiceError(w, r, err, "Comment not found")
		return
	}

	writeJSON(w, http.StatusOK, comment)
}

type AddCommentRequest struct {
	FeedbackID int64  `json:"feedbackId"`
	Text       string `json:"text"`
}

type ReplyRequest struct {
	CommentID int64  `json:"commentId"`
	Text      string `json:"text"`
}

type CommentListResponse struct {
	Comments []types.Comment `json:"comments"`
}
