package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/welisten/apiserver/internal/services"
	"github.com/welisten/apiserver/types"
)

const feedbackNotFound = "Feedback not found"

// FeedbackService is the feedback use-case surface served over HTTP.
type FeedbackService interface {
	Create(ctx context.Context, userID int64, input services.CreateFeedbackInput) (types.Feedback, error)
	List(ctx context.Context, query services.ListQuery) (types.FeedbackPage, error)
	Get(ctx context.Context, id int64) (types.FeedbackView, error)
	Update(ctx context.Context, id int64, input services.UpdateFeedbackInput) (types.Feedback, error)
	Upvote(ctx context.Context, id int64) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status string) (types.Feedback, error)
	StatusCounts(ctx context.Context) ([]types.StatusCount, error)
	Categories() []string
	Statuses() []string
}

// FeedbackHandler provides HTTP handlers for feedback.
type FeedbackHandler struct {
	feedbackService FeedbackService
}

func NewFeedbackHandler(feedbackService FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// FeedbackRouter registers feedback routes on the given router. Mutations
// require authMiddleware.
func FeedbackRouter(r chi.Router, feedbackService FeedbackService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewFeedbackHandler(feedbackService)

	r.Get("/", handler.ListFeedback)
	r.Get("/categories", handler.ListCategories)
	r.Get("/statuses", handler.ListStatuses)
	r.Get("/status-count", handler.CountByStatus)
	r.With(authMiddleware).Post("/", handler.CreateFeedback)
	r.Route("/{feedbackID}", func(r chi.Router) {
		r.Get("/", handler.GetFeedback)
		r.With(authMiddleware).Put("/", handler.UpdateFeedback)
		r.With(authMiddleware).Post("/upvote", handler.Upvote)
		r.With(authMiddleware).Patch("/status", handler.UpdateStatus)
	})
}

func (h *FeedbackHandler) ListFeedback(w http.ResponseWriter, r *http.Request) {
	page, limit, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	result, err := h.feedbackService.List(r.Context(), services.ListQuery{
		Search:   query.Get("search"),
		Category: query.Get("category"),
		Sort:     query.Get("sort"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		writeServiceError(w, r, err, feedbackNotFound)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *FeedbackHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "feedbackID", "feedback")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feedback, err := h.feedbackService.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, feedbackNotFound)
		return
	}

	writeJSON(w, http.StatusOK, feedback)
}

func (h *FeedbackHandler) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateFeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feedback, err := h.feedbackService.Create(r.Context(), userID, services.CreateFeedbackInput{
		Title:    req.Title,
		Detail:   req.Detail,
		Category: req.Category,
	})
	if err != nil {
		writeServiceError(w, r, err, feedbackNotFound)
		return
	}

	writeJSON(w, http.StatusCreated, feedback)
}

func (h *FeedbackHandler) UpdateFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "feedbackID", "feedback")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateFeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feedback, err := h.feedbackService.Update(r.Context(), id, services.UpdateFeedbackInput{
		Title:    req.Title,
		Detail:   req.Detail,
		Category: req.Category,
		Status:   req.Status,
	})
	if err != nil {
		writeServiceError(w, r, err, feedbackNotFound)
		return
	}

	writeJSON(w, http.StatusOK, feedback)
}

func (h *FeedbackHandler) Upvote(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "feedbackID", "feedback")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	upvotes, err := h.feedbackService.Upvote(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, feedbackNotFound)
		return
	}

	writeJSON(w, http.StatusOK, UpvoteResponse{ID: id, Upvotes: upvotes})
}

func (h *FeedbackHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "feedbackID", "feedback")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	feedback, err := h.feedbackService.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err, feedbackNotFound)
		return
	}

	writeJSON(w, http.StatusOK, feedback)
}

func (h *FeedbackHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: h.feedbackService.Categories()})
}

func (h *FeedbackHandler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusesResponse{Statuses: h.feedbackService.Statuses()})
}

func (h *FeedbackHandler) CountByStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.feedbackService.StatusCounts(r.Context())
	if err != nil {
		writeServiceError(w, r, err, feedbackNotFound)
		return
	}

	writeJSON(w, http.StatusOK, StatusCountResponse{Counts: counts})
}

type CreateFeedbackRequest struct {
	Title    string `json:"title"`
	Detail   string `json:"detail"`
	Category string `json:"category"`
}

// UpdateFeedbackRequest carries the fields to replace. Omitted fields keep
// their stored value.
type UpdateFeedbackRequest struct {
	Title    *string `json:"title"`
	Detail   *string `json:"detail"`
	Category *string `json:"category"`
	Status   *string `json:"status"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type UpvoteResponse struct {
	ID      int64 `json:"id"`
	Upvotes int64 `json:"upvotes"`
}

type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

type StatusesResponse struct {
	Statuses []string `json:"statuses"`
}

type StatusCountResponse struct {
	Counts []types.StatusCount `json:"counts"`
}
