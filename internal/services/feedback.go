package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/welisten/apiserver/internal/duplicates"
	"github.com/welisten/apiserver/internal/metrics"
	"github.com/welisten/apiserver/internal/registry"
	"github.com/welisten/apiserver/internal/store"
	"github.com/welisten/apiserver/types"
)

const (
	defaultListLimit         = 10
	defaultMaxListLimit      = 100
	defaultClassifierTimeout = 10 * time.Second
)

// FeedbackRepository defines persistence operations for feedback.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback types.Feedback) (types.Feedback, error)
	Get(ctx context.Context, id int64) (types.FeedbackView, error)
	List(ctx context.Context, filter store.FeedbackFilter) ([]types.FeedbackView, int, error)
	Update(ctx context.Context, id int64, update store.FeedbackUpdate) (types.Feedback, error)
	UpdateStatus(ctx context.Context, id int64, status string) (types.Feedback, error)
	Upvote(ctx context.Context, id int64) (int64, error)
	MarkDuplicate(ctx context.Context, id int64, similarTo []int64) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// CandidateFinder narrows stored feedback down to likely duplicates.
type CandidateFinder interface {
	Find(ctx context.Context, title, detail string, excludeID int64) ([]duplicates.Candidate, error)
}

// CreateFeedbackInput is a new submission. An empty category selects the
// registry default.
type CreateFeedbackInput struct {
	Title    string
	Detail   string
	Category string
}

// UpdateFeedbackInput holds the fields to replace; nil fields are kept.
type UpdateFeedbackInput struct {
	Title    *string
	Detail   *string
	Category *string
	Status   *string
}

// ListQuery selects a page of feedback. A zero Page or Limit selects the
// default.
type ListQuery struct {
	Search   string
	Category string
	Sort     string
	Page     int
	Limit    int
}

// FeedbackOption configures a FeedbackService.
type FeedbackOption func(*FeedbackService)

func WithLogger(logger zerolog.Logger) FeedbackOption {
	return func(s *FeedbackService) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) FeedbackOption {
	return func(s *FeedbackService) { s.metrics = m }
}

func WithEventPublisher(events EventPublisher) FeedbackOption {
	return func(s *FeedbackService) {
		if events != nil {
			s.events = events
		}
	}
}

// WithClassifierTimeout bounds each classifier call.
func WithClassifierTimeout(timeout time.Duration) FeedbackOption {
	return func(s *FeedbackService) {
		if timeout > 0 {
			s.classifierTimeout = timeout
		}
	}
}

// WithListLimits sets the default and maximum page size.
func WithListLimits(defaultLimit, maxLimit int) FeedbackOption {
	return func(s *FeedbackService) {
		if defaultLimit > 0 {
			s.defaultLimit = defaultLimit
		}
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
	}
}

// FeedbackService encapsulates the feedback listing and lifecycle use-cases.
type FeedbackService struct {
	repo       FeedbackRepository
	registry   *registry.Registry
	finder     CandidateFinder
	classifier duplicates.Classifier
	events     EventPublisher
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	classifierTimeout time.Duration
	defaultLimit      int
	maxLimit          int
}

func NewFeedbackService(
	repo FeedbackRepository,
	reg *registry.Registry,
	finder CandidateFinder,
	classifier duplicates.Classifier,
	opts ...FeedbackOption,
) *FeedbackService {
	if classifier == nil {
		classifier = duplicates.NopClassifier{}
	}
	s := &FeedbackService{
		repo:              repo,
		registry:          reg,
		finder:            finder,
		classifier:        classifier,
		events:            NopEventPublisher{},
		logger:            zerolog.Nop(),
		classifierTimeout: defaultClassifierTimeout,
		defaultLimit:      defaultListLimit,
		maxLimit:          defaultMaxListLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultLimit > s.maxLimit {
		s.defaultLimit = s.maxLimit
	}
	return s
}

// Create validates and stores a submission, then screens it for
// duplicates. A duplicate is kept hidden and reported as a
// *DuplicateConflictError naming the feedback it restates.
func (s *FeedbackService) Create(ctx context.Context, userID int64, input CreateFeedbackInput) (types.Feedback, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return types.Feedback{}, invalid("title", "Title is required")
	}
	if strings.TrimSpace(input.Detail) == "" {
		return types.Feedback{}, invalid("detail", "Detail is required")
	}

	category := s.registry.DefaultCategory()
	if strings.TrimSpace(input.Category) != "" {
		normalized, ok := s.registry.NormalizeCategory(input.Category)
		if !ok {
			return types.Feedback{}, invalid("category", fmt.Sprintf("Unknown category %q", input.Category))
		}
		category = normalized
	}

	feedback, err := s.repo.Create(ctx, types.Feedback{
		Title:    title,
		Detail:   input.Detail,
		Category: category,
		Status:   s.registry.DefaultStatus(),
		UserID:   userID,
	})
	if err != nil {
		return types.Feedback{}, persistence("create feedback", err)
	}

	similarTo := s.screen(ctx, feedback)
	if len(similarTo) > 0 {
		if err := s.repo.MarkDuplicate(ctx, feedback.ID, similarTo); err != nil {
			return types.Feedback{}, persistence("mark duplicate", err)
		}
		s.metrics.DuplicateRejected()
		s.publish(ctx, Event{
			Type:       EventDuplicateRejected,
			FeedbackID: feedback.ID,
			UserID:     userID,
			SimilarTo:  similarTo,
		})
		return types.Feedback{}, &DuplicateConflictError{SimilarTo: similarTo}
	}

	s.metrics.FeedbackCreated()
	s.publish(ctx, Event{
		Type:       EventFeedbackCreated,
		FeedbackID: feedback.ID,
		UserID:     userID,
		Status:     feedback.Status,
	})
	return feedback, nil
}

// screen returns the ids the stored feedback duplicates, or nil. Lookup
// and classifier failures are logged and treated as "not a duplicate".
func (s *FeedbackService) screen(ctx context.Context, feedback types.Feedback) []int64 {
	logger := s.logger.With().Int64("feedback_id", feedback.ID).Logger()

	candidates, err := s.finder.Find(ctx, feedback.Title, feedback.Detail, feedback.ID)
	if err != nil {
		s.metrics.ClassifierSkipped()
		logger.Warn().Err(err).Msg("duplicate candidate lookup failed, skipping screening")
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	classifyCtx, cancel := context.WithTimeout(ctx, s.classifierTimeout)
	defer cancel()

	start := time.Now()
	decision, err := s.classifier.Classify(classifyCtx, duplicates.Submission{
		Title:  feedback.Title,
		Detail: feedback.Detail,
	}, candidates)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ClassifierRequest(metrics.OutcomeError, elapsed)
		logger.Warn().Err(err).Int("candidates", len(candidates)).Msg("duplicate classification failed, accepting feedback")
		return nil
	}
	if !decision.IsDuplicate || len(decision.SimilarTo) == 0 {
		s.metrics.ClassifierRequest(metrics.OutcomeUnique, elapsed)
		return nil
	}

	s.metrics.ClassifierRequest(metrics.OutcomeDuplicate, elapsed)
	logger.Info().Ints64("similar_to", decision.SimilarTo).Msg("feedback rejected as duplicate")
	return decision.SimilarTo
}

// List returns a filtered, sorted page of visible feedback.
func (s *FeedbackService) List(ctx context.Context, query ListQuery) (types.FeedbackPage, error) {
	page := query.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return types.FeedbackPage{}, invalid("page", "Page must be a positive integer")
	}

	limit := query.Limit
	if limit == 0 {
		limit = s.defaultLimit
	}
	if limit < 1 {
		return types.FeedbackPage{}, invalid("limit", "Limit must be a positive integer")
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	if page-1 > math.MaxInt/limit {
		return types.FeedbackPage{}, invalid("page", "Page is out of range")
	}

	category := ""
	if strings.TrimSpace(query.Category) != "" && !s.registry.IsAll(query.Category) {
		normalized, ok := s.registry.NormalizeCategory(query.Category)
		if !ok {
			return types.FeedbackPage{}, invalid("category", fmt.Sprintf("Unknown category %q", query.Category))
		}
		category = normalized
	}

	views, total, err := s.repo.List(ctx, store.FeedbackFilter{
		Search:   strings.TrimSpace(query.Search),
		Category: category,
		Sort:     normalizeSort(query.Sort),
		Offset:   (page - 1) * limit,
		Limit:    limit,
	})
	if err != nil {
		return types.FeedbackPage{}, persistence("list feedback", err)
	}

	for i := range views {
		s.resolveOwner(&views[i])
	}

	return types.FeedbackPage{
		Data:       views,
		Pagination: types.NewPagination(total, page, limit),
	}, nil
}

func (s *FeedbackService) Get(ctx context.Context, id int64) (types.FeedbackView, error) {
	view, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.FeedbackView{}, persistence("get feedback", err)
	}
	s.resolveOwner(&view)
	return view, nil
}

// Update replaces the provided fields. Edits are not re-screened.
func (s *FeedbackService) Update(ctx context.Context, id int64, input UpdateFeedbackInput) (types.Feedback, error) {
	update := store.FeedbackUpdate{Detail: input.Detail}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return types.Feedback{}, invalid("title", "Title must not be empty")
		}
		update.Title = &title
	}
	if input.Category != nil {
		category, ok := s.registry.NormalizeCategory(*input.Category)
		if !ok {
			return types.Feedback{}, invalid("category", fmt.Sprintf("Unknown category %q", *input.Category))
		}
		update.Category = &category
	}
	if input.Status != nil {
		status, ok := s.registry.NormalizeStatus(*input.Status)
		if !ok {
			return types.Feedback{}, invalid("status", fmt.Sprintf("Unknown status %q", *input.Status))
		}
		update.Status = &status
	}

	feedback, err := s.repo.Update(ctx, id, update)
	if err != nil {
		return types.Feedback{}, persistence("update feedback", err)
	}

	if update.Status != nil {
		s.publish(ctx, Event{Type: EventStatusChanged, FeedbackID: id, Status: feedback.Status})
	}
	return feedback, nil
}

// Upvote adds one upvote and returns the new count.
func (s *FeedbackService) Upvote(ctx context.Context, id int64) (int64, error) {
	upvotes, err := s.repo.Upvote(ctx, id)
	if err != nil {
		return 0, persistence("upvote feedback", err)
	}

	s.metrics.Upvoted()
	s.publish(ctx, Event{Type: EventUpvoted, FeedbackID: id, Upvotes: upvotes})
	return upvotes, nil
}

// UpdateStatus moves a feedback to any registry status.
func (s *FeedbackService) UpdateStatus(ctx context.Context, id int64, status string) (types.Feedback, error) {
	normalized, ok := s.registry.NormalizeStatus(status)
	if !ok {
		return types.Feedback{}, invalid("status", fmt.Sprintf("Unknown status %q", status))
	}

	feedback, err := s.repo.UpdateStatus(ctx, id, normalized)
	if err != nil {
		return types.Feedback{}, persistence("update status", err)
	}

	s.publish(ctx, Event{Type: EventStatusChanged, FeedbackID: id, Status: normalized})
	return feedback, nil
}

// StatusCounts counts visible feedback for every registry status, in
// registry order and including empty statuses.
func (s *FeedbackService) StatusCounts(ctx context.Context) ([]types.StatusCount, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, persistence("count feedback", err)
	}

	statuses := s.registry.Statuses()
	out := make([]types.StatusCount, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, types.StatusCount{Status: status, Count: counts[status]})
	}
	return out, nil
}

func (s *FeedbackService) Categories() []string {
	return s.registry.Categories()
}

func (s *FeedbackService) Statuses() []string {
	return s.registry.Statuses()
}

func (s *FeedbackService) resolveOwner(view *types.FeedbackView) {
	if view.Owner != nil {
		return
	}
	s.logger.Warn().
		Int64("feedback_id", view.ID).
		Int64("user_id", view.UserID).
		Msg("feedback owner not found, using placeholder")
	view.Owner = types.PlaceholderUser(view.UserID)
}

func (s *FeedbackService) publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn().
			Err(err).
			Str("event", event.Type).
			Int64("feedback_id", event.FeedbackID).
			Msg("failed to publish feedback event")
	}
}

func normalizeSort(sort string) string {
	sort = strings.ToLower(strings.TrimSpace(sort))
	switch sort {
	case store.SortMostUpvotes, store.SortLeastUpvotes, store.SortMostComments, store.SortLeastComments:
		return sort
	default:
		return store.SortNewest
	}
}
