package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/welisten/apiserver/internal/duplicates"
	"github.com/welisten/apiserver/internal/store"
	"github.com/welisten/apiserver/types"
)

// memFeedbackRepo is an in-memory FeedbackRepository mirroring the
// visibility and ordering rules of the Postgres store.
type memFeedbackRepo struct {
	mu       sync.Mutex
	nextID   int64
	feedback []types.Feedback
	comments map[int64]int64
	users    map[int64]types.User

	listErr    error
	lastFilter store.FeedbackFilter
}

func newMemFeedbackRepo() *memFeedbackRepo {
	return &memFeedbackRepo{
		comments: make(map[int64]int64),
		users:    make(map[int64]types.User),
	}
}

func (r *memFeedbackRepo) seed(title, detail, category string) types.Feedback {
	f, _ := r.Create(context.Background(), types.Feedback{
		Title:    title,
		Detail:   detail,
		Category: category,
		Status:   "Planned",
		UserID:   1,
	})
	return f
}

func (r *memFeedbackRepo) Create(_ context.Context, f types.Feedback) (types.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	f.ID = r.nextID
	f.CreatedAt = time.Unix(0, 0).Add(time.Duration(f.ID) * time.Second)
	f.UpdatedAt = f.CreatedAt
	if f.SimilarTo == nil {
		f.SimilarTo = []int64{}
	}
	r.feedback = append(r.feedback, f)
	return f, nil
}

func (r *memFeedbackRepo) find(id int64) (int, bool) {
	for i, f := range r.feedback {
		if f.ID == id && !f.IsDuplicate {
			return i, true
		}
	}
	return 0, false
}

func (r *memFeedbackRepo) view(f types.Feedback) types.FeedbackView {
	v := types.FeedbackView{Feedback: f, CommentCount: r.comments[f.ID]}
	if u, ok := r.users[f.UserID]; ok {
		v.Owner = &u
	}
	return v
}

func (r *memFeedbackRepo) Get(_ context.Context, id int64) (types.FeedbackView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return types.FeedbackView{}, store.ErrNotFound
	}
	return r.view(r.feedback[i]), nil
}

func (r *memFeedbackRepo) Exists(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.find(id)
	return ok, nil
}

func (r *memFeedbackRepo) List(_ context.Context, filter store.FeedbackFilter) ([]types.FeedbackView, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	if r.listErr != nil {
		return nil, 0, r.listErr
	}

	search := strings.ToLower(filter.Search)
	var matched []types.FeedbackView
	for _, f := range r.feedback {
		if f.IsDuplicate {
			continue
		}
		if filter.Category != "" && f.Category != filter.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(f.Title+"\x00"+f.Detail+"\x00"+f.Category), search) {
			continue
		}
		matched = append(matched, r.view(f))
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch filter.Sort {
		case store.SortMostUpvotes:
			return a.Upvotes > b.Upvotes
		case store.SortLeastUpvotes:
			return a.Upvotes < b.Upvotes
		case store.SortMostComments:
			return a.CommentCount > b.CommentCount
		case store.SortLeastComments:
			return a.CommentCount < b.CommentCount
		default:
			return a.ID > b.ID
		}
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit < total-start {
		end = start + filter.Limit
	}
	return append([]types.FeedbackView{}, matched[start:end]...), total, nil
}

func (r *memFeedbackRepo) SearchByKeywords(_ context.Context, keywords []string, excludeID int64, limit int) ([]types.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matches []types.Feedback
	for _, f := range r.feedback {
		if f.ID == excludeID || f.IsDuplicate {
			continue
		}
		matches = append(matches, f)
	}
	var out []types.Feedback
	for _, c := range duplicates.Rank(keywords, matches, limit) {
		out = append(out, c.Feedback)
	}
	return out, nil
}

func (r *memFeedbackRepo) Update(_ context.Context, id int64, update store.FeedbackUpdate) (types.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return types.Feedback{}, store.ErrNotFound
	}
	f := &r.feedback[i]
	if update.Title != nil {
		f.Title = *update.Title
	}
	if update.Detail != nil {
		f.Detail = *update.Detail
	}
	if update.Category != nil {
		f.Category = *update.Category
	}
	if update.Status != nil {
		f.Status = *update.Status
	}
	return *f, nil
}

func (r *memFeedbackRepo) UpdateStatus(_ context.Context, id int64, status string) (types.Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return types.Feedback{}, store.ErrNotFound
	}
	r.feedback[i].Status = status
	return r.feedback[i], nil
}

func (r *memFeedbackRepo) Upvote(_ context.Context, id int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.find(id)
	if !ok {
		return 0, store.ErrNotFound
	}
	r.feedback[i].Upvotes++
	return r.feedback[i].Upvotes, nil
}

func (r *memFeedbackRepo) MarkDuplicate(_ context.Context, id int64, similarTo []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.feedback {
		if r.feedback[i].ID == id {
			r.feedback[i].IsDuplicate = true
			r.feedback[i].SimilarTo = similarTo
			return nil
		}
	}
	return store.ErrNotFound
}

func (r *memFeedbackRepo) CountByStatus(context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, f := range r.feedback {
		if !f.IsDuplicate {
			counts[f.Status]++
		}
	}
	return counts, nil
}

// stubClassifier returns a fixed decision and records its calls.
type stubClassifier struct {
	mu       sync.Mutex
	calls    int
	decision func(candidates []duplicates.Candidate) duplicates.Decision
	err      error
	block    bool
}

func (c *stubClassifier) Classify(ctx context.Context, _ duplicates.Submission, candidates []duplicates.Candidate) (duplicates.Decision, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.block {
		<-ctx.Done()
		return duplicates.Decision{}, &duplicates.ClassifierError{Op: "request", Err: ctx.Err()}
	}
	if c.err != nil {
		return duplicates.Decision{}, c.err
	}
	if c.decision == nil {
		return duplicates.Decision{}, nil
	}
	return c.decision(candidates), nil
}

func (c *stubClassifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// duplicateOfFirst flags every submission as a duplicate of the best candidate.
func duplicateOfFirst(candidates []duplicates.Candidate) duplicates.Decision {
	return duplicates.Decision{IsDuplicate: true, SimilarTo: []int64{candidates[0].Feedback.ID}}
}

type failingFinder struct{}

func (failingFinder) Find(context.Context, string, string, int64) ([]duplicates.Candidate, error) {
	return nil, errors.New("search unavailable")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
