package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/welisten/apiserver/types"
)

const exportPageSize = 100

// ObjectWriter is the subset of object storage used by exports.
type ObjectWriter interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// FeedbackLister pages through visible feedback.
type FeedbackLister interface {
	List(ctx context.Context, query ListQuery) (types.FeedbackPage, error)
}

// ExportResult describes an uploaded snapshot.
type ExportResult struct {
	Key   string
	Count int
}

type exportDocument struct {
	ExportedAt time.Time            `json:"exportedAt"`
	Search     string               `json:"search,omitempty"`
	Category   string               `json:"category,omitempty"`
	Sort       string               `json:"sort,omitempty"`
	Total      int                  `json:"total"`
	Feedback   []types.FeedbackView `json:"feedback"`
}

// ExportService snapshots the feedback listing into object storage.
type ExportService struct {
	lister  FeedbackLister
	objects ObjectWriter
	now     func() time.Time
}

func NewExportService(lister FeedbackLister, objects ObjectWriter) *ExportService {
	return &ExportService{
		lister:  lister,
		objects: objects,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Export writes every feedback matching query as one JSON document under
// exports/. Page and Limit of the query are ignored.
func (s *ExportService) Export(ctx context.Context, query ListQuery) (ExportResult, error) {
	exportedAt := s.now()
	doc := exportDocument{
		ExportedAt: exportedAt,
		Search:     query.Search,
		Category:   query.Category,
		Sort:       query.Sort,
		Feedback:   []types.FeedbackView{},
	}

	query.Limit = exportPageSize
	for page := 1; ; page++ {
		query.Page = page
		result, err := s.lister.List(ctx, query)
		if err != nil {
			return ExportResult{}, err
		}
		doc.Feedback = append(doc.Feedback, result.Data...)
		if !result.Pagination.HasNextPage {
			break
		}
	}
	doc.Total = len(doc.Feedback)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return ExportResult{}, err
	}

	if err := s.objects.EnsureBucket(ctx); err != nil {
		return ExportResult{}, fmt.Errorf("ensure bucket: %w", err)
	}
	key := fmt.Sprintf("exports/feedback-%s.json", exportedAt.Format("20060102T150405Z"))
	if err := s.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return ExportResult{}, fmt.Errorf("upload %s: %w", key, err)
	}

	return ExportResult{Key: key, Count: doc.Total}, nil
}
