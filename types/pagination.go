package types

// Pagination is the metadata block accompanying a page of results.
type Pagination struct {
	TotalDocs   int  `json:"totalDocs"`
	TotalPages  int  `json:"totalPages"`
	CurrentPage int  `json:"currentPage"`
	PageSize    int  `json:"pageSize"`
	HasNextPage bool `json:"has_nextPage"`
	HasPrevPage bool `json:"has_prevPage"`
}

// NewPagination computes the envelope for a page of a result set holding
// total documents. Both flags are false when there is nothing to page.
func NewPagination(total, page, pageSize int) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return Pagination{
		TotalDocs:   total,
		TotalPages:  totalPages,
		CurrentPage: page,
		PageSize:    pageSize,
		HasNextPage: totalPages > 0 && page < totalPages,
		HasPrevPage: totalPages > 0 && page > 1,
	}
}

// FeedbackPage is a page of feedback and its pagination envelope.
type FeedbackPage struct {
	Data       []FeedbackView `json:"data"`
	Pagination Pagination     `json:"pagination"`
}
