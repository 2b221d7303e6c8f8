package types

import "time"

// Feedback represents a feature request or bug report submitted to the board.
// It carries a lifecycle status, a popularity counter and the result of
// duplicate screening.
type Feedback struct {
	// ID is the unique identifier of the feedback. IDs are assigned in
	// insertion order.
	ID int64 `json:"id" db:"id"`

	// Title is the short, trimmed summary of the feedback.
	Title string `json:"title" db:"title"`

	// Detail is the optional free-form description.
	Detail string `json:"detail" db:"detail"`

	// Category is one of the registry categories (e.g., "Bug", "Feature").
	Category string `json:"category" db:"category"`

	// Status is one of the registry statuses (e.g., "Planned", "Live").
	Status string `json:"status" db:"status"`

	// Upvotes counts the upvotes received. It only ever grows.
	Upvotes int64 `json:"upvotes" db:"upvotes"`

	// UserID identifies the user who submitted the feedback.
	UserID int64 `json:"user" db:"user_id"`

	// IsDuplicate marks a submission that screening judged to restate an
	// existing feedback. Duplicates are never exposed as regular records.
	IsDuplicate bool `json:"isDuplicate" db:"is_duplicate"`

	// SimilarTo lists the feedback IDs this submission was judged similar to.
	SimilarTo []int64 `json:"similarTo" db:"similar_to"`

	// CreatedAt is the timestamp at which the feedback was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// FeedbackView is the read model returned by listings and lookups: the
// stored feedback joined with its comment count and expanded owner.
type FeedbackView struct {
	Feedback

	// CommentCount is derived from the comments referencing this feedback.
	CommentCount int64 `json:"commentCount"`

	// Owner is the expanded submitting user. It is a placeholder when the
	// referenced user no longer exists.
	Owner *User `json:"owner"`
}

// StatusCount pairs a status with the number of visible feedback in it.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}
