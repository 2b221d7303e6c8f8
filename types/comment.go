package types

import "time"

// Comment is a user's remark on a feedback. Replies are embedded in the
// comment and have no lifecycle of their own.
type Comment struct {
	// ID is the unique identifier of the comment.
	ID int64 `json:"id" db:"id"`

	// FeedbackID identifies the feedback this comment belongs to.
	FeedbackID int64 `json:"feedbackId" db:"feedback_id"`

	// UserID identifies the author.
	UserID int64 `json:"user" db:"user_id"`

	// Text is the comment body.
	Text string `json:"text" db:"text"`

	// Replies is the ordered, append-only list of replies.
	Replies []Reply `json:"replies" db:"replies"`

	// Author is the expanded author, populated by listings.
	Author *User `json:"author,omitempty" db:"-"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Reply is a response to a comment.
type Reply struct {
	UserID    int64     `json:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`

	// Author is the expanded author, populated by listings.
	Author *User `json:"author,omitempty"`
}
