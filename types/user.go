package types

import "time"

// User represents an account owned by the authentication service.
// The feedback board only reads users to expand owners and authors; the
// password hash is never loaded.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's lowercase email address.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level ("user" or "admin").
	Role string `json:"role" db:"role"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// DeletedUsername is shown for owners whose account no longer exists.
const DeletedUsername = "[deleted]"

// PlaceholderUser stands in for a referenced user that could not be resolved.
func PlaceholderUser(id int64) *User {
	return &User{ID: id, Username: DeletedUsername, Role: "user"}
}
