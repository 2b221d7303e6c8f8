package store

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/welisten/apiserver/types"
)

// UserRepository reads users owned by the authentication service.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// ListByIDs returns the users with the given ids keyed by id. Unknown ids
// are absent from the result.
func (r *UserRepository) ListByIDs(ctx context.Context, ids []int64) (map[int64]types.User, error) {
	users := make(map[int64]types.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	const query = `
		SELECT id, username, email, role, created_at, updated_at
		FROM users
		WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var user types.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.Role,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users[user.ID] = user
	}
	return users, rows.Err()
}
