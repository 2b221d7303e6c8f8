package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/welisten/apiserver/types"
)

// Sort keys understood by FeedbackRepository.List.
const (
	SortNewest        = "newest"
	SortMostUpvotes   = "most_upvotes"
	SortLeastUpvotes  = "least_upvotes"
	SortMostComments  = "most_comments"
	SortLeastComments = "least_comments"
)

const feedbackColumns = `id, title, detail, category, status, upvotes, user_id, is_duplicate, similar_to, created_at, updated_at`

// feedbackViewSelect joins each feedback with its comment count and owner.
// Owners are LEFT JOINed so an unresolvable owner never hides a row.
const feedbackViewSelect = `
	SELECT f.id, f.title, f.detail, f.category, f.status, f.upvotes, f.user_id,
	       f.is_duplicate, f.similar_to, f.created_at, f.updated_at,
	       COALESCE(c.comment_count, 0),
	       u.id, u.username, u.email, u.role, u.created_at, u.updated_at
	FROM feedback f
	LEFT JOIN (
		SELECT feedback_id, COUNT(1) AS comment_count
		FROM comments
		GROUP BY feedback_id
	) c ON c.feedback_id = f.id
	LEFT JOIN users u ON u.id = f.user_id`

// FeedbackFilter selects a page of visible feedback.
type FeedbackFilter struct {
	Search   string
	Category string
	Sort     string
	Offset   int
	Limit    int
}

// FeedbackUpdate holds the fields to replace. Nil fields keep their value.
type FeedbackUpdate struct {
	Title    *string
	Detail   *string
	Category *string
	Status   *string
}

// FeedbackRepository handles persistence for feedback. Records flagged as
// duplicates are invisible to every read and mutation except MarkDuplicate.
type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Create(ctx context.Context, feedback types.Feedback) (types.Feedback, error) {
	now := time.Now().UTC()
	feedback.CreatedAt = now
	feedback.UpdatedAt = now
	if feedback.SimilarTo == nil {
		feedback.SimilarTo = []int64{}
	}

	const query = `
		INSERT INTO feedback (title, detail, category, status, upvotes, user_id, is_duplicate, similar_to, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		feedback.Title,
		feedback.Detail,
		feedback.Category,
		feedback.Status,
		feedback.Upvotes,
		feedback.UserID,
		feedback.IsDuplicate,
		pq.Array(feedback.SimilarTo),
		feedback.CreatedAt,
		feedback.UpdatedAt,
	).Scan(&feedback.ID); err != nil {
		return types.Feedback{}, err
	}

	return feedback, nil
}

func (r *FeedbackRepository) Get(ctx context.Context, id int64) (types.FeedbackView, error) {
	query := feedbackViewSelect + `
		WHERE f.id = $1 AND NOT f.is_duplicate`
	view, err := scanFeedbackView(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.FeedbackView{}, ErrNotFound
		}
		return types.FeedbackView{}, err
	}
	return view, nil
}

// Exists reports whether a visible feedback with the given id exists.
func (r *FeedbackRepository) Exists(ctx context.Context, id int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM feedback WHERE id = $1 AND NOT is_duplicate)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// List returns one page of visible feedback and the total number of
// feedback matching the filter.
func (r *FeedbackRepository) List(ctx context.Context, filter FeedbackFilter) ([]types.FeedbackView, int, error) {
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	whereSQL, args := buildFeedbackWhere(filter.Search, filter.Category)

	var total int
	countQuery := `SELECT COUNT(1) FROM feedback f ` + whereSQL
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listQuery := fmt.Sprintf(`%s
		%s
		ORDER BY %s
		OFFSET $%d LIMIT $%d`, feedbackViewSelect, whereSQL, orderBy(filter.Sort), len(args)+1, len(args)+2)
	args = append(args, filter.Offset, filter.Limit)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	views := make([]types.FeedbackView, 0, filter.Limit)
	for rows.Next() {
		view, err := scanFeedbackView(rows)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return views, total, nil
}

// SearchByKeywords ranks every visible feedback by how many keywords its
// title and detail contain, case-insensitively, and returns the best limit
// of them. Ties keep insertion order; feedback matching no keyword is left
// out.
func (r *FeedbackRepository) SearchByKeywords(ctx context.Context, keywords []string, excludeID int64, limit int) ([]types.Feedback, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit < 1 {
		limit = 5
	}

	patterns := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		patterns = append(patterns, "%"+escapeLike(keyword)+"%")
	}

	query := `
		SELECT ` + feedbackColumns + `
		FROM (
			SELECT f.*, (
				SELECT COUNT(1)
				FROM unnest($2::text[]) AS p(pattern)
				WHERE (f.title || ' ' || f.detail) ILIKE p.pattern
			) AS score
			FROM feedback f
			WHERE f.id <> $1 AND NOT f.is_duplicate
		) ranked
		WHERE score > 0
		ORDER BY score DESC, id ASC
		LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, excludeID, pq.Array(patterns), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []types.Feedback
	for rows.Next() {
		feedback, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, feedback)
	}
	return matches, rows.Err()
}

func (r *FeedbackRepository) Update(ctx context.Context, id int64, update FeedbackUpdate) (types.Feedback, error) {
	query := `
		UPDATE feedback
		SET title = COALESCE($1, title),
			detail = COALESCE($2, detail),
			category = COALESCE($3, category),
			status = COALESCE($4, status),
			updated_at = $5
		WHERE id = $6 AND NOT is_duplicate
		RETURNING ` + feedbackColumns
	feedback, err := scanFeedback(r.db.QueryRowContext(
		ctx,
		query,
		nullableString(update.Title),
		nullableString(update.Detail),
		nullableString(update.Category),
		nullableString(update.Status),
		time.Now().UTC(),
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Feedback{}, ErrNotFound
		}
		return types.Feedback{}, err
	}
	return feedback, nil
}

func (r *FeedbackRepository) UpdateStatus(ctx context.Context, id int64, status string) (types.Feedback, error) {
	query := `
		UPDATE feedback
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND NOT is_duplicate
		RETURNING ` + feedbackColumns
	feedback, err := scanFeedback(r.db.QueryRowContext(ctx, query, status, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Feedback{}, ErrNotFound
		}
		return types.Feedback{}, err
	}
	return feedback, nil
}

// Upvote atomically increments the upvote counter and returns the new count.
func (r *FeedbackRepository) Upvote(ctx context.Context, id int64) (int64, error) {
	const query = `
		UPDATE feedback
		SET upvotes = upvotes + 1,
			updated_at = $1
		WHERE id = $2 AND NOT is_duplicate
		RETURNING upvotes`
	var upvotes int64
	if err := r.db.QueryRowContext(ctx, query, time.Now().UTC(), id).Scan(&upvotes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return upvotes, nil
}

// MarkDuplicate flags a feedback as a duplicate of similarTo. The flag is
// terminal: the record disappears from every other query.
func (r *FeedbackRepository) MarkDuplicate(ctx context.Context, id int64, similarTo []int64) error {
	if similarTo == nil {
		similarTo = []int64{}
	}
	const query = `
		UPDATE feedback
		SET is_duplicate = TRUE,
			similar_to = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, pq.Array(similarTo), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByStatus counts visible feedback per stored status.
func (r *FeedbackRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	const query = `
		SELECT status, COUNT(1)
		FROM feedback
		WHERE NOT is_duplicate
		GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row rowScanner) (types.Feedback, error) {
	var feedback types.Feedback
	var similarTo pq.Int64Array
	if err := row.Scan(
		&feedback.ID,
		&feedback.Title,
		&feedback.Detail,
		&feedback.Category,
		&feedback.Status,
		&feedback.Upvotes,
		&feedback.UserID,
		&feedback.IsDuplicate,
		&similarTo,
		&feedback.CreatedAt,
		&feedback.UpdatedAt,
	); err != nil {
		return types.Feedback{}, err
	}
	feedback.SimilarTo = []int64(similarTo)
	if feedback.SimilarTo == nil {
		feedback.SimilarTo = []int64{}
	}
	return feedback, nil
}

func scanFeedbackView(row rowScanner) (types.FeedbackView, error) {
	var view types.FeedbackView
	var similarTo pq.Int64Array
	var (
		ownerID        sql.NullInt64
		ownerUsername  sql.NullString
		ownerEmail     sql.NullString
		ownerRole      sql.NullString
		ownerCreatedAt sql.NullTime
		ownerUpdatedAt sql.NullTime
	)
	if err := row.Scan(
		&view.ID,
		&view.Title,
		&view.Detail,
		&view.Category,
		&view.Status,
		&view.Upvotes,
		&view.UserID,
		&view.IsDuplicate,
		&similarTo,
		&view.CreatedAt,
		&view.UpdatedAt,
		&view.CommentCount,
		&ownerID,
		&ownerUsername,
		&ownerEmail,
		&ownerRole,
		&ownerCreatedAt,
		&ownerUpdatedAt,
	); err != nil {
		return types.FeedbackView{}, err
	}

	view.SimilarTo = []int64(similarTo)
	if view.SimilarTo == nil {
		view.SimilarTo = []int64{}
	}
	if ownerID.Valid {
		view.Owner = &types.User{
			ID:        ownerID.Int64,
			Username:  ownerUsername.String,
			Email:     ownerEmail.String,
			Role:      ownerRole.String,
			CreatedAt: ownerCreatedAt.Time,
			UpdatedAt: ownerUpdatedAt.Time,
		}
	}
	return view, nil
}

// buildFeedbackWhere composes the WHERE clause shared by the page and count
// queries. Duplicates are always excluded.
func buildFeedbackWhere(search, category string) (string, []any) {
	clauses := []string{"NOT f.is_duplicate"}
	args := []any{}

	if c := strings.TrimSpace(category); c != "" {
		args = append(args, c)
		clauses = append(clauses, fmt.Sprintf("f.category = $%d", len(args)))
	}

	if s := strings.TrimSpace(search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(f.title ILIKE $%d OR f.detail ILIKE $%d OR f.category ILIKE $%d)", n, n, n))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

// orderBy maps a sort key to its ORDER BY clause. Ties fall back to
// insertion order; unknown keys sort newest first.
func orderBy(sort string) string {
	switch sort {
	case SortMostUpvotes:
		return "f.upvotes DESC, f.id ASC"
	case SortLeastUpvotes:
		return "f.upvotes ASC, f.id ASC"
	case SortMostComments:
		return "COALESCE(c.comment_count, 0) DESC, f.id ASC"
	case SortLeastComments:
		return "COALESCE(c.comment_count, 0) ASC, f.id ASC"
	default:
		return "f.created_at DESC, f.id DESC"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
