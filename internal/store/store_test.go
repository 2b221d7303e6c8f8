package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildFeedbackWhere(t *testing.T) {
	where, args := buildFeedbackWhere("", "")
	assert.Equal(t, "WHERE NOT f.is_duplicate", where)
	assert.Empty(t, args)

	where, args = buildFeedbackWhere("  dark mode ", "UI")
	assert.Equal(t, "WHERE NOT f.is_duplicate AND f.category = $1 AND (f.title ILIKE $2 OR f.detail ILIKE $2 OR f.category ILIKE $2)", where)
	assert.Equal(t, []any{"UI", "%dark mode%"}, args)
}

func TestBuildFeedbackWhereEscapesWildcards(t *testing.T) {
	_, args := buildFeedbackWhere(`100%_done\`, "")
	assert.Equal(t, []any{`%100\%\_done\\%`}, args)
}

func TestOrderBy(t *testing.T) {
	assert.Equal(t, "f.created_at DESC, f.id DESC", orderBy(SortNewest))
	assert.Equal(t, "f.created_at DESC, f.id DESC", orderBy("bogus"))
	assert.Equal(t, "f.upvotes DESC, f.id ASC", orderBy(SortMostUpvotes))
	assert.Equal(t, "f.upvotes ASC, f.id ASC", orderBy(SortLeastUpvotes))
	assert.Equal(t, "COALESCE(c.comment_count, 0) DESC, f.id ASC", orderBy(SortMostComments))
	assert.Equal(t, "COALESCE(c.comment_count, 0) ASC, f.id ASC", orderBy(SortLeastComments))
}

func TestNullableString(t *testing.T) {
	assert.Nil(t, nullableString(nil))
	value := "Live"
	assert.Equal(t, "Live", nullableString(&value))
}
