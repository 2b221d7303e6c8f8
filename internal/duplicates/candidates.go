package duplicates

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/welisten/apiserver/types"
)

const (
	// MaxCandidates bounds how many records are handed to the classifier.
	MaxCandidates = 5

	// MaxKeywords bounds the number of substring patterns per search.
	MaxKeywords = 20

	// minKeywordLength is the shortest token kept as a keyword.
	minKeywordLength = 3
)

// FeedbackSearcher returns the stored feedback containing the most keywords,
// best match first with ties in insertion order, at most limit of them.
// Feedback containing none of the keywords is never returned.
type FeedbackSearcher interface {
	SearchByKeywords(ctx context.Context, keywords []string, excludeID int64, limit int) ([]types.Feedback, error)
}

// Candidate is an existing feedback lexically close to a submission.
// Score counts the submission keywords found in the candidate's text.
type Candidate struct {
	Feedback types.Feedback
	Score    int
}

// Finder is the lexical pre-filter of duplicate screening.
type Finder struct {
	searcher FeedbackSearcher
}

func NewFinder(searcher FeedbackSearcher) *Finder {
	return &Finder{searcher: searcher}
}

// Find returns up to MaxCandidates feedback sharing keywords with the
// submission, best match first. Ties keep insertion order. An empty result
// means there is nothing to classify.
func (f *Finder) Find(ctx context.Context, title, detail string, excludeID int64) ([]Candidate, error) {
	keywords := Keywords(title+" "+detail, MaxKeywords)
	if len(keywords) == 0 {
		return nil, nil
	}

	matches, err := f.searcher.SearchByKeywords(ctx, keywords, excludeID, MaxCandidates)
	if err != nil {
		return nil, err
	}
	return Rank(keywords, matches, MaxCandidates), nil
}

// Keywords splits text on whitespace, drops tokens shorter than three
// characters and returns the distinct lowercase tokens in order of first
// appearance, at most max of them.
func Keywords(text string, max int) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, token := range strings.Fields(text) {
		if utf8.RuneCountInString(token) < minKeywordLength {
			continue
		}
		token = strings.ToLower(token)
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
		if max > 0 && len(keywords) == max {
			break
		}
	}
	return keywords
}

// Rank scores matches against keywords and keeps the best limit of them.
// The sort is stable, so matches already ordered by score and insertion
// keep their order.
func Rank(keywords []string, matches []types.Feedback, limit int) []Candidate {
	candidates := make([]Candidate, 0, len(matches))
	for _, feedback := range matches {
		score := Score(keywords, feedback)
		if score == 0 {
			continue
		}
		candidates = append(candidates, Candidate{Feedback: feedback, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// Score counts the keywords contained in the feedback's title and detail,
// ignoring case.
func Score(keywords []string, feedback types.Feedback) int {
	haystack := strings.ToLower(feedback.Title + " " + feedback.Detail)
	score := 0
	for _, keyword := range keywords {
		if strings.Contains(haystack, keyword) {
			score++
		}
	}
	return score
}
