// Package registry holds the fixed enumerations of feedback categories and
// lifecycle statuses. It is the single source of truth for their canonical
// spelling; user input is matched against it case-insensitively.
package registry

import "strings"

// AllCategories is the wildcard accepted by category filters.
const AllCategories = "All"

// Canonical categories.
const (
	CategoryUI          = "UI"
	CategoryUX          = "UX"
	CategoryEnhancement = "Enhancement"
	CategoryBug         = "Bug"
	CategoryFeature     = "Feature"
)

// Canonical statuses.
const (
	StatusPlanned    = "Planned"
	StatusInProgress = "InProgress"
	StatusLive       = "Live"
)

// Registry is an immutable set of categories and statuses.
type Registry struct {
	categories      []string
	statuses        []string
	defaultCategory string
	defaultStatus   string
}

// New builds a registry. The first entry of each list is used as its default.
func New(categories, statuses []string) *Registry {
	r := &Registry{
		categories: append([]string(nil), categories...),
		statuses:   append([]string(nil), statuses...),
	}
	if len(r.categories) > 0 {
		r.defaultCategory = r.categories[0]
	}
	if len(r.statuses) > 0 {
		r.defaultStatus = r.statuses[0]
	}
	return r
}

// Default returns the feedback board's registry.
func Default() *Registry {
	r := New(
		[]string{CategoryUI, CategoryUX, CategoryEnhancement, CategoryBug, CategoryFeature},
		[]string{StatusPlanned, StatusInProgress, StatusLive},
	)
	r.defaultCategory = CategoryFeature
	return r
}

// Categories returns the categories followed by the AllCategories wildcard.
func (r *Registry) Categories() []string {
	out := make([]string, 0, len(r.categories)+1)
	out = append(out, r.categories...)
	return append(out, AllCategories)
}

// Statuses returns the lifecycle statuses in progression order.
func (r *Registry) Statuses() []string {
	return append([]string(nil), r.statuses...)
}

func (r *Registry) DefaultCategory() string { return r.defaultCategory }

func (r *Registry) DefaultStatus() string { return r.defaultStatus }

// NormalizeCategory returns the canonical spelling of a category. The
// wildcard is not a category and is rejected.
func (r *Registry) NormalizeCategory(value string) (string, bool) {
	return lookup(r.categories, value)
}

// NormalizeStatus returns the canonical spelling of a status.
func (r *Registry) NormalizeStatus(value string) (string, bool) {
	return lookup(r.statuses, value)
}

// IsAll reports whether value is the category wildcard.
func (r *Registry) IsAll(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), AllCategories)
}

func lookup(values []string, value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	for _, candidate := range values {
		if strings.EqualFold(candidate, value) {
			return candidate, true
		}
	}
	return "", false
}
