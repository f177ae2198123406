package model

import "strings"

// Category is the closed set of knowledge sources a question can be routed
// to. Every downstream stage switches on this type; the only place an
// unknown value can appear is router output, and ParseCategory collapses it
// to CategoryUnanswerable there.
type Category string

const (
	// CategoryLinkedIn covers work experience, education and career history.
	CategoryLinkedIn Category = "linkedin"
	// CategoryGitHub covers code projects and technical work.
	CategoryGitHub Category = "github"
	// CategoryMedium covers published articles and writing.
	CategoryMedium Category = "medium"
	// CategoryUnanswerable means no index can answer the question.
	CategoryUnanswerable Category = "unanswerable"
)

// CategoryPriority orders the retrievable categories. When router output
// mentions more than one known category, the highest-priority one wins so
// identical questions always route identically.
var CategoryPriority = []Category{CategoryLinkedIn, CategoryGitHub, CategoryMedium}

// String returns the wire representation of the category.
func (c Category) String() string {
	return string(c)
}

// Retrievable reports whether the category has a backing index.
func (c Category) Retrievable() bool {
	switch c {
	case CategoryLinkedIn, CategoryGitHub, CategoryMedium:
		return true
	default:
		return false
	}
}

// ParseCategory normalises a raw router token into the closed set.
// Anything unrecognised becomes CategoryUnanswerable.
func ParseCategory(v string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(v))) {
	case CategoryLinkedIn:
		return CategoryLinkedIn, true
	case CategoryGitHub:
		return CategoryGitHub, true
	case CategoryMedium:
		return CategoryMedium, true
	case CategoryUnanswerable:
		return CategoryUnanswerable, true
	default:
		return CategoryUnanswerable, false
	}
}

// RoutingDecision is the router's verdict for one query. Note is kept for
// observability only; no stage branches on it.
type RoutingDecision struct {
	Category Category `json:"category"`
	Note     string   `json:"note,omitempty"`
}
