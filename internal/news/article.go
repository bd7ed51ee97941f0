// Package news holds the normalized article model shared by every provider,
// the cache tiers and the aggregator.
package news

import (
	"strings"
	"time"
)

// Category is a topical tag. Providers that do not categorize leave it empty.
type Category string

const (
	General       Category = "general"
	Business      Category = "business"
	Technology    Category = "technology"
	Science       Category = "science"
	Health        Category = "health"
	Sports        Category = "sports"
	Entertainment Category = "entertainment"
)

// Categories returns all known categories in canonical order.
func Categories() []Category {
	return []Category{General, Business, Technology, Science, Health, Sports, Entertainment}
}

// ParseCategory validates a category name. The empty string is accepted and
// means "any category".
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", true
	}
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// RemovedTitle is the placeholder upstreams use for withdrawn articles.
const RemovedTitle = "[Removed]"

const (
	DefaultLanguage = "en"
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Source      string    `json:"source"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Language    string    `json:"language"`
	Category    Category  `json:"category,omitempty"`

	// Difficulty is the CEFR level of the feed the article came from, if tagged.
	Difficulty string `json:"difficulty,omitempty"`
}

// Usable reports whether a title may be shown to readers.
func Usable(title string) bool {
	t := strings.TrimSpace(title)
	return t != "" && t != RemovedTitle
}

// Request describes one page of articles. Category selects topical feeds,
// Query triggers text filtering.
type Request struct {
	Language string
	Category Category
	Query    string
	Page     int
	PageSize int
}

// Normalize fills in defaults and clamps the page size.
func (r Request) Normalize() Request {
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	r.Language = strings.ToLower(r.Language)
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize <= 0 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		r.PageSize = MaxPageSize
	}
	return r
}

// Response is one page of articles. TotalResults may exceed len(Articles)
// when the upstream paginates.
type Response struct {
	Articles     []Article `json:"articles"`
	TotalResults int       `json:"totalResults"`
	Page         int       `json:"page"`
	PageSize     int       `json:"pageSize"`
	ProviderID   string    `json:"provider"`
	FetchedAt    time.Time `json:"fetchedAt"`

	// Degraded is set when the page was served from the persistent tier
	// after a live fetch failed.
	Degraded bool `json:"degraded,omitempty"`
}

// SortNewestFirst orders articles by PublishedAt descending, keeping the
// original order for equal timestamps.
func SortNewestFirst(articles []Article) {
	sortStableDesc(articles)
}
