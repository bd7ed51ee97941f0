// Package provider defines the capability every upstream content source
// implements, along with the error taxonomy providers report failures with.
package provider

import (
	"context"
	"strings"

	"github.com/matheuskafuri/lingonews/internal/news"
)

// Provider is an upstream content source.
//
// Fetch and Search return an empty page, not an error, when nothing matches.
// IsAvailable never errors; an unreachable or unconfigured source reports
// false.
type Provider interface {
	Info() Info
	Fetch(ctx context.Context, req news.Request) (*news.Response, error)
	Search(ctx context.Context, query string, req news.Request) (*news.Response, error)
	IsAvailable(ctx context.Context) bool
}

// Info describes a provider for registry listings.
type Info struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Languages      []string        `json:"languages"`
	Categories     []news.Category `json:"categories"`
	RequiresAPIKey bool            `json:"requiresApiKey"`

	// RequestsPerDay is the upstream quota, 0 when unmetered.
	RequestsPerDay int `json:"requestsPerDay,omitempty"`
}

// FilterByQuery keeps articles whose title or description contains query,
// case-insensitively. An empty query keeps everything.
func FilterByQuery(articles []news.Article, query string) []news.Article {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return articles
	}
	out := make([]news.Article, 0, len(articles))
	for _, a := range articles {
		if strings.Contains(strings.ToLower(a.Title), q) ||
			strings.Contains(strings.ToLower(a.Description), q) {
			out = append(out, a)
		}
	}
	return out
}
