// Package cache implements the two cache tiers: a time-bounded in-process map
// keyed by fetch signature, and a persistent article store that survives
// restarts and serves as the fallback of last resort.
package cache

import (
	"context"
	"time"

	"github.com/matheuskafuri/lingonews/internal/news"
)

// DefaultRetention bounds how long persisted articles are kept.
const DefaultRetention = 7 * 24 * time.Hour

// Store is the persistent tier. Implementations upsert by news.ExternalID so
// concurrent writers of the same article converge on one record.
type Store interface {
	// Upsert inserts or refreshes each article and returns how many were
	// saved. A failure on one article does not stop the others.
	Upsert(ctx context.Context, articles []news.Article) (int, error)
	// ReadByLanguageAndCategory returns articles newest first. An empty
	// category matches every category.
	ReadByLanguageAndCategory(ctx context.Context, language string, category news.Category, limit, offset int) ([]news.Article, error)
	// PruneOlderThan deletes articles last cached more than age ago.
	PruneOlderThan(ctx context.Context, age time.Duration) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}
