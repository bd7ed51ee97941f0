package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/matheuskafuri/lingonews/internal/cache"
	"github.com/matheuskafuri/lingonews/internal/logger"
)

type Stats struct {
	MemoryEntries  int `json:"memoryEntries"`
	MemoryBytes    int `json:"memoryBytes"`
	StoredArticles int `json:"storedArticles"`
	Providers      int `json:"providers"`
}

// CacheStats reports the size of both tiers. StoredArticles is zero when no
// store is configured.
func (a *Aggregator) CacheStats(ctx context.Context) (Stats, error) {
	mem := a.memory.Stats()
	s := Stats{
		MemoryEntries: mem.Entries,
		MemoryBytes:   mem.ApproxBytes,
		Providers:     len(a.snapshot()),
	}
	if a.store == nil {
		return s, nil
	}
	n, err := a.store.Count(ctx)
	if err != nil {
		return s, fmt.Errorf("counting stored articles: %w", err)
	}
	s.StoredArticles = n
	return s, nil
}

// PruneMemory drops expired memory entries and returns how many went.
func (a *Aggregator) PruneMemory() int {
	return a.memory.Prune()
}

// PruneStore deletes persisted articles older than age, or
// cache.DefaultRetention when age is not positive.
func (a *Aggregator) PruneStore(ctx context.Context, age time.Duration) (int, error) {
	if a.store == nil {
		return 0, nil
	}
	if age <= 0 {
		age = cache.DefaultRetention
	}
	n, err := a.store.PruneOlderThan(ctx, age)
	if err != nil {
		return 0, fmt.Errorf("pruning store: %w", err)
	}
	return n, nil
}

// StartJanitor prunes the memory tier every interval until ctx is done.
func (a *Aggregator) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = a.ttl
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := a.PruneMemory(); n > 0 {
					a.log.Debug("pruned memory cache", logger.Int("entries", n))
				}
			}
		}
	}()
}
