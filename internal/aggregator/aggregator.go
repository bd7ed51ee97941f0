// Package aggregator routes article requests to providers through the
// memory tier, writes fresh results through to the persistent tier and
// serves stale stored articles when live fetches fail.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/matheuskafuri/lingonews/internal/cache"
	"github.com/matheuskafuri/lingonews/internal/logger"
	"github.com/matheuskafuri/lingonews/internal/metrics"
	"github.com/matheuskafuri/lingonews/internal/news"
	"github.com/matheuskafuri/lingonews/internal/provider"
)

// ErrNoContent is returned when neither a provider nor the persistent tier
// produced articles.
var ErrNoContent = errors.New("no content available")

// ErrEmptyQuery is returned by SearchArticles for a blank query.
var ErrEmptyQuery = errors.New("search query is empty")

const (
	DefaultCacheTTL = 10 * time.Minute

	// DefaultProviderKey stands in for the provider in cache keys when the
	// caller did not name one.
	DefaultProviderKey = "default"

	// StoreProviderID is reported on responses served from the persistent
	// tier.
	StoreProviderID = "store"

	persistTimeout = 30 * time.Second

	// flightTimeout bounds a shared load, which outlives the caller that
	// started it.
	flightTimeout = 2 * time.Minute
)

// DefaultPriority is the provider order used when no provider is named.
var DefaultPriority = []string{"newsapi", "bbc", "cnn", "nhk-world"}

type op string

const (
	opFetch  op = "fetch"
	opSearch op = "search"
)

type Aggregator struct {
	mu        sync.RWMutex
	providers []provider.Provider

	store   cache.Store
	memory  *cache.Memory
	metrics *metrics.Metrics
	log     logger.Logger
	now     func() time.Time

	ttl           time.Duration
	enableCache   bool
	persist       bool
	fallback      bool
	priority      []string
	fallbackLimit int

	flights singleflight.Group
	writes  sync.WaitGroup
}

// New builds an aggregator over store, which may be nil to run memory-only.
func New(store cache.Store, log logger.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:       store,
		log:         log,
		now:         time.Now,
		ttl:         DefaultCacheTTL,
		enableCache: true,
		persist:     true,
		fallback:    true,
		priority:    DefaultPriority,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.memory == nil {
		a.memory = cache.NewMemoryWithClock(a.now)
	}
	if a.metrics == nil {
		a.metrics = metrics.New()
	}
	return a
}

// AddProvider registers p, replacing any provider with the same ID in place.
func (a *Aggregator) AddProvider(p provider.Provider) {
	id := p.Info().ID
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.providers {
		if existing.Info().ID == id {
			a.providers[i] = p
			return
		}
	}
	a.providers = append(a.providers, p)
}

// RemoveProvider unregisters id. Memory entries are dropped on removal
// because pages cached under the default key may have come from it.
func (a *Aggregator) RemoveProvider(id string) bool {
	a.mu.Lock()
	removed := false
	for i, p := range a.providers {
		if p.Info().ID == id {
			a.providers = append(a.providers[:i:i], a.providers[i+1:]...)
			removed = true
			break
		}
	}
	a.mu.Unlock()

	if removed {
		a.memory.Clear()
	}
	return removed
}

func (a *Aggregator) snapshot() []provider.Provider {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]provider.Provider(nil), a.providers...)
}

// Providers describes the registered providers in registration order.
func (a *Aggregator) Providers() []provider.Info {
	snap := a.snapshot()
	infos := make([]provider.Info, len(snap))
	for i, p := range snap {
		infos[i] = p.Info()
	}
	return infos
}

// AvailableProviders probes every provider concurrently and returns the IDs
// of those that answered, in registration order.
func (a *Aggregator) AvailableProviders(ctx context.Context) []string {
	snap := a.snapshot()
	ok := make([]bool, len(snap))
	var wg sync.WaitGroup
	for i, p := range snap {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			ok[i] = p.IsAvailable(ctx)
			a.log.Debug("provider probed",
				logger.String("provider", p.Info().ID),
				logger.Bool("available", ok[i]),
			)
		}(i, p)
	}
	wg.Wait()

	var ids []string
	for i, p := range snap {
		if ok[i] {
			ids = append(ids, p.Info().ID)
		}
	}
	return ids
}

func (a *Aggregator) FetchArticles(ctx context.Context, req news.Request, providerID string) (*news.Response, error) {
	req = req.Normalize()
	req.Query = ""
	return a.get(ctx, opFetch, req, providerID, true)
}

func (a *Aggregator) SearchArticles(ctx context.Context, query string, req news.Request, providerID string) (*news.Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	req = req.Normalize()
	req.Query = query
	return a.get(ctx, opSearch, req, providerID, true)
}

// FetchByCategory fetches from the preferred provider with the category set.
func (a *Aggregator) FetchByCategory(ctx context.Context, category news.Category, req news.Request) (*news.Response, error) {
	req.Category = category
	return a.FetchArticles(ctx, req, "")
}

// FetchFromMultipleProviders queries every registered provider concurrently
// and merges the results newest first. Failed providers contribute nothing.
func (a *Aggregator) FetchFromMultipleProviders(ctx context.Context, req news.Request) []news.Article {
	req = req.Normalize()
	req.Query = ""
	snap := a.snapshot()

	results := make([][]news.Article, len(snap))
	var wg sync.WaitGroup
	for i, p := range snap {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			resp, err := a.get(ctx, opFetch, req, id, false)
			if err != nil {
				a.log.Warn("provider failed in multi-provider fetch",
					logger.String("provider", id),
					logger.Error(err),
				)
				return
			}
			results[i] = resp.Articles
		}(i, p.Info().ID)
	}
	wg.Wait()

	var merged []news.Article
	for _, r := range results {
		merged = append(merged, r...)
	}
	news.SortNewestFirst(merged)
	return merged
}

func (a *Aggregator) get(ctx context.Context, o op, req news.Request, providerID string, allowFallback bool) (*news.Response, error) {
	keyID := providerID
	if keyID == "" {
		keyID = DefaultProviderKey
	}
	key := cache.Key(keyID, req.Language, req.Category, req.Query, req.Page)

	if resp, ok := a.fromMemory(key, req); ok {
		return resp, nil
	}

	flightKey := key
	if !allowFallback {
		flightKey += "#live"
	}
	// The load is shared by every caller of flightKey, so it runs detached
	// from any single caller's cancellation.
	ch := a.flights.DoChan(flightKey, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		if resp, ok := a.lookup(key, req); ok {
			return resp, nil
		}
		return a.load(fctx, o, key, req, providerID, allowFallback)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrNoContent, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneResponse(res.Val.(*news.Response)), nil
	}
}

func (a *Aggregator) fromMemory(key string, req news.Request) (*news.Response, bool) {
	if !a.enableCache {
		return nil, false
	}
	resp, ok := a.lookup(key, req)
	if ok {
		a.metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		a.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return resp, ok
}

func (a *Aggregator) lookup(key string, req news.Request) (*news.Response, bool) {
	if !a.enableCache {
		return nil, false
	}
	e, ok := a.memory.Entry(key)
	if !ok {
		return nil, false
	}
	return &news.Response{
		Articles:     e.Articles,
		TotalResults: len(e.Articles),
		Page:         req.Page,
		PageSize:     req.PageSize,
		ProviderID:   e.ProviderID,
		FetchedAt:    e.FetchedAt,
	}, true
}

func (a *Aggregator) load(ctx context.Context, o op, key string, req news.Request, providerID string, allowFallback bool) (*news.Response, error) {
	p := a.resolve(ctx, providerID)
	if p == nil {
		if allowFallback {
			if resp, ok := a.fallbackRead(ctx, req); ok {
				return resp, nil
			}
		}
		return nil, ErrNoContent
	}

	id := p.Info().ID
	resp, err := a.call(ctx, o, p, req)
	if err == nil {
		if resp.ProviderID == "" {
			resp.ProviderID = id
		}
		if a.enableCache {
			a.memory.Set(key, resp.Articles, resp.ProviderID, a.ttl)
		}
		if a.persist && a.store != nil && len(resp.Articles) > 0 {
			a.persistInBackground(ctx, resp.Articles)
		}
		return resp, nil
	}

	a.log.Warn("provider request failed",
		logger.String("provider", id),
		logger.String("op", string(o)),
		logger.Error(err),
	)
	if allowFallback {
		if fb, ok := a.fallbackRead(ctx, req); ok {
			return fb, nil
		}
	}
	return nil, fmt.Errorf("%w: %w", ErrNoContent, err)
}

func (a *Aggregator) call(ctx context.Context, o op, p provider.Provider, req news.Request) (*news.Response, error) {
	id := p.Info().ID
	start := time.Now()

	var (
		resp *news.Response
		err  error
	)
	if o == opSearch {
		resp, err = p.Search(ctx, req.Query, req)
	} else {
		resp, err = p.Fetch(ctx, req)
	}

	a.metrics.FetchDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	a.metrics.ProviderRequests.WithLabelValues(id, string(o), outcome).Inc()
	if err == nil && resp == nil {
		resp = &news.Response{Page: req.Page, PageSize: req.PageSize, ProviderID: id, FetchedAt: a.now()}
	}
	return resp, err
}

// resolve picks the named provider, or the first available one in priority
// order. With nothing available it still returns the top-priority provider
// so the caller gets its error and the fallback path.
func (a *Aggregator) resolve(ctx context.Context, providerID string) provider.Provider {
	snap := a.snapshot()
	if providerID != "" {
		for _, p := range snap {
			if p.Info().ID == providerID {
				return p
			}
		}
		a.log.Debug("unknown provider requested", logger.String("provider", providerID))
		return nil
	}

	ordered := a.ordered(snap)
	for _, p := range ordered {
		if p.IsAvailable(ctx) {
			return p
		}
	}
	if len(ordered) > 0 {
		return ordered[0]
	}
	return nil
}

// ordered lists providers by priority, then the rest in registration order.
func (a *Aggregator) ordered(snap []provider.Provider) []provider.Provider {
	out := make([]provider.Provider, 0, len(snap))
	used := make([]bool, len(snap))
	for _, id := range a.priority {
		for i, p := range snap {
			if !used[i] && p.Info().ID == id {
				used[i] = true
				out = append(out, p)
			}
		}
	}
	for i, p := range snap {
		if !used[i] {
			out = append(out, p)
		}
	}
	return out
}

func (a *Aggregator) fallbackRead(ctx context.Context, req news.Request) (*news.Response, bool) {
	if !a.fallback || a.store == nil {
		return nil, false
	}
	limit := req.PageSize
	if a.fallbackLimit > 0 {
		limit = a.fallbackLimit
	}
	offset := (req.Page - 1) * limit

	articles, err := a.store.ReadByLanguageAndCategory(ctx, req.Language, req.Category, limit, offset)
	if err != nil {
		a.metrics.Fallbacks.WithLabelValues("error").Inc()
		a.log.Warn("fallback read failed", logger.Error(err))
		return nil, false
	}
	if len(articles) == 0 {
		a.metrics.Fallbacks.WithLabelValues("empty").Inc()
		return nil, false
	}
	a.metrics.Fallbacks.WithLabelValues("served").Inc()

	return &news.Response{
		Articles:     articles,
		TotalResults: len(articles),
		Page:         req.Page,
		PageSize:     req.PageSize,
		ProviderID:   StoreProviderID,
		FetchedAt:    a.now(),
		Degraded:     true,
	}, true
}

func (a *Aggregator) persistInBackground(ctx context.Context, articles []news.Article) {
	batch := append([]news.Article(nil), articles...)
	ctx = context.WithoutCancel(ctx)

	a.writes.Add(1)
	go func() {
		defer a.writes.Done()
		ctx, cancel := context.WithTimeout(ctx, persistTimeout)
		defer cancel()

		n, err := a.store.Upsert(ctx, batch)
		if err != nil {
			a.metrics.PersistFailures.Inc()
			a.log.Warn("persisting articles failed",
				logger.Int("articles", len(batch)),
				logger.Error(err),
			)
			return
		}
		a.metrics.PersistedTotal.Add(float64(n))
		if n < len(batch) {
			a.log.Debug("some articles were not persisted",
				logger.Int("saved", n),
				logger.Int("articles", len(batch)),
			)
		}
	}()
}

// Wait blocks until background writes have finished.
func (a *Aggregator) Wait() {
	a.writes.Wait()
}

func cloneResponse(r *news.Response) *news.Response {
	out := *r
	out.Articles = append([]news.Article{}, r.Articles...)
	return &out
}
