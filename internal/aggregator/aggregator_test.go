package aggregator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheuskafuri/lingonews/internal/cache"
	"github.com/matheuskafuri/lingonews/internal/logger"
	"github.com/matheuskafuri/lingonews/internal/metrics"
	"github.com/matheuskafuri/lingonews/internal/news"
	"github.com/matheuskafuri/lingonews/internal/provider"
)

type stubProvider struct {
	id        string
	available bool
	articles  []news.Article
	err       error
	delay     time.Duration

	fetches  atomic.Int32
	searches atomic.Int32
}

func (s *stubProvider) Info() provider.Info {
	return provider.Info{ID: s.id, Name: s.id, Languages: []string{"en"}}
}

func (s *stubProvider) Fetch(ctx context.Context, req news.Request) (*news.Response, error) {
	s.fetches.Add(1)
	return s.respond(ctx, req, s.articles)
}

func (s *stubProvider) Search(ctx context.Context, query string, req news.Request) (*news.Response, error) {
	s.searches.Add(1)
	return s.respond(ctx, req, provider.FilterByQuery(s.articles, query))
}

func (s *stubProvider) respond(ctx context.Context, req news.Request, articles []news.Article) (*news.Response, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &news.Response{
		Articles:     append([]news.Article{}, articles...),
		TotalResults: len(articles),
		Page:         req.Page,
		PageSize:     req.PageSize,
		ProviderID:   s.id,
		FetchedAt:    time.Now(),
	}, nil
}

func (s *stubProvider) IsAvailable(context.Context) bool { return s.available }

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func article(id, title string, published time.Time) news.Article {
	return news.Article{
		ID:          id,
		Title:       title,
		URL:         "https://example.com/" + id,
		Language:    "en",
		Category:    news.General,
		PublishedAt: published,
	}
}

func testStore(t *testing.T) *cache.SQLiteStore {
	t.Helper()
	s, err := cache.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var errUpstream = &provider.Error{Kind: provider.KindTransient, Provider: "stub", Message: "upstream down"}

func TestCacheHitSkipsProvider(t *testing.T) {
	p := &stubProvider{id: "bbc", available: true, articles: []news.Article{article("a", "A", time.Now())}}
	m := metrics.New()
	agg := New(nil, logger.NewNop(), WithMetrics(m))
	agg.AddProvider(p)

	ctx := context.Background()
	req := news.Request{Language: "en"}
	first, err := agg.FetchArticles(ctx, req, "")
	require.NoError(t, err)
	second, err := agg.FetchArticles(ctx, req, "")
	require.NoError(t, err)

	assert.Equal(t, int32(1), p.fetches.Load())
	assert.Equal(t, first.Articles, second.Articles)
	assert.Equal(t, "bbc", second.ProviderID)
	assert.Equal(t, first.FetchedAt, second.FetchedAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestCacheExpiryRefetches(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	p := &stubProvider{id: "bbc", available: true, articles: []news.Article{article("a", "A", time.Now())}}
	agg := New(nil, logger.NewNop(), WithClock(clock.Now), WithCacheTTL(time.Minute))
	agg.AddProvider(p)

	ctx := context.Background()
	req := news.Request{Language: "en"}
	_, err := agg.FetchArticles(ctx, req, "")
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = agg.FetchArticles(ctx, req, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.fetches.Load())

	clock.Advance(time.Second)
	_, err = agg.FetchArticles(ctx, req, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.fetches.Load())
}

func TestCacheDisabled(t *testing.T) {
	p := &stubProvider{id: "bbc", available: true}
	agg := New(nil, logger.NewNop(), WithCache(false))
	agg.AddProvider(p)

	for i := 0; i < 3; i++ {
		_, err := agg.FetchArticles(context.Background(), news.Request{}, "")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), p.fetches.Load())
}

func TestDistinctKeysDoNotCollide(t *testing.T) {
	p := &stubProvider{id: "bbc", available: true}
	agg := New(nil, logger.NewNop())
	agg.AddProvider(p)

	ctx := context.Background()
	for _, req := range []news.Request{
		{Language: "en"},
		{Language: "en", Category: news.Business},
		{Language: "en", Page: 2},
	} {
		_, err := agg.FetchArticles(ctx, req, "")
		require.NoError(t, err)
	}
	_, err := agg.FetchArticles(ctx, news.Request{Language: "en"}, "bbc")
	require.NoError(t, err)

	assert.Equal(t, int32(4), p.fetches.Load())
}

func TestWriteThroughPersists(t *testing.T) {
	store := testStore(t)
	now := time.Now()
	p := &stubProvider{id: "bbc", available: true, articles: []news.Article{
		article("a", "A", now),
		article("b", "B", now.Add(-time.Hour)),
	}}
	m := metrics.New()
	agg := New(store, logger.NewNop(), WithMetrics(m))
	agg.AddProvider(p)

	_, err := agg.FetchArticles(context.Background(), news.Request{Language: "en"}, "")
	require.NoError(t, err)
	agg.Wait()

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PersistedTotal))
}

func TestPersistDisabled(t *testing.T) {
	store := testStore(t)
	p := &stubProvider{id: "bbc", available: true, articles: []news.Article{article("a", "A", time.Now())}}
	agg := New(store, logger.NewNop(), WithPersist(false))
	agg.AddProvider(p)

	_, err := agg.FetchArticles(context.Background(), news.Request{Language: "en"}, "")
	require.NoError(t, err)
	agg.Wait()

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFallbackServesStoredArticles(t *testing.T) {
	store := testStore(t)
	now := time.Now()
	var stored []news.Article
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		stored = append(stored, article(id, "Stored "+id, now.Add(-time.Duration(i)*time.Hour)))
	}
	_, err := store.Upsert(context.Background(), stored)
	require.NoError(t, err)

	p := &stubProvider{id: "bbc", available: true, err: errUpstream}
	agg := New(store, logger.NewNop())
	agg.AddProvider(p)

	resp, err := agg.FetchArticles(context.Background(), news.Request{Language: "en"}, "")
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Equal(t, StoreProviderID, resp.ProviderID)
	require.Len(t, resp.Articles, 5)
	assert.Equal(t, "a", resp.Articles[0].ID)

	// degraded pages are not cached
	_, err = agg.FetchArticles(context.Background(), news.Request{Language: "en"}, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.fetches.Load())
}

func TestFallbackLimit(t *testing.T) {
	store := testStore(t)
	now := time.Now()
	_, err := store.Upsert(context.Background(), []news.Article{
		article("a", "A", now),
		article("b", "B", now.Add(-time.Hour)),
		article("c", "C", now.Add(-2*time.Hour)),
	})
	require.NoError(t, err)

	agg := New(store, logger.NewNop(), WithFallbackLimit(2))
	agg.AddProvider(&stubProvider{id: "bbc", err: errUpstream})

	resp, err := agg.FetchArticles(context.Background(), news.Request{Language: "en", Page: 2}, "")
	require.NoError(t, err)
	require.Len(t, resp.Articles, 1)
	assert.Equal(t, "c", resp.Articles[0].ID)
}

func TestProviderErrorWithEmptyStore(t *testing.T) {
	agg := New(testStore(t), logger.NewNop())
	agg.AddProvider(&stubProvider{id: "bbc", available: true, err: errUpstream})

	_, err := agg.FetchArticles(context.Background(), news.Request{Language: "en"}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoContent)
	assert.Equal(t, provider.KindTransient, provider.KindOf(err))
}

func TestFallbackDisabled(t *testing.T) {
	store := testStore(t)
	_, err := store.Upsert(context.Background(), []news.Article{article("a", "A", time.Now())})
	require.NoError(t, err)

	agg := New(store, logger.NewNop(), WithFallback(false))
	agg.AddProvider(&stubProvider{id: "bbc", available: true, err: errUpstream})

	_, err = agg.FetchArticles(context.Background(), news.Request{Language: "en"}, "")
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestNoProviders(t *testing.T) {
	store := testStore(t)
	agg := New(store, logger.NewNop())

	_, err := agg.FetchArticles(context.Background(), news.Request{Language: "en"}, "")
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = store.Upsert(context.Background(), []news.Article{article("a", "A", time.Now())})
	require.NoError(t, err)

	resp, err := agg.FetchArticles(context.Background(), news.Request{Language: "en"}, "")
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Len(t, resp.Articles, 1)
}

func TestNoProvidersNoStore(t *testing.T) {
	agg := New(nil, logger.NewNop())
	_, err := agg.FetchArticles(context.Background(), news.Request{}, "")
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestUnknownProviderFallsBack(t *testing.T) {
	p := &stubProvider{id: "bbc", available: true}
	agg := New(nil, logger.NewNop())
	agg.AddProvider(p)

	_, err := agg.FetchArticles(context.Background(), news.Request{}, "nope")
	assert.ErrorIs(t, err, ErrNoContent)
	assert.Equal(t, int32(0), p.fetches.Load())
}

func TestPriorityResolution(t *testing.T) {
	cnn := &stubProvider{id: "cnn", available: true}
	newsapi := &stubProvider{id: "newsapi", available: false}
	extra := &stubProvider{id: "extra", available: true}
	bbc := &stubProvider{id: "bbc", available: true}

	agg := New(nil, logger.NewNop())
	agg.AddProvider(extra)
	agg.AddProvider(cnn)
	agg.AddProvider(newsapi)
	agg.AddProvider(bbc)

	resp, err := agg.FetchArticles(context.Background(), news.Request{}, "")
	require.NoError(t, err)
	assert.Equal(t, "bbc", resp.ProviderID)
	assert.Equal(t, int32(0), newsapi.fetches.Load())

	agg = New(nil, logger.NewNop(), WithPriority([]string{"extra"}))
	agg.AddProvider(bbc)
	agg.AddProvider(extra)
	resp, err = agg.FetchArticles(context.Background(), news.Request{}, "")
	require.NoError(t, err)
	assert.Equal(t, "extra", resp.ProviderID)
}

func TestNothingAvailableUsesTopPriority(t *testing.T) {
	bbc := &stubProvider{id: "bbc", articles: []news.Article{article("a", "A", time.Now())}}
	cnn := &stubProvider{id: "cnn"}
	agg := New(nil, logger.NewNop())
	agg.AddProvider(cnn)
	agg.AddProvider(bbc)

	resp, err := agg.FetchArticles(context.Background(), news.Request{}, "")
	require.NoError(t, err)
	assert.Equal(t, "bbc", resp.ProviderID)
}

func TestSearchUsesOwnKey(t *testing.T) {
	now := time.Now()
	p := &stubProvider{id: "bbc", available: true, articles: []news.Article{
		article("a", "Climate summit", now),
		article("b", "Football", now),
	}}
	agg := New(nil, logger.NewNop())
	agg.AddProvider(p)

	ctx := context.Background()
	_, err := agg.FetchArticles(ctx, news.Request{Language: "en"}, "")
	require.NoError(t, err)

	resp, err := agg.SearchArticles(ctx, "climate", news.Request{Language: "en"}, "")
	require.NoError(t, err)
	require.Len(t, resp.Articles, 1)
	assert.Equal(t, "a", resp.Articles[0].ID)

	_, err = agg.SearchArticles(ctx, "climate", news.Request{Language: "en"}, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.searches.Load())
	assert.Equal(t, int32(1), p.fetches.Load())
}

func TestFetchByCategory(t *testing.T) {
	p := &stubProvider{id: "bbc", available: true}
	agg := New(nil, logger.NewNop())
	agg.AddProvider(p)

	_, err := agg.FetchByCategory(context.Background(), news.Sports, news.Request{Language: "en"})
	require.NoError(t, err)
	_, err = agg.FetchArticles(context.Background(), news.Request{Language: "en", Category: news.Sports}, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), p.fetches.Load())
}

func TestFetchFromMultipleProviders(t *testing.T) {
	now := time.Now()
	store := testStore(t)
	_, err := store.Upsert(context.Background(), []news.Article{article("stale", "Stale", now)})
	require.NoError(t, err)

	agg := New(store, logger.NewNop())
	agg.AddProvider(&stubProvider{id: "bbc", available: true, articles: []news.Article{
		article("b1", "B1", now.Add(-time.Hour)),
		article("b2", "B2", now.Add(-3*time.Hour)),
	}})
	agg.AddProvider(&stubProvider{id: "cnn", available: true, articles: []news.Article{
		article("c1", "C1", now.Add(-2*time.Hour)),
	}})
	agg.AddProvider(&stubProvider{id: "broken", available: true, err: errors.New("boom")})

	got := agg.FetchFromMultipleProviders(context.Background(), news.Request{Language: "en"})
	agg.Wait()
	require.Len(t, got, 3, "failed providers contribute nothing, not even stored articles")
	assert.Equal(t, "b1", got[0].ID)
	assert.Equal(t, "c1", got[1].ID)
	assert.Equal(t, "b2", got[2].ID)
}

func TestConcurrentMissesAreCoalesced(t *testing.T) {
	p := &stubProvider{id: "bbc", available: true, delay: 50 * time.Millisecond,
		articles: []news.Article{article("a", "A", time.Now())}}
	agg := New(nil, logger.NewNop())
	agg.AddProvider(p)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := agg.FetchArticles(context.Background(), news.Request{Language: "en"}, "bbc")
			assert.NoError(t, err)
			assert.Len(t, resp.Articles, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), p.fetches.Load())
}

func TestCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	p := &stubProvider{id: "bbc", available: true, delay: 100 * time.Millisecond,
		articles: []news.Article{article("a", "A", time.Now())}}
	agg := New(nil, logger.NewNop())
	agg.AddProvider(p)
	req := news.Request{Language: "en"}

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	leaderErr := make(chan error, 1)
	go func() {
		_, err := agg.FetchArticles(short, req, "bbc")
		leaderErr <- err
	}()
	time.Sleep(5 * time.Millisecond)

	resp, err := agg.FetchArticles(context.Background(), req, "bbc")
	require.NoError(t, err)
	assert.Len(t, resp.Articles, 1)

	err = <-leaderErr
	assert.ErrorIs(t, err, ErrNoContent)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), p.fetches.Load())
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	p := &stubProvider{id: "bbc", available: true, articles: []news.Article{article("a", "A", time.Now())}}
	agg := New(nil, logger.NewNop())
	agg.AddProvider(p)

	_, err := agg.FetchArticles(context.Background(), news.Request{Language: "en"}, "")
	require.NoError(t, err)

	_, err = agg.SearchArticles(context.Background(), "   ", news.Request{Language: "en"}, "")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Equal(t, int32(0), p.searches.Load())
}

func TestResponsesAreIndependentCopies(t *testing.T) {
	p := &stubProvider{id: "bbc", available: true, articles: []news.Article{article("a", "A", time.Now())}}
	agg := New(nil, logger.NewNop())
	agg.AddProvider(p)

	first, err := agg.FetchArticles(context.Background(), news.Request{}, "")
	require.NoError(t, err)
	first.Articles[0].Title = "mutated"

	second, err := agg.FetchArticles(context.Background(), news.Request{}, "")
	require.NoError(t, err)
	assert.Equal(t, "A", second.Articles[0].Title)
}

func TestRegistry(t *testing.T) {
	agg := New(nil, logger.NewNop())
	agg.AddProvider(&stubProvider{id: "bbc", available: true})
	agg.AddProvider(&stubProvider{id: "cnn", available: false})
	agg.AddProvider(&stubProvider{id: "nhk-world", available: true})

	assert.Equal(t, []string{"bbc", "nhk-world"}, agg.AvailableProviders(context.Background()))

	replacement := &stubProvider{id: "cnn", available: true}
	agg.AddProvider(replacement)
	infos := agg.Providers()
	require.Len(t, infos, 3)
	assert.Equal(t, "cnn", infos[1].ID, "replacing keeps the slot")

	assert.True(t, agg.RemoveProvider("bbc"))
	assert.False(t, agg.RemoveProvider("bbc"))
	assert.Equal(t, []string{"cnn", "nhk-world"}, agg.AvailableProviders(context.Background()))
}

func TestRemoveProviderDropsCachedPages(t *testing.T) {
	bbc := &stubProvider{id: "bbc", available: true, articles: []news.Article{article("a", "From BBC", time.Now())}}
	cnn := &stubProvider{id: "cnn", available: true, articles: []news.Article{article("b", "From CNN", time.Now())}}
	agg := New(nil, logger.NewNop(), WithPriority([]string{"bbc", "cnn"}))
	agg.AddProvider(bbc)
	agg.AddProvider(cnn)

	req := news.Request{Language: "en"}
	resp, err := agg.FetchArticles(context.Background(), req, "")
	require.NoError(t, err)
	assert.Equal(t, "bbc", resp.ProviderID)

	require.True(t, agg.RemoveProvider("bbc"))
	resp, err = agg.FetchArticles(context.Background(), req, "")
	require.NoError(t, err)
	assert.Equal(t, "cnn", resp.ProviderID)
	assert.Equal(t, "From CNN", resp.Articles[0].Title)
}

func TestCacheStatsAndPrune(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	store := testStore(t)
	agg := New(store, logger.NewNop(), WithClock(clock.Now), WithCacheTTL(time.Minute))
	agg.AddProvider(&stubProvider{id: "bbc", available: true, articles: []news.Article{article("a", "A", time.Now())}})

	_, err := agg.FetchArticles(context.Background(), news.Request{Language: "en"}, "")
	require.NoError(t, err)
	agg.Wait()

	stats, err := agg.CacheStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MemoryEntries)
	assert.Equal(t, 1, stats.StoredArticles)
	assert.Equal(t, 1, stats.Providers)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, agg.PruneMemory())

	time.Sleep(5 * time.Millisecond)
	removed, err := agg.PruneStore(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestStartJanitor(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	agg := New(nil, logger.NewNop(), WithClock(clock.Now), WithCacheTTL(time.Minute))
	agg.AddProvider(&stubProvider{id: "bbc", available: true})

	_, err := agg.FetchArticles(context.Background(), news.Request{}, "")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agg.StartJanitor(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		stats, _ := agg.CacheStats(context.Background())
		return stats.MemoryEntries == 0
	}, time.Second, 10*time.Millisecond)
}
