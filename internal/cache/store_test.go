package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheuskafuri/lingonews/internal/news"
)

func newsCategory(s string) news.Category { return news.Category(s) }

func sampleArticles(now time.Time) []news.Article {
	return []news.Article{
		{ID: "aaa", Source: "BBC", Title: "Post A", URL: "https://a.com", Description: "Desc A", Language: "en", Category: news.General, PublishedAt: now.Add(-1 * time.Hour)},
		{ID: "bbb", Source: "CNN", Title: "Post B", URL: "https://b.com", Description: "Desc B", Language: "en", Category: news.Business, PublishedAt: now.Add(-2 * time.Hour)},
		{ID: "ccc", Source: "BBC", Title: "Post C", URL: "https://c.com", Description: "Desc C", Language: "en", Category: news.General, PublishedAt: now.Add(-48 * time.Hour)},
		{ID: "ddd", Source: "NHK", Title: "Post D", URL: "https://d.com", Description: "Desc D", Language: "ja", Category: news.General, PublishedAt: now.Add(-3 * time.Hour)},
	}
}

// storeContract exercises behavior every Store must share. setNow moves the
// store's clock so cached-at timestamps can be aged.
func storeContract(t *testing.T, newStore func(t *testing.T) (Store, func(time.Time))) {
	ctx := context.Background()

	t.Run("UpsertAndRead", func(t *testing.T) {
		s, _ := newStore(t)
		n, err := s.Upsert(ctx, sampleArticles(time.Now()))
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		got, err := s.ReadByLanguageAndCategory(ctx, "en", "", 10, 0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "aaa", got[0].ID, "newest first")
		assert.Equal(t, "bbb", got[1].ID)
		assert.Equal(t, "ccc", got[2].ID)
	})

	t.Run("FilterByCategory", func(t *testing.T) {
		s, _ := newStore(t)
		_, err := s.Upsert(ctx, sampleArticles(time.Now()))
		require.NoError(t, err)

		got, err := s.ReadByLanguageAndCategory(ctx, "en", news.General, 10, 0)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, a := range got {
			assert.Equal(t, news.General, a.Category)
			assert.Equal(t, "en", a.Language)
		}
	})

	t.Run("LimitOffset", func(t *testing.T) {
		s, _ := newStore(t)
		_, err := s.Upsert(ctx, sampleArticles(time.Now()))
		require.NoError(t, err)

		got, err := s.ReadByLanguageAndCategory(ctx, "en", "", 1, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "bbb", got[0].ID)
	})

	t.Run("UpsertIsIdempotent", func(t *testing.T) {
		s, _ := newStore(t)
		articles := sampleArticles(time.Now())
		_, err := s.Upsert(ctx, articles[:1])
		require.NoError(t, err)

		updated := articles[0]
		updated.Title = "Updated Post A"
		updated.ImageURL = "https://a.com/img.png"
		_, err = s.Upsert(ctx, []news.Article{updated})
		require.NoError(t, err)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := s.ReadByLanguageAndCategory(ctx, "en", "", 10, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Updated Post A", got[0].Title)
		assert.Equal(t, "https://a.com/img.png", got[0].ImageURL)
		assert.Equal(t, "aaa", got[0].ID)
	})

	t.Run("PruneOlderThan", func(t *testing.T) {
		s, setNow := newStore(t)
		start := time.Now()
		articles := sampleArticles(start)

		setNow(start.Add(-10 * 24 * time.Hour))
		_, err := s.Upsert(ctx, articles[:2])
		require.NoError(t, err)

		setNow(start)
		_, err = s.Upsert(ctx, articles[2:])
		require.NoError(t, err)

		removed, err := s.PruneOlderThan(ctx, DefaultRetention)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := s.ReadByLanguageAndCategory(ctx, "en", "", 10, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "ccc", got[0].ID)
	})

	t.Run("RefreshKeepsArticleAlive", func(t *testing.T) {
		s, setNow := newStore(t)
		start := time.Now()
		articles := sampleArticles(start)

		setNow(start.Add(-10 * 24 * time.Hour))
		_, err := s.Upsert(ctx, articles[:1])
		require.NoError(t, err)

		setNow(start)
		_, err = s.Upsert(ctx, articles[:1])
		require.NoError(t, err)

		removed, err := s.PruneOlderThan(ctx, DefaultRetention)
		require.NoError(t, err)
		assert.Equal(t, 0, removed)
	})

	t.Run("Empty", func(t *testing.T) {
		s, _ := newStore(t)
		got, err := s.ReadByLanguageAndCategory(ctx, "en", news.General, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, got)

		n, err := s.Upsert(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("RetaggedArticleKeepsFirstCategory", func(t *testing.T) {
		s, _ := newStore(t)
		a := sampleArticles(time.Now())[1]
		_, err := s.Upsert(ctx, []news.Article{a})
		require.NoError(t, err)

		a.Category = news.Sports
		a.Title = "Post B updated"
		_, err = s.Upsert(ctx, []news.Article{a})
		require.NoError(t, err)

		got, err := s.ReadByLanguageAndCategory(ctx, "en", news.Business, 10, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Post B updated", got[0].Title)

		got, err = s.ReadByLanguageAndCategory(ctx, "en", news.Sports, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
