package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheuskafuri/lingonews/internal/logger"
)

const easyIndex = `{
  "2024-05-01": [
    {"news_id": "k100", "title": "あさ", "title_with_ruby": "<ruby>朝<rt>あさ</rt></ruby>", "news_prearranged_time": "2024-05-01 09:00:00"}
  ],
  "2024-05-02": [
    {"news_id": "k200", "title": "よる", "title_with_ruby": "よる", "news_prearranged_time": "2024-05-02 20:00:00"},
    {"news_id": "k150", "title": "ひる", "title_with_ruby": "ひる", "news_prearranged_time": "2024-05-02 12:00:00"}
  ]
}`

func easyServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchEasyNews(t *testing.T) {
	for name, body := range map[string]string{
		"object": easyIndex,
		"array":  "[" + easyIndex + "]",
	} {
		t.Run(name, func(t *testing.T) {
			srv := easyServer(t, body, http.StatusOK)
			n := NewNHKWorld(logger.NewNop(), WithHTTPClient(srv.Client()), WithEasyNewsURL(srv.URL))

			got, err := n.FetchEasyNews(context.Background())
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "k200", got[0].ID)
			assert.Equal(t, "k150", got[1].ID)
			assert.Equal(t, "k100", got[2].ID)
			assert.Equal(t, "https://www3.nhk.or.jp/news/easy/k100/k100.html", got[2].URL)
			assert.Equal(t, "<ruby>朝<rt>あさ</rt></ruby>", got[2].TitleWithRuby)
			assert.Equal(t, 0, got[2].PublishedAt.UTC().Hour(), "09:00 JST is midnight UTC")
		})
	}
}

func TestFetchEasyNewsHTTPError(t *testing.T) {
	srv := easyServer(t, "nope", http.StatusServiceUnavailable)
	n := NewNHKWorld(logger.NewNop(), WithHTTPClient(srv.Client()), WithEasyNewsURL(srv.URL))

	_, err := n.FetchEasyNews(context.Background())
	assert.ErrorContains(t, err, "HTTP 503")
}

func TestFetchEasyNewsMalformed(t *testing.T) {
	srv := easyServer(t, "{not json", http.StatusOK)
	n := NewNHKWorld(logger.NewNop(), WithHTTPClient(srv.Client()), WithEasyNewsURL(srv.URL))

	_, err := n.FetchEasyNews(context.Background())
	assert.ErrorContains(t, err, "decoding easy news")
}

func TestNHKWorldIsAProvider(t *testing.T) {
	n := NewNHKWorld(logger.NewNop())
	assert.Equal(t, "nhk-world", n.Info().ID)
	assert.Equal(t, []string{"ja"}, n.Info().Languages)
}
