package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/matheuskafuri/lingonews/internal/logger"
)

// EasyNewsURL is the NHK News Web Easy index.
const EasyNewsURL = "https://www3.nhk.or.jp/news/easy/news-list.json"

const (
	easyArticleURL  = "https://www3.nhk.or.jp/news/easy/%s/%s.html"
	easyTimeLayout  = "2006-01-02 15:04:05"
	maxEasyIndexLen = 8 << 20
)

var jst = time.FixedZone("JST", 9*60*60)

// EasyArticle is one entry of the NHK News Web Easy index, written in
// simplified Japanese for learners.
type EasyArticle struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	TitleWithRuby string    `json:"titleWithRuby"`
	URL           string    `json:"url"`
	PublishedAt   time.Time `json:"publishedAt"`
}

type easyItem struct {
	NewsID        string `json:"news_id"`
	Title         string `json:"title"`
	TitleWithRuby string `json:"title_with_ruby"`
	PrearrangedAt string `json:"news_prearranged_time"`
}

// WithEasyNewsURL overrides the NHK News Web Easy index location.
func WithEasyNewsURL(u string) Option {
	return func(o *options) { o.easyURL = u }
}

// NHKWorld is the NHK feed provider plus access to the News Web Easy index.
type NHKWorld struct {
	*Provider
	easyURL string
}

func NewNHKWorld(log logger.Logger, opts ...Option) *NHKWorld {
	return NewNHKWorldWithConfig(NHKWorldConfig(), log, opts...)
}

func NewNHKWorldWithConfig(cfg Config, log logger.Logger, opts ...Option) *NHKWorld {
	o := buildOptions(cfg, opts)
	return &NHKWorld{Provider: newProvider(cfg, log, o), easyURL: o.easyURL}
}

// FetchEasyNews returns the News Web Easy index, newest first.
func (n *NHKWorld) FetchEasyNews(ctx context.Context) ([]EasyArticle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.easyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching easy news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching easy news: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEasyIndexLen))
	if err != nil {
		return nil, fmt.Errorf("reading easy news: %w", err)
	}
	groups, err := decodeEasyIndex(body)
	if err != nil {
		return nil, fmt.Errorf("decoding easy news: %w", err)
	}

	var articles []EasyArticle
	for _, group := range groups {
		for _, items := range group {
			for _, it := range items {
				if it.NewsID == "" {
					continue
				}
				articles = append(articles, EasyArticle{
					ID:            it.NewsID,
					Title:         it.Title,
					TitleWithRuby: it.TitleWithRuby,
					URL:           fmt.Sprintf(easyArticleURL, it.NewsID, it.NewsID),
					PublishedAt:   parseEasyTime(it.PrearrangedAt),
				})
			}
		}
	}

	sort.SliceStable(articles, func(i, j int) bool {
		if !articles[i].PublishedAt.Equal(articles[j].PublishedAt) {
			return articles[i].PublishedAt.After(articles[j].PublishedAt)
		}
		return articles[i].ID < articles[j].ID
	})
	return articles, nil
}

// decodeEasyIndex accepts both the bare date map and the same map wrapped in
// a one-element array.
func decodeEasyIndex(body []byte) ([]map[string][]easyItem, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var groups []map[string][]easyItem
		if err := json.Unmarshal(body, &groups); err != nil {
			return nil, err
		}
		return groups, nil
	}
	var group map[string][]easyItem
	if err := json.Unmarshal(body, &group); err != nil {
		return nil, err
	}
	return []map[string][]easyItem{group}, nil
}

func parseEasyTime(s string) time.Time {
	if t, err := time.ParseInLocation(easyTimeLayout, s, jst); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}
