// Package feed implements providers backed by RSS/Atom feeds.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/matheuskafuri/lingonews/internal/classify"
	"github.com/matheuskafuri/lingonews/internal/logger"
	"github.com/matheuskafuri/lingonews/internal/news"
	"github.com/matheuskafuri/lingonews/internal/provider"
)

const (
	defaultTimeout = 10 * time.Second
	probeTimeout   = 5 * time.Second
	userAgent      = "lingonews/1.0 (+https://github.com/matheuskafuri/lingonews)"

	maxDescriptionRunes = 500
)

// Source is one configured feed URL and the metadata stamped onto its
// entries.
type Source struct {
	URL        string        `yaml:"url"`
	Language   string        `yaml:"language"`
	Category   news.Category `yaml:"category,omitempty"`
	Difficulty string        `yaml:"difficulty,omitempty"`
}

type Config struct {
	ID          string
	Name        string
	Description string
	Feeds       []Source
	Timeout     time.Duration
}

type options struct {
	client  *http.Client
	now     func() time.Time
	easyURL string
}

type Option func(*options)

// WithHTTPClient replaces the client used for feed requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithClock overrides the time source used for entries without a date.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Provider fetches every matching feed concurrently and merges the entries
// newest first.
type Provider struct {
	cfg    Config
	info   provider.Info
	client *http.Client
	now    func() time.Time
	log    logger.Logger
}

func New(cfg Config, log logger.Logger, opts ...Option) *Provider {
	o := buildOptions(cfg, opts)
	return newProvider(cfg, log, o)
}

func buildOptions(cfg Config, opts []Option) options {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	o := options{
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
		easyURL: EasyNewsURL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newProvider(cfg Config, log logger.Logger, o options) *Provider {
	return &Provider{
		cfg:    cfg,
		info:   infoFor(cfg),
		client: o.client,
		now:    o.now,
		log:    log.With(logger.String("provider", cfg.ID)),
	}
}

func infoFor(cfg Config) provider.Info {
	info := provider.Info{ID: cfg.ID, Name: cfg.Name, Description: cfg.Description}
	seenLang := make(map[string]bool)
	seenCat := make(map[news.Category]bool)
	for _, f := range cfg.Feeds {
		if !seenLang[f.Language] {
			seenLang[f.Language] = true
			info.Languages = append(info.Languages, f.Language)
		}
		if f.Category != "" && !seenCat[f.Category] {
			seenCat[f.Category] = true
			info.Categories = append(info.Categories, f.Category)
		}
	}
	return info
}

func (p *Provider) Info() provider.Info { return p.info }

// Feeds returns the configured sources.
func (p *Provider) Feeds() []Source {
	return append([]Source(nil), p.cfg.Feeds...)
}

// matching returns the feeds serving the request. Feeds without a category
// match every category.
func (p *Provider) matching(req news.Request) []Source {
	var out []Source
	for _, f := range p.cfg.Feeds {
		if f.Language != req.Language {
			continue
		}
		if req.Category != "" && f.Category != "" && f.Category != req.Category {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (p *Provider) Fetch(ctx context.Context, req news.Request) (*news.Response, error) {
	req = req.Normalize()
	sources := p.matching(req)
	if len(sources) == 0 {
		return p.response(nil, 0, req), nil
	}

	results := make([][]news.Article, len(sources))
	errs := make([]error, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, s Source) {
			defer wg.Done()
			results[i], errs[i] = p.fetchFeed(ctx, s)
		}(i, src)
	}
	wg.Wait()

	var (
		all    []news.Article
		failed int
	)
	for i, err := range errs {
		if err != nil {
			failed++
			p.log.Warn("feed fetch failed",
				logger.String("url", sources[i].URL),
				logger.Error(err),
			)
			continue
		}
		all = append(all, results[i]...)
	}
	if failed == len(sources) {
		return nil, &provider.Error{
			Kind:     provider.KindTransient,
			Provider: p.cfg.ID,
			Message:  fmt.Sprintf("all %d feeds failed", failed),
			Cause:    errors.Join(errs...),
		}
	}

	if req.Category != "" {
		all = keepCategory(all, req.Category)
	}
	news.SortNewestFirst(all)
	total := len(all)
	if len(all) > req.PageSize {
		all = all[:req.PageSize]
	}
	return p.response(all, total, req), nil
}

func (p *Provider) Search(ctx context.Context, query string, req news.Request) (*news.Response, error) {
	resp, err := p.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.Articles = provider.FilterByQuery(resp.Articles, query)
	resp.TotalResults = len(resp.Articles)
	return resp, nil
}

// IsAvailable probes the first configured feed once.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	if len(p.cfg.Feeds) == 0 {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Feeds[0].URL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Debug("availability probe failed", logger.Error(err))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (p *Provider) response(articles []news.Article, total int, req news.Request) *news.Response {
	if articles == nil {
		articles = []news.Article{}
	}
	return &news.Response{
		Articles:     articles,
		TotalResults: total,
		Page:         1,
		PageSize:     req.PageSize,
		ProviderID:   p.cfg.ID,
		FetchedAt:    p.now(),
	}
}

func (p *Provider) fetchFeed(ctx context.Context, src Source) ([]news.Article, error) {
	parser := gofeed.NewParser()
	parser.Client = p.client
	parser.UserAgent = userAgent

	feed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", src.URL, err)
	}

	now := p.now()
	articles := make([]news.Article, 0, len(feed.Items))
	for i, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if !news.Usable(title) {
			continue
		}

		pub := now
		if item.PublishedParsed != nil {
			pub = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = *item.UpdatedParsed
		}

		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		desc = stripHTML(desc)
		content := stripHTML(item.Content)
		if content == "" {
			content = desc
		}

		cat := src.Category
		if cat == "" {
			cat = classify.Classify(title, desc)
		}

		articles = append(articles, news.Article{
			ID:          news.ArticleID(item.Link, title, i),
			Title:       title,
			Description: truncate(desc, maxDescriptionRunes),
			Content:     content,
			URL:         item.Link,
			ImageURL:    imageURL(item),
			Source:      p.cfg.Name,
			Author:      author(item),
			PublishedAt: pub,
			Language:    src.Language,
			Category:    cat,
			Difficulty:  src.Difficulty,
		})
	}
	return articles, nil
}

// keepCategory drops articles from untagged feeds that were classified into
// another category.
func keepCategory(articles []news.Article, cat news.Category) []news.Article {
	out := articles[:0]
	for _, a := range articles {
		if a.Category == cat {
			out = append(out, a)
		}
	}
	return out
}
