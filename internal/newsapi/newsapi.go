// Package newsapi implements a provider for the NewsAPI.org REST API.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/matheuskafuri/lingonews/internal/classify"
	"github.com/matheuskafuri/lingonews/internal/logger"
	"github.com/matheuskafuri/lingonews/internal/news"
	"github.com/matheuskafuri/lingonews/internal/provider"
	"github.com/matheuskafuri/lingonews/internal/retry"
)

const (
	ID = "newsapi"

	// PlaceholderKey is the sample value shipped in example env files.
	PlaceholderKey = "your_news_api_key_here"

	DefaultBaseURL = "https://newsapi.org/v2"
	defaultTimeout = 10 * time.Second
	userAgent      = "lingonews/1.0"
	maxBodyBytes   = 4 << 20
)

type Config struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Retry             retry.Config  `yaml:"retry"`
}

// Configured reports whether the key is set to something other than the
// placeholder.
func (c Config) Configured() bool {
	k := strings.TrimSpace(c.APIKey)
	return k != "" && k != PlaceholderKey
}

type Option func(*Provider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

type Provider struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
	log     logger.Logger
}

func New(cfg Config, log logger.Logger, opts ...Option) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.Retry.IsRetryable = provider.IsRetryable

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	p := &Provider{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		log:     log.With(logger.String("provider", ID)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Info() provider.Info {
	return provider.Info{
		ID:             ID,
		Name:           "NewsAPI",
		Description:    "Global news articles from NewsAPI.org",
		Languages:      []string{"en", "es", "de", "fr", "it", "pt", "ru", "nl", "no", "se"},
		Categories:     news.Categories(),
		RequiresAPIKey: true,
		RequestsPerDay: 100,
	}
}

// IsAvailable only checks configuration; it never calls the API.
func (p *Provider) IsAvailable(context.Context) bool {
	return p.cfg.Configured()
}

func (p *Provider) Fetch(ctx context.Context, req news.Request) (*news.Response, error) {
	req = req.Normalize()
	params := p.baseParams(req)
	if country, ok := news.CountryForLanguage(req.Language); ok {
		params.Set("country", country)
	}
	category := req.Category
	if category == "" {
		category = news.General
	}
	if category != news.General {
		params.Set("category", string(category))
	}
	return p.get(ctx, "/top-headlines", params, req, category)
}

func (p *Provider) Search(ctx context.Context, query string, req news.Request) (*news.Response, error) {
	req = req.Normalize()
	params := p.baseParams(req)
	params.Set("q", query)
	params.Set("language", req.Language)
	params.Set("sortBy", "publishedAt")
	return p.get(ctx, "/everything", params, req, "")
}

func (p *Provider) baseParams(req news.Request) url.Values {
	params := url.Values{}
	params.Set("apiKey", p.cfg.APIKey)
	params.Set("pageSize", strconv.Itoa(req.PageSize))
	params.Set("page", strconv.Itoa(req.Page))
	return params
}

func (p *Provider) get(ctx context.Context, path string, params url.Values, req news.Request, category news.Category) (*news.Response, error) {
	if !p.cfg.Configured() {
		return nil, provider.ConfigError(ID, "NEWS_API_KEY is not configured")
	}

	endpoint := p.cfg.BaseURL + path + "?" + params.Encode()
	var body *apiResponse
	err := retry.Do(ctx, p.cfg.Retry, func(attempt int) error {
		var err error
		body, err = p.do(ctx, endpoint)
		if err != nil && provider.IsRetryable(err) {
			p.log.Warn("newsapi request failed",
				logger.String("path", path),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	articles := make([]news.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		if !news.Usable(a.Title) {
			continue
		}
		article, err := a.toArticle(len(articles), req.Language, category)
		if err != nil {
			p.log.Warn("dropping newsapi article",
				logger.String("url", a.URL),
				logger.Error(err),
			)
			continue
		}
		articles = append(articles, article)
	}
	classify.Fill(articles)

	return &news.Response{
		Articles:     articles,
		TotalResults: body.TotalResults,
		Page:         req.Page,
		PageSize:     req.PageSize,
		ProviderID:   ID,
		FetchedAt:    p.now(),
	}, nil
}

func (p *Provider) do(ctx context.Context, endpoint string) (*apiResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &provider.Error{Kind: provider.KindTransient, Provider: ID, Message: "rate limiter wait", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &provider.Error{Kind: provider.KindTransient, Provider: ID, Message: "request failed", Cause: redact(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &provider.Error{Kind: provider.KindTransient, Provider: ID, StatusCode: resp.StatusCode, Message: "reading body", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp, raw, p.now())
	}

	var body apiResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &provider.Error{Kind: provider.KindMalformed, Provider: ID, StatusCode: resp.StatusCode, Message: "decoding response", Cause: err}
	}
	if body.Status == "error" {
		msg := body.Message
		if msg == "" {
			msg = "unknown NewsAPI error"
		}
		return nil, &provider.Error{Kind: provider.KindUpstream, Provider: ID, StatusCode: resp.StatusCode, Message: msg}
	}
	return &body, nil
}

func statusError(resp *http.Response, raw []byte, now time.Time) *provider.Error {
	e := &provider.Error{Provider: ID, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body apiResponse
	if json.Unmarshal(raw, &body) == nil && body.Message != "" {
		e.Message = body.Message
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Kind = provider.KindRateLimited
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), now)
	case resp.StatusCode >= 500:
		e.Kind = provider.KindTransient
	default:
		e.Kind = provider.KindUpstream
	}
	return e
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// redact strips the query string, which carries the API key, from URL
// errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if u, perr := url.Parse(ue.URL); perr == nil {
			u.RawQuery = ""
			return &url.Error{Op: ue.Op, URL: u.String(), Err: ue.Err}
		}
	}
	return err
}
