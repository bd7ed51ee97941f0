package aggregator

import (
	"time"

	"github.com/matheuskafuri/lingonews/internal/cache"
	"github.com/matheuskafuri/lingonews/internal/metrics"
)

type Option func(*Aggregator)

func WithCacheTTL(ttl time.Duration) Option {
	return func(a *Aggregator) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithCache toggles the memory tier.
func WithCache(enabled bool) Option {
	return func(a *Aggregator) { a.enableCache = enabled }
}

// WithPersist toggles write-through to the persistent tier.
func WithPersist(enabled bool) Option {
	return func(a *Aggregator) { a.persist = enabled }
}

// WithFallback toggles serving stored articles when a live fetch fails.
func WithFallback(enabled bool) Option {
	return func(a *Aggregator) { a.fallback = enabled }
}

func WithMemory(m *cache.Memory) Option {
	return func(a *Aggregator) { a.memory = m }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// WithPriority sets the provider order used when no provider is named.
// Unlisted providers follow in registration order.
func WithPriority(ids []string) Option {
	return func(a *Aggregator) {
		if len(ids) > 0 {
			a.priority = append([]string(nil), ids...)
		}
	}
}

// WithFallbackLimit caps fallback reads. Zero uses the request page size.
func WithFallbackLimit(n int) Option {
	return func(a *Aggregator) { a.fallbackLimit = n }
}

// WithClock sets the time source for the memory tier and response stamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}
