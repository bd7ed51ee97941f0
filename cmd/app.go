package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/lingonews/internal/aggregator"
	"github.com/matheuskafuri/lingonews/internal/cache"
	"github.com/matheuskafuri/lingonews/internal/config"
	"github.com/matheuskafuri/lingonews/internal/feed"
	"github.com/matheuskafuri/lingonews/internal/logger"
	"github.com/matheuskafuri/lingonews/internal/metrics"
	"github.com/matheuskafuri/lingonews/internal/newsapi"
)

// app is the wiring shared by every command.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	store   cache.Store
	metrics *metrics.Metrics
	agg     *aggregator.Aggregator
	nhk     *feed.NHKWorld

	// feeds counts configured sources per feed provider.
	feeds map[string]int
}

func newApp() (*app, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	log, err := logger.New(logger.Config{Level: level})
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store, metrics: metrics.New(), feeds: make(map[string]int)}
	a.agg = aggregator.New(store, log,
		aggregator.WithCacheTTL(cfg.CacheTTLDuration()),
		aggregator.WithCache(cfg.Aggregator.EnableCache),
		aggregator.WithPersist(cfg.Aggregator.Persist),
		aggregator.WithFallback(cfg.Aggregator.Fallback),
		aggregator.WithFallbackLimit(cfg.Aggregator.FallbackLimit),
		aggregator.WithPriority(cfg.Aggregator.Priority),
		aggregator.WithMetrics(a.metrics),
	)
	a.registerProviders()
	return a, nil
}

func openStore(cfg *config.Config, log logger.Logger) (cache.Store, error) {
	switch cfg.Store.Driver {
	case "redis":
		s, err := cache.OpenRedis(cfg.Store.Redis, log)
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		return s, nil
	default:
		s, err := cache.OpenSQLite(cfg.StorePath(), log)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		return s, nil
	}
}

func (a *app) registerProviders() {
	for _, pc := range a.cfg.EnabledProviders() {
		if pc.ID == newsapi.ID {
			if !a.cfg.NewsAPI.Configured() {
				a.log.Info("skipping newsapi: no API key configured")
				continue
			}
			a.agg.AddProvider(newsapi.New(a.cfg.NewsAPI, a.log))
			continue
		}

		fc, ok := pc.FeedConfig()
		if !ok {
			a.log.Warn("skipping unknown provider", logger.String("provider", pc.ID))
			continue
		}
		if pc.ID == "nhk-world" {
			a.nhk = feed.NewNHKWorldWithConfig(fc, a.log)
			a.feeds[pc.ID] = len(a.nhk.Feeds())
			a.agg.AddProvider(a.nhk)
			continue
		}
		p := feed.New(fc, a.log)
		a.feeds[pc.ID] = len(p.Feeds())
		a.agg.AddProvider(p)
	}
}

// close drains background writes before releasing the store.
func (a *app) close() {
	a.agg.Wait()
	if flagMetrics {
		_ = a.metrics.WriteText(os.Stderr)
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing store failed", logger.Error(err))
	}
	_ = a.log.Sync()
}

func (a *app) language() string {
	if flagLang != "" {
		return strings.ToLower(flagLang)
	}
	return a.cfg.DefaultLanguage
}

// commandContext is cancelled on interrupt so in-flight fetches stop early.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
