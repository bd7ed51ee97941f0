package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/lingonews/internal/aggregator"
	"github.com/matheuskafuri/lingonews/internal/browser"
	"github.com/matheuskafuri/lingonews/internal/news"
)

func buildRequest(a *app) (news.Request, error) {
	cat, ok := news.ParseCategory(flagCategory)
	if !ok {
		return news.Request{}, fmt.Errorf("unknown category %q (valid: %s)", flagCategory, categoryList())
	}
	return news.Request{
		Language: a.language(),
		Category: cat,
		Page:     flagPage,
		PageSize: flagPageSize,
	}.Normalize(), nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, "")
}

func runSearch(cmd *cobra.Command, args []string) error {
	return runQuery(cmd, strings.Join(args, " "))
}

func runQuery(cmd *cobra.Command, query string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	req, err := buildRequest(a)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var resp *news.Response
	switch {
	case flagAll && query == "":
		articles := a.agg.FetchFromMultipleProviders(ctx, req)
		resp = &news.Response{
			Articles:     articles,
			TotalResults: len(articles),
			Page:         req.Page,
			PageSize:     req.PageSize,
			ProviderID:   "all",
			FetchedAt:    time.Now(),
		}
	case query != "":
		resp, err = a.agg.SearchArticles(ctx, query, req, flagProvider)
	default:
		resp, err = a.agg.FetchArticles(ctx, req, flagProvider)
	}
	if errors.Is(err, aggregator.ErrNoContent) {
		return fmt.Errorf("no articles available for %s right now: %w", req.Language, err)
	}
	if err != nil {
		return err
	}

	if flagOpen > 0 {
		return openArticle(resp.Articles, flagOpen)
	}
	if flagJSON {
		return writeJSON(os.Stdout, resp)
	}
	renderArticles(os.Stdout, resp)
	return nil
}

// openArticle opens the nth (1-based) article in the system browser.
func openArticle(articles []news.Article, n int) error {
	if n > len(articles) {
		return fmt.Errorf("--open %d: only %d articles listed", n, len(articles))
	}
	return browser.Open(articles[n-1].URL)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered providers and whether they are reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := commandContext(cmd)
		defer cancel()

		available := make(map[string]bool)
		for _, id := range a.agg.AvailableProviders(ctx) {
			available[id] = true
		}
		renderProviders(os.Stdout, a.agg.Providers(), available, a.feeds)
		return nil
	},
}

var easyCmd = &cobra.Command{
	Use:   "easy",
	Short: "List NHK News Web Easy articles (simplified Japanese)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if a.nhk == nil {
			return errors.New("the nhk-world provider is disabled in config")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		articles, err := a.nhk.FetchEasyNews(ctx)
		if err != nil {
			return err
		}
		if flagPageSize > 0 && len(articles) > flagPageSize {
			articles = articles[:flagPageSize]
		}
		if flagJSON {
			return writeJSON(os.Stdout, articles)
		}
		renderEasy(os.Stdout, articles)
		return nil
	},
}

func init() {
	easyCmd.Flags().IntVarP(&flagPageSize, "page-size", "n", news.DefaultPageSize, "articles to show")
	easyCmd.Flags().BoolVar(&flagJSON, "json", false, "print JSON instead of a list")
}
