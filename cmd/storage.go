package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/lingonews/internal/cache"
)

var flagPruneOlderThan string

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old articles from the persistent cache",
	Long: `Delete stored articles older than the retention period and reclaim disk space.

Uses the retention value from config (default: 7d) unless overridden with --older-than.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		retention := a.cfg.RetentionDuration()
		if flagPruneOlderThan != "" {
			d, err := parseSince(flagPruneOlderThan)
			if err != nil {
				return fmt.Errorf("invalid --older-than value: %w", err)
			}
			retention = d
		}

		deleted, err := a.agg.PruneStore(cmd.Context(), retention)
		if err != nil {
			return fmt.Errorf("pruning: %w", err)
		}

		if deleted == 0 {
			fmt.Println("Nothing to prune.")
		} else {
			fmt.Printf("Pruned %d article(s) older than %s.\n", deleted, formatDuration(retention))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		stats, err := a.agg.CacheStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}
		if flagJSON {
			return writeJSON(os.Stdout, stats)
		}

		fmt.Printf("Store: %s\n", storeLocation(a))
		fmt.Printf("Articles: %d\n", stats.StoredArticles)
		if s, ok := a.store.(*cache.SQLiteStore); ok {
			if size, err := s.Size(); err == nil {
				fmt.Printf("Size: %s\n", formatBytes(size))
			}
		}
		fmt.Printf("Providers: %d\n", stats.Providers)
		fmt.Printf("Memory TTL: %s\n", a.cfg.CacheTTLDuration())
		return nil
	},
}

func init() {
	pruneCmd.Flags().StringVar(&flagPruneOlderThan, "older-than", "", "override retention period (e.g., 30d, 720h)")
	statsCmd.Flags().BoolVar(&flagJSON, "json", false, "print JSON")
}

func storeLocation(a *app) string {
	if a.cfg.Store.Driver == "redis" {
		return "redis://" + a.cfg.Store.Redis.Address
	}
	return a.cfg.StorePath()
}

func parseSince(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dh", int(d.Hours()))
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
