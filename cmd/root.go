package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matheuskafuri/lingonews/internal/news"
	"github.com/matheuskafuri/lingonews/internal/update"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig   string
	flagLogLevel string
	flagMetrics  bool

	flagLang     string
	flagCategory string
	flagProvider string
	flagPage     int
	flagPageSize int
	flagAll      bool
	flagJSON     bool
	flagOpen     int

	flagCheck bool
)

var rootCmd = &cobra.Command{
	Use:   "lingonews",
	Short: "News aggregator for language learners",
	Long: `lingonews gathers articles from news APIs and RSS feeds, caches them locally
and keeps serving stored articles when upstream sources are unavailable.

Running lingonews with no subcommand is the same as "lingonews fetch".`,
	SilenceUsage: true,
	RunE:         runFetch,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "List the latest articles",
	Args:  cobra.NoArgs,
	RunE:  runFetch,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search articles by keyword",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flagMetrics, "metrics", false, "print pipeline counters to stderr on exit")

	for _, c := range []*cobra.Command{rootCmd, fetchCmd, searchCmd} {
		addRequestFlags(c)
	}

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(easyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)

	versionCmd.Flags().BoolVar(&flagCheck, "check", false, "check GitHub for a newer release")
}

func addRequestFlags(c *cobra.Command) {
	c.Flags().StringVarP(&flagLang, "lang", "l", "", "article language (default from config)")
	c.Flags().StringVarP(&flagCategory, "category", "c", "", "category: "+categoryList())
	c.Flags().StringVarP(&flagProvider, "provider", "p", "", "provider id (default: first available by priority)")
	c.Flags().IntVar(&flagPage, "page", 1, "page number")
	c.Flags().IntVarP(&flagPageSize, "page-size", "n", news.DefaultPageSize, "articles per page")
	c.Flags().BoolVar(&flagAll, "all", false, "merge articles from every provider")
	c.Flags().BoolVar(&flagJSON, "json", false, "print JSON instead of a list")
	c.Flags().IntVar(&flagOpen, "open", 0, "open the Nth listed article in the browser")
}

func categoryList() string {
	var s string
	for i, c := range news.Categories() {
		if i > 0 {
			s += ", "
		}
		s += string(c)
	}
	return s
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("lingonews %s (commit: %s, built: %s)\n", version, commit, date)
		if !flagCheck {
			return nil
		}
		res, err := update.NewChecker().Check(cmd.Context(), version)
		if err != nil {
			return err
		}
		if res == nil {
			fmt.Println("You are running the latest version.")
			return nil
		}
		fmt.Printf("A newer version is available: %s\n%s\n", res.LatestVersion, res.URL)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
