package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ilfeat/config"
	"ilfeat/internal/adapter/cache"
)

var (
	purgeGenerator string
	purgeVersion   string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge the descriptor cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cached vectors per generator version",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove cached vectors of a generator",
	Long: `Remove every cached vector of a generator, or of one generator version.

Examples:
  ilfeat cache purge --generator geometric
  ilfeat cache purge --generator external:padel --version 2`,
	Args: cobra.NoArgs,
	RunE: runCachePurge,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cachePurgeCmd)
	cachePurgeCmd.Flags().StringVar(&purgeGenerator, "generator", "", "generator ID (required)")
	cachePurgeCmd.Flags().StringVar(&purgeVersion, "version", "", "generator version (default all versions)")
	cachePurgeCmd.MarkFlagRequired("generator")
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats()
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(stats))
	total := 0
	for k, n := range stats {
		keys = append(keys, k)
		total += n
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Cache: %s\n\n", config.CacheDBPath(cfg.CacheDir(GetRootDir())))
	fmt.Fprintln(w, "GENERATOR@VERSION\tENTRIES")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\n", k, stats[k])
	}
	fmt.Fprintf(w, "total\t%d\n", total)
	return w.Flush()
}

func runCachePurge(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := cache.NewDescriptorCache(st, cache.WithMetrics(appMetrics)).Purge(purgeGenerator, purgeVersion)
	if err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}

	target := purgeGenerator
	if purgeVersion != "" {
		target += "@" + purgeVersion
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Purged %d entries of %s\n", n, target)
	return nil
}
