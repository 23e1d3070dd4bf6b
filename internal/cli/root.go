package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ilfeat/config"
	"ilfeat/internal/logging"
	"ilfeat/internal/metrics"
)

var (
	cfgFile         string
	cfg             *config.Config
	rootDir         string
	logLevel        string
	metricsTextfile string
	noCache         bool

	logger     logging.Logger = logging.NewNopLogger()
	appMetrics *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "ilfeat",
	Short: "Ionic-liquid descriptor pipeline",
	Long: `ilfeat canonicalizes cation and anion structures, embeds 3D conformers and
computes cached topological, geometric and external-tool descriptors, assembling
them into feature rows for property models.

Example usage:
  ilfeat canon "CC[n+]1ccn(C)c1"                          # Canonical form and family
  ilfeat extract --cation "CC[n+]1ccn(C)c1" --anion "[Cl-]" # One feature row as JSON
  ilfeat batch data/*.csv -o features.csv                  # Feature matrix for datasets`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logger, err = logging.New(logging.Config{Level: level, Format: cfg.Logging.Format})
		if err != nil {
			return err
		}
		logger = logger.Named("ilfeat")
		logging.SetDefault(logger)

		appMetrics = metrics.New()
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Metrics.Textfile
		if metricsTextfile != "" {
			path = metricsTextfile
		}
		return appMetrics.WriteTextfile(path)
	},
}

// Execute runs the root command until ctx is cancelled.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ilfeat.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "keep descriptors in memory only")
	rootCmd.PersistentFlags().StringVar(&metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
