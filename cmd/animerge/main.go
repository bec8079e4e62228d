package main

import (
	"fmt"
	"os"

	"github.com/Nomadcxx/animerge/internal/config"
	"github.com/Nomadcxx/animerge/internal/database"
	"github.com/Nomadcxx/animerge/internal/dedup"
	"github.com/Nomadcxx/animerge/internal/ingest"
	"github.com/Nomadcxx/animerge/internal/logging"
	"github.com/Nomadcxx/animerge/internal/merge"
	"github.com/Nomadcxx/animerge/internal/ui"
	"github.com/spf13/cobra"
)

var (
	version = "dev" // Set by build flags: -ldflags="-X main.version=1.0.0"
	cfgFile string
	verbose bool
	noColor bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "animerge",
		Short: "Duplicate detection and merging for anime catalogs",
		Long: `animerge finds anime records that describe the same show, merges them
into one primary record and repoints watchlists, reviews and custom lists.

Features:
  - Shared MyAnimeList / AniList ids and fuzzy title matching
  - Season consolidation ("Naruto" + "Naruto Shippuden" → one series)
  - Every merge is snapshotted and can be restored by batch id
  - JSON ingestion with in-batch dedup (CLI, HTTP or a drop directory)`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.SetOutput(cmd.OutOrStdout())
			if noColor {
				ui.DisableColors()
			}
		},
	}

	// Add custom help function to show ASCII header
	originalHelpFunc := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd.Name() == "animerge" {
			printHeader(cmd, version)
		}
		originalHelpFunc(cmd, args)
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/animerge/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newDedupCmd())
	rootCmd.AddCommand(newGroupsCmd())
	rootCmd.AddCommand(newReviewCmd())
	rootCmd.AddCommand(newBatchesCmd())
	rootCmd.AddCommand(newRestoreCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			printHeader(cmd, version)
		},
	}
}

// env is everything a command needs to talk to the store.
type env struct {
	cfg      *config.Config
	logger   *logging.Logger
	db       *database.AnimeDB
	grouper  *dedup.Grouper
	runner   *merge.Runner
	ingester *ingest.Ingester
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	if verbose {
		logger.SetLevel(logging.LevelDebug)
	}

	db, err := database.OpenPath(cfg.DatabasePath())
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	grouper := dedup.NewGrouper(cfg.GroupingOptions())
	return &env{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		grouper:  grouper,
		runner:   merge.NewRunner(db, grouper, logger),
		ingester: ingest.NewIngester(db, grouper, logger),
	}, nil
}

func (e *env) Close() {
	e.db.Close()
	e.logger.Close()
}
