// cmd/syncjob/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hikingtw/trailguard/config"
	"github.com/hikingtw/trailguard/database"
	"github.com/hikingtw/trailguard/scraper"
	"github.com/hikingtw/trailguard/services"
)

var (
	configPath string
	mode       string
	startID    int
	endID      int
	probeLimit int
)

var rootCmd = &cobra.Command{
	Use:   "syncjob",
	Short: "Run a trail catalog scan against the upstream hiking site",
	Long: `syncjob runs one scan of the upstream hiking catalog and exits.

A full scan re-fetches every trail ID in [start-id, end-id]. An incremental
scan probes for new IDs above the highest known valid ID, then refreshes
reviews for records older than the staleness window.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config/config.yaml", "path to the YAML config file")
	rootCmd.Flags().StringVar(&mode, "mode", "", "scan mode: full or incremental")
	rootCmd.Flags().IntVar(&startID, "start-id", 1, "first trail ID of a full scan")
	rootCmd.Flags().IntVar(&endID, "end-id", 2300, "last trail ID of a full scan")
	rootCmd.Flags().IntVar(&probeLimit, "probe-limit", 400, "IDs probed above the frontier in an incremental scan")
	if err := rootCmd.MarkFlagRequired("mode"); err != nil {
		panic(err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	metrics := scraper.NewMetrics()
	fetcher := scraper.NewTrailFetcher(cfg.Source, metrics)
	sync := services.NewSyncService(store, fetcher, cfg.Sync, metrics)

	switch mode {
	case "full":
		if startID <= 0 || endID < startID {
			return fmt.Errorf("invalid ID range [%d, %d]", startID, endID)
		}
		return sync.RunFullScan(ctx, startID, endID)
	case "incremental":
		if probeLimit <= 0 {
			return fmt.Errorf("probe-limit must be positive, got %d", probeLimit)
		}
		return sync.RunIncrementalScan(ctx, probeLimit)
	default:
		return fmt.Errorf("unknown mode %q, expected full or incremental", mode)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("sync job failed", "error", err)
		os.Exit(1)
	}
}
