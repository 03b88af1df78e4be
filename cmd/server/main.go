// cmd/server/main.go
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hikingtw/trailguard/config"
	"github.com/hikingtw/trailguard/database"
	"github.com/hikingtw/trailguard/handlers"
	"github.com/hikingtw/trailguard/scraper"
	"github.com/hikingtw/trailguard/services"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging.Level)

	slog.Info("starting trailguard API server", "port", cfg.Server.Port, "database", cfg.Database.DBName)

	store, err := database.Open(cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	metrics := scraper.NewMetrics()
	weather := services.NewWeatherService(cfg.CWA, metrics)
	ai := services.NewAIService(cfg.AI)

	api := &handlers.API{
		Trails:  store,
		Weather: weather,
		AI:      ai,
	}

	mux := http.NewServeMux()
	api.Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := ":" + cfg.Server.Port
	slog.Info("server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
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
