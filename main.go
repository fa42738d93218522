package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clearlamp/clearlamp/app"
	"github.com/clearlamp/clearlamp/app/modules/score/domain/ratings"
	"github.com/clearlamp/clearlamp/config"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to the configuration file")
	recalcRatings := flag.Bool("recalculate-ratings", false, "Re-derive calculated data for all scores, then exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})).With(slog.String("environment", cfg.Observability.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rating providers are registered per deployment; an empty registry
	// still runs, every import entry just fails with a no-provider error.
	registry := ratings.NewRegistry()

	application, err := app.NewApp(ctx, cfg, logger, registry)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	if *recalcRatings {
		report, err := application.PBService.RecalculateAllRatings(ctx)
		if err != nil {
			log.Fatalf("Rating recalculation failed: %v", err)
		}
		logger.Info("Rating recalculation finished",
			slog.Int("updated", report.Updated),
			slog.Int("failed", report.Failed),
		)
		if err := application.Stop(context.Background()); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		return
	}

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	logger.Info("Waiting for shutdown signal...")
	select {
	case <-interrupt:
		logger.Info("Shutting down application...")
	case <-ctx.Done():
		logger.Info("Application context canceled")
	}

	if err := application.Stop(context.Background()); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	logger.Info("Application shut down gracefully.")
}
