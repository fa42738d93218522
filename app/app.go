package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.opentelemetry.io/otel"

	"github.com/clearlamp/clearlamp/app/eventbus"
	chartservice "github.com/clearlamp/clearlamp/app/modules/chart/application"
	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	importservice "github.com/clearlamp/clearlamp/app/modules/importer/application"
	importqueue "github.com/clearlamp/clearlamp/app/modules/importer/infrastructure/queue"
	importdb "github.com/clearlamp/clearlamp/app/modules/importer/infrastructure/repositories"
	orphanservice "github.com/clearlamp/clearlamp/app/modules/orphan/application"
	orphanhandlers "github.com/clearlamp/clearlamp/app/modules/orphan/infrastructure/handlers"
	orphandb "github.com/clearlamp/clearlamp/app/modules/orphan/infrastructure/repositories"
	pbservice "github.com/clearlamp/clearlamp/app/modules/pb/application"
	pbdb "github.com/clearlamp/clearlamp/app/modules/pb/infrastructure/repositories"
	scoreservice "github.com/clearlamp/clearlamp/app/modules/score/application"
	"github.com/clearlamp/clearlamp/app/modules/score/domain/ratings"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	sessionservice "github.com/clearlamp/clearlamp/app/modules/session/application"
	sessiondb "github.com/clearlamp/clearlamp/app/modules/session/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
	"github.com/clearlamp/clearlamp/app/shared/metrics"
	"github.com/clearlamp/clearlamp/config"
)

// App wires every module together and owns process-level resources.
type App struct {
	Config   *config.Config
	EventBus shared.EventBus
	Registry *ratings.Registry

	ChartService   chartservice.Service
	ScoreService   scoreservice.Service
	PBService      pbservice.Service
	SessionService sessionservice.Service
	OrphanService  orphanservice.Service
	ImportService  importservice.Service
	ImportQueue    importqueue.QueueService

	db        *bun.DB
	obsServer *http.Server
	logger    *slog.Logger
}

// NewApp initializes database, event bus, metrics, and every module service.
// The rating registry is passed in so the caller decides which game providers
// this deployment supports.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, registry *ratings.Registry) (*App, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	bus, err := eventbus.NewEventBus(ctx, cfg.NATS.URL, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}
	if err := eventbus.InitializeStreams(ctx, bus); err != nil {
		bus.Close()
		db.Close()
		return nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	opMetrics := metrics.NewPrometheusOperation(promRegistry, "clearlamp")
	tracer := otel.Tracer("clearlamp")

	chartRepo := &chartdb.ChartDBImpl{DB: db}
	scoreRepo := &scoredb.ScoreDBImpl{DB: db}
	pbRepo := &pbdb.PBDBImpl{DB: db}
	sessionRepo := &sessiondb.SessionDBImpl{DB: db}
	orphanRepo := &orphandb.OrphanDBImpl{DB: db}
	importRepo := &importdb.ImportDBImpl{DB: db}

	chartSvc := chartservice.NewChartService(chartRepo, bus, logger, opMetrics, tracer, db)
	scoreSvc := scoreservice.NewScoreService(scoreRepo, registry, logger, opMetrics, tracer, db,
		cfg.Import.ProviderTimeout, cfg.Import.ProviderRateLimit)
	pbSvc := pbservice.NewPBService(pbRepo, scoreRepo, chartRepo, registry, logger, opMetrics, tracer, db)
	sessionSvc := sessionservice.NewSessionService(sessionRepo, scoreRepo, logger, opMetrics, tracer, db,
		cfg.Session.IdleGap, cfg.Session.TopN)
	orphanSvc := orphanservice.NewOrphanService(orphanRepo, chartRepo, scoreSvc, pbSvc, sessionSvc,
		logger, opMetrics, tracer, db, cfg.Migration.BatchSize)
	importSvc := importservice.NewImportService(importRepo, chartRepo, scoreSvc, pbSvc, sessionSvc,
		orphanSvc, bus, logger, opMetrics, tracer, db, cfg.Import.EntryWorkers, cfg.Import.ResolveTimeout)

	queue, err := importqueue.NewService(ctx, db, cfg.Postgres.DSN, importSvc, logger, opMetrics,
		cfg.Import.QueueMaxWorkers)
	if err != nil {
		bus.Close()
		db.Close()
		return nil, fmt.Errorf("failed to initialize import queue: %w", err)
	}

	if err := orphanhandlers.NewHandlers(orphanSvc, logger).Register(ctx, bus); err != nil {
		bus.Close()
		db.Close()
		return nil, fmt.Errorf("failed to register orphan handlers: %w", err)
	}

	a := &App{
		Config:         cfg,
		EventBus:       bus,
		Registry:       registry,
		ChartService:   chartSvc,
		ScoreService:   scoreSvc,
		PBService:      pbSvc,
		SessionService: sessionSvc,
		OrphanService:  orphanSvc,
		ImportService:  importSvc,
		ImportQueue:    queue,
		db:             db,
		logger:         logger,
	}
	a.obsServer = a.newObservabilityServer(promRegistry)
	return a, nil
}

// DB returns the shared database handle.
func (a *App) DB() *bun.DB {
	return a.db
}

// Start brings up the import queue and the observability endpoint.
func (a *App) Start(ctx context.Context) error {
	if err := a.ImportQueue.Start(ctx); err != nil {
		return err
	}

	go func() {
		a.logger.Info("Observability server listening",
			slog.String("address", a.obsServer.Addr),
		)
		if err := a.obsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("Observability server failed", slog.Any("error", err))
		}
	}()
	return nil
}

// Stop shuts everything down in dependency order.
func (a *App) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := a.obsServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Failed to shut down observability server", slog.Any("error", err))
	}
	if err := a.ImportQueue.Stop(shutdownCtx); err != nil {
		a.logger.Error("Failed to stop import queue", slog.Any("error", err))
	}
	if err := a.EventBus.Close(); err != nil {
		a.logger.Error("Failed to close event bus", slog.Any("error", err))
	}
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (a *App) newObservabilityServer(promRegistry *prometheus.Registry) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := a.db.PingContext(req.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		if err := a.ImportQueue.HealthCheck(req.Context()); err != nil {
			http.Error(w, "import queue unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:    a.Config.Observability.MetricsAddress,
		Handler: r,
	}
}
