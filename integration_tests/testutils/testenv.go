package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	natscontainer "github.com/testcontainers/testcontainers-go/modules/nats"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.opentelemetry.io/otel/trace/noop"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/clearlamp/clearlamp/app/eventbus"
	chartservice "github.com/clearlamp/clearlamp/app/modules/chart/application"
	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	importservice "github.com/clearlamp/clearlamp/app/modules/importer/application"
	importqueue "github.com/clearlamp/clearlamp/app/modules/importer/infrastructure/queue"
	importdb "github.com/clearlamp/clearlamp/app/modules/importer/infrastructure/repositories"
	orphanservice "github.com/clearlamp/clearlamp/app/modules/orphan/application"
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
	"github.com/clearlamp/clearlamp/integration_tests/containers"
)

// GPT every integration test plays under; the test provider is registered
// for it.
const (
	TestGame     shared.Game     = "iidx"
	TestPlaytype shared.Playtype = "SP"
)

// TestEnvironment holds the containers, connections and fully wired services
// an integration test package shares.
type TestEnvironment struct {
	Ctx           context.Context
	CancelContext context.CancelFunc
	PgContainer   *postgres.PostgresContainer
	NatsContainer *natscontainer.NATSContainer
	PgConnStr     string
	DB            *bun.DB
	Bus           shared.EventBus
	Registry      *ratings.Registry

	ChartRepo   chartdb.Repository
	ScoreRepo   scoredb.Repository
	PBRepo      pbdb.Repository
	SessionRepo sessiondb.Repository
	OrphanRepo  orphandb.Repository
	ImportRepo  importdb.Repository

	Charts   chartservice.Service
	Scores   scoreservice.Service
	PBs      pbservice.Service
	Sessions sessionservice.Service
	Orphans  orphanservice.Service
	Imports  importservice.Service
	Queue    importqueue.QueueService
}

// NewTestEnvironment starts Postgres and NATS containers, migrates the
// schema and wires every service the way the application does, with noop
// telemetry and a deterministic rating provider.
func NewTestEnvironment() (*TestEnvironment, error) {
	ctx, cancel := context.WithCancel(context.Background())

	pgContainer, pgConnStr, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to setup postgres container: %w", err)
	}

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	if err != nil {
		pgContainer.Terminate(ctx)
		cancel()
		return nil, fmt.Errorf("failed to setup nats container: %w", err)
	}

	cleanup := func() {
		natsContainer.Terminate(ctx)
		pgContainer.Terminate(ctx)
		cancel()
	}

	sqlDB, err := sql.Open("pgx", pgConnStr)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to open sql DB connection: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())

	if err := runMigrations(ctx, db, pgConnStr); err != nil {
		db.Close()
		cleanup()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bus, err := eventbus.NewEventBus(ctx, natsURL, logger)
	if err != nil {
		db.Close()
		cleanup()
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	if err := eventbus.InitializeStreams(ctx, bus); err != nil {
		bus.Close()
		db.Close()
		cleanup()
		return nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	registry := ratings.NewRegistry()
	registry.Register(shared.MakeGPT(TestGame, TestPlaytype), TestProvider{})

	opMetrics := metrics.NoOp{}
	tracer := noop.NewTracerProvider().Tracer("test")

	chartRepo := &chartdb.ChartDBImpl{DB: db}
	scoreRepo := &scoredb.ScoreDBImpl{DB: db}
	pbRepo := &pbdb.PBDBImpl{DB: db}
	sessionRepo := &sessiondb.SessionDBImpl{DB: db}
	orphanRepo := &orphandb.OrphanDBImpl{DB: db}
	importRepo := &importdb.ImportDBImpl{DB: db}

	chartSvc := chartservice.NewChartService(chartRepo, bus, logger, opMetrics, tracer, db)
	scoreSvc := scoreservice.NewScoreService(scoreRepo, registry, logger, opMetrics, tracer, db,
		5*time.Second, 0)
	pbSvc := pbservice.NewPBService(pbRepo, scoreRepo, chartRepo, registry, logger, opMetrics, tracer, db)
	sessionSvc := sessionservice.NewSessionService(sessionRepo, scoreRepo, logger, opMetrics, tracer, db,
		2*time.Hour, 10)
	orphanSvc := orphanservice.NewOrphanService(orphanRepo, chartRepo, scoreSvc, pbSvc, sessionSvc,
		logger, opMetrics, tracer, db, 100)
	importSvc := importservice.NewImportService(importRepo, chartRepo, scoreSvc, pbSvc, sessionSvc,
		orphanSvc, bus, logger, opMetrics, tracer, db, 4, 10*time.Second)

	queue, err := importqueue.NewService(ctx, db, pgConnStr, importSvc, logger, opMetrics, 2)
	if err != nil {
		bus.Close()
		db.Close()
		cleanup()
		return nil, fmt.Errorf("failed to create import queue: %w", err)
	}

	return &TestEnvironment{
		Ctx:           ctx,
		CancelContext: cancel,
		PgContainer:   pgContainer,
		NatsContainer: natsContainer,
		PgConnStr:     pgConnStr,
		DB:            db,
		Bus:           bus,
		Registry:      registry,
		ChartRepo:     chartRepo,
		ScoreRepo:     scoreRepo,
		PBRepo:        pbRepo,
		SessionRepo:   sessionRepo,
		OrphanRepo:    orphanRepo,
		ImportRepo:    importRepo,
		Charts:        chartSvc,
		Scores:        scoreSvc,
		PBs:           pbSvc,
		Sessions:      sessionSvc,
		Orphans:       orphanSvc,
		Imports:       importSvc,
		Queue:         queue,
	}, nil
}

// Reset truncates all application tables between tests.
func (env *TestEnvironment) Reset(t *testing.T) {
	t.Helper()
	if err := CleanupDatabase(env.Ctx, env.DB); err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
}

// Cleanup tears everything down in reverse construction order.
func (env *TestEnvironment) Cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if env.Queue != nil {
		env.Queue.Stop(ctx)
	}
	if env.Bus != nil {
		env.Bus.Close()
	}
	if env.DB != nil {
		env.DB.Close()
	}
	if env.NatsContainer != nil {
		env.NatsContainer.Terminate(ctx)
	}
	if env.PgContainer != nil {
		env.PgContainer.Terminate(ctx)
	}
	env.CancelContext()
}
