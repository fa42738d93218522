package importqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/uptrace/bun"

	importservice "github.com/clearlamp/clearlamp/app/modules/importer/application"
	"github.com/clearlamp/clearlamp/app/shared"
	"github.com/clearlamp/clearlamp/app/shared/metrics"
)

// QueueService is the asynchronous ingestion surface: imports are enqueued
// here and executed by River workers.
type QueueService interface {
	// EnqueueImport queues a document for background processing and returns
	// the River job ID.
	EnqueueImport(ctx context.Context, doc shared.ImportDocument) (int64, error)
	// GetPendingJobs returns queued import jobs for a user (for monitoring).
	GetPendingJobs(ctx context.Context, userID shared.UserID) ([]JobInfo, error)
	// HealthCheck verifies the queue service can reach its job table.
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

var _ QueueService = (*Service)(nil)

// Service runs the import job queue on River.
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	db      *bun.DB
	logger  *slog.Logger
	metrics metrics.Operation
}

// NewService creates the River-backed import queue. maxWorkers bounds how
// many imports execute concurrently across all users.
func NewService(
	ctx context.Context,
	bunDB *bun.DB,
	dsn string,
	importSvc importservice.Service,
	logger *slog.Logger,
	m metrics.Operation,
	maxWorkers int,
) (*Service, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	// River requires pgx, not database/sql.
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewImportWorker(importSvc, logger))

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			"imports": {MaxWorkers: maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	logger.InfoContext(ctx, "Import queue initialized",
		slog.Int("max_workers", maxWorkers),
	)
	return &Service{
		client:  client,
		pool:    pool,
		db:      bunDB,
		logger:  logger,
		metrics: m,
	}, nil
}

func (s *Service) Start(ctx context.Context) error {
	if err := s.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start River client: %w", err)
	}
	s.logger.InfoContext(ctx, "Import queue started")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if err := s.client.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.pool.Close()
	s.logger.InfoContext(ctx, "Import queue stopped")
	return nil
}

// EnqueueImport queues a document for background processing.
func (s *Service) EnqueueImport(ctx context.Context, doc shared.ImportDocument) (int64, error) {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "EnqueueImport", "import_queue")

	result, err := s.client.Insert(ctx, ImportJob{Document: doc}, &river.InsertOpts{
		Queue: "imports",
	})
	if err != nil {
		s.metrics.RecordOperationFailure(ctx, "EnqueueImport", "import_queue")
		return 0, fmt.Errorf("failed to enqueue import: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "EnqueueImport", "import_queue")
	s.metrics.RecordOperationDuration(ctx, "EnqueueImport", "import_queue", time.Since(start))

	s.logger.InfoContext(ctx, "Import enqueued",
		slog.Int64("job_id", result.Job.ID),
		slog.String("user_id", string(doc.UserID)),
		slog.Int("entries", len(doc.Entries)),
	)
	return result.Job.ID, nil
}

// GetPendingJobs returns queued import jobs for a user.
func (s *Service) GetPendingJobs(ctx context.Context, userID shared.UserID) ([]JobInfo, error) {
	type riverJobRow struct {
		ID          int64     `bun:"id"`
		Kind        string    `bun:"kind"`
		State       string    `bun:"state"`
		CreatedAt   time.Time `bun:"created_at"`
		Attempt     int16     `bun:"attempt"`
		MaxAttempts int16     `bun:"max_attempts"`
	}

	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state", "created_at", "attempt", "max_attempts").
		Where("kind = ?", ImportJob{}.Kind()).
		Where("state IN (?, ?, ?)", "available", "scheduled", "running").
		Where("args->'document'->>'userID' = ?", string(userID)).
		Order("created_at ASC").
		Scan(ctx, &jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending import jobs: %w", err)
	}

	result := make([]JobInfo, len(jobs))
	for i, job := range jobs {
		result[i] = JobInfo{
			ID:          job.ID,
			Kind:        job.Kind,
			UserID:      string(userID),
			State:       job.State,
			CreatedAt:   job.CreatedAt.Format(time.RFC3339),
			Attempt:     int(job.Attempt),
			MaxAttempts: int(job.MaxAttempts),
		}
	}
	return result, nil
}

// HealthCheck verifies the queue service can reach its job table.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("river client is nil")
	}
	var count int
	err := s.db.NewSelect().
		Table("river_job").
		ColumnExpr("COUNT(*)").
		Scan(ctx, &count)
	if err != nil {
		return fmt.Errorf("queue health check failed: %w", err)
	}
	return nil
}
