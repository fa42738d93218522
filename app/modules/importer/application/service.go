package importservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	importdb "github.com/clearlamp/clearlamp/app/modules/importer/infrastructure/repositories"
	orphanservice "github.com/clearlamp/clearlamp/app/modules/orphan/application"
	pbservice "github.com/clearlamp/clearlamp/app/modules/pb/application"
	scoreservice "github.com/clearlamp/clearlamp/app/modules/score/application"
	sessionservice "github.com/clearlamp/clearlamp/app/modules/session/application"
	"github.com/clearlamp/clearlamp/app/shared"
	"github.com/clearlamp/clearlamp/app/shared/metrics"
)

// ImportService implements the Service interface.
type ImportService struct {
	repo           importdb.Repository
	chartRepo      chartdb.Repository
	scores         scoreservice.Service
	pbs            pbservice.Service
	sessions       sessionservice.Service
	orphans        orphanservice.Service
	eventBus       shared.EventBus
	logger         *slog.Logger
	metrics        metrics.Operation
	tracer         trace.Tracer
	db             *bun.DB
	entryWorkers   int
	resolveTimeout time.Duration
}

// NewImportService creates a new ImportService.
func NewImportService(
	repo importdb.Repository,
	chartRepo chartdb.Repository,
	scores scoreservice.Service,
	pbs pbservice.Service,
	sessions sessionservice.Service,
	orphans orphanservice.Service,
	eventBus shared.EventBus,
	logger *slog.Logger,
	m metrics.Operation,
	tracer trace.Tracer,
	db *bun.DB,
	entryWorkers int,
	resolveTimeout time.Duration,
) *ImportService {
	if entryWorkers <= 0 {
		entryWorkers = 1
	}
	return &ImportService{
		repo:           repo,
		chartRepo:      chartRepo,
		scores:         scores,
		pbs:            pbs,
		sessions:       sessions,
		orphans:        orphans,
		eventBus:       eventBus,
		logger:         logger,
		metrics:        m,
		tracer:         tracer,
		db:             db,
		entryWorkers:   entryWorkers,
		resolveTimeout: resolveTimeout,
	}
}

var _ Service = (*ImportService)(nil)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery.
func withTelemetry[T any](
	s *ImportService,
	ctx context.Context,
	operationName string,
	op func(ctx context.Context) (T, error),
) (result T, err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, "importer")

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, "importer", time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				slog.String("operation", operationName),
				slog.Any("error", err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, "importer")
			span.RecordError(err)
		}
	}()

	result, err = op(ctx)
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed",
			slog.String("operation", operationName),
			slog.Any("error", wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, "importer")
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, "importer")
	return result, nil
}

// GetImport returns one import record.
func (s *ImportService) GetImport(ctx context.Context, importID shared.ImportID) (*importdb.Import, error) {
	return withTelemetry(s, ctx, "GetImport", func(ctx context.Context) (*importdb.Import, error) {
		return s.repo.GetImport(ctx, s.db, importID)
	})
}

// GetImportsForUser returns a user's imports, most recent first.
func (s *ImportService) GetImportsForUser(ctx context.Context, userID shared.UserID, limit int) ([]importdb.Import, error) {
	return withTelemetry(s, ctx, "GetImportsForUser", func(ctx context.Context) ([]importdb.Import, error) {
		return s.repo.GetImportsForUser(ctx, s.db, userID, limit)
	})
}

// DeleteScore removes a score and repairs everything derived from it.
func (s *ImportService) DeleteScore(ctx context.Context, scoreID shared.ScoreID) error {
	_, err := withTelemetry(s, ctx, "DeleteScore", func(ctx context.Context) (struct{}, error) {
		err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			score, err := s.scores.RemoveScore(ctx, tx, scoreID)
			if err != nil {
				return err
			}
			if _, err := s.pbs.ReconcilePB(ctx, tx, score.UserID, score.ChartID); err != nil {
				return err
			}
			return s.sessions.DetachScore(ctx, tx, scoreID)
		})
		return struct{}{}, err
	})
	return err
}
