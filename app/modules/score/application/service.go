package scoreservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/clearlamp/clearlamp/app/modules/score/domain/ratings"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
	"github.com/clearlamp/clearlamp/app/shared/metrics"
)

// ScoreService implements the Service interface.
type ScoreService struct {
	repo            scoredb.Repository
	registry        *ratings.Registry
	logger          *slog.Logger
	metrics         metrics.Operation
	tracer          trace.Tracer
	db              *bun.DB
	providerTimeout time.Duration
	limiter         *rate.Limiter
}

// NewScoreService creates a new ScoreService. providerRateLimit of zero
// disables rate limiting of rating-provider calls.
func NewScoreService(
	repo scoredb.Repository,
	registry *ratings.Registry,
	logger *slog.Logger,
	m metrics.Operation,
	tracer trace.Tracer,
	db *bun.DB,
	providerTimeout time.Duration,
	providerRateLimit float64,
) *ScoreService {
	var limiter *rate.Limiter
	if providerRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(providerRateLimit), 1)
	}
	return &ScoreService{
		repo:            repo,
		registry:        registry,
		logger:          logger,
		metrics:         m,
		tracer:          tracer,
		db:              db,
		providerTimeout: providerTimeout,
		limiter:         limiter,
	}
}

var _ Service = (*ScoreService)(nil)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery.
func withTelemetry[T any](
	s *ScoreService,
	ctx context.Context,
	operationName string,
	op func(ctx context.Context) (T, error),
) (result T, err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, "score")

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, "score", time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				slog.String("operation", operationName),
				slog.Any("error", err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, "score")
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
		s.metrics.RecordOperationFailure(ctx, operationName, "score")
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, "score")
	return result, nil
}

// PersistScores inserts scores idempotently; duplicate IDs are skipped.
func (s *ScoreService) PersistScores(ctx context.Context, db bun.IDB, scores []*scoredb.Score) ([]shared.ScoreID, error) {
	return withTelemetry(s, ctx, "PersistScores", func(ctx context.Context) ([]shared.ScoreID, error) {
		rows := make([]scoredb.Score, 0, len(scores))
		for _, sc := range scores {
			rows = append(rows, *sc)
		}
		inserted, err := s.repo.InsertScores(ctx, db, rows)
		if err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "Scores persisted",
			slog.Int("submitted", len(scores)),
			slog.Int("inserted", len(inserted)),
		)
		return inserted, nil
	})
}

// SetHighlight toggles the user-curated highlight flag.
func (s *ScoreService) SetHighlight(ctx context.Context, scoreID shared.ScoreID, highlight bool) error {
	_, err := withTelemetry(s, ctx, "SetHighlight", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.SetHighlight(ctx, nil, scoreID, highlight)
	})
	return err
}

// RemoveScore deletes a score row and hands the deleted document back for
// downstream re-reconciliation.
func (s *ScoreService) RemoveScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*scoredb.Score, error) {
	return withTelemetry(s, ctx, "RemoveScore", func(ctx context.Context) (*scoredb.Score, error) {
		score, err := s.repo.GetScore(ctx, db, scoreID)
		if err != nil {
			return nil, err
		}
		if err := s.repo.DeleteScore(ctx, db, scoreID); err != nil {
			return nil, err
		}
		return score, nil
	})
}
