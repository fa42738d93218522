package sessionservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	sessiondb "github.com/clearlamp/clearlamp/app/modules/session/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared/metrics"
)

// Rating keys feeding session aggregates.
const (
	RatingKey     = "rating"
	LampRatingKey = "lampRating"
)

// SessionService implements the aggregator.
type SessionService struct {
	repo      sessiondb.Repository
	scoreRepo scoredb.Repository
	logger    *slog.Logger
	metrics   metrics.Operation
	tracer    trace.Tracer
	db        *bun.DB
	idleGap   time.Duration
	topN      int
}

func NewSessionService(
	repo sessiondb.Repository,
	scoreRepo scoredb.Repository,
	logger *slog.Logger,
	m metrics.Operation,
	tracer trace.Tracer,
	db *bun.DB,
	idleGap time.Duration,
	topN int,
) *SessionService {
	return &SessionService{
		repo:      repo,
		scoreRepo: scoreRepo,
		logger:    logger,
		metrics:   m,
		tracer:    tracer,
		db:        db,
		idleGap:   idleGap,
		topN:      topN,
	}
}

var _ Service = (*SessionService)(nil)

func withTelemetry[T any](
	s *SessionService,
	ctx context.Context,
	operationName string,
	op func(ctx context.Context) (T, error),
) (result T, err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, "session")

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, "session", time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				slog.String("operation", operationName),
				slog.Any("error", err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, "session")
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
		s.metrics.RecordOperationFailure(ctx, operationName, "session")
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, "session")
	return result, nil
}
