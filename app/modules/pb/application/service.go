package pbservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	pbdb "github.com/clearlamp/clearlamp/app/modules/pb/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/modules/score/domain/ratings"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared/metrics"
)

// PBService implements the reconciler.
type PBService struct {
	pbRepo    pbdb.Repository
	scoreRepo scoredb.Repository
	chartRepo chartdb.Repository
	registry  *ratings.Registry
	logger    *slog.Logger
	metrics   metrics.Operation
	tracer    trace.Tracer
	db        *bun.DB
}

func NewPBService(
	pbRepo pbdb.Repository,
	scoreRepo scoredb.Repository,
	chartRepo chartdb.Repository,
	registry *ratings.Registry,
	logger *slog.Logger,
	m metrics.Operation,
	tracer trace.Tracer,
	db *bun.DB,
) *PBService {
	return &PBService{
		pbRepo:    pbRepo,
		scoreRepo: scoreRepo,
		chartRepo: chartRepo,
		registry:  registry,
		logger:    logger,
		metrics:   m,
		tracer:    tracer,
		db:        db,
	}
}

var _ Service = (*PBService)(nil)

func withTelemetry[T any](
	s *PBService,
	ctx context.Context,
	operationName string,
	op func(ctx context.Context) (T, error),
) (result T, err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, "pb")

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, "pb", time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				slog.String("operation", operationName),
				slog.Any("error", err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, "pb")
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
		s.metrics.RecordOperationFailure(ctx, operationName, "pb")
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, "pb")
	return result, nil
}
