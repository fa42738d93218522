package chartservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
	"github.com/clearlamp/clearlamp/app/shared/metrics"
)

// ChartService implements the Service interface.
type ChartService struct {
	repo     chartdb.Repository
	eventBus shared.EventBus
	logger   *slog.Logger
	metrics  metrics.Operation
	tracer   trace.Tracer
	db       *bun.DB
}

// NewChartService creates a new ChartService.
func NewChartService(
	repo chartdb.Repository,
	eventBus shared.EventBus,
	logger *slog.Logger,
	m metrics.Operation,
	tracer trace.Tracer,
	db *bun.DB,
) *ChartService {
	return &ChartService{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
		metrics:  m,
		tracer:   tracer,
		db:       db,
	}
}

var _ Service = (*ChartService)(nil)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery.
func withTelemetry[T any](
	s *ChartService,
	ctx context.Context,
	operationName string,
	op func(ctx context.Context) (T, error),
) (result T, err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, "chart")

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, "chart", time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				slog.String("operation", operationName),
				slog.Any("error", err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, "chart")
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
		s.metrics.RecordOperationFailure(ctx, operationName, "chart")
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, "chart")
	return result, nil
}

// GetChart returns one chart by ID.
func (s *ChartService) GetChart(ctx context.Context, chartID shared.ChartID) (*chartdb.Chart, error) {
	return withTelemetry(s, ctx, "GetChart", func(ctx context.Context) (*chartdb.Chart, error) {
		return s.repo.GetChart(ctx, s.db, chartID)
	})
}

// SyncCharts upserts a chart batch and announces it so pending orphans get
// another resolution pass.
func (s *ChartService) SyncCharts(ctx context.Context, game shared.Game, playtype shared.Playtype, charts []chartdb.Chart) error {
	_, err := withTelemetry(s, ctx, "SyncCharts", func(ctx context.Context) (struct{}, error) {
		if len(charts) == 0 {
			return struct{}{}, nil
		}
		if err := s.repo.UpsertCharts(ctx, s.db, charts); err != nil {
			return struct{}{}, err
		}

		chartIDs := make([]shared.ChartID, 0, len(charts))
		for _, c := range charts {
			chartIDs = append(chartIDs, c.ChartID)
		}
		if err := s.eventBus.Publish(ctx, shared.SubjectChartBatchAdded, shared.ChartBatchAddedPayload{
			Game:     game,
			Playtype: playtype,
			ChartIDs: chartIDs,
		}); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish chart.batch.added",
				slog.String("game", string(game)),
				slog.Any("error", err),
			)
		}

		s.logger.InfoContext(ctx, "Charts synced",
			slog.String("game", string(game)),
			slog.String("playtype", string(playtype)),
			slog.Int("count", len(charts)),
		)
		return struct{}{}, nil
	})
	return err
}
