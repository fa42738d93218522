package orphanservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	orphandb "github.com/clearlamp/clearlamp/app/modules/orphan/infrastructure/repositories"
	pbservice "github.com/clearlamp/clearlamp/app/modules/pb/application"
	scoreservice "github.com/clearlamp/clearlamp/app/modules/score/application"
	sessionservice "github.com/clearlamp/clearlamp/app/modules/session/application"
	"github.com/clearlamp/clearlamp/app/shared"
	"github.com/clearlamp/clearlamp/app/shared/metrics"
)

// OrphanService implements the Service interface.
type OrphanService struct {
	repo      orphandb.Repository
	chartRepo chartdb.Repository
	scores    scoreservice.Service
	pbs       pbservice.Service
	sessions  sessionservice.Service
	logger    *slog.Logger
	metrics   metrics.Operation
	tracer    trace.Tracer
	db        *bun.DB
	batchSize int
}

// NewOrphanService creates a new OrphanService. batchSize bounds how many
// orphans one resolution pass holds in memory at a time.
func NewOrphanService(
	repo orphandb.Repository,
	chartRepo chartdb.Repository,
	scores scoreservice.Service,
	pbs pbservice.Service,
	sessions sessionservice.Service,
	logger *slog.Logger,
	m metrics.Operation,
	tracer trace.Tracer,
	db *bun.DB,
	batchSize int,
) *OrphanService {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &OrphanService{
		repo:      repo,
		chartRepo: chartRepo,
		scores:    scores,
		pbs:       pbs,
		sessions:  sessions,
		logger:    logger,
		metrics:   m,
		tracer:    tracer,
		db:        db,
		batchSize: batchSize,
	}
}

var _ Service = (*OrphanService)(nil)

// withTelemetry wraps a service operation with tracing, metrics, and panic
// recovery.
func withTelemetry[T any](
	s *OrphanService,
	ctx context.Context,
	operationName string,
	op func(ctx context.Context) (T, error),
) (result T, err error) {
	ctx, span := s.tracer.Start(ctx, operationName, trace.WithAttributes(
		attribute.String("operation", operationName),
	))
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, "orphan")

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, "orphan", time.Since(startTime))
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				slog.String("operation", operationName),
				slog.Any("error", err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, "orphan")
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
		s.metrics.RecordOperationFailure(ctx, operationName, "orphan")
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, "orphan")
	return result, nil
}

func (s *OrphanService) idb(db bun.IDB) bun.IDB {
	if db != nil {
		return db
	}
	return s.db
}

// CreateOrphan stores an unresolvable entry for later retry.
func (s *OrphanService) CreateOrphan(ctx context.Context, db bun.IDB, meta scoreservice.EntryMeta, game shared.Game, playtype shared.Playtype, entry shared.ImportEntry) (string, error) {
	return withTelemetry(s, ctx, "CreateOrphan", func(ctx context.Context) (string, error) {
		orphan := &orphandb.OrphanScore{
			OrphanID:   orphandb.DeriveOrphanID(meta.UserID, entry),
			UserID:     meta.UserID,
			Game:       game,
			Playtype:   playtype,
			ImportType: meta.ImportType,
			Service:    meta.Service,
			ChartRef:   entry.Chart,
			Entry:      entry,
		}
		if err := s.repo.UpsertOrphan(ctx, s.idb(db), orphan); err != nil {
			return "", err
		}
		s.logger.InfoContext(ctx, "Orphan stored",
			slog.String("orphan_id", orphan.OrphanID),
			slog.String("user_id", string(meta.UserID)),
			slog.String("chart_ref", entry.Chart.Key()),
		)
		return orphan.OrphanID, nil
	})
}

// Blacklist permanently rejects an orphan and removes the pending row.
func (s *OrphanService) Blacklist(ctx context.Context, orphanID, reason string) error {
	_, err := withTelemetry(s, ctx, "Blacklist", func(ctx context.Context) (struct{}, error) {
		blacklisted, err := s.repo.BlacklistedSet(ctx, s.db, []string{orphanID})
		if err != nil {
			return struct{}{}, err
		}
		if _, ok := blacklisted[orphanID]; ok {
			return struct{}{}, ErrAlreadyBlacklisted
		}
		err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if err := s.repo.AddToBlacklist(ctx, tx, &orphandb.BlacklistedOrphan{
				OrphanID: orphanID,
				Reason:   reason,
			}); err != nil {
				return err
			}
			return s.repo.DeleteOrphan(ctx, tx, orphanID)
		})
		return struct{}{}, err
	})
	return err
}
