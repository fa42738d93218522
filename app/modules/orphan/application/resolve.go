package orphanservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	orphandb "github.com/clearlamp/clearlamp/app/modules/orphan/infrastructure/repositories"
	scoreservice "github.com/clearlamp/clearlamp/app/modules/score/application"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// ResolveAll sweeps every pending orphan. Blacklisted orphans are dropped,
// orphans whose chart now resolves are promoted into real scores (with PB and
// session reconciliation), and the remainder get their attempt counters
// bumped so operators can spot permanently stuck entries.
func (s *OrphanService) ResolveAll(ctx context.Context) (Report, error) {
	return withTelemetry(s, ctx, "ResolveAll", func(ctx context.Context) (Report, error) {
		var report Report
		now := time.Now().UnixMilli()
		cursor := ""

		for {
			batch, err := s.repo.IterateOrphans(ctx, s.db, cursor, s.batchSize)
			if err != nil {
				return report, err
			}
			if len(batch) == 0 {
				break
			}
			cursor = batch[len(batch)-1].OrphanID

			if err := s.resolveBatch(ctx, batch, now, &report); err != nil {
				return report, err
			}
		}

		s.logger.InfoContext(ctx, "Orphan resolution pass complete",
			slog.Int("resolved", report.Resolved),
			slog.Int("pending", report.Pending),
			slog.Int("removed", report.Removed),
			slog.Int("failed", report.Failed),
		)
		return report, nil
	})
}

func (s *OrphanService) resolveBatch(ctx context.Context, batch []orphandb.OrphanScore, now int64, report *Report) error {
	ids := make([]string, 0, len(batch))
	for _, o := range batch {
		ids = append(ids, o.OrphanID)
	}
	blacklisted, err := s.repo.BlacklistedSet(ctx, s.db, ids)
	if err != nil {
		return err
	}

	candidates := make([]orphandb.OrphanScore, 0, len(batch))
	refs := make([]shared.ChartRef, 0, len(batch))
	for _, o := range batch {
		if _, ok := blacklisted[o.OrphanID]; ok {
			if err := s.repo.DeleteOrphan(ctx, s.db, o.OrphanID); err != nil {
				return err
			}
			report.Removed++
			continue
		}
		candidates = append(candidates, o)
		refs = append(refs, o.ChartRef)
	}
	if len(candidates) == 0 {
		return nil
	}

	charts, err := s.chartRepo.ResolveRefs(ctx, s.db, refs)
	if err != nil {
		return err
	}

	var stillPending []string
	for _, o := range candidates {
		chart, ok := charts[o.ChartRef.Key()]
		if !ok {
			stillPending = append(stillPending, o.OrphanID)
			report.Pending++
			continue
		}
		if err := s.resolveOne(ctx, o, chart); err != nil {
			s.logger.WarnContext(ctx, "Orphan resolution failed",
				slog.String("orphan_id", o.OrphanID),
				slog.String("chart_id", string(chart.ChartID)),
				slog.Any("error", err),
			)
			stillPending = append(stillPending, o.OrphanID)
			report.Failed++
			continue
		}
		report.Resolved++
	}

	if len(stillPending) > 0 {
		if err := s.repo.RecordAttempts(ctx, s.db, stillPending, now); err != nil {
			return err
		}
	}
	return nil
}

// resolveOne promotes a single orphan into a real score inside one
// transaction, mirroring the per-entry path a normal import takes.
func (s *OrphanService) resolveOne(ctx context.Context, orphan orphandb.OrphanScore, chart *chartdb.Chart) error {
	meta := scoreservice.EntryMeta{
		UserID:     orphan.UserID,
		Service:    orphan.Service,
		ImportType: orphan.ImportType,
	}
	score, err := s.scores.CanonicalizeEntry(ctx, meta, orphan.Entry, chart)
	if err != nil {
		return err
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.scores.PersistScores(ctx, tx, []*scoredb.Score{score}); err != nil {
			return err
		}
		if _, err := s.pbs.ReconcilePB(ctx, tx, score.UserID, score.ChartID); err != nil {
			return err
		}
		if _, _, err := s.sessions.AttachScore(ctx, tx, score); err != nil {
			return err
		}
		return s.repo.DeleteOrphan(ctx, tx, orphan.OrphanID)
	})
}
