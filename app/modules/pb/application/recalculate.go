package pbservice

import (
	"context"
	"fmt"
	"log/slog"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/modules/score/domain/ratings"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

const recalcBatchSize = 1000

// RecalculateAllRatings re-derives calculated_data for every score from the
// current rating providers. It pages with a keyset cursor and writes one
// bulk update per batch, so memory stays bounded on large tables. Scores
// whose GPT has no registered provider are skipped and counted as failures
// rather than aborting the run.
func (s *PBService) RecalculateAllRatings(ctx context.Context) (RecalculateReport, error) {
	return withTelemetry(s, ctx, "RecalculateAllRatings", func(ctx context.Context) (RecalculateReport, error) {
		var report RecalculateReport

		cursor := shared.ScoreID("")
		for {
			scores, err := s.scoreRepo.IterateScores(ctx, s.db, cursor, recalcBatchSize)
			if err != nil {
				return report, fmt.Errorf("failed to page scores after %q: %w", cursor, err)
			}
			if len(scores) == 0 {
				return report, nil
			}

			charts, err := s.chartsFor(ctx, scores)
			if err != nil {
				return report, err
			}

			updates := make(map[shared.ScoreID]shared.CalculatedData, len(scores))
			for i := range scores {
				sc := &scores[i]
				chart, ok := charts[sc.ChartID]
				if !ok {
					report.Failed++
					continue
				}
				derived, err := s.deriveScore(chart, sc)
				if err != nil {
					s.logger.WarnContext(ctx, "Rating recalculation failed for score",
						slog.String("score_id", string(sc.ScoreID)),
						slog.Any("error", err),
					)
					report.Failed++
					continue
				}
				updates[sc.ScoreID] = derived.Calculated
			}

			if len(updates) > 0 {
				if err := s.scoreRepo.BulkUpdateCalculatedData(ctx, s.db, updates); err != nil {
					return report, fmt.Errorf("failed to write batch ending at %q: %w", scores[len(scores)-1].ScoreID, err)
				}
				report.Updated += len(updates)
			}
			cursor = scores[len(scores)-1].ScoreID
		}
	})
}

// RecalculateReport summarizes a full rating recalculation.
type RecalculateReport struct {
	Updated int
	Failed  int
}

func (s *PBService) chartsFor(ctx context.Context, scores []scoredb.Score) (map[shared.ChartID]*chartdb.Chart, error) {
	seen := make(map[shared.ChartID]struct{}, len(scores))
	refs := make([]shared.ChartRef, 0, len(scores))
	for i := range scores {
		id := scores[i].ChartID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, shared.ChartRef{ID: id})
	}

	resolved, err := s.chartRepo.ResolveRefs(ctx, s.db, refs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve charts for recalculation: %w", err)
	}

	charts := make(map[shared.ChartID]*chartdb.Chart, len(resolved))
	for _, c := range resolved {
		charts[c.ChartID] = c
	}
	return charts, nil
}

func (s *PBService) deriveScore(chart *chartdb.Chart, sc *scoredb.Score) (ratings.Derived, error) {
	provider, err := s.registry.Get(chart.GPT())
	if err != nil {
		return ratings.Derived{}, err
	}
	return provider.Evaluate(chart, ratings.Draft{
		Score:        sc.ScoreData.Score,
		Percent:      sc.ScoreData.Percent,
		Lamp:         sc.ScoreData.Lamp,
		Judgements:   sc.ScoreData.Judgements,
		Optional:     sc.ScoreData.Optional,
		TimeAchieved: sc.TimeAchieved,
	})
}
