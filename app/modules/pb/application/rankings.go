package pbservice

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/uptrace/bun"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	pbdb "github.com/clearlamp/clearlamp/app/modules/pb/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// RecomputeChartRanking refreshes ranking_data for every PB on the chart.
func (s *PBService) RecomputeChartRanking(ctx context.Context, db bun.IDB, chartID shared.ChartID) error {
	_, err := withTelemetry(s, ctx, "RecomputeChartRanking", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.recomputeChartRanking(ctx, db, chartID)
	})
	return err
}

// recomputeChartRanking sorts the chart's PBs descending by the chart's
// default rating key (nulls after all non-nulls) and assigns dense ranks:
// ties share a rank and the next distinct value takes the next integer.
func (s *PBService) recomputeChartRanking(ctx context.Context, db bun.IDB, chartID shared.ChartID) error {
	chart, err := s.chartRepo.GetChart(ctx, db, chartID)
	if err != nil {
		if errors.Is(err, chartdb.ErrChartNotFound) {
			return fmt.Errorf("%w: %s", ErrChartMissing, chartID)
		}
		return err
	}

	pbs, err := s.pbRepo.GetPBsForChart(ctx, db, chartID)
	if err != nil {
		return err
	}
	if len(pbs) == 0 {
		return nil
	}

	rankings := rankPBs(pbs, chart.DefaultRatingKey)
	return s.pbRepo.BulkUpdateRanking(ctx, db, chartID, rankings)
}

func rankPBs(pbs []pbdb.PersonalBest, ratingKey string) map[shared.UserID]shared.RankingData {
	type entry struct {
		userID shared.UserID
		value  *float64
	}
	entries := make([]entry, 0, len(pbs))
	for i := range pbs {
		entries = append(entries, entry{
			userID: pbs[i].UserID,
			value:  pbs[i].CalculatedData[ratingKey],
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].value, entries[j].value
		switch {
		case a != nil && b != nil:
			if *a != *b {
				return *a > *b
			}
			return entries[i].userID < entries[j].userID
		case a != nil:
			return true
		case b != nil:
			return false
		default:
			return entries[i].userID < entries[j].userID
		}
	})

	rankings := make(map[shared.UserID]shared.RankingData, len(entries))
	outOf := len(entries)

	rank := 0
	var prev *float64
	for i, e := range entries {
		switch {
		case e.value == nil:
			// All null-rated PBs share the rank after the last ranked value.
			if prev != nil || rank == 0 {
				rank++
				prev = nil
			}
		case i == 0 || prev == nil || *e.value != *prev:
			rank++
			prev = e.value
		}
		rankings[e.userID] = shared.RankingData{Rank: rank, OutOf: outOf}
	}

	return rankings
}
