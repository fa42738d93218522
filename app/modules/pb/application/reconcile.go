package pbservice

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/uptrace/bun"

	pbdb "github.com/clearlamp/clearlamp/app/modules/pb/infrastructure/repositories"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// ReconcilePB recomputes the canonical PB for one (user, chart) pair from
// the full score set and refreshes the chart ranking.
func (s *PBService) ReconcilePB(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) (*pbdb.PersonalBest, error) {
	return withTelemetry(s, ctx, "ReconcilePB", func(ctx context.Context) (*pbdb.PersonalBest, error) {
		pb, _, err := s.reconcilePair(ctx, db, userID, chartID)
		if err != nil {
			return nil, err
		}
		if err := s.recomputeChartRanking(ctx, db, chartID); err != nil {
			return nil, err
		}
		return pb, nil
	})
}

// ReconcileMany reconciles a batch of pairs. A failure on one chart never
// aborts the others; the pre-existing PB for a failed pair stays untouched.
func (s *PBService) ReconcileMany(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) (ReconcileReport, error) {
	return withTelemetry(s, ctx, "ReconcileMany", func(ctx context.Context) (ReconcileReport, error) {
		var report ReconcileReport
		charts := make(map[shared.ChartID]struct{})

		for _, pair := range pairs {
			pb, removed, err := s.reconcilePair(ctx, db, pair.UserID, pair.ChartID)
			if err != nil {
				s.logger.ErrorContext(ctx, "Pair reconciliation failed, prior PB left intact",
					slog.String("user_id", string(pair.UserID)),
					slog.String("chart_id", string(pair.ChartID)),
					slog.Any("error", err),
				)
				report.Failed = append(report.Failed, ReconcileFailure{Pair: pair, Reason: err.Error()})
				continue
			}
			charts[pair.ChartID] = struct{}{}
			if removed {
				report.Removed++
			}
			if pb != nil {
				report.Reconciled++
			}
		}

		// One ranking pass per distinct chart, after all pair upserts.
		chartIDs := make([]shared.ChartID, 0, len(charts))
		for id := range charts {
			chartIDs = append(chartIDs, id)
		}
		sort.Slice(chartIDs, func(i, j int) bool { return chartIDs[i] < chartIDs[j] })
		for _, chartID := range chartIDs {
			if err := s.recomputeChartRanking(ctx, db, chartID); err != nil {
				s.logger.ErrorContext(ctx, "Chart ranking recompute failed",
					slog.String("chart_id", string(chartID)),
					slog.Any("error", err),
				)
				report.RankingFailed = append(report.RankingFailed, RankingFailure{
					ChartID: chartID,
					Reason:  err.Error(),
				})
			}
		}

		return report, nil
	})
}

// reconcilePair derives and upserts the PB for one pair without touching the
// chart ranking. Returns (nil, true, nil) when the pair has no scores left
// and its PB row was removed.
func (s *PBService) reconcilePair(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) (*pbdb.PersonalBest, bool, error) {
	scores, err := s.scoreRepo.GetScoresForUserChart(ctx, db, userID, chartID)
	if err != nil {
		return nil, false, err
	}

	if len(scores) == 0 {
		if err := s.pbRepo.DeletePB(ctx, db, userID, chartID); err != nil {
			return nil, false, err
		}
		return nil, true, nil
	}

	pb := s.composePB(userID, chartID, scores)
	if err := s.pbRepo.UpsertPB(ctx, db, pb); err != nil {
		return nil, false, err
	}
	return pb, false, nil
}

// composePB builds the best-of-both composite players expect: score axis
// from the score PB, lamp axis overlaid from the lamp PB when it is strictly
// better, and each remaining rating key maximized independently.
func (s *PBService) composePB(userID shared.UserID, chartID shared.ChartID, scores []scoredb.Score) *pbdb.PersonalBest {
	scorePB := pickScorePB(scores)
	lampPB := pickLampPB(scores)

	scoreData := scorePB.ScoreData
	calculated := scorePB.CalculatedData.Clone()
	if calculated == nil {
		calculated = shared.CalculatedData{}
	}

	lampOnly := s.lampOnlyKeys(scorePB.GPT())

	if lampPB.ScoreData.LampIndex > scorePB.ScoreData.LampIndex {
		scoreData.Lamp = lampPB.ScoreData.Lamp
		scoreData.LampIndex = lampPB.ScoreData.LampIndex
		for _, key := range lampOnly {
			if v, ok := lampPB.CalculatedData[key]; ok {
				calculated[key] = cloneFloat(v)
			}
		}
	}

	// Every rating key that is not lamp-defined is maximized independently
	// across the full score set.
	for _, key := range calculatedKeys(scores) {
		if containsKey(lampOnly, key) {
			continue
		}
		calculated[key] = maxCalculated(scores, key)
	}

	return &pbdb.PersonalBest{
		UserID:         userID,
		ChartID:        chartID,
		SongID:         scorePB.SongID,
		Game:           scorePB.Game,
		Playtype:       scorePB.Playtype,
		TimeAchieved:   scorePB.TimeAchieved,
		ScoreData:      scoreData,
		CalculatedData: calculated,
		ComposedFrom: shared.ComposedFrom{
			ScorePB: scorePB.ScoreID,
			LampPB:  lampPB.ScoreID,
		},
		IsPrimary: scorePB.IsPrimary,
	}
}

func (s *PBService) lampOnlyKeys(gpt shared.GPT) []string {
	provider, err := s.registry.Get(gpt)
	if err != nil {
		// No provider means no key can be classified as lamp-derived; the
		// score-axis values win everywhere.
		return nil
	}
	return provider.LampOnlyKeys()
}

// pickScorePB returns the play with the numerically highest score, ties
// broken by earliest time achieved, then score ID for determinism.
func pickScorePB(scores []scoredb.Score) *scoredb.Score {
	best := &scores[0]
	for i := 1; i < len(scores); i++ {
		c := &scores[i]
		switch {
		case c.ScoreData.Score > best.ScoreData.Score:
			best = c
		case c.ScoreData.Score == best.ScoreData.Score && achievedBefore(c, best):
			best = c
		}
	}
	return best
}

// pickLampPB returns the play with the highest lamp ordinal, same tie-break.
func pickLampPB(scores []scoredb.Score) *scoredb.Score {
	best := &scores[0]
	for i := 1; i < len(scores); i++ {
		c := &scores[i]
		switch {
		case c.ScoreData.LampIndex > best.ScoreData.LampIndex:
			best = c
		case c.ScoreData.LampIndex == best.ScoreData.LampIndex && achievedBefore(c, best):
			best = c
		}
	}
	return best
}

// achievedBefore reports whether a was achieved strictly before b. Plays
// without a timestamp sort after timestamped ones; full ties fall back to
// score ID so the choice is stable.
func achievedBefore(a, b *scoredb.Score) bool {
	switch {
	case a.TimeAchieved != nil && b.TimeAchieved != nil:
		if *a.TimeAchieved != *b.TimeAchieved {
			return *a.TimeAchieved < *b.TimeAchieved
		}
	case a.TimeAchieved != nil:
		return true
	case b.TimeAchieved != nil:
		return false
	}
	return a.ScoreID < b.ScoreID
}

// calculatedKeys returns the union of rating keys across scores, sorted.
func calculatedKeys(scores []scoredb.Score) []string {
	seen := make(map[string]struct{})
	for i := range scores {
		for key := range scores[i].CalculatedData {
			seen[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// maxCalculated returns the highest non-nil value of a key across scores,
// or nil when no score produced one.
func maxCalculated(scores []scoredb.Score, key string) *float64 {
	var best *float64
	for i := range scores {
		v := scores[i].CalculatedData[key]
		if v == nil {
			continue
		}
		if best == nil || *v > *best {
			best = cloneFloat(v)
		}
	}
	return best
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	val := *v
	return &val
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is the repository's missing-PB sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, pbdb.ErrPBNotFound)
}
