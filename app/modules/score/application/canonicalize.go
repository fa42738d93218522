package scoreservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/modules/score/domain/ratings"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// CanonicalizeEntry converts one resolved import entry into a score. The
// caller has already resolved the chart; entries with unresolvable charts go
// to the orphan store and never reach this function.
func (s *ScoreService) CanonicalizeEntry(ctx context.Context, meta EntryMeta, entry shared.ImportEntry, chart *chartdb.Chart) (*scoredb.Score, error) {
	return withTelemetry(s, ctx, "CanonicalizeEntry", func(ctx context.Context) (*scoredb.Score, error) {
		if err := validateEntry(meta, entry, chart); err != nil {
			return nil, err
		}

		provider, err := s.registry.Get(chart.GPT())
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNoProvider, chart.GPT())
		}

		derived, err := s.evaluate(ctx, provider, chart, ratings.Draft{
			Score:        entry.Score,
			Percent:      entry.Percent,
			Lamp:         entry.Lamp,
			Judgements:   entry.Judgements,
			Optional:     entry.Optional,
			TimeAchieved: entry.TimeAchieved,
		})
		if err != nil {
			return nil, err
		}

		score := &scoredb.Score{
			ScoreID:      shared.DeriveScoreID(meta.UserID, chart.ChartID, entry.Score, entry.Lamp, entry.TimeAchieved),
			UserID:       meta.UserID,
			ChartID:      chart.ChartID,
			SongID:       chart.SongID,
			Game:         chart.Game,
			Playtype:     chart.Playtype,
			ImportType:   meta.ImportType,
			Service:      meta.Service,
			TimeAchieved: entry.TimeAchieved,
			ScoreData: shared.ScoreData{
				Score:      entry.Score,
				Percent:    entry.Percent,
				Lamp:       entry.Lamp,
				LampIndex:  derived.LampIndex,
				Grade:      derived.Grade,
				GradeIndex: derived.GradeIndex,
				Judgements: entry.Judgements,
				Optional:   entry.Optional,
			},
			CalculatedData: derived.Calculated,
			IsPrimary:      chart.IsPrimary,
		}

		s.logger.DebugContext(ctx, "Entry canonicalized",
			slog.String("score_id", string(score.ScoreID)),
			slog.String("chart_id", string(chart.ChartID)),
			slog.String("user_id", string(meta.UserID)),
		)
		return score, nil
	})
}

// evaluate calls the rating provider under the configured rate limit and
// deadline. A timeout is an entry-level failure, never a batch abort.
func (s *ScoreService) evaluate(ctx context.Context, provider ratings.Provider, chart *chartdb.Chart, draft ratings.Draft) (ratings.Derived, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return ratings.Derived{}, fmt.Errorf("rating limiter wait: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.providerTimeout)
	defer cancel()

	type evalResult struct {
		derived ratings.Derived
		err     error
	}
	done := make(chan evalResult, 1)
	go func() {
		derived, err := provider.Evaluate(chart, draft)
		done <- evalResult{derived, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return ratings.Derived{}, fmt.Errorf("rating provider for %s: %w", chart.GPT(), res.err)
		}
		if res.derived.Calculated == nil {
			res.derived.Calculated = shared.CalculatedData{}
		}
		return res.derived, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ratings.Derived{}, fmt.Errorf("%w: %s", ErrProviderTimeout, chart.GPT())
		}
		return ratings.Derived{}, ctx.Err()
	}
}

func validateEntry(meta EntryMeta, entry shared.ImportEntry, chart *chartdb.Chart) error {
	switch {
	case chart == nil:
		return fmt.Errorf("%w: nil chart", ErrEntryInvalid)
	case meta.UserID == "":
		return fmt.Errorf("%w: missing user id", ErrEntryInvalid)
	case entry.Lamp == "":
		return fmt.Errorf("%w: missing lamp", ErrEntryInvalid)
	case entry.Score < 0:
		return fmt.Errorf("%w: negative score %f", ErrEntryInvalid, entry.Score)
	case entry.Percent < 0 || entry.Percent > 100:
		return fmt.Errorf("%w: percent %f out of range", ErrEntryInvalid, entry.Percent)
	}
	return nil
}
