package pbdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// PBDBImpl handles database operations for personal bests.
type PBDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*PBDBImpl)(nil)

func (r *PBDBImpl) idb(db bun.IDB) bun.IDB {
	if db != nil {
		return db
	}
	return r.DB
}

func (r *PBDBImpl) GetPB(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) (*PersonalBest, error) {
	pb := new(PersonalBest)
	err := r.idb(db).NewSelect().
		Model(pb).
		Where("user_id = ?", userID).
		Where("chart_id = ?", chartID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPBNotFound
		}
		return nil, fmt.Errorf("failed to fetch pb for user %s chart %s: %w", userID, chartID, err)
	}
	return pb, nil
}

func (r *PBDBImpl) GetPBsForChart(ctx context.Context, db bun.IDB, chartID shared.ChartID) ([]PersonalBest, error) {
	var pbs []PersonalBest
	err := r.idb(db).NewSelect().
		Model(&pbs).
		Where("chart_id = ?", chartID).
		Order("user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pbs for chart %s: %w", chartID, err)
	}
	return pbs, nil
}

func (r *PBDBImpl) GetPBsForPairs(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) ([]PersonalBest, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tuples := make([][]any, 0, len(pairs))
	for _, p := range pairs {
		tuples = append(tuples, []any{string(p.UserID), string(p.ChartID)})
	}

	var pbs []PersonalBest
	err := r.idb(db).NewSelect().
		Model(&pbs).
		Where("(user_id, chart_id) IN (?)", bun.In(tuples)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pbs for %d pairs: %w", len(pairs), err)
	}
	return pbs, nil
}

func (r *PBDBImpl) UpsertPB(ctx context.Context, db bun.IDB, pb *PersonalBest) error {
	_, err := r.idb(db).NewInsert().
		Model(pb).
		On("CONFLICT (user_id, chart_id) DO UPDATE").
		Set("song_id = EXCLUDED.song_id").
		Set("time_achieved = EXCLUDED.time_achieved").
		Set("score_data = EXCLUDED.score_data").
		Set("calculated_data = EXCLUDED.calculated_data").
		Set("composed_from = EXCLUDED.composed_from").
		Set("is_primary = EXCLUDED.is_primary").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert pb for user %s chart %s: %w", pb.UserID, pb.ChartID, err)
	}
	return nil
}

func (r *PBDBImpl) DeletePB(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) error {
	_, err := r.idb(db).NewDelete().
		Model((*PersonalBest)(nil)).
		Where("user_id = ?", userID).
		Where("chart_id = ?", chartID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete pb for user %s chart %s: %w", userID, chartID, err)
	}
	return nil
}

func (r *PBDBImpl) BulkUpdateRanking(ctx context.Context, db bun.IDB, chartID shared.ChartID, rankings map[shared.UserID]shared.RankingData) error {
	if len(rankings) == 0 {
		return nil
	}

	users := make([]shared.UserID, 0, len(rankings))
	for u := range rankings {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })

	type rankRow struct {
		UserID      shared.UserID `bun:"user_id"`
		RankingData string        `bun:"ranking_data"`
	}
	rows := make([]rankRow, 0, len(users))
	for _, u := range users {
		data, err := json.Marshal(rankings[u])
		if err != nil {
			return fmt.Errorf("failed to marshal ranking for user %s: %w", u, err)
		}
		rows = append(rows, rankRow{UserID: u, RankingData: string(data)})
	}
	values := r.idb(db).NewValues(&rows)

	_, err := r.idb(db).NewUpdate().
		With("_rank", values).
		Model((*PersonalBest)(nil)).
		TableExpr("_rank").
		Set("ranking_data = _rank.ranking_data::jsonb").
		Where("pb.chart_id = ?", chartID).
		Where("pb.user_id = _rank.user_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to bulk update ranking for chart %s: %w", chartID, err)
	}
	return nil
}

func (r *PBDBImpl) BulkPatchLamps(ctx context.Context, db bun.IDB, patches []PersonalBest) error {
	if len(patches) == 0 {
		return nil
	}

	type patchRow struct {
		UserID         shared.UserID  `bun:"user_id"`
		ChartID        shared.ChartID `bun:"chart_id"`
		ScoreData      string         `bun:"score_data"`
		CalculatedData string         `bun:"calculated_data"`
		ComposedFrom   string         `bun:"composed_from"`
	}
	rows := make([]patchRow, 0, len(patches))
	for _, p := range patches {
		sd, err := json.Marshal(p.ScoreData)
		if err != nil {
			return fmt.Errorf("failed to marshal score data for user %s: %w", p.UserID, err)
		}
		cd, err := json.Marshal(p.CalculatedData)
		if err != nil {
			return fmt.Errorf("failed to marshal calculated data for user %s: %w", p.UserID, err)
		}
		cf, err := json.Marshal(p.ComposedFrom)
		if err != nil {
			return fmt.Errorf("failed to marshal composed_from for user %s: %w", p.UserID, err)
		}
		rows = append(rows, patchRow{
			UserID:         p.UserID,
			ChartID:        p.ChartID,
			ScoreData:      string(sd),
			CalculatedData: string(cd),
			ComposedFrom:   string(cf),
		})
	}
	values := r.idb(db).NewValues(&rows)

	_, err := r.idb(db).NewUpdate().
		With("_patch", values).
		Model((*PersonalBest)(nil)).
		TableExpr("_patch").
		Set("score_data = _patch.score_data::jsonb").
		Set("calculated_data = _patch.calculated_data::jsonb").
		Set("composed_from = _patch.composed_from::jsonb").
		Where("pb.user_id = _patch.user_id").
		Where("pb.chart_id = _patch.chart_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to bulk patch %d pbs: %w", len(patches), err)
	}
	return nil
}
