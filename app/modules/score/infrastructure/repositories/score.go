package scoredb

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

// ScoreDBImpl handles database operations for scores.
type ScoreDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*ScoreDBImpl)(nil)

func (r *ScoreDBImpl) idb(db bun.IDB) bun.IDB {
	if db != nil {
		return db
	}
	return r.DB
}

func (r *ScoreDBImpl) InsertScores(ctx context.Context, db bun.IDB, scores []Score) ([]shared.ScoreID, error) {
	if len(scores) == 0 {
		return nil, nil
	}

	var inserted []Score
	err := r.idb(db).NewInsert().
		Model(&scores).
		On("CONFLICT (score_id) DO NOTHING").
		Returning("score_id").
		Scan(ctx, &inserted)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to insert %d scores: %w", len(scores), err)
	}

	ids := make([]shared.ScoreID, 0, len(inserted))
	for _, s := range inserted {
		ids = append(ids, s.ScoreID)
	}
	return ids, nil
}

func (r *ScoreDBImpl) GetScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*Score, error) {
	score := new(Score)
	err := r.idb(db).NewSelect().
		Model(score).
		Where("score_id = ?", scoreID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScoreNotFound
		}
		return nil, fmt.Errorf("failed to fetch score %s: %w", scoreID, err)
	}
	return score, nil
}

func (r *ScoreDBImpl) GetScoresByIDs(ctx context.Context, db bun.IDB, ids []shared.ScoreID) ([]Score, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var scores []Score
	err := r.idb(db).NewSelect().
		Model(&scores).
		Where("score_id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %d scores by id: %w", len(ids), err)
	}
	return scores, nil
}

func (r *ScoreDBImpl) GetScoresForUserChart(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]Score, error) {
	var scores []Score
	err := r.idb(db).NewSelect().
		Model(&scores).
		Where("user_id = ?", userID).
		Where("chart_id = ?", chartID).
		Order("time_achieved ASC NULLS LAST", "score_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scores for user %s chart %s: %w", userID, chartID, err)
	}
	return scores, nil
}

func (r *ScoreDBImpl) DeleteScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) error {
	res, err := r.idb(db).NewDelete().
		Model((*Score)(nil)).
		Where("score_id = ?", scoreID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete score %s: %w", scoreID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrScoreNotFound
	}
	return nil
}

func (r *ScoreDBImpl) SetHighlight(ctx context.Context, db bun.IDB, scoreID shared.ScoreID, highlight bool) error {
	res, err := r.idb(db).NewUpdate().
		Model((*Score)(nil)).
		Set("highlight = ?", highlight).
		Where("score_id = ?", scoreID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to set highlight on score %s: %w", scoreID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrScoreNotFound
	}
	return nil
}

func (r *ScoreDBImpl) GetLampBests(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) ([]Score, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	tuples := make([][]any, 0, len(pairs))
	for _, p := range pairs {
		tuples = append(tuples, []any{string(p.UserID), string(p.ChartID)})
	}

	var scores []Score
	err := r.idb(db).NewSelect().
		Model(&scores).
		DistinctOn("user_id, chart_id").
		Where("(user_id, chart_id) IN (?)", bun.In(tuples)).
		OrderExpr("user_id, chart_id, (score_data->>'lampIndex')::int DESC, time_achieved ASC NULLS LAST, score_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lamp bests for %d pairs: %w", len(pairs), err)
	}
	return scores, nil
}

func (r *ScoreDBImpl) IterateScores(ctx context.Context, db bun.IDB, cursor shared.ScoreID, limit int) ([]Score, error) {
	var scores []Score
	q := r.idb(db).NewSelect().
		Model(&scores).
		Order("score_id ASC").
		Limit(limit)
	if cursor != "" {
		q = q.Where("score_id > ?", cursor)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to iterate scores after %q: %w", cursor, err)
	}
	return scores, nil
}

func (r *ScoreDBImpl) BulkUpdateCalculatedData(ctx context.Context, db bun.IDB, updates map[shared.ScoreID]shared.CalculatedData) error {
	if len(updates) == 0 {
		return nil
	}

	// Stable order keeps the statement deterministic for logging and tests.
	ids := make([]shared.ScoreID, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := make([]struct {
		ScoreID        shared.ScoreID `bun:"score_id"`
		CalculatedData string         `bun:"calculated_data"`
	}, 0, len(ids))
	for _, id := range ids {
		data, err := json.Marshal(updates[id])
		if err != nil {
			return fmt.Errorf("failed to marshal calculated data for %s: %w", id, err)
		}
		rows = append(rows, struct {
			ScoreID        shared.ScoreID `bun:"score_id"`
			CalculatedData string         `bun:"calculated_data"`
		}{ScoreID: id, CalculatedData: string(data)})
	}
	values := r.idb(db).NewValues(&rows)

	_, err := r.idb(db).NewUpdate().
		With("_data", values).
		Model((*Score)(nil)).
		TableExpr("_data").
		Set("calculated_data = _data.calculated_data::jsonb").
		Where("s.score_id = _data.score_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to bulk update calculated data for %d scores: %w", len(updates), err)
	}
	return nil
}
