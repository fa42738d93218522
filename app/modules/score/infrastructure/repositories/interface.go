package scoredb

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// Repository is the persistence contract for scores.
type Repository interface {
	// InsertScores persists scores idempotently (duplicate score IDs are
	// skipped) and returns the IDs that were actually inserted.
	InsertScores(ctx context.Context, db bun.IDB, scores []Score) ([]shared.ScoreID, error)
	GetScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*Score, error)
	GetScoresByIDs(ctx context.Context, db bun.IDB, ids []shared.ScoreID) ([]Score, error)
	GetScoresForUserChart(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]Score, error)
	DeleteScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) error
	SetHighlight(ctx context.Context, db bun.IDB, scoreID shared.ScoreID, highlight bool) error
	// GetLampBests returns, in one query, the lamp-best score (highest lamp
	// ordinal, ties broken by earliest time achieved) for every given
	// (user, chart) pair that has at least one score.
	GetLampBests(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) ([]Score, error)
	// IterateScores pages through all scores in stable score_id order,
	// returning at most limit rows with score_id > cursor.
	IterateScores(ctx context.Context, db bun.IDB, cursor shared.ScoreID, limit int) ([]Score, error)
	// BulkUpdateCalculatedData rewrites calculated_data for many scores in
	// one statement; used by data migrations.
	BulkUpdateCalculatedData(ctx context.Context, db bun.IDB, updates map[shared.ScoreID]shared.CalculatedData) error
}
