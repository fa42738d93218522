package pbdb

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// Repository is the persistence contract for personal bests.
type Repository interface {
	GetPB(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) (*PersonalBest, error)
	GetPBsForChart(ctx context.Context, db bun.IDB, chartID shared.ChartID) ([]PersonalBest, error)
	GetPBsForPairs(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) ([]PersonalBest, error)
	UpsertPB(ctx context.Context, db bun.IDB, pb *PersonalBest) error
	DeletePB(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) error
	// BulkUpdateRanking rewrites ranking_data for every listed user on the
	// chart in one statement.
	BulkUpdateRanking(ctx context.Context, db bun.IDB, chartID shared.ChartID, rankings map[shared.UserID]shared.RankingData) error
	// BulkPatchLamps applies the lamp-axis patches computed by the batch
	// coercion path.
	BulkPatchLamps(ctx context.Context, db bun.IDB, patches []PersonalBest) error
}
