package pbservice

import (
	"context"

	"github.com/uptrace/bun"

	pbdb "github.com/clearlamp/clearlamp/app/modules/pb/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// Service is the reconciliation surface. Every write path that touches
// scores for a (user, chart) pair goes through ReconcilePB afterwards; the
// batch variants exist so bulk imports avoid one round trip per score.
type Service interface {
	// ReconcilePB recomputes the single PB for the pair from the current
	// score set and refreshes the chart-wide ranking. Returns nil when the
	// pair has no scores left (the PB row is removed).
	ReconcilePB(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) (*pbdb.PersonalBest, error)

	// ReconcileMany reconciles every pair, isolating per-chart failures.
	ReconcileMany(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) (ReconcileReport, error)

	// AutoCoerceLampFields is a batch optimization over per-score
	// reconciliation: it fetches current lamp bests for all pairs in one
	// query and patches lamp-axis fields onto PBs that are behind. Results
	// are identical to running ReconcilePB serially for each pair.
	AutoCoerceLampFields(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) (int, error)

	// RecomputeChartRanking refreshes ranking_data for every PB on a chart.
	RecomputeChartRanking(ctx context.Context, db bun.IDB, chartID shared.ChartID) error

	// RecalculateAllRatings re-derives calculated_data for every score from
	// the current rating providers, in bounded batches. Run after a provider
	// formula changes.
	RecalculateAllRatings(ctx context.Context) (RecalculateReport, error)
}

// ReconcileReport summarizes a batch reconciliation.
type ReconcileReport struct {
	Reconciled    int
	Removed       int
	Failed        []ReconcileFailure
	RankingFailed []RankingFailure
}

// ReconcileFailure records one pair whose reconciliation failed. The prior
// PB for the pair is left untouched.
type ReconcileFailure struct {
	Pair   shared.UserChartPair
	Reason string
}

// RankingFailure records a chart whose ranking refresh failed after its pair
// upserts succeeded. The chart's PBs keep their previous ranking data.
type RankingFailure struct {
	ChartID shared.ChartID
	Reason  string
}
