package chartdb

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// Repository is the persistence contract for charts.
type Repository interface {
	GetChart(ctx context.Context, db bun.IDB, chartID shared.ChartID) (*Chart, error)
	// ResolveRefs looks up every ref in one round trip per lookup axis and
	// returns hits keyed by ChartRef.Key(); misses are simply absent.
	ResolveRefs(ctx context.Context, db bun.IDB, refs []shared.ChartRef) (map[string]*Chart, error)
	UpsertCharts(ctx context.Context, db bun.IDB, charts []Chart) error
}
