package chartservice

import (
	"context"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// Service is the chart catalogue surface. Chart additions announce
// themselves on the bus so pending orphans get re-resolved.
type Service interface {
	GetChart(ctx context.Context, chartID shared.ChartID) (*chartdb.Chart, error)

	// SyncCharts upserts a batch of charts and publishes a batch-added
	// event when anything was written.
	SyncCharts(ctx context.Context, game shared.Game, playtype shared.Playtype, charts []chartdb.Chart) error
}
