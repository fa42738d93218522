package pbservice

import "errors"

var (
	// ErrNoScores indicates reconciliation was requested for a pair with no
	// persisted scores.
	ErrNoScores = errors.New("no scores for pair")

	// ErrChartMissing indicates the chart referenced by a PB no longer
	// exists, so its ranking key cannot be determined.
	ErrChartMissing = errors.New("chart missing for ranking")
)
