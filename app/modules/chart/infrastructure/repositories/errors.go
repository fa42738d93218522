package chartdb

import "errors"

// ErrChartNotFound indicates the requested chart does not exist.
var ErrChartNotFound = errors.New("chart not found")
