package scoredb

import "errors"

// ErrScoreNotFound indicates the requested score does not exist.
var ErrScoreNotFound = errors.New("score not found")
