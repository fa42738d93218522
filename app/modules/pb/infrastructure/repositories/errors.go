package pbdb

import "errors"

// ErrPBNotFound indicates no personal best exists for the pair.
var ErrPBNotFound = errors.New("personal best not found")
