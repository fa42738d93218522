package orphandb

import "errors"

// ErrOrphanNotFound indicates the requested orphan does not exist (it may
// already have been resolved or blacklisted).
var ErrOrphanNotFound = errors.New("orphan score not found")
