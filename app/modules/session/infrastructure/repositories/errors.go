package sessiondb

import "errors"

// ErrSessionNotFound indicates no session matched the lookup.
var ErrSessionNotFound = errors.New("session not found")
