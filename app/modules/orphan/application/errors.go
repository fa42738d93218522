package orphanservice

import "errors"

var (
	// ErrAlreadyBlacklisted indicates the orphan ID is already rejected.
	ErrAlreadyBlacklisted = errors.New("orphan is already blacklisted")
)
