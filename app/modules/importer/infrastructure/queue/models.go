package importqueue

import (
	"github.com/clearlamp/clearlamp/app/shared"
)

// ImportJob carries one full import document through River. The document is
// embedded rather than referenced so a job survives restarts without any
// external staging storage.
type ImportJob struct {
	Document shared.ImportDocument `json:"document"`
}

// Kind returns the job type identifier for River.
func (ImportJob) Kind() string { return "score_import" }

// JobInfo represents information about a queued import job (for monitoring).
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	UserID      string `json:"user_id"`
	State       string `json:"state"`
	CreatedAt   string `json:"created_at"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
}
