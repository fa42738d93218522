package sessionservice

import (
	"context"

	"github.com/uptrace/bun"

	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// Service attaches plays to sessions and keeps rolling aggregates current.
type Service interface {
	// AttachScore joins the score to the open session within the idle-gap
	// window, creating one when none exists. Scores without a timestamp
	// cannot be time-bucketed and are skipped (empty session ID, created
	// false).
	AttachScore(ctx context.Context, db bun.IDB, score *scoredb.Score) (shared.SessionID, bool, error)

	// DetachScore removes the score from whichever session references it.
	// The session is deleted when it becomes empty, and also when its
	// aggregates can no longer be recomputed consistently.
	DetachScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) error

	// RecalculateSession recomputes the session's aggregates from its
	// current members.
	RecalculateSession(ctx context.Context, db bun.IDB, sessionID shared.SessionID) error
}
