package sessiondb

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// Repository is the persistence contract for sessions.
type Repository interface {
	GetSession(ctx context.Context, db bun.IDB, sessionID shared.SessionID) (*Session, error)
	// FindOpenSession returns the session for (user, game, playtype) whose
	// time window lies within gap of t, preferring the most recent one.
	FindOpenSession(ctx context.Context, db bun.IDB, userID shared.UserID, game shared.Game, playtype shared.Playtype, t int64, gap time.Duration) (*Session, error)
	// FindSessionWithScore returns the session referencing the score, if any.
	FindSessionWithScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*Session, error)
	InsertSession(ctx context.Context, db bun.IDB, session *Session) error
	UpdateSession(ctx context.Context, db bun.IDB, session *Session) error
	DeleteSession(ctx context.Context, db bun.IDB, sessionID shared.SessionID) error
}
