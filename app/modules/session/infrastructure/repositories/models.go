package sessiondb

import (
	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// Session is a time-bounded grouping of one player's plays for one GPT. It
// references scores by ID without owning them; a session with no remaining
// score IDs is deleted, never kept empty.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:se"`

	SessionID      shared.SessionID         `bun:"session_id,pk"`
	UserID         shared.UserID            `bun:"user_id,notnull"`
	Game           shared.Game              `bun:"game,notnull"`
	Playtype       shared.Playtype          `bun:"playtype,notnull"`
	TimeStarted    int64                    `bun:"time_started,notnull"`
	TimeEnded      int64                    `bun:"time_ended,notnull"`
	ScoreIDs       []shared.ScoreID         `bun:"score_ids,type:jsonb,notnull"`
	CalculatedData shared.SessionCalculated `bun:"calculated_data,type:jsonb,notnull"`
}

// Contains reports whether the session references the score.
func (s *Session) Contains(scoreID shared.ScoreID) bool {
	for _, id := range s.ScoreIDs {
		if id == scoreID {
			return true
		}
	}
	return false
}
