package importdb

import (
	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// Import is the persistent record of one ingestion run. It is written once
// at the start of the run and finalized once at the end; the itemized errors
// array is the contract that an import is never a bare pass/fail.
type Import struct {
	bun.BaseModel `bun:"table:imports,alias:i"`

	ImportID        shared.ImportID      `bun:"import_id,pk"`
	UserID          shared.UserID        `bun:"user_id,notnull"`
	Game            shared.Game          `bun:"game,notnull"`
	Playtype        shared.Playtype      `bun:"playtype,notnull"`
	ImportType      string               `bun:"import_type,notnull"`
	Service         string               `bun:"service,notnull"`
	TimeStarted     int64                `bun:"time_started,notnull"`
	TimeFinished    int64                `bun:"time_finished,notnull,default:0"`
	ScoreIDs        []shared.ScoreID     `bun:"score_ids,type:jsonb,notnull,default:'[]'"`
	CreatedSessions []shared.SessionID   `bun:"created_sessions,type:jsonb,notnull,default:'[]'"`
	Errors          []shared.ImportError `bun:"errors,type:jsonb,notnull,default:'[]'"`
	OrphanCount     int                  `bun:"orphan_count,notnull,default:0"`
}
