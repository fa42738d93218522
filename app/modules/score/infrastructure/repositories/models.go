package scoredb

import (
	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// Score is one achieved play. Rows are immutable once their derived fields
// are consistent; the only mutation paths are the reconciler's
// replace-and-recompute batch patch and explicit deletion.
type Score struct {
	bun.BaseModel `bun:"table:scores,alias:s"`

	ScoreID        shared.ScoreID        `bun:"score_id,pk"`
	UserID         shared.UserID         `bun:"user_id,notnull"`
	ChartID        shared.ChartID        `bun:"chart_id,notnull"`
	SongID         shared.SongID         `bun:"song_id,notnull"`
	Game           shared.Game           `bun:"game,notnull"`
	Playtype       shared.Playtype       `bun:"playtype,notnull"`
	ImportType     string                `bun:"import_type,notnull"`
	Service        string                `bun:"service,notnull"`
	TimeAchieved   *int64                `bun:"time_achieved"`
	ScoreData      shared.ScoreData      `bun:"score_data,type:jsonb,notnull"`
	CalculatedData shared.CalculatedData `bun:"calculated_data,type:jsonb,notnull"`
	IsPrimary      bool                  `bun:"is_primary,notnull"`
	Highlight      bool                  `bun:"highlight,notnull,default:false"`
}

// GPT returns the play's game+playtype pair.
func (s *Score) GPT() shared.GPT {
	return shared.MakeGPT(s.Game, s.Playtype)
}
