package pbdb

import (
	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// PersonalBest is the single canonical best-performance record per
// (user, chart). Its content is always re-derivable from the current score
// set; it is never edited independently of reconciliation.
type PersonalBest struct {
	bun.BaseModel `bun:"table:personal_bests,alias:pb"`

	UserID         shared.UserID         `bun:"user_id,pk"`
	ChartID        shared.ChartID        `bun:"chart_id,pk"`
	SongID         shared.SongID         `bun:"song_id,notnull"`
	Game           shared.Game           `bun:"game,notnull"`
	Playtype       shared.Playtype       `bun:"playtype,notnull"`
	TimeAchieved   *int64                `bun:"time_achieved"`
	ScoreData      shared.ScoreData      `bun:"score_data,type:jsonb,notnull"`
	CalculatedData shared.CalculatedData `bun:"calculated_data,type:jsonb,notnull"`
	ComposedFrom   shared.ComposedFrom   `bun:"composed_from,type:jsonb,notnull"`
	RankingData    shared.RankingData    `bun:"ranking_data,type:jsonb,notnull"`
	IsPrimary      bool                  `bun:"is_primary,notnull"`
}
