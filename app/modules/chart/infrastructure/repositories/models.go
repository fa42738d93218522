package chartdb

import (
	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// Chart is the persisted identity of one playable chart. IsPrimary marks the
// canonical version when duplicates or variants of the same chart exist; the
// flag is denormalized onto scores and personal bests at write time.
type Chart struct {
	bun.BaseModel `bun:"table:charts,alias:c"`

	ChartID          shared.ChartID   `bun:"chart_id,pk"`
	SongID           shared.SongID    `bun:"song_id,notnull"`
	Game             shared.Game      `bun:"game,notnull"`
	Playtype         shared.Playtype  `bun:"playtype,notnull"`
	Level            string           `bun:"level"`
	IsPrimary        bool             `bun:"is_primary,notnull,default:true"`
	Hash             string           `bun:"hash"` // per-service lookup key, unique within (game, playtype)
	DefaultRatingKey string           `bun:"default_rating_key,notnull"`
}

// GPT returns the chart's game+playtype pair.
func (c *Chart) GPT() shared.GPT {
	return shared.MakeGPT(c.Game, c.Playtype)
}
