package orphandb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// OrphanScore is an imported play whose chart could not be resolved. It
// keeps the full raw entry plus enough context to re-attempt resolution
// later. Orphans are only ever removed by successful resolution or explicit
// blacklist, never silently.
type OrphanScore struct {
	bun.BaseModel `bun:"table:orphan_scores,alias:o"`

	OrphanID       string             `bun:"orphan_id,pk"`
	UserID         shared.UserID      `bun:"user_id,notnull"`
	Game           shared.Game        `bun:"game,notnull"`
	Playtype       shared.Playtype    `bun:"playtype,notnull"`
	ImportType     string             `bun:"import_type,notnull"`
	Service        string             `bun:"service,notnull"`
	ChartRef       shared.ChartRef    `bun:"chart_ref,type:jsonb,notnull"`
	Entry          shared.ImportEntry `bun:"entry,type:jsonb,notnull"`
	FailedAttempts int                `bun:"failed_attempts,notnull,default:0"`
	LastAttempt    int64              `bun:"last_attempt,notnull,default:0"`
}

// BlacklistedOrphan marks an orphan ID as permanently rejected. Because
// orphan IDs are content-derived, re-importing the same unresolvable entry
// hits the blacklist again.
type BlacklistedOrphan struct {
	bun.BaseModel `bun:"table:orphan_blacklist,alias:ob"`

	OrphanID string `bun:"orphan_id,pk"`
	Reason   string `bun:"reason"`
}

// DeriveOrphanID produces a stable identifier from the orphan's content so
// the same unresolvable entry never produces duplicate orphans.
func DeriveOrphanID(userID shared.UserID, entry shared.ImportEntry) string {
	payload, _ := json.Marshal(entry)
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s", userID, entry.Chart.Key(), payload))
	return "O" + hex.EncodeToString(sum[:20])
}
