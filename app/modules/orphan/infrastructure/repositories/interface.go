package orphandb

import (
	"context"

	"github.com/uptrace/bun"
)

// Repository is the persistence contract for orphaned plays and the orphan
// blacklist.
type Repository interface {
	// UpsertOrphan stores an orphan idempotently; re-importing the same
	// unresolvable entry is a no-op.
	UpsertOrphan(ctx context.Context, db bun.IDB, orphan *OrphanScore) error
	GetOrphan(ctx context.Context, db bun.IDB, orphanID string) (*OrphanScore, error)
	// IterateOrphans pages through all orphans in stable orphan_id order.
	IterateOrphans(ctx context.Context, db bun.IDB, cursor string, limit int) ([]OrphanScore, error)
	DeleteOrphan(ctx context.Context, db bun.IDB, orphanID string) error
	// RecordAttempts bumps attempt metadata on still-unresolved orphans.
	RecordAttempts(ctx context.Context, db bun.IDB, orphanIDs []string, at int64) error

	AddToBlacklist(ctx context.Context, db bun.IDB, entry *BlacklistedOrphan) error
	// BlacklistedSet returns which of the given IDs are blacklisted.
	BlacklistedSet(ctx context.Context, db bun.IDB, orphanIDs []string) (map[string]struct{}, error)
}
