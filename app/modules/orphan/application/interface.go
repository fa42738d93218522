package orphanservice

import (
	"context"

	"github.com/uptrace/bun"

	scoreservice "github.com/clearlamp/clearlamp/app/modules/score/application"
	"github.com/clearlamp/clearlamp/app/shared"
)

// Service owns the orphan lifecycle: pending until the chart appears, then
// resolved into a real score; or removed by explicit blacklist. Nothing else
// ever deletes an orphan.
type Service interface {
	// CreateOrphan stores an unresolvable entry for later retry. Duplicate
	// content is collapsed into the existing orphan.
	CreateOrphan(ctx context.Context, db bun.IDB, meta scoreservice.EntryMeta, game shared.Game, playtype shared.Playtype, entry shared.ImportEntry) (string, error)

	// ResolveAll processes every pending orphan against the current chart
	// set and blacklist. Safe to run repeatedly and concurrently with new
	// imports: resolving an orphan twice is a no-op because the orphan is
	// deleted on first success.
	ResolveAll(ctx context.Context) (Report, error)

	// Blacklist permanently rejects an orphan. The ID stays blacklisted so
	// re-importing the same content cannot resurrect it.
	Blacklist(ctx context.Context, orphanID, reason string) error
}

// Report summarizes one resolution pass.
type Report struct {
	Resolved int
	Pending  int
	Removed  int
	Failed   int
}
