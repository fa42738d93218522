package scoreservice

import (
	"context"

	"github.com/uptrace/bun"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// Service is the canonicalization surface consumed by the importer and the
// orphan resolver.
type Service interface {
	// CanonicalizeEntry converts one resolved import entry into a fully
	// populated score. It never persists anything.
	CanonicalizeEntry(ctx context.Context, meta EntryMeta, entry shared.ImportEntry, chart *chartdb.Chart) (*scoredb.Score, error)

	// PersistScores inserts scores idempotently and returns the IDs that
	// were new this time.
	PersistScores(ctx context.Context, db bun.IDB, scores []*scoredb.Score) ([]shared.ScoreID, error)

	// SetHighlight toggles the user-curated highlight flag on a score.
	SetHighlight(ctx context.Context, scoreID shared.ScoreID, highlight bool) error

	// RemoveScore deletes a score row and returns the deleted document so
	// callers can re-reconcile what referenced it.
	RemoveScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*scoredb.Score, error)
}

// EntryMeta is the per-document context shared by every entry in an import.
type EntryMeta struct {
	UserID     shared.UserID
	Service    string
	ImportType string
}
