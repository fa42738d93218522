package importservice

import (
	"context"

	importdb "github.com/clearlamp/clearlamp/app/modules/importer/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// Service orchestrates full ingestion runs and the write paths that must
// keep scores, personal bests, and sessions consistent with each other.
type Service interface {
	// ProcessImport runs one ingestion end to end and returns the finalized
	// Import record. Individual entry failures never fail the run; they are
	// itemized on the record.
	ProcessImport(ctx context.Context, doc shared.ImportDocument) (*importdb.Import, error)

	// DeleteScore removes a score and re-reconciles the personal best and
	// session that referenced it, atomically.
	DeleteScore(ctx context.Context, scoreID shared.ScoreID) error

	GetImport(ctx context.Context, importID shared.ImportID) (*importdb.Import, error)
	GetImportsForUser(ctx context.Context, userID shared.UserID, limit int) ([]importdb.Import, error)
}
