package importdb

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// Repository is the persistence contract for import records.
type Repository interface {
	InsertImport(ctx context.Context, db bun.IDB, imp *Import) error
	GetImport(ctx context.Context, db bun.IDB, importID shared.ImportID) (*Import, error)
	// FinalizeImport writes the run's outcome fields in one statement.
	FinalizeImport(ctx context.Context, db bun.IDB, imp *Import) error
	// GetImportsForUser returns a user's imports, most recent first.
	GetImportsForUser(ctx context.Context, db bun.IDB, userID shared.UserID, limit int) ([]Import, error)
}
