package importdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// ImportDBImpl handles database operations for import records.
type ImportDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*ImportDBImpl)(nil)

func (r *ImportDBImpl) idb(db bun.IDB) bun.IDB {
	if db != nil {
		return db
	}
	return r.DB
}

func (r *ImportDBImpl) InsertImport(ctx context.Context, db bun.IDB, imp *Import) error {
	_, err := r.idb(db).NewInsert().
		Model(imp).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert import %s: %w", imp.ImportID, err)
	}
	return nil
}

func (r *ImportDBImpl) GetImport(ctx context.Context, db bun.IDB, importID shared.ImportID) (*Import, error) {
	imp := new(Import)
	err := r.idb(db).NewSelect().
		Model(imp).
		Where("import_id = ?", importID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImportNotFound
		}
		return nil, fmt.Errorf("failed to fetch import %s: %w", importID, err)
	}
	return imp, nil
}

func (r *ImportDBImpl) FinalizeImport(ctx context.Context, db bun.IDB, imp *Import) error {
	res, err := r.idb(db).NewUpdate().
		Model(imp).
		Column("time_finished", "score_ids", "created_sessions", "errors", "orphan_count").
		Where("import_id = ?", imp.ImportID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to finalize import %s: %w", imp.ImportID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrImportNotFound
	}
	return nil
}

func (r *ImportDBImpl) GetImportsForUser(ctx context.Context, db bun.IDB, userID shared.UserID, limit int) ([]Import, error) {
	var imports []Import
	q := r.idb(db).NewSelect().
		Model(&imports).
		Where("user_id = ?", userID).
		Order("time_started DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch imports for user %s: %w", userID, err)
	}
	return imports, nil
}
