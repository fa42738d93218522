package orphandb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

// OrphanDBImpl handles database operations for orphan scores.
type OrphanDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*OrphanDBImpl)(nil)

func (r *OrphanDBImpl) idb(db bun.IDB) bun.IDB {
	if db != nil {
		return db
	}
	return r.DB
}

func (r *OrphanDBImpl) UpsertOrphan(ctx context.Context, db bun.IDB, orphan *OrphanScore) error {
	_, err := r.idb(db).NewInsert().
		Model(orphan).
		On("CONFLICT (orphan_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert orphan %s: %w", orphan.OrphanID, err)
	}
	return nil
}

func (r *OrphanDBImpl) GetOrphan(ctx context.Context, db bun.IDB, orphanID string) (*OrphanScore, error) {
	orphan := new(OrphanScore)
	err := r.idb(db).NewSelect().
		Model(orphan).
		Where("orphan_id = ?", orphanID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrphanNotFound
		}
		return nil, fmt.Errorf("failed to fetch orphan %s: %w", orphanID, err)
	}
	return orphan, nil
}

func (r *OrphanDBImpl) IterateOrphans(ctx context.Context, db bun.IDB, cursor string, limit int) ([]OrphanScore, error) {
	var orphans []OrphanScore
	q := r.idb(db).NewSelect().
		Model(&orphans).
		Order("orphan_id ASC").
		Limit(limit)
	if cursor != "" {
		q = q.Where("orphan_id > ?", cursor)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to iterate orphans after %q: %w", cursor, err)
	}
	return orphans, nil
}

func (r *OrphanDBImpl) DeleteOrphan(ctx context.Context, db bun.IDB, orphanID string) error {
	_, err := r.idb(db).NewDelete().
		Model((*OrphanScore)(nil)).
		Where("orphan_id = ?", orphanID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete orphan %s: %w", orphanID, err)
	}
	return nil
}

func (r *OrphanDBImpl) RecordAttempts(ctx context.Context, db bun.IDB, orphanIDs []string, at int64) error {
	if len(orphanIDs) == 0 {
		return nil
	}
	_, err := r.idb(db).NewUpdate().
		Model((*OrphanScore)(nil)).
		Set("failed_attempts = failed_attempts + 1").
		Set("last_attempt = ?", at).
		Where("orphan_id IN (?)", bun.In(orphanIDs)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record attempts on %d orphans: %w", len(orphanIDs), err)
	}
	return nil
}

func (r *OrphanDBImpl) AddToBlacklist(ctx context.Context, db bun.IDB, entry *BlacklistedOrphan) error {
	_, err := r.idb(db).NewInsert().
		Model(entry).
		On("CONFLICT (orphan_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to blacklist orphan %s: %w", entry.OrphanID, err)
	}
	return nil
}

func (r *OrphanDBImpl) BlacklistedSet(ctx context.Context, db bun.IDB, orphanIDs []string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if len(orphanIDs) == 0 {
		return set, nil
	}
	var rows []BlacklistedOrphan
	err := r.idb(db).NewSelect().
		Model(&rows).
		Column("orphan_id").
		Where("orphan_id IN (?)", bun.In(orphanIDs)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blacklist subset: %w", err)
	}
	for _, row := range rows {
		set[row.OrphanID] = struct{}{}
	}
	return set, nil
}
