package chartdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// ChartDBImpl handles database operations for charts.
type ChartDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*ChartDBImpl)(nil)

func (r *ChartDBImpl) idb(db bun.IDB) bun.IDB {
	if db != nil {
		return db
	}
	return r.DB
}

func (r *ChartDBImpl) GetChart(ctx context.Context, db bun.IDB, chartID shared.ChartID) (*Chart, error) {
	chart := new(Chart)
	err := r.idb(db).NewSelect().
		Model(chart).
		Where("chart_id = ?", chartID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChartNotFound
		}
		return nil, fmt.Errorf("failed to fetch chart %s: %w", chartID, err)
	}
	return chart, nil
}

func (r *ChartDBImpl) ResolveRefs(ctx context.Context, db bun.IDB, refs []shared.ChartRef) (map[string]*Chart, error) {
	resolved := make(map[string]*Chart, len(refs))
	if len(refs) == 0 {
		return resolved, nil
	}

	var ids []shared.ChartID
	type hashKey struct {
		game     shared.Game
		playtype shared.Playtype
		hash     string
	}
	hashKeys := make(map[hashKey]struct{})

	for _, ref := range refs {
		if ref.ID != "" {
			ids = append(ids, ref.ID)
			continue
		}
		if ref.Hash != "" {
			hashKeys[hashKey{ref.Game, ref.Playtype, ref.Hash}] = struct{}{}
		}
	}

	if len(ids) > 0 {
		var charts []Chart
		err := r.idb(db).NewSelect().
			Model(&charts).
			Where("chart_id IN (?)", bun.In(ids)).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve charts by id: %w", err)
		}
		for i := range charts {
			c := &charts[i]
			resolved["id:"+string(c.ChartID)] = c
		}
	}

	if len(hashKeys) > 0 {
		var hashes []string
		for k := range hashKeys {
			hashes = append(hashes, k.hash)
		}
		var charts []Chart
		err := r.idb(db).NewSelect().
			Model(&charts).
			Where("hash IN (?)", bun.In(hashes)).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve charts by hash: %w", err)
		}
		for i := range charts {
			c := &charts[i]
			if _, wanted := hashKeys[hashKey{c.Game, c.Playtype, c.Hash}]; wanted {
				key := shared.ChartRef{Hash: c.Hash, Game: c.Game, Playtype: c.Playtype}.Key()
				resolved[key] = c
			}
		}
	}

	return resolved, nil
}

func (r *ChartDBImpl) UpsertCharts(ctx context.Context, db bun.IDB, charts []Chart) error {
	if len(charts) == 0 {
		return nil
	}
	_, err := r.idb(db).NewInsert().
		Model(&charts).
		On("CONFLICT (chart_id) DO UPDATE").
		Set("song_id = EXCLUDED.song_id").
		Set("level = EXCLUDED.level").
		Set("is_primary = EXCLUDED.is_primary").
		Set("hash = EXCLUDED.hash").
		Set("default_rating_key = EXCLUDED.default_rating_key").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert %d charts: %w", len(charts), err)
	}
	return nil
}
