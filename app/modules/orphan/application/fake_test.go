package orphanservice

import (
	"context"

	"github.com/uptrace/bun"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	orphandb "github.com/clearlamp/clearlamp/app/modules/orphan/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// ------------------------
// Fake Orphan Repo
// ------------------------

type FakeOrphanRepo struct {
	trace []string

	UpsertOrphanFunc   func(ctx context.Context, db bun.IDB, orphan *orphandb.OrphanScore) error
	GetOrphanFunc      func(ctx context.Context, db bun.IDB, orphanID string) (*orphandb.OrphanScore, error)
	IterateOrphansFunc func(ctx context.Context, db bun.IDB, cursor string, limit int) ([]orphandb.OrphanScore, error)
	DeleteOrphanFunc   func(ctx context.Context, db bun.IDB, orphanID string) error
	RecordAttemptsFunc func(ctx context.Context, db bun.IDB, orphanIDs []string, at int64) error
	AddToBlacklistFunc func(ctx context.Context, db bun.IDB, entry *orphandb.BlacklistedOrphan) error
	BlacklistedSetFunc func(ctx context.Context, db bun.IDB, orphanIDs []string) (map[string]struct{}, error)
}

func NewFakeOrphanRepo() *FakeOrphanRepo {
	return &FakeOrphanRepo{trace: []string{}}
}

func (f *FakeOrphanRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeOrphanRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeOrphanRepo) UpsertOrphan(ctx context.Context, db bun.IDB, orphan *orphandb.OrphanScore) error {
	f.record("UpsertOrphan")
	if f.UpsertOrphanFunc != nil {
		return f.UpsertOrphanFunc(ctx, db, orphan)
	}
	return nil
}

func (f *FakeOrphanRepo) GetOrphan(ctx context.Context, db bun.IDB, orphanID string) (*orphandb.OrphanScore, error) {
	f.record("GetOrphan")
	if f.GetOrphanFunc != nil {
		return f.GetOrphanFunc(ctx, db, orphanID)
	}
	return nil, orphandb.ErrOrphanNotFound
}

func (f *FakeOrphanRepo) IterateOrphans(ctx context.Context, db bun.IDB, cursor string, limit int) ([]orphandb.OrphanScore, error) {
	f.record("IterateOrphans")
	if f.IterateOrphansFunc != nil {
		return f.IterateOrphansFunc(ctx, db, cursor, limit)
	}
	return nil, nil
}

func (f *FakeOrphanRepo) DeleteOrphan(ctx context.Context, db bun.IDB, orphanID string) error {
	f.record("DeleteOrphan")
	if f.DeleteOrphanFunc != nil {
		return f.DeleteOrphanFunc(ctx, db, orphanID)
	}
	return nil
}

func (f *FakeOrphanRepo) RecordAttempts(ctx context.Context, db bun.IDB, orphanIDs []string, at int64) error {
	f.record("RecordAttempts")
	if f.RecordAttemptsFunc != nil {
		return f.RecordAttemptsFunc(ctx, db, orphanIDs, at)
	}
	return nil
}

func (f *FakeOrphanRepo) AddToBlacklist(ctx context.Context, db bun.IDB, entry *orphandb.BlacklistedOrphan) error {
	f.record("AddToBlacklist")
	if f.AddToBlacklistFunc != nil {
		return f.AddToBlacklistFunc(ctx, db, entry)
	}
	return nil
}

func (f *FakeOrphanRepo) BlacklistedSet(ctx context.Context, db bun.IDB, orphanIDs []string) (map[string]struct{}, error) {
	f.record("BlacklistedSet")
	if f.BlacklistedSetFunc != nil {
		return f.BlacklistedSetFunc(ctx, db, orphanIDs)
	}
	return map[string]struct{}{}, nil
}

var _ orphandb.Repository = (*FakeOrphanRepo)(nil)

// ------------------------
// Fake Chart Repo
// ------------------------

type FakeChartRepo struct {
	ResolveRefsFunc func(ctx context.Context, db bun.IDB, refs []shared.ChartRef) (map[string]*chartdb.Chart, error)
}

func (f *FakeChartRepo) GetChart(ctx context.Context, db bun.IDB, chartID shared.ChartID) (*chartdb.Chart, error) {
	return nil, chartdb.ErrChartNotFound
}

func (f *FakeChartRepo) ResolveRefs(ctx context.Context, db bun.IDB, refs []shared.ChartRef) (map[string]*chartdb.Chart, error) {
	if f.ResolveRefsFunc != nil {
		return f.ResolveRefsFunc(ctx, db, refs)
	}
	return map[string]*chartdb.Chart{}, nil
}

func (f *FakeChartRepo) UpsertCharts(ctx context.Context, db bun.IDB, charts []chartdb.Chart) error {
	return nil
}

var _ chartdb.Repository = (*FakeChartRepo)(nil)
