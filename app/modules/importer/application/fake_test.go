package importservice

import (
	"context"

	"github.com/uptrace/bun"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"

	scoreservice "github.com/clearlamp/clearlamp/app/modules/score/application"
)

// ------------------------
// Fake Score Service
// ------------------------

type FakeScoreService struct {
	CanonicalizeEntryFunc func(ctx context.Context, meta scoreservice.EntryMeta, entry shared.ImportEntry, chart *chartdb.Chart) (*scoredb.Score, error)
	PersistScoresFunc     func(ctx context.Context, db bun.IDB, scores []*scoredb.Score) ([]shared.ScoreID, error)
}

func (f *FakeScoreService) CanonicalizeEntry(ctx context.Context, meta scoreservice.EntryMeta, entry shared.ImportEntry, chart *chartdb.Chart) (*scoredb.Score, error) {
	if f.CanonicalizeEntryFunc != nil {
		return f.CanonicalizeEntryFunc(ctx, meta, entry, chart)
	}
	return &scoredb.Score{
		ScoreID:      shared.DeriveScoreID(meta.UserID, chart.ChartID, entry.Score, entry.Lamp, entry.TimeAchieved),
		UserID:       meta.UserID,
		ChartID:      chart.ChartID,
		Game:         chart.Game,
		Playtype:     chart.Playtype,
		TimeAchieved: entry.TimeAchieved,
		ScoreData:    shared.ScoreData{Score: entry.Score, Lamp: entry.Lamp},
	}, nil
}

func (f *FakeScoreService) PersistScores(ctx context.Context, db bun.IDB, scores []*scoredb.Score) ([]shared.ScoreID, error) {
	if f.PersistScoresFunc != nil {
		return f.PersistScoresFunc(ctx, db, scores)
	}
	ids := make([]shared.ScoreID, 0, len(scores))
	for _, sc := range scores {
		ids = append(ids, sc.ScoreID)
	}
	return ids, nil
}

func (f *FakeScoreService) SetHighlight(ctx context.Context, scoreID shared.ScoreID, highlight bool) error {
	return nil
}

func (f *FakeScoreService) RemoveScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*scoredb.Score, error) {
	return nil, scoredb.ErrScoreNotFound
}

var _ scoreservice.Service = (*FakeScoreService)(nil)

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
