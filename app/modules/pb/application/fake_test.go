package pbservice

import (
	"context"

	"github.com/uptrace/bun"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	pbdb "github.com/clearlamp/clearlamp/app/modules/pb/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/modules/score/domain/ratings"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// ------------------------
// Fake PB Repo
// ------------------------

type FakePBRepo struct {
	trace []string

	GetPBFunc             func(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) (*pbdb.PersonalBest, error)
	GetPBsForChartFunc    func(ctx context.Context, db bun.IDB, chartID shared.ChartID) ([]pbdb.PersonalBest, error)
	GetPBsForPairsFunc    func(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) ([]pbdb.PersonalBest, error)
	UpsertPBFunc          func(ctx context.Context, db bun.IDB, pb *pbdb.PersonalBest) error
	DeletePBFunc          func(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) error
	BulkUpdateRankingFunc func(ctx context.Context, db bun.IDB, chartID shared.ChartID, rankings map[shared.UserID]shared.RankingData) error
	BulkPatchLampsFunc    func(ctx context.Context, db bun.IDB, patches []pbdb.PersonalBest) error
}

func NewFakePBRepo() *FakePBRepo {
	return &FakePBRepo{trace: []string{}}
}

func (f *FakePBRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakePBRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakePBRepo) GetPB(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) (*pbdb.PersonalBest, error) {
	f.record("GetPB")
	if f.GetPBFunc != nil {
		return f.GetPBFunc(ctx, db, userID, chartID)
	}
	return nil, pbdb.ErrPBNotFound
}

func (f *FakePBRepo) GetPBsForChart(ctx context.Context, db bun.IDB, chartID shared.ChartID) ([]pbdb.PersonalBest, error) {
	f.record("GetPBsForChart")
	if f.GetPBsForChartFunc != nil {
		return f.GetPBsForChartFunc(ctx, db, chartID)
	}
	return nil, nil
}

func (f *FakePBRepo) GetPBsForPairs(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) ([]pbdb.PersonalBest, error) {
	f.record("GetPBsForPairs")
	if f.GetPBsForPairsFunc != nil {
		return f.GetPBsForPairsFunc(ctx, db, pairs)
	}
	return nil, nil
}

func (f *FakePBRepo) UpsertPB(ctx context.Context, db bun.IDB, pb *pbdb.PersonalBest) error {
	f.record("UpsertPB")
	if f.UpsertPBFunc != nil {
		return f.UpsertPBFunc(ctx, db, pb)
	}
	return nil
}

func (f *FakePBRepo) DeletePB(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) error {
	f.record("DeletePB")
	if f.DeletePBFunc != nil {
		return f.DeletePBFunc(ctx, db, userID, chartID)
	}
	return nil
}

func (f *FakePBRepo) BulkUpdateRanking(ctx context.Context, db bun.IDB, chartID shared.ChartID, rankings map[shared.UserID]shared.RankingData) error {
	f.record("BulkUpdateRanking")
	if f.BulkUpdateRankingFunc != nil {
		return f.BulkUpdateRankingFunc(ctx, db, chartID, rankings)
	}
	return nil
}

func (f *FakePBRepo) BulkPatchLamps(ctx context.Context, db bun.IDB, patches []pbdb.PersonalBest) error {
	f.record("BulkPatchLamps")
	if f.BulkPatchLampsFunc != nil {
		return f.BulkPatchLampsFunc(ctx, db, patches)
	}
	return nil
}

var _ pbdb.Repository = (*FakePBRepo)(nil)

// ------------------------
// Fake Score Repo
// ------------------------

type FakeScoreRepo struct {
	GetScoresForUserChartFunc    func(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]scoredb.Score, error)
	GetLampBestsFunc             func(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) ([]scoredb.Score, error)
	IterateScoresFunc            func(ctx context.Context, db bun.IDB, cursor shared.ScoreID, limit int) ([]scoredb.Score, error)
	BulkUpdateCalculatedDataFunc func(ctx context.Context, db bun.IDB, updates map[shared.ScoreID]shared.CalculatedData) error
}

func (f *FakeScoreRepo) InsertScores(ctx context.Context, db bun.IDB, scores []scoredb.Score) ([]shared.ScoreID, error) {
	return nil, nil
}

func (f *FakeScoreRepo) GetScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*scoredb.Score, error) {
	return nil, scoredb.ErrScoreNotFound
}

func (f *FakeScoreRepo) GetScoresByIDs(ctx context.Context, db bun.IDB, ids []shared.ScoreID) ([]scoredb.Score, error) {
	return nil, nil
}

func (f *FakeScoreRepo) GetScoresForUserChart(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]scoredb.Score, error) {
	if f.GetScoresForUserChartFunc != nil {
		return f.GetScoresForUserChartFunc(ctx, db, userID, chartID)
	}
	return nil, nil
}

func (f *FakeScoreRepo) DeleteScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) error {
	return nil
}

func (f *FakeScoreRepo) SetHighlight(ctx context.Context, db bun.IDB, scoreID shared.ScoreID, highlight bool) error {
	return nil
}

func (f *FakeScoreRepo) GetLampBests(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) ([]scoredb.Score, error) {
	if f.GetLampBestsFunc != nil {
		return f.GetLampBestsFunc(ctx, db, pairs)
	}
	return nil, nil
}

func (f *FakeScoreRepo) IterateScores(ctx context.Context, db bun.IDB, cursor shared.ScoreID, limit int) ([]scoredb.Score, error) {
	if f.IterateScoresFunc != nil {
		return f.IterateScoresFunc(ctx, db, cursor, limit)
	}
	return nil, nil
}

func (f *FakeScoreRepo) BulkUpdateCalculatedData(ctx context.Context, db bun.IDB, updates map[shared.ScoreID]shared.CalculatedData) error {
	if f.BulkUpdateCalculatedDataFunc != nil {
		return f.BulkUpdateCalculatedDataFunc(ctx, db, updates)
	}
	return nil
}

var _ scoredb.Repository = (*FakeScoreRepo)(nil)

// ------------------------
// Fake Chart Repo
// ------------------------

type FakeChartRepo struct {
	GetChartFunc    func(ctx context.Context, db bun.IDB, chartID shared.ChartID) (*chartdb.Chart, error)
	ResolveRefsFunc func(ctx context.Context, db bun.IDB, refs []shared.ChartRef) (map[string]*chartdb.Chart, error)
}

func (f *FakeChartRepo) GetChart(ctx context.Context, db bun.IDB, chartID shared.ChartID) (*chartdb.Chart, error) {
	if f.GetChartFunc != nil {
		return f.GetChartFunc(ctx, db, chartID)
	}
	return &chartdb.Chart{
		ChartID:          chartID,
		SongID:           "song-1",
		Game:             "iidx",
		Playtype:         "SP",
		DefaultRatingKey: "rating",
	}, nil
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

// ------------------------
// Fake Rating Provider
// ------------------------

type fakeProvider struct {
	lampOnly     []string
	EvaluateFunc func(chart *chartdb.Chart, draft ratings.Draft) (ratings.Derived, error)
}

func (p *fakeProvider) Evaluate(chart *chartdb.Chart, draft ratings.Draft) (ratings.Derived, error) {
	if p.EvaluateFunc != nil {
		return p.EvaluateFunc(chart, draft)
	}
	return ratings.Derived{}, nil
}

func (p *fakeProvider) LampOnlyKeys() []string {
	if p.lampOnly != nil {
		return p.lampOnly
	}
	return []string{"lampRating"}
}

func (p *fakeProvider) LampIndex(lamp shared.Lamp) int {
	switch lamp {
	case "FAILED":
		return 0
	case "CLEAR":
		return 1
	case "FULL COMBO":
		return 2
	default:
		return -1
	}
}

var _ ratings.Provider = (*fakeProvider)(nil)
