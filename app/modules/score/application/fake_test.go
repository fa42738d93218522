package scoreservice

import (
	"context"

	"github.com/uptrace/bun"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/modules/score/domain/ratings"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// ------------------------
// Fake Score Repo
// ------------------------

type FakeScoreRepo struct {
	trace []string

	InsertScoresFunc func(ctx context.Context, db bun.IDB, scores []scoredb.Score) ([]shared.ScoreID, error)
	GetScoreFunc     func(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*scoredb.Score, error)
	DeleteScoreFunc  func(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) error
	SetHighlightFunc func(ctx context.Context, db bun.IDB, scoreID shared.ScoreID, highlight bool) error
}

func NewFakeScoreRepo() *FakeScoreRepo {
	return &FakeScoreRepo{trace: []string{}}
}

func (f *FakeScoreRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeScoreRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeScoreRepo) InsertScores(ctx context.Context, db bun.IDB, scores []scoredb.Score) ([]shared.ScoreID, error) {
	f.record("InsertScores")
	if f.InsertScoresFunc != nil {
		return f.InsertScoresFunc(ctx, db, scores)
	}
	ids := make([]shared.ScoreID, 0, len(scores))
	for i := range scores {
		ids = append(ids, scores[i].ScoreID)
	}
	return ids, nil
}

func (f *FakeScoreRepo) GetScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*scoredb.Score, error) {
	f.record("GetScore")
	if f.GetScoreFunc != nil {
		return f.GetScoreFunc(ctx, db, scoreID)
	}
	return nil, scoredb.ErrScoreNotFound
}

func (f *FakeScoreRepo) GetScoresByIDs(ctx context.Context, db bun.IDB, ids []shared.ScoreID) ([]scoredb.Score, error) {
	f.record("GetScoresByIDs")
	return nil, nil
}

func (f *FakeScoreRepo) GetScoresForUserChart(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]scoredb.Score, error) {
	f.record("GetScoresForUserChart")
	return nil, nil
}

func (f *FakeScoreRepo) DeleteScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) error {
	f.record("DeleteScore")
	if f.DeleteScoreFunc != nil {
		return f.DeleteScoreFunc(ctx, db, scoreID)
	}
	return nil
}

func (f *FakeScoreRepo) SetHighlight(ctx context.Context, db bun.IDB, scoreID shared.ScoreID, highlight bool) error {
	f.record("SetHighlight")
	if f.SetHighlightFunc != nil {
		return f.SetHighlightFunc(ctx, db, scoreID, highlight)
	}
	return nil
}

func (f *FakeScoreRepo) GetLampBests(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) ([]scoredb.Score, error) {
	f.record("GetLampBests")
	return nil, nil
}

func (f *FakeScoreRepo) IterateScores(ctx context.Context, db bun.IDB, cursor shared.ScoreID, limit int) ([]scoredb.Score, error) {
	f.record("IterateScores")
	return nil, nil
}

func (f *FakeScoreRepo) BulkUpdateCalculatedData(ctx context.Context, db bun.IDB, updates map[shared.ScoreID]shared.CalculatedData) error {
	f.record("BulkUpdateCalculatedData")
	return nil
}

var _ scoredb.Repository = (*FakeScoreRepo)(nil)

// ------------------------
// Fake Rating Provider
// ------------------------

type fakeProvider struct {
	EvaluateFunc func(chart *chartdb.Chart, draft ratings.Draft) (ratings.Derived, error)
}

func (p *fakeProvider) Evaluate(chart *chartdb.Chart, draft ratings.Draft) (ratings.Derived, error) {
	if p.EvaluateFunc != nil {
		return p.EvaluateFunc(chart, draft)
	}
	return ratings.Derived{
		Grade:      "A",
		GradeIndex: 5,
		LampIndex:  1,
		Calculated: shared.CalculatedData{"rating": ptr(5.0)},
	}, nil
}

func (p *fakeProvider) LampOnlyKeys() []string {
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

func ptr(v float64) *float64 { return &v }
