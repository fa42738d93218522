package sessionservice

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	sessiondb "github.com/clearlamp/clearlamp/app/modules/session/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// ------------------------
// Fake Session Repo
// ------------------------

type FakeSessionRepo struct {
	trace []string

	GetSessionFunc           func(ctx context.Context, db bun.IDB, sessionID shared.SessionID) (*sessiondb.Session, error)
	FindOpenSessionFunc      func(ctx context.Context, db bun.IDB, userID shared.UserID, game shared.Game, playtype shared.Playtype, t int64, gap time.Duration) (*sessiondb.Session, error)
	FindSessionWithScoreFunc func(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*sessiondb.Session, error)
	InsertSessionFunc        func(ctx context.Context, db bun.IDB, session *sessiondb.Session) error
	UpdateSessionFunc        func(ctx context.Context, db bun.IDB, session *sessiondb.Session) error
	DeleteSessionFunc        func(ctx context.Context, db bun.IDB, sessionID shared.SessionID) error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{trace: []string{}}
}

func (f *FakeSessionRepo) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeSessionRepo) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeSessionRepo) GetSession(ctx context.Context, db bun.IDB, sessionID shared.SessionID) (*sessiondb.Session, error) {
	f.record("GetSession")
	if f.GetSessionFunc != nil {
		return f.GetSessionFunc(ctx, db, sessionID)
	}
	return nil, sessiondb.ErrSessionNotFound
}

func (f *FakeSessionRepo) FindOpenSession(ctx context.Context, db bun.IDB, userID shared.UserID, game shared.Game, playtype shared.Playtype, t int64, gap time.Duration) (*sessiondb.Session, error) {
	f.record("FindOpenSession")
	if f.FindOpenSessionFunc != nil {
		return f.FindOpenSessionFunc(ctx, db, userID, game, playtype, t, gap)
	}
	return nil, sessiondb.ErrSessionNotFound
}

func (f *FakeSessionRepo) FindSessionWithScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*sessiondb.Session, error) {
	f.record("FindSessionWithScore")
	if f.FindSessionWithScoreFunc != nil {
		return f.FindSessionWithScoreFunc(ctx, db, scoreID)
	}
	return nil, sessiondb.ErrSessionNotFound
}

func (f *FakeSessionRepo) InsertSession(ctx context.Context, db bun.IDB, session *sessiondb.Session) error {
	f.record("InsertSession")
	if f.InsertSessionFunc != nil {
		return f.InsertSessionFunc(ctx, db, session)
	}
	return nil
}

func (f *FakeSessionRepo) UpdateSession(ctx context.Context, db bun.IDB, session *sessiondb.Session) error {
	f.record("UpdateSession")
	if f.UpdateSessionFunc != nil {
		return f.UpdateSessionFunc(ctx, db, session)
	}
	return nil
}

func (f *FakeSessionRepo) DeleteSession(ctx context.Context, db bun.IDB, sessionID shared.SessionID) error {
	f.record("DeleteSession")
	if f.DeleteSessionFunc != nil {
		return f.DeleteSessionFunc(ctx, db, sessionID)
	}
	return nil
}

var _ sessiondb.Repository = (*FakeSessionRepo)(nil)

// ------------------------
// Fake Score Repo (session view)
// ------------------------

type FakeScoreRepo struct {
	GetScoresByIDsFunc func(ctx context.Context, db bun.IDB, ids []shared.ScoreID) ([]scoredb.Score, error)
}

func (f *FakeScoreRepo) InsertScores(ctx context.Context, db bun.IDB, scores []scoredb.Score) ([]shared.ScoreID, error) {
	return nil, nil
}

func (f *FakeScoreRepo) GetScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*scoredb.Score, error) {
	return nil, scoredb.ErrScoreNotFound
}

func (f *FakeScoreRepo) GetScoresByIDs(ctx context.Context, db bun.IDB, ids []shared.ScoreID) ([]scoredb.Score, error) {
	if f.GetScoresByIDsFunc != nil {
		return f.GetScoresByIDsFunc(ctx, db, ids)
	}
	return nil, nil
}

func (f *FakeScoreRepo) GetScoresForUserChart(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]scoredb.Score, error) {
	return nil, nil
}

func (f *FakeScoreRepo) DeleteScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) error {
	return nil
}

func (f *FakeScoreRepo) SetHighlight(ctx context.Context, db bun.IDB, scoreID shared.ScoreID, highlight bool) error {
	return nil
}

func (f *FakeScoreRepo) GetLampBests(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) ([]scoredb.Score, error) {
	return nil, nil
}

func (f *FakeScoreRepo) IterateScores(ctx context.Context, db bun.IDB, cursor shared.ScoreID, limit int) ([]scoredb.Score, error) {
	return nil, nil
}

func (f *FakeScoreRepo) BulkUpdateCalculatedData(ctx context.Context, db bun.IDB, updates map[shared.ScoreID]shared.CalculatedData) error {
	return nil
}

var _ scoredb.Repository = (*FakeScoreRepo)(nil)
