package pbservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"

	pbdb "github.com/clearlamp/clearlamp/app/modules/pb/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/modules/score/domain/ratings"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
	"github.com/clearlamp/clearlamp/app/shared/metrics"
)

func newTestPBService(pbRepo *FakePBRepo, scoreRepo *FakeScoreRepo, chartRepo *FakeChartRepo) *PBService {
	registry := ratings.NewRegistry()
	registry.Register(shared.MakeGPT("iidx", "SP"), &fakeProvider{})
	return &PBService{
		pbRepo:    pbRepo,
		scoreRepo: scoreRepo,
		chartRepo: chartRepo,
		registry:  registry,
		logger:    slog.New(slog.NewTextHandler(os.Stdout, nil)),
		metrics:   metrics.NoOp{},
		tracer:    noop.NewTracerProvider().Tracer("test"),
	}
}

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func testScore(id shared.ScoreID, score float64, lamp shared.Lamp, lampIndex int, t *int64, calc shared.CalculatedData) scoredb.Score {
	return scoredb.Score{
		ScoreID:        id,
		UserID:         "u1",
		ChartID:        "c1",
		SongID:         "song-1",
		Game:           "iidx",
		Playtype:       "SP",
		TimeAchieved:   t,
		ScoreData:      shared.ScoreData{Score: score, Lamp: lamp, LampIndex: lampIndex},
		CalculatedData: calc,
	}
}

func TestPBService_ReconcilePB_ComposesBothAxes(t *testing.T) {
	// Three plays: the 950k play failed, the 900k play has the best lamp.
	// The PB must carry 950000 on the score axis and FULL COMBO on the lamp
	// axis, composed from both plays.
	scores := []scoredb.Score{
		testScore("S1", 800000, "CLEAR", 1, i64(1000), shared.CalculatedData{"rating": f64(5.0), "lampRating": f64(3.0)}),
		testScore("S2", 950000, "FAILED", 0, i64(2000), shared.CalculatedData{"rating": f64(9.0), "lampRating": f64(0.0)}),
		testScore("S3", 900000, "FULL COMBO", 2, i64(3000), shared.CalculatedData{"rating": f64(7.0), "lampRating": f64(8.0)}),
	}

	var upserted *pbdb.PersonalBest
	pbRepo := NewFakePBRepo()
	pbRepo.UpsertPBFunc = func(ctx context.Context, db bun.IDB, pb *pbdb.PersonalBest) error {
		upserted = pb
		return nil
	}
	scoreRepo := &FakeScoreRepo{
		GetScoresForUserChartFunc: func(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]scoredb.Score, error) {
			return scores, nil
		},
	}

	s := newTestPBService(pbRepo, scoreRepo, &FakeChartRepo{})

	pb, err := s.ReconcilePB(context.Background(), nil, "u1", "c1")
	require.NoError(t, err)
	require.NotNil(t, pb)
	require.NotNil(t, upserted)

	require.Equal(t, float64(950000), upserted.ScoreData.Score)
	require.Equal(t, shared.Lamp("FULL COMBO"), upserted.ScoreData.Lamp)
	require.Equal(t, 2, upserted.ScoreData.LampIndex)
	require.Equal(t, shared.ScoreID("S2"), upserted.ComposedFrom.ScorePB)
	require.Equal(t, shared.ScoreID("S3"), upserted.ComposedFrom.LampPB)

	// rating is maximized independently; lampRating comes from the lamp PB.
	require.NotNil(t, upserted.CalculatedData["rating"])
	require.Equal(t, 9.0, *upserted.CalculatedData["rating"])
	require.NotNil(t, upserted.CalculatedData["lampRating"])
	require.Equal(t, 8.0, *upserted.CalculatedData["lampRating"])
}

func TestPBService_ReconcilePB_SinglePlayDominatesBothAxes(t *testing.T) {
	scores := []scoredb.Score{
		testScore("S1", 900000, "CLEAR", 1, i64(1000), shared.CalculatedData{"rating": f64(5.0)}),
		testScore("S2", 950000, "FULL COMBO", 2, i64(2000), shared.CalculatedData{"rating": f64(9.0)}),
	}

	var upserted *pbdb.PersonalBest
	pbRepo := NewFakePBRepo()
	pbRepo.UpsertPBFunc = func(ctx context.Context, db bun.IDB, pb *pbdb.PersonalBest) error {
		upserted = pb
		return nil
	}
	scoreRepo := &FakeScoreRepo{
		GetScoresForUserChartFunc: func(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]scoredb.Score, error) {
			return scores, nil
		},
	}

	s := newTestPBService(pbRepo, scoreRepo, &FakeChartRepo{})

	_, err := s.ReconcilePB(context.Background(), nil, "u1", "c1")
	require.NoError(t, err)
	require.Equal(t, shared.ScoreID("S2"), upserted.ComposedFrom.ScorePB)
	require.Equal(t, shared.ScoreID("S2"), upserted.ComposedFrom.LampPB)
	require.Equal(t, shared.Lamp("FULL COMBO"), upserted.ScoreData.Lamp)
}

func TestPBService_ReconcilePB_Deterministic(t *testing.T) {
	// Same score set in any order must produce the same PB.
	scores := []scoredb.Score{
		testScore("S1", 800000, "CLEAR", 1, i64(1000), shared.CalculatedData{"rating": f64(5.0), "lampRating": f64(3.0)}),
		testScore("S2", 950000, "FAILED", 0, i64(2000), shared.CalculatedData{"rating": f64(9.0), "lampRating": f64(0.0)}),
		testScore("S3", 900000, "FULL COMBO", 2, i64(3000), shared.CalculatedData{"rating": f64(7.0), "lampRating": f64(8.0)}),
	}
	reversed := []scoredb.Score{scores[2], scores[1], scores[0]}

	run := func(set []scoredb.Score) *pbdb.PersonalBest {
		var upserted *pbdb.PersonalBest
		pbRepo := NewFakePBRepo()
		pbRepo.UpsertPBFunc = func(ctx context.Context, db bun.IDB, pb *pbdb.PersonalBest) error {
			upserted = pb
			return nil
		}
		scoreRepo := &FakeScoreRepo{
			GetScoresForUserChartFunc: func(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]scoredb.Score, error) {
				return set, nil
			},
		}
		s := newTestPBService(pbRepo, scoreRepo, &FakeChartRepo{})
		_, err := s.ReconcilePB(context.Background(), nil, "u1", "c1")
		require.NoError(t, err)
		return upserted
	}

	first := run(scores)
	second := run(reversed)
	require.Equal(t, first.ComposedFrom, second.ComposedFrom)
	require.Equal(t, first.ScoreData, second.ScoreData)
}

func TestPBService_ReconcilePB_ScoreTieBrokenByEarlierTime(t *testing.T) {
	scores := []scoredb.Score{
		testScore("S1", 900000, "CLEAR", 1, i64(5000), nil),
		testScore("S2", 900000, "CLEAR", 1, i64(1000), nil),
		testScore("S3", 900000, "CLEAR", 1, nil, nil), // no timestamp sorts last
	}

	var upserted *pbdb.PersonalBest
	pbRepo := NewFakePBRepo()
	pbRepo.UpsertPBFunc = func(ctx context.Context, db bun.IDB, pb *pbdb.PersonalBest) error {
		upserted = pb
		return nil
	}
	scoreRepo := &FakeScoreRepo{
		GetScoresForUserChartFunc: func(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]scoredb.Score, error) {
			return scores, nil
		},
	}

	s := newTestPBService(pbRepo, scoreRepo, &FakeChartRepo{})

	_, err := s.ReconcilePB(context.Background(), nil, "u1", "c1")
	require.NoError(t, err)
	require.Equal(t, shared.ScoreID("S2"), upserted.ComposedFrom.ScorePB)
}

func TestPBService_ReconcilePB_NoScoresRemovesPB(t *testing.T) {
	pbRepo := NewFakePBRepo()
	scoreRepo := &FakeScoreRepo{
		GetScoresForUserChartFunc: func(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]scoredb.Score, error) {
			return nil, nil
		},
	}

	s := newTestPBService(pbRepo, scoreRepo, &FakeChartRepo{})

	pb, err := s.ReconcilePB(context.Background(), nil, "u1", "c1")
	require.NoError(t, err)
	require.Nil(t, pb)
	require.Contains(t, pbRepo.Trace(), "DeletePB")
}

func TestPBService_ReconcileMany_IsolatesFailures(t *testing.T) {
	pbRepo := NewFakePBRepo()
	scoreRepo := &FakeScoreRepo{
		GetScoresForUserChartFunc: func(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]scoredb.Score, error) {
			if chartID == "c-bad" {
				return nil, errors.New("storage offline")
			}
			return []scoredb.Score{
				testScore("S1", 900000, "CLEAR", 1, i64(1000), shared.CalculatedData{"rating": f64(5.0)}),
			}, nil
		},
	}

	s := newTestPBService(pbRepo, scoreRepo, &FakeChartRepo{})

	report, err := s.ReconcileMany(context.Background(), nil, []shared.UserChartPair{
		{UserID: "u1", ChartID: "c1"},
		{UserID: "u1", ChartID: "c-bad"},
		{UserID: "u2", ChartID: "c1"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, report.Reconciled)
	require.Len(t, report.Failed, 1)
	require.Equal(t, shared.ChartID("c-bad"), report.Failed[0].Pair.ChartID)
	require.Empty(t, report.RankingFailed)
}

func TestPBService_ReconcileMany_ReportsRankingFailuresSeparately(t *testing.T) {
	// The pair upsert succeeds but the ranking refresh does not: the report
	// must carry a chart-level failure, not a pair failure with no user.
	pbRepo := NewFakePBRepo()
	pbRepo.GetPBsForChartFunc = func(ctx context.Context, db bun.IDB, chartID shared.ChartID) ([]pbdb.PersonalBest, error) {
		return nil, errors.New("ranking query failed")
	}
	scoreRepo := &FakeScoreRepo{
		GetScoresForUserChartFunc: func(ctx context.Context, db bun.IDB, userID shared.UserID, chartID shared.ChartID) ([]scoredb.Score, error) {
			return []scoredb.Score{
				testScore("S1", 900000, "CLEAR", 1, i64(1000), shared.CalculatedData{"rating": f64(5.0)}),
			}, nil
		},
	}

	s := newTestPBService(pbRepo, scoreRepo, &FakeChartRepo{})

	report, err := s.ReconcileMany(context.Background(), nil, []shared.UserChartPair{
		{UserID: "u1", ChartID: "c1"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.Reconciled)
	require.Empty(t, report.Failed)
	require.Len(t, report.RankingFailed, 1)
	require.Equal(t, shared.ChartID("c1"), report.RankingFailed[0].ChartID)
	require.Contains(t, report.RankingFailed[0].Reason, "ranking query failed")
}
