package pbservice

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	pbdb "github.com/clearlamp/clearlamp/app/modules/pb/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

func rankedPB(userID shared.UserID, rating *float64) pbdb.PersonalBest {
	return pbdb.PersonalBest{
		UserID:         userID,
		ChartID:        "c1",
		CalculatedData: shared.CalculatedData{"rating": rating},
	}
}

func TestRankPBs_DenseRanking(t *testing.T) {
	pbs := []pbdb.PersonalBest{
		rankedPB("u1", f64(9.0)),
		rankedPB("u2", f64(9.0)),
		rankedPB("u3", f64(7.5)),
		rankedPB("u4", f64(7.5)),
		rankedPB("u5", f64(3.0)),
	}

	rankings := rankPBs(pbs, "rating")

	// Ties share a rank; the next distinct value takes the next integer.
	require.Equal(t, shared.RankingData{Rank: 1, OutOf: 5}, rankings["u1"])
	require.Equal(t, shared.RankingData{Rank: 1, OutOf: 5}, rankings["u2"])
	require.Equal(t, shared.RankingData{Rank: 2, OutOf: 5}, rankings["u3"])
	require.Equal(t, shared.RankingData{Rank: 2, OutOf: 5}, rankings["u4"])
	require.Equal(t, shared.RankingData{Rank: 3, OutOf: 5}, rankings["u5"])
}

func TestRankPBs_NullsRankLast(t *testing.T) {
	pbs := []pbdb.PersonalBest{
		rankedPB("u1", f64(9.0)),
		rankedPB("u2", nil),
		rankedPB("u3", f64(5.0)),
		rankedPB("u4", nil),
	}

	rankings := rankPBs(pbs, "rating")

	require.Equal(t, 1, rankings["u1"].Rank)
	require.Equal(t, 2, rankings["u3"].Rank)
	// Null-rated PBs share the bucket after the last ranked value but still
	// count toward outOf.
	require.Equal(t, 3, rankings["u2"].Rank)
	require.Equal(t, 3, rankings["u4"].Rank)
	for _, u := range []shared.UserID{"u1", "u2", "u3", "u4"} {
		require.Equal(t, 4, rankings[u].OutOf)
	}
}

func TestRankPBs_AllNull(t *testing.T) {
	pbs := []pbdb.PersonalBest{
		rankedPB("u1", nil),
		rankedPB("u2", nil),
	}

	rankings := rankPBs(pbs, "rating")

	require.Equal(t, shared.RankingData{Rank: 1, OutOf: 2}, rankings["u1"])
	require.Equal(t, shared.RankingData{Rank: 1, OutOf: 2}, rankings["u2"])
}

func TestPBService_RecomputeChartRanking_UsesChartDefaultKey(t *testing.T) {
	var gotRankings map[shared.UserID]shared.RankingData
	pbRepo := NewFakePBRepo()
	pbRepo.GetPBsForChartFunc = func(ctx context.Context, db bun.IDB, chartID shared.ChartID) ([]pbdb.PersonalBest, error) {
		return []pbdb.PersonalBest{
			{UserID: "u1", ChartID: chartID, CalculatedData: shared.CalculatedData{"bpi": f64(10.0)}},
			{UserID: "u2", ChartID: chartID, CalculatedData: shared.CalculatedData{"bpi": f64(20.0)}},
		}, nil
	}
	pbRepo.BulkUpdateRankingFunc = func(ctx context.Context, db bun.IDB, chartID shared.ChartID, rankings map[shared.UserID]shared.RankingData) error {
		gotRankings = rankings
		return nil
	}

	chartRepo := &FakeChartRepo{
		GetChartFunc: func(ctx context.Context, db bun.IDB, chartID shared.ChartID) (*chartdb.Chart, error) {
			return &chartdb.Chart{
				ChartID:          chartID,
				Game:             "iidx",
				Playtype:         "SP",
				DefaultRatingKey: "bpi",
			}, nil
		},
	}

	s := newTestPBService(pbRepo, &FakeScoreRepo{}, chartRepo)

	err := s.RecomputeChartRanking(context.Background(), nil, "c1")
	require.NoError(t, err)
	require.Equal(t, 1, gotRankings["u2"].Rank)
	require.Equal(t, 2, gotRankings["u1"].Rank)
}
