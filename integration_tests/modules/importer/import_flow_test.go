package importerintegration

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/clearlamp/clearlamp/app/shared"
	"github.com/clearlamp/clearlamp/integration_tests/testutils"
)

var env *testutils.TestEnvironment

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(0)
	}

	var err error
	env, err = testutils.NewTestEnvironment()
	if err != nil {
		log.Fatalf("failed to set up test environment: %v", err)
	}

	code := m.Run()
	env.Cleanup()
	os.Exit(code)
}

func TestProcessImport_FullFlow(t *testing.T) {
	env.Reset(t)
	ctx := env.Ctx

	gen := testutils.NewTestDataGenerator(42)
	t.Logf("data generator seed: %d", gen.Seed())

	charts := gen.GenerateCharts(testutils.TestGame, testutils.TestPlaytype, 5)
	require.NoError(t, env.Charts.SyncCharts(ctx, testutils.TestGame, testutils.TestPlaytype, charts))

	finished := make(chan shared.ImportFinishedPayload, 1)
	err := env.Bus.Subscribe(ctx, "import", shared.SubjectImportFinished, func(ctx context.Context, msg *message.Message) error {
		var payload shared.ImportFinishedPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return err
		}
		select {
		case finished <- payload:
		default:
		}
		return nil
	})
	require.NoError(t, err)

	userID := gen.GenerateUserID()
	doc := gen.GenerateImportDocument(userID, charts)

	imp, err := env.Imports.ProcessImport(ctx, doc)
	require.NoError(t, err)
	require.Len(t, imp.ScoreIDs, 5)
	require.Empty(t, imp.Errors)
	require.Zero(t, imp.OrphanCount)
	require.NotZero(t, imp.TimeFinished)

	// The record round-trips from the database with the same outcome fields.
	stored, err := env.Imports.GetImport(ctx, imp.ImportID)
	require.NoError(t, err)
	require.Equal(t, imp.ScoreIDs, stored.ScoreIDs)
	require.Equal(t, imp.CreatedSessions, stored.CreatedSessions)

	// One play per chart, so each PB mirrors its single score and ranks
	// first of one.
	pb, err := env.PBRepo.GetPB(ctx, env.DB, userID, charts[0].ChartID)
	require.NoError(t, err)
	require.Equal(t, doc.Entries[0].Score, pb.ScoreData.Score)
	require.Equal(t, doc.Entries[0].Lamp, pb.ScoreData.Lamp)
	require.Equal(t, pb.ComposedFrom.ScorePB, pb.ComposedFrom.LampPB)
	require.Equal(t, shared.RankingData{Rank: 1, OutOf: 1}, pb.RankingData)

	// Entries five minutes apart land in one session.
	require.Len(t, imp.CreatedSessions, 1)
	session, err := env.SessionRepo.GetSession(ctx, env.DB, imp.CreatedSessions[0])
	require.NoError(t, err)
	for _, id := range imp.ScoreIDs {
		require.True(t, session.Contains(id))
	}

	select {
	case payload := <-finished:
		want := shared.ImportFinishedPayload{
			ImportID:   imp.ImportID,
			UserID:     userID,
			Game:       testutils.TestGame,
			Playtype:   testutils.TestPlaytype,
			ScoreCount: 5,
		}
		if diff := cmp.Diff(want, payload); diff != "" {
			t.Errorf("import.finished payload mismatch (-want +got):\n%s", diff)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("timed out waiting for import.finished event")
	}

	// Re-importing the identical document is a no-op.
	again, err := env.Imports.ProcessImport(ctx, doc)
	require.NoError(t, err)
	require.Empty(t, again.ScoreIDs)
	require.Empty(t, again.CreatedSessions)
	require.Empty(t, again.Errors)
}

func TestProcessImport_ComposesPBAcrossPlays(t *testing.T) {
	env.Reset(t)
	ctx := env.Ctx

	gen := testutils.NewTestDataGenerator(7)
	charts := gen.GenerateCharts(testutils.TestGame, testutils.TestPlaytype, 1)
	require.NoError(t, env.Charts.SyncCharts(ctx, testutils.TestGame, testutils.TestPlaytype, charts))

	userID := gen.GenerateUserID()
	base := time.Now().Add(-3 * time.Hour).UnixMilli()
	ts := func(offset int) *int64 {
		v := base + int64(offset)*time.Minute.Milliseconds()
		return &v
	}
	ref := shared.ChartRef{Hash: charts[0].Hash, Game: testutils.TestGame, Playtype: testutils.TestPlaytype}
	doc := shared.ImportDocument{
		Service:    "test-service",
		ImportType: "file/batch",
		UserID:     userID,
		Game:       testutils.TestGame,
		Playtype:   testutils.TestPlaytype,
		Entries: []shared.ImportEntry{
			{Chart: ref, Score: 800000, Percent: 80, Lamp: "CLEAR", TimeAchieved: ts(0)},
			{Chart: ref, Score: 950000, Percent: 95, Lamp: "FAILED", TimeAchieved: ts(10)},
			{Chart: ref, Score: 900000, Percent: 90, Lamp: "FULL COMBO", TimeAchieved: ts(20)},
		},
	}

	imp, err := env.Imports.ProcessImport(ctx, doc)
	require.NoError(t, err)
	require.Len(t, imp.ScoreIDs, 3)

	// The PB takes its score axis from the highest score and its lamp axis
	// from the best lamp; ratings maximize per key except lamp-only ones.
	pb, err := env.PBRepo.GetPB(ctx, env.DB, userID, charts[0].ChartID)
	require.NoError(t, err)
	require.Equal(t, 950000.0, pb.ScoreData.Score)
	require.Equal(t, shared.Lamp("FULL COMBO"), pb.ScoreData.Lamp)
	require.NotEqual(t, pb.ComposedFrom.ScorePB, pb.ComposedFrom.LampPB)
	require.NotNil(t, pb.CalculatedData["rating"])
	require.InDelta(t, 9.5, *pb.CalculatedData["rating"], 1e-9)
	require.NotNil(t, pb.CalculatedData["lampRating"])
	require.InDelta(t, 8.0, *pb.CalculatedData["lampRating"], 1e-9)
}

func TestDeleteScore_ReconcilesPBAndSession(t *testing.T) {
	env.Reset(t)
	ctx := env.Ctx

	gen := testutils.NewTestDataGenerator(11)
	charts := gen.GenerateCharts(testutils.TestGame, testutils.TestPlaytype, 1)
	require.NoError(t, env.Charts.SyncCharts(ctx, testutils.TestGame, testutils.TestPlaytype, charts))

	userID := gen.GenerateUserID()
	base := time.Now().Add(-3 * time.Hour).UnixMilli()
	t1, t2 := base, base+10*time.Minute.Milliseconds()
	ref := shared.ChartRef{Hash: charts[0].Hash, Game: testutils.TestGame, Playtype: testutils.TestPlaytype}
	doc := shared.ImportDocument{
		Service:    "test-service",
		ImportType: "file/batch",
		UserID:     userID,
		Game:       testutils.TestGame,
		Playtype:   testutils.TestPlaytype,
		Entries: []shared.ImportEntry{
			{Chart: ref, Score: 700000, Percent: 70, Lamp: "CLEAR", TimeAchieved: &t1},
			{Chart: ref, Score: 900000, Percent: 90, Lamp: "FULL COMBO", TimeAchieved: &t2},
		},
	}

	imp, err := env.Imports.ProcessImport(ctx, doc)
	require.NoError(t, err)
	require.Len(t, imp.ScoreIDs, 2)
	require.Len(t, imp.CreatedSessions, 1)

	pb, err := env.PBRepo.GetPB(ctx, env.DB, userID, charts[0].ChartID)
	require.NoError(t, err)
	best := pb.ComposedFrom.ScorePB
	require.Equal(t, 900000.0, pb.ScoreData.Score)

	require.NoError(t, env.Imports.DeleteScore(ctx, best))

	// The PB falls back to the remaining play and the session drops the
	// deleted member.
	pb, err = env.PBRepo.GetPB(ctx, env.DB, userID, charts[0].ChartID)
	require.NoError(t, err)
	require.Equal(t, 700000.0, pb.ScoreData.Score)
	require.Equal(t, shared.Lamp("CLEAR"), pb.ScoreData.Lamp)

	session, err := env.SessionRepo.GetSession(ctx, env.DB, imp.CreatedSessions[0])
	require.NoError(t, err)
	require.False(t, session.Contains(best))
	require.Len(t, session.ScoreIDs, 1)
}

func TestQueue_ProcessesEnqueuedImport(t *testing.T) {
	env.Reset(t)
	ctx := env.Ctx

	gen := testutils.NewTestDataGenerator(23)
	charts := gen.GenerateCharts(testutils.TestGame, testutils.TestPlaytype, 3)
	require.NoError(t, env.Charts.SyncCharts(ctx, testutils.TestGame, testutils.TestPlaytype, charts))

	require.NoError(t, env.Queue.Start(ctx))
	require.NoError(t, env.Queue.HealthCheck(ctx))

	userID := gen.GenerateUserID()
	doc := gen.GenerateImportDocument(userID, charts)

	jobID, err := env.Queue.EnqueueImport(ctx, doc)
	require.NoError(t, err)
	require.NotZero(t, jobID)

	require.Eventually(t, func() bool {
		imports, err := env.Imports.GetImportsForUser(ctx, userID, 1)
		if err != nil || len(imports) == 0 {
			return false
		}
		return imports[0].TimeFinished > 0 && len(imports[0].ScoreIDs) == 3
	}, 30*time.Second, 250*time.Millisecond, "queued import never finished")
}
