package testutils

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// TestDataGenerator produces seeded fake charts and import documents so
// failures reproduce from the logged seed.
type TestDataGenerator struct {
	faker *gofakeit.Faker
	seed  int64
}

// NewTestDataGenerator creates a generator, seeding from the clock unless an
// explicit seed is given.
func NewTestDataGenerator(seed ...int64) *TestDataGenerator {
	var s int64
	if len(seed) > 0 {
		s = seed[0]
	} else {
		s = time.Now().UnixNano()
	}
	return &TestDataGenerator{faker: gofakeit.New(uint64(s)), seed: s}
}

// Seed returns the seed this generator was built with.
func (g *TestDataGenerator) Seed() int64 { return g.seed }

// GenerateCharts creates count charts for one GPT with unique IDs and
// per-service hashes.
func (g *TestDataGenerator) GenerateCharts(game shared.Game, playtype shared.Playtype, count int) []chartdb.Chart {
	charts := make([]chartdb.Chart, count)
	for i := range charts {
		id := fmt.Sprintf("ch-%s-%s", game, g.faker.LetterN(12))
		charts[i] = chartdb.Chart{
			ChartID:          shared.ChartID(id),
			SongID:           shared.SongID("song-" + g.faker.LetterN(10)),
			Game:             game,
			Playtype:         playtype,
			Level:            fmt.Sprintf("%d", g.faker.Number(1, 12)),
			IsPrimary:        true,
			Hash:             g.faker.LetterN(32),
			DefaultRatingKey: "rating",
		}
	}
	return charts
}

// GenerateUserID creates a random user identifier.
func (g *TestDataGenerator) GenerateUserID() shared.UserID {
	return shared.UserID("u-" + g.faker.LetterN(10))
}

// GenerateImportDocument builds a document with one entry per chart,
// referencing each chart by its per-service hash. Timestamps step forward a
// few minutes per entry so the whole document lands in one session.
func (g *TestDataGenerator) GenerateImportDocument(userID shared.UserID, charts []chartdb.Chart) shared.ImportDocument {
	if len(charts) == 0 {
		return shared.ImportDocument{}
	}
	game := charts[0].Game
	playtype := charts[0].Playtype

	base := time.Now().Add(-6 * time.Hour).UnixMilli()
	entries := make([]shared.ImportEntry, len(charts))
	for i, c := range charts {
		ts := base + int64(i)*5*time.Minute.Milliseconds()
		entries[i] = shared.ImportEntry{
			Chart:        shared.ChartRef{Hash: c.Hash, Game: game, Playtype: playtype},
			Score:        float64(g.faker.Number(100000, 999999)),
			Percent:      g.faker.Float64Range(40, 100),
			Lamp:         TestLamps[g.faker.Number(0, len(TestLamps)-1)],
			TimeAchieved: &ts,
			Judgements:   map[string]int{"pgreat": g.faker.Number(0, 2000), "great": g.faker.Number(0, 500)},
		}
	}

	return shared.ImportDocument{
		Service:    "test-service",
		ImportType: "file/batch",
		UserID:     userID,
		Game:       game,
		Playtype:   playtype,
		Entries:    entries,
	}
}
