package testutils

import (
	"fmt"
	"slices"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/modules/score/domain/ratings"
	"github.com/clearlamp/clearlamp/app/shared"
)

// TestLamps is the lamp ladder the test provider understands, worst first.
var TestLamps = []shared.Lamp{
	"FAILED",
	"ASSIST CLEAR",
	"CLEAR",
	"HARD CLEAR",
	"FULL COMBO",
}

// TestProvider is a deterministic rating provider for integration tests:
// rating scales linearly with score, lampRating linearly with lamp ordinal.
type TestProvider struct{}

var _ ratings.Provider = TestProvider{}

func (TestProvider) Evaluate(chart *chartdb.Chart, draft ratings.Draft) (ratings.Derived, error) {
	lampIdx := TestProvider{}.LampIndex(draft.Lamp)
	if lampIdx < 0 {
		return ratings.Derived{}, fmt.Errorf("unknown lamp %q", draft.Lamp)
	}

	grade, gradeIdx := gradeFor(draft.Percent)
	rating := draft.Score / 100000.0
	lampRating := float64(lampIdx) * 2.0

	return ratings.Derived{
		Grade:      grade,
		GradeIndex: gradeIdx,
		LampIndex:  lampIdx,
		Calculated: shared.CalculatedData{
			"rating":     &rating,
			"lampRating": &lampRating,
		},
	}, nil
}

func (TestProvider) LampOnlyKeys() []string {
	return []string{"lampRating"}
}

func (TestProvider) LampIndex(lamp shared.Lamp) int {
	return slices.Index(TestLamps, lamp)
}

func gradeFor(percent float64) (shared.Grade, int) {
	switch {
	case percent >= 88.88:
		return "AAA", 7
	case percent >= 77.77:
		return "AA", 6
	case percent >= 66.66:
		return "A", 5
	case percent >= 55.55:
		return "B", 4
	default:
		return "C", 3
	}
}
