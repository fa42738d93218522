package pbservice

import (
	"context"
	"log/slog"

	"github.com/uptrace/bun"

	pbdb "github.com/clearlamp/clearlamp/app/modules/pb/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// AutoCoerceLampFields is the batched lamp patch used during bulk import.
// Instead of one reconciliation round trip per score, it fetches the current
// lamp-best play for every affected pair in a single query and overlays lamp
// fields onto any PB that is behind. The outcome is identical to running
// ReconcilePB serially for each pair; only the query count differs. Returns
// how many PBs were patched.
func (s *PBService) AutoCoerceLampFields(ctx context.Context, db bun.IDB, pairs []shared.UserChartPair) (int, error) {
	return withTelemetry(s, ctx, "AutoCoerceLampFields", func(ctx context.Context) (int, error) {
		if len(pairs) == 0 {
			return 0, nil
		}

		lampBests, err := s.scoreRepo.GetLampBests(ctx, db, pairs)
		if err != nil {
			return 0, err
		}
		bestByPair := make(map[shared.UserChartPair]int, len(lampBests))
		for i := range lampBests {
			bestByPair[shared.UserChartPair{
				UserID:  lampBests[i].UserID,
				ChartID: lampBests[i].ChartID,
			}] = i
		}

		pbs, err := s.pbRepo.GetPBsForPairs(ctx, db, pairs)
		if err != nil {
			return 0, err
		}

		var patches []pbdb.PersonalBest
		for i := range pbs {
			pb := pbs[i]
			idx, ok := bestByPair[shared.UserChartPair{UserID: pb.UserID, ChartID: pb.ChartID}]
			if !ok {
				continue
			}
			best := &lampBests[idx]

			if best.ScoreID == pb.ComposedFrom.LampPB {
				// Already flagged as the lamp PB; nothing to coerce.
				continue
			}
			if best.ScoreData.LampIndex <= pb.ScoreData.LampIndex {
				continue
			}

			pb.ScoreData.Lamp = best.ScoreData.Lamp
			pb.ScoreData.LampIndex = best.ScoreData.LampIndex
			if pb.CalculatedData == nil {
				pb.CalculatedData = shared.CalculatedData{}
			}
			for _, key := range s.lampOnlyKeys(best.GPT()) {
				if v, ok := best.CalculatedData[key]; ok {
					pb.CalculatedData[key] = cloneFloat(v)
				}
			}
			pb.ComposedFrom.LampPB = best.ScoreID
			patches = append(patches, pb)
		}

		if len(patches) == 0 {
			return 0, nil
		}
		if err := s.pbRepo.BulkPatchLamps(ctx, db, patches); err != nil {
			return 0, err
		}

		s.logger.InfoContext(ctx, "Lamp fields coerced onto PBs",
			slog.Int("pairs", len(pairs)),
			slog.Int("patched", len(patches)),
		)
		return len(patches), nil
	})
}
