package scoremigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
)

// Backfills is_primary on historical scores from the current chart flags.
// Iterates with a keyset cursor so memory stays bounded while production
// traffic keeps writing to the table.
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		const batchSize = 5000

		fmt.Println("Backfilling score primary flags from charts...")

		cursor := ""
		total := 0
		for {
			var ids []string
			err := db.NewSelect().
				Model((*scoredb.Score)(nil)).
				Column("score_id").
				Where("score_id > ?", cursor).
				OrderExpr("score_id ASC").
				Limit(batchSize).
				Scan(ctx, &ids)
			if err != nil {
				return fmt.Errorf("failed to page scores after %q: %w", cursor, err)
			}
			if len(ids) == 0 {
				break
			}

			_, err = db.NewRaw(`
				UPDATE scores s
				SET is_primary = c.is_primary
				FROM charts c
				WHERE s.chart_id = c.chart_id
				  AND s.score_id IN (?)
			`, bun.In(ids)).Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to backfill batch ending at %q: %w", ids[len(ids)-1], err)
			}

			total += len(ids)
			cursor = ids[len(ids)-1]
		}

		fmt.Printf("Backfilled primary flags across %d scores\n", total)
		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		// The pre-backfill flag values are not recorded anywhere, so this
		// migration is forward-only.
		return fmt.Errorf("backfill_primary_flags cannot be rolled back: prior flag values were not preserved")
	})
}
