package scoremigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating scores table...")

		if _, err := db.NewCreateTable().Model((*scoredb.Score)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_scores_user_chart
			ON scores (user_id, chart_id)
		`).Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_scores_user_gpt_time
			ON scores (user_id, game, playtype, time_achieved)
		`).Exec(ctx); err != nil {
			return err
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping scores table...")

		if _, err := db.NewDropTable().Model((*scoredb.Score)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}
