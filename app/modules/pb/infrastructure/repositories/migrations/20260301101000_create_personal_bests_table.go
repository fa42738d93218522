package pbmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	pbdb "github.com/clearlamp/clearlamp/app/modules/pb/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating personal_bests table...")

		if _, err := db.NewCreateTable().Model((*pbdb.PersonalBest)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_personal_bests_chart
			ON personal_bests (chart_id)
		`).Exec(ctx); err != nil {
			return err
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping personal_bests table...")

		if _, err := db.NewDropTable().Model((*pbdb.PersonalBest)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}
