package chartmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating charts table...")

		if _, err := db.NewCreateTable().Model((*chartdb.Chart)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewRaw(`
			CREATE UNIQUE INDEX IF NOT EXISTS idx_charts_gpt_hash
			ON charts (game, playtype, hash)
			WHERE hash <> ''
		`).Exec(ctx); err != nil {
			return err
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping charts table...")

		if _, err := db.NewDropTable().Model((*chartdb.Chart)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}
