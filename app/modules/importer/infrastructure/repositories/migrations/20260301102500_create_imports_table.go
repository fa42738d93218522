package importmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	importdb "github.com/clearlamp/clearlamp/app/modules/importer/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating imports table...")

		if _, err := db.NewCreateTable().Model((*importdb.Import)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_imports_user_started
			ON imports (user_id, time_started DESC)
		`).Exec(ctx); err != nil {
			return err
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping imports table...")

		if _, err := db.NewDropTable().Model((*importdb.Import)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}
