package orphanmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	orphandb "github.com/clearlamp/clearlamp/app/modules/orphan/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating orphan_scores and orphan_blacklist tables...")

		if _, err := db.NewCreateTable().Model((*orphandb.OrphanScore)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewCreateTable().Model((*orphandb.BlacklistedOrphan)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping orphan_scores and orphan_blacklist tables...")

		if _, err := db.NewDropTable().Model((*orphandb.OrphanScore)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}
		if _, err := db.NewDropTable().Model((*orphandb.BlacklistedOrphan)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}
