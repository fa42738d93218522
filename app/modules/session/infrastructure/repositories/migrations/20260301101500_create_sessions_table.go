package sessionmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	sessiondb "github.com/clearlamp/clearlamp/app/modules/session/infrastructure/repositories"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating sessions table...")

		if _, err := db.NewCreateTable().Model((*sessiondb.Session)(nil)).IfNotExists().Exec(ctx); err != nil {
			return err
		}

		if _, err := db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_sessions_user_gpt_window
			ON sessions (user_id, game, playtype, time_ended)
		`).Exec(ctx); err != nil {
			return err
		}

		// GIN index backs the containment lookup used on score deletion.
		if _, err := db.NewRaw(`
			CREATE INDEX IF NOT EXISTS idx_sessions_score_ids
			ON sessions USING gin (score_ids)
		`).Exec(ctx); err != nil {
			return err
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping sessions table...")

		if _, err := db.NewDropTable().Model((*sessiondb.Session)(nil)).IfExists().Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}
