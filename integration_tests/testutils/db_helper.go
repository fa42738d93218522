package testutils

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	chartmigrations "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories/migrations"
	importmigrations "github.com/clearlamp/clearlamp/app/modules/importer/infrastructure/repositories/migrations"
	orphanmigrations "github.com/clearlamp/clearlamp/app/modules/orphan/infrastructure/repositories/migrations"
	pbmigrations "github.com/clearlamp/clearlamp/app/modules/pb/infrastructure/repositories/migrations"
	scoremigrations "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories/migrations"
	sessionmigrations "github.com/clearlamp/clearlamp/app/modules/session/infrastructure/repositories/migrations"
)

// orderedModules lists every module's migrations in dependency order (charts
// before the score-side tables that reference them).
var orderedModules = []struct {
	name       string
	migrations *migrate.Migrations
}{
	{"chart", chartmigrations.Migrations},
	{"score", scoremigrations.Migrations},
	{"pb", pbmigrations.Migrations},
	{"session", sessionmigrations.Migrations},
	{"orphan", orphanmigrations.Migrations},
	{"importer", importmigrations.Migrations},
}

// runMigrations brings a fresh test database up to the current schema:
// River's queue tables first, then every module in dependency order.
func runMigrations(ctx context.Context, db *bun.DB, pgConnStr string) error {
	migrator := migrate.NewMigrator(db, chartmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migration tables: %w", err)
	}

	if err := runRiverMigrations(ctx, pgConnStr); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}

	if _, err := MigrateModules(ctx, db); err != nil {
		return err
	}
	return nil
}

// MigrateModules runs every module's migrator and reports how many
// migrations were applied across all of them. Already-applied migrations
// are skipped, so a second call on the same database applies zero.
func MigrateModules(ctx context.Context, db *bun.DB) (int, error) {
	applied := 0
	for _, mod := range orderedModules {
		m := migrate.NewMigrator(db, mod.migrations)
		group, err := m.Migrate(ctx)
		if err != nil {
			return applied, fmt.Errorf("failed to run %s migrations: %w", mod.name, err)
		}
		if group != nil {
			applied += len(group.Migrations)
		}
	}
	return applied, nil
}

// runRiverMigrations sets up River's queue tables. River requires pgx, so it
// gets its own short-lived pool.
func runRiverMigrations(ctx context.Context, pgConnStr string) error {
	config, err := pgxpool.ParseConfig(pgConnStr)
	if err != nil {
		return fmt.Errorf("failed to parse DSN for River migrations: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool for River migrations: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	return nil
}

var appTables = []string{
	"charts",
	"scores",
	"personal_bests",
	"sessions",
	"orphan_scores",
	"orphan_blacklist",
	"imports",
}

// CleanupDatabase truncates all application tables so each test starts from
// an empty dataset without re-running migrations.
func CleanupDatabase(ctx context.Context, db *bun.DB) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(appTables, ", "))
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM river_job"); err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("failed to cleanup river jobs: %w", err)
		}
	}
	return nil
}
