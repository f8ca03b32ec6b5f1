package main

// Run ledger migrations for the configured driver:
//   LEDGER_DRIVER=sqlite go run ./cmd/migrate
//   DATABASE_URL=postgres://... go run ./cmd/migrate

import (
	"context"
	"os"

	"applique-backend/internal/shared/config"
	"applique-backend/internal/shared/storage/db"
	"applique-backend/internal/shared/telemetry"
)

func main() {
	defer telemetry.Sync()
	cfg := config.Load()
	ctx := context.Background()

	var dialect db.Dialect
	dsn := cfg.DatabaseURL
	switch cfg.LedgerDriver {
	case "postgres":
		dialect = db.Postgres
	case "sqlite":
		dialect, dsn = db.SQLite, cfg.SQLitePath
	default:
		telemetry.Info("migrate.skipped", map[string]any{"ledger": cfg.LedgerDriver})
		return
	}

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, dialect, dsn, opts)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"dialect": string(dialect), "err": err})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB, dialect); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"dialect": string(dialect), "err": err})
		os.Exit(1)
	}
	telemetry.Info("migrate.completed", map[string]any{"dialect": string(dialect)})
}
