package main

// Run database migrations:
//   go run ./cmd/migrate

import (
	"context"
	"os"

	"docqr-backend/internal/shared/config"
	"docqr-backend/internal/shared/storage/db"
	"docqr-backend/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, opts)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err.Error()})
		sqlDB.Close()
		os.Exit(1)
	}
	telemetry.Info("migrate.done", map[string]any{"driver": cfg.DatabaseDriver})
}
