package db

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"docqr-backend/internal/shared/telemetry"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// RunMigrations applies the embedded SQL migrations for the handle's driver via goose.
// If database is nil, it's a no-op.
func RunMigrations(ctx context.Context, database *sqlx.DB) error {
	if database == nil {
		return nil
	}
	dialect, dir, err := migrationTarget(database.DriverName())
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, database.DB, dir)
}

func migrationTarget(driver string) (dialect, dir string, err error) {
	switch driver {
	case DriverPostgres, "postgres":
		return "postgres", "migrations/postgres", nil
	case DriverSQLite, "sqlite3":
		return "sqlite3", "migrations/sqlite", nil
	default:
		return "", "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

// gooseLogger routes goose output through the process zerolog logger.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	telemetry.Logger().Info().Str("component", "goose").Msg(gooseMessage(format, v))
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	telemetry.Logger().Fatal().Str("component", "goose").Msg(gooseMessage(format, v))
}

func gooseMessage(format string, v []interface{}) string {
	return strings.TrimSpace(fmt.Sprintf(format, v...))
}
