package db

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"docqr-backend/internal/shared/telemetry"
)

// withMockOpen routes Connect through go-sqlmock. Pings are not monitored, so
// the ping in Connect always succeeds.
func withMockOpen(t *testing.T) {
	t.Helper()
	prev := openDB
	openDB = func(_, _ string) (*sql.DB, error) {
		mockDB, _, err := sqlmock.New()
		return mockDB, err
	}
	t.Cleanup(func() { openDB = prev })
}

func TestOptionsFromEnvAppliesOverrides(t *testing.T) {
	withMockOpen(t)

	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_MAX_IDLE_CONNS", "3")
	t.Setenv("DB_CONN_MAX_LIFETIME", "20m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "45s")
	t.Setenv("DB_PING_TIMEOUT", "1s")

	opts := OptionsFromEnv(DefaultServerOptions())
	want := Options{
		MaxOpenConns:    7,
		MaxIdleConns:    3,
		ConnMaxLifetime: 20 * time.Minute,
		ConnMaxIdleTime: 45 * time.Second,
		PingTimeout:     time.Second,
	}
	if opts != want {
		t.Fatalf("OptionsFromEnv = %+v, want %+v", opts, want)
	}

	db, err := Connect(context.Background(), DriverPostgres, "ignored", opts)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	if got := db.Stats().MaxOpenConnections; got != 7 {
		t.Fatalf("expected MaxOpenConnections=7, got %d", got)
	}
}

func TestOptionsFromEnvIgnoresMalformed(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("DB_PING_TIMEOUT", "-3s")

	base := DefaultServerOptions()
	if got := OptionsFromEnv(base); got != base {
		t.Fatalf("expected defaults kept, got %+v", got)
	}
}

func TestDriverFor(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/docs":  DriverPostgres,
		"postgresql://localhost/docs":         DriverPostgres,
		"host=localhost dbname=docs":          DriverPostgres,
		"file:data/docs.db?_pragma=busy(5000)": DriverSQLite,
		"./data/docs.db":                      DriverSQLite,
		":memory:":                            DriverSQLite,
	}
	for dsn, want := range cases {
		if got := DriverFor(dsn); got != want {
			t.Fatalf("DriverFor(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestConnectSQLiteCreatesDirAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "docs.db")
	db, err := Connect(context.Background(), "", path, DefaultServerOptions())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()

	if db.DriverName() != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", db.DriverName())
	}
	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("expected sqlite pool pinned to 1, got %d", got)
	}
	if err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	var n int
	if err := db.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM documents"); err != nil {
		t.Fatalf("query documents: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty documents table, got %d", n)
	}
}

func TestRunMigrationsLogsThroughTelemetry(t *testing.T) {
	var buf bytes.Buffer
	telemetry.Setup(&buf, "info", "json")
	t.Cleanup(func() { telemetry.Setup(os.Stdout, "info", "json") })

	db, err := Connect(context.Background(), "", filepath.Join(t.TempDir(), "docs.db"), DefaultServerOptions())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	if err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}

	var gooseLines int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("expected json log line, got %q: %v", line, err)
		}
		if entry["component"] == "goose" {
			gooseLines++
			if entry["level"] != "info" {
				t.Fatalf("unexpected goose level: %v", entry)
			}
		}
	}
	if gooseLines == 0 {
		t.Fatalf("expected goose output in structured log, got %q", buf.String())
	}
}

func TestConnectWrapsOpenFailure(t *testing.T) {
	prev := openDB
	openDB = func(name, dsn string) (*sql.DB, error) {
		return nil, driver.ErrBadConn
	}
	defer func() {
		openDB = prev
	}()

	if _, err := Connect(context.Background(), DriverPostgres, "ignored", DefaultServerOptions()); err == nil {
		t.Fatalf("expected open failure to surface")
	}
}

func TestConnectRejectsEmptyURL(t *testing.T) {
	if _, err := Connect(context.Background(), DriverPostgres, "  ", DefaultServerOptions()); !errors.Is(err, ErrEmptyURL) {
		t.Fatalf("expected ErrEmptyURL, got %v", err)
	}
}

func TestConnectKeepsDriverName(t *testing.T) {
	withMockOpen(t)

	db, err := Connect(context.Background(), DriverPostgres, "ignored", DefaultServerOptions())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	if db.DriverName() != DriverPostgres {
		t.Fatalf("expected driver %q, got %q", DriverPostgres, db.DriverName())
	}
	if got := db.Rebind("SELECT 1 WHERE a = ? AND b = ?"); got != "SELECT 1 WHERE a = $1 AND b = $2" {
		t.Fatalf("unexpected rebind: %s", got)
	}
}

func TestMigrationTarget(t *testing.T) {
	cases := map[string]string{
		DriverPostgres: "migrations/postgres",
		DriverSQLite:   "migrations/sqlite",
	}
	for driver, wantDir := range cases {
		_, dir, err := migrationTarget(driver)
		if err != nil {
			t.Fatalf("migrationTarget(%q): %v", driver, err)
		}
		if dir != wantDir {
			t.Fatalf("migrationTarget(%q) dir = %q, want %q", driver, dir, wantDir)
		}
		entries, err := migrationFiles.ReadDir(dir)
		if err != nil || len(entries) == 0 {
			t.Fatalf("expected embedded migrations in %s: %v", dir, err)
		}
	}
	if _, _, err := migrationTarget("mysql"); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
