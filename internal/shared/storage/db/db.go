package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // register sqlite as database/sql driver

	"docqr-backend/internal/shared/telemetry"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// ErrEmptyURL is returned by Connect when no DSN is configured.
var ErrEmptyURL = errors.New("DATABASE_URL is empty")

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var openDB = sql.Open

// DefaultServerOptions sizes the pool for the API process, which shares it
// between request handlers and processing workers.
func DefaultServerOptions() Options {
	return Options{
		MaxOpenConns:    16,
		MaxIdleConns:    4,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// DefaultMigrateOptions is a single connection for the migrate command.
func DefaultMigrateOptions() Options {
	return Options{MaxOpenConns: 1, MaxIdleConns: 1, PingTimeout: 10 * time.Second}
}

// OptionsFromEnv applies DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS,
// DB_CONN_MAX_LIFETIME, DB_CONN_MAX_IDLE_TIME and DB_PING_TIMEOUT over base.
// Malformed values are logged and ignored.
func OptionsFromEnv(base Options) Options {
	opts := base
	ints := map[string]*int{
		"DB_MAX_OPEN_CONNS": &opts.MaxOpenConns,
		"DB_MAX_IDLE_CONNS": &opts.MaxIdleConns,
	}
	for key, dst := range ints {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			telemetry.Warn("db.env_ignored", map[string]any{"key": key, "value": raw})
			continue
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"DB_CONN_MAX_LIFETIME":  &opts.ConnMaxLifetime,
		"DB_CONN_MAX_IDLE_TIME": &opts.ConnMaxIdleTime,
		"DB_PING_TIMEOUT":       &opts.PingTimeout,
	}
	for key, dst := range durations {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			telemetry.Warn("db.env_ignored", map[string]any{"key": key, "value": raw})
			continue
		}
		*dst = d
	}
	return opts
}

// DriverFor guesses the driver from a DSN: postgres URLs and key=value
// strings map to pgx, file paths to sqlite.
func DriverFor(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		return DriverSQLite
	case strings.HasSuffix(dsn, ".db"), strings.HasSuffix(dsn, ".sqlite"), strings.HasSuffix(dsn, ".sqlite3"):
		return DriverSQLite
	default:
		return DriverPostgres
	}
}

// Connect opens and pings a pool. An empty driver is inferred from the DSN.
// SQLite gets its parent directory created, one connection and foreign keys on.
func Connect(ctx context.Context, driver, dsn string, opts Options) (*sqlx.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyURL
	}
	if driver == "" {
		driver = DriverFor(dsn)
	}
	if driver == DriverSQLite {
		if err := ensureDir(dsn); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		opts.MaxOpenConns, opts.MaxIdleConns = 1, 1
	}

	raw, err := openDB(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	conn := sqlx.NewDb(raw, driver)
	configurePool(raw, opts)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	st := raw.Stats()
	telemetry.Info("db.connected", map[string]any{
		"driver":    driver,
		"max_open":  st.MaxOpenConnections,
		"open":      st.OpenConnections,
		"idle":      st.Idle,
		"ping_wait": timeout.String(),
	})
	return conn, nil
}

func configurePool(raw *sql.DB, opts Options) {
	if opts.MaxOpenConns > 0 {
		raw.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		raw.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		raw.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if opts.ConnMaxIdleTime > 0 {
		raw.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
