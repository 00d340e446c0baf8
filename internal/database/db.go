// Package database provides database setup, models, and the message store.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/edgard/inboxintel/migrations"

	_ "github.com/jackc/pgx/v5/stdlib" //revive:disable:blank-imports
	_ "modernc.org/sqlite"             //revive:disable:blank-imports
)

// Dialect identifies the SQL backend behind a connection.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driver names registered by the blank imports above
const (
	sqliteDriver   = "sqlite"
	postgresDriver = "pgx"
)

// sqliteParams are appended to every SQLite DSN. The sqlite time format keeps
// stored timestamps lexically sortable.
const sqliteParams = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"

// Options configures the connection pool.
type Options struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewDB connects to the database named by opts.URL, applies migrations, and
// returns the connection pool.
//
// Accepted URLs: postgres://… and postgresql://… for PostgreSQL; sqlite:///path,
// file:path, a bare file path, or ":memory:" for SQLite.
func NewDB(opts Options) (*sqlx.DB, error) {
	dialect, dsn, err := ParseURL(opts.URL)
	if err != nil {
		return nil, err
	}

	driver := sqliteDriver
	if dialect == DialectPostgres {
		driver = postgresDriver
	} else if !isMemory(dsn) {
		if err := ensureDir(ExtractDBNameFromPath(dsn)); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	switch {
	case dialect == DialectSQLite:
		// SQLite doesn't support concurrent writes, so max open conns = 1
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if isMemory(dsn) {
			// an in-memory database lives only as long as its connection
			db.SetConnMaxLifetime(0)
		} else {
			db.SetConnMaxLifetime(5 * time.Minute)
		}
	default:
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := ApplyMigrations(db.DB, dialect, ExtractDBNameFromPath(dsn)); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database connected and migrations applied successfully", "dialect", dialect)
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing database connection", "error", err)
	} else {
		slog.Info("Database connection closed successfully.")
	}
}

// DialectOf reports the dialect of an open connection.
func DialectOf(db *sqlx.DB) Dialect {
	if db.DriverName() == postgresDriver {
		return DialectPostgres
	}
	return DialectSQLite
}

// ApplyMigrations runs the embedded migrations for the given dialect.
func ApplyMigrations(db *sql.DB, dialect Dialect, dbName string) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}
	if dbName == "" {
		return errors.New("database name/path for migration driver is empty")
	}

	slog.Info("Applying database migrations...", "database_name", dbName, "dialect", dialect)

	sourceDriver, err := iofs.New(migrations.FS, string(dialect))
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	var dbDriver migratedb.Driver
	switch dialect {
	case DialectPostgres:
		dbDriver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		dbDriver, err = sqlite.WithInstance(db, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("failed to create %s database driver: %w", dialect, err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, string(dialect), dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	migrateErr := migrator.Up()
	if migrateErr != nil {
		if errors.Is(migrateErr, migrate.ErrNoChange) {
			slog.Info("No database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", migrateErr)
	}

	slog.Info("Database migrations applied successfully.")
	return nil
}

// ParseURL resolves a database URL into a dialect and a driver DSN.
func ParseURL(raw string) (Dialect, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", errors.New("database url is empty")
	}

	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DialectPostgres, raw, nil
	case strings.HasPrefix(lower, "sqlite:///"):
		raw = raw[len("sqlite:///"):]
	case strings.HasPrefix(lower, "sqlite://"):
		raw = raw[len("sqlite://"):]
	case strings.Contains(raw, "://"):
		return "", "", fmt.Errorf("unsupported database url scheme: %s", raw)
	}
	if raw == "" {
		return "", "", errors.New("sqlite database path is empty")
	}

	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return DialectSQLite, raw + sep + sqliteParams, nil
}

// ExtractDBNameFromPath extracts the database file path from a possibly URL-formatted path.
// This handles both simple file paths and paths with URL-style encoding.
func ExtractDBNameFromPath(path string) string {
	// Remove file: prefix if present
	path = strings.TrimPrefix(path, "file:")

	// Remove URL query parameters if present
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}

	// URL-decode if necessary
	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}

	return path
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}
