// Package storage opens and migrates the relational store shared by the
// document store and the timeline.
//
// Two drivers are supported: SQLite (the default, pure-Go via modernc) for
// zero-dependency local use, and PostgreSQL for setups that already run one.
// Both dialects share one schema, managed by embedded migrations.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure-Go SQLite driver, registers as "sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Dialect names a supported SQL dialect.
type Dialect string

const (
	// DialectSQLite is the embedded pure-Go SQLite driver.
	DialectSQLite Dialect = "sqlite"

	// DialectPostgres is the PostgreSQL driver.
	DialectPostgres Dialect = "postgres"
)

// Config configures the store connection.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string

	// Path is the SQLite database file. ":memory:" opens an in-memory
	// database, which tests use.
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string

	// MaxConnections caps the pool size for postgres.
	MaxConnections int

	// ConnMaxLifetime recycles postgres connections after this duration.
	ConnMaxLifetime time.Duration

	// RunMigrations controls whether pending migrations are applied on open.
	// Default is true; Open treats the zero value as true.
	RunMigrations *bool
}

// DB wraps the shared connection with its dialect so callers can build
// dialect-correct SQL.
type DB struct {
	// SQL is the underlying connection pool.
	SQL *sql.DB

	// Dialect is the dialect the pool speaks.
	Dialect Dialect
}

// Open connects to the configured store and applies pending migrations.
func Open(cfg Config) (*DB, error) {
	var (
		db      *sql.DB
		dialect Dialect
		err     error
	)

	switch cfg.Driver {
	case "sqlite", "":
		dialect = DialectSQLite
		db, err = sql.Open("sqlite", sqliteDSN(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// modernc serializes writes; a single connection avoids
		// SQLITE_BUSY churn under concurrent ingestion.
		db.SetMaxOpenConns(1)
	case "postgres":
		dialect = DialectPostgres
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres driver requires a DSN")
		}
		db, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
		if cfg.MaxConnections > 0 {
			db.SetMaxOpenConns(cfg.MaxConnections)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	d := &DB{SQL: db, Dialect: dialect}

	if cfg.RunMigrations == nil || *cfg.RunMigrations {
		if err := d.runMigrations(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	return d, nil
}

// sqliteDSN builds a modernc DSN with the pragmas the kernel relies on:
// WAL for concurrent readers, foreign keys for referential integrity, and
// a busy timeout so short write contention does not surface as errors.
// In-memory databases get the same pragmas minus WAL, which only applies
// to files.
func sqliteDSN(path string) string {
	pragmas := url.Values{}
	pragmas.Add("_pragma", "foreign_keys(1)")
	pragmas.Add("_pragma", "busy_timeout(5000)")
	if path == "" || path == ":memory:" {
		return "file::memory:?" + pragmas.Encode()
	}
	pragmas.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + pragmas.Encode()
}

// Close releases the underlying pool.
func (d *DB) Close() error {
	return d.SQL.Close()
}

// Rebind converts '?' placeholders to the dialect's positional form.
// SQLite queries pass through unchanged; postgres gets $1..$N.
func (d *DB) Rebind(query string) string {
	if d.Dialect != DialectPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// runMigrations applies pending migrations for this dialect.
func (d *DB) runMigrations(ctx context.Context) error {
	_, err := d.SQL.ExecContext(ctx, d.Rebind(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`))
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	migrations, err := loadMigrations(d.Dialect)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	applied, err := d.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.ID] {
			continue
		}
		if strings.TrimSpace(m.UpSQL) == "" {
			return fmt.Errorf("missing up migration for %s", m.ID)
		}

		tx, err := d.SQL.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.ID, err)
		}
		if _, err := tx.ExecContext(ctx, d.Rebind(`INSERT INTO schema_migrations (id) VALUES (?)`), m.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.ID, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.ID, err)
		}
	}

	return nil
}

func (d *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := d.SQL.QueryContext(ctx, `SELECT id FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema_migrations: %w", err)
	}
	return applied, nil
}

// Migration is one embedded migration.
type Migration struct {
	ID      string
	UpSQL   string
	DownSQL string
}

func loadMigrations(dialect Dialect) ([]Migration, error) {
	root := "migrations/" + string(dialect)
	paths, err := fs.Glob(migrationsFS, root+"/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	entries := map[string]*Migration{}
	for _, path := range paths {
		base := strings.TrimPrefix(path, root+"/")
		suffix := ""
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			suffix = ".up.sql"
		case strings.HasSuffix(base, ".down.sql"):
			suffix = ".down.sql"
		default:
			continue
		}
		id := strings.TrimSuffix(base, suffix)
		entry := entries[id]
		if entry == nil {
			entry = &Migration{ID: id}
			entries[id] = entry
		}
		data, err := migrationsFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", path, err)
		}
		if suffix == ".up.sql" {
			entry.UpSQL = string(data)
		} else {
			entry.DownSQL = string(data)
		}
	}

	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	migrations := make([]Migration, 0, len(ids))
	for _, id := range ids {
		migrations = append(migrations, *entries[id])
	}
	return migrations, nil
}
