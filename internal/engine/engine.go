package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"patentworld/internal/config"
	apperrors "patentworld/internal/errors"
	"patentworld/internal/infrastructure"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite
const DriverName = "sqlite"

func init() {
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

// Mode selects the connection pragmas
type Mode int

const (
	// ModeLoad is a single writer connection with journaling and fsync disabled
	ModeLoad Mode = iota
	// ModeRead opens query-only connections that may be used concurrently
	ModeRead
)

// Options configures Open
type Options struct {
	Threads     int
	CacheSizeMB int
	Mode        Mode
}

// OptionsFromConfig maps the engine config section onto Options
func OptionsFromConfig(cfg config.EngineConfig, mode Mode) Options {
	return Options{Threads: cfg.Threads, CacheSizeMB: cfg.CacheSizeMB, Mode: mode}
}

// DB is the embedded analytical database
type DB struct {
	*sqlx.DB
	path   string
	mode   Mode
	logger *slog.Logger
}

// dsn renders the file path with one _pragma parameter per setting so that
// every pooled connection gets them.
func dsn(path string, opts Options) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(10000)")
	q.Add("_pragma", "temp_store(MEMORY)")
	if opts.Threads > 0 {
		q.Add("_pragma", fmt.Sprintf("threads(%d)", opts.Threads))
	}
	if opts.CacheSizeMB > 0 {
		// negative cache_size is in KiB
		q.Add("_pragma", fmt.Sprintf("cache_size(-%d)", opts.CacheSizeMB*1024))
	}

	switch opts.Mode {
	case ModeLoad:
		q.Add("_pragma", "journal_mode(OFF)")
		q.Add("_pragma", "synchronous(OFF)")
	case ModeRead:
		q.Add("_pragma", "query_only(1)")
	}
	return path + "?" + q.Encode()
}

// Open opens (creating if needed, in load mode) the database at path and
// verifies it with a ping.
func Open(ctx context.Context, path string, opts Options) (*DB, error) {
	logger := infrastructure.WithComponent(infrastructure.LoggerWithContext(ctx), "engine")

	if opts.Mode == ModeRead {
		if _, err := os.Stat(path); err != nil {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("database %s", path)).
				WithContext("hint", "run `patentworld load` first")
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create database directory", err)
	}

	sqlxDB, err := sqlx.Open(DriverName, dsn(path, opts))
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open database", err).WithContext("path", path)
	}

	switch opts.Mode {
	case ModeLoad:
		sqlxDB.SetMaxOpenConns(1)
	case ModeRead:
		n := opts.Threads
		if n < 1 {
			n = 1
		}
		sqlxDB.SetMaxOpenConns(n)
	}

	if err := sqlxDB.PingContext(ctx); err != nil {
		sqlxDB.Close()
		return nil, apperrors.NewStorageError("failed to ping database", err).WithContext("path", path)
	}

	logger.InfoContext(ctx, "Database opened",
		slog.String("path", path),
		slog.Int("threads", opts.Threads),
		slog.Int("cache_size_mb", opts.CacheSizeMB),
		slog.Bool("read_only", opts.Mode == ModeRead))

	return &DB{DB: sqlxDB, path: path, mode: opts.Mode, logger: logger}, nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// ReadOnly reports whether the database was opened query-only
func (db *DB) ReadOnly() bool {
	return db.mode == ModeRead
}

// CreateSchema creates every raw table that does not exist yet
func (db *DB) CreateSchema(ctx context.Context) error {
	for _, t := range Schema {
		if _, err := db.ExecContext(ctx, t.CreateSQL()); err != nil {
			return apperrors.NewStorageError("failed to create table "+t.Name, err)
		}
	}
	return nil
}

// RecreateTable drops and recreates one raw table, discarding its contents
func (db *DB) RecreateTable(ctx context.Context, t Table) error {
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+t.Name); err != nil {
		return apperrors.NewStorageError("failed to drop table "+t.Name, err)
	}
	if _, err := db.ExecContext(ctx, t.CreateSQL()); err != nil {
		return apperrors.NewStorageError("failed to create table "+t.Name, err)
	}
	return nil
}

// CreateIndexes builds the lookup indexes of every raw table
func (db *DB) CreateIndexes(ctx context.Context) error {
	for _, t := range Schema {
		for _, stmt := range t.IndexSQL() {
			start := time.Now()
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return apperrors.NewStorageError("failed to create index on "+t.Name, err).
					WithContext("statement", stmt)
			}
			db.logger.DebugContext(ctx, "Index created",
				slog.String("table", t.Name),
				slog.Duration("duration", time.Since(start)))
		}
	}
	return nil
}

// BuildDerived rebuilds the derived tables (utility patents, primary CPC,
// first assignee, team size, first-inventor country, forward citations within
// windowYears of grant).
func (db *DB) BuildDerived(ctx context.Context, windowYears int) error {
	for _, stmt := range derivedStatements {
		start := time.Now()
		var args []interface{}
		if stmt.window {
			args = append(args, windowYears)
		}
		if _, err := db.ExecContext(ctx, stmt.query, args...); err != nil {
			return apperrors.NewStorageError("failed to build "+stmt.name, err)
		}
		db.logger.DebugContext(ctx, "Derived statement executed",
			slog.String("table", stmt.name),
			slog.Duration("duration", time.Since(start)))
	}

	db.logger.InfoContext(ctx, "Derived tables built", slog.Int("citation_window_years", windowYears))
	return nil
}

// TableCounts returns the row count of every raw and derived table present
func (db *DB) TableCounts(ctx context.Context) (map[string]int64, error) {
	var names []string
	if err := db.Select(ctx, "list_tables", &names,
		`SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name`); err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(names))
	for _, name := range names {
		var n int64
		if err := db.Get(ctx, "count_"+name, &n, "SELECT COUNT(*) FROM "+name); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, nil
}

// HasTable reports whether a table exists
func (db *DB) HasTable(ctx context.Context, name string) (bool, error) {
	var n int
	err := db.Get(ctx, "has_table", &n,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name)
	return n > 0, err
}

// Select runs a named query into dest (a pointer to a slice), wrapping failures
// as QUERY errors.
func (db *DB) Select(ctx context.Context, name string, dest interface{}, query string, args ...interface{}) error {
	start := time.Now()
	if err := db.SelectContext(ctx, dest, query, args...); err != nil {
		return apperrors.NewQueryError(name, err)
	}
	db.logger.DebugContext(ctx, "Query executed",
		slog.String("query", name),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Get runs a named single-row query into dest. No rows is a NOT_FOUND error.
func (db *DB) Get(ctx context.Context, name string, dest interface{}, query string, args ...interface{}) error {
	if err := db.GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFoundError("rows for query " + name)
		}
		return apperrors.NewQueryError(name, err)
	}
	return nil
}

// Close closes the database
func (db *DB) Close() error {
	return db.DB.Close()
}
