package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tapline/internal/config"
	"github.com/roach88/tapline/internal/migrate"
)

// Options configures Open.
type Options struct {
	// Location selects memory, development or production storage.
	Location config.StoreLocation

	// Path is the database file. Ignored for config.LocationMemory.
	Path string

	// Migrations to apply. Nil uses migrate.Embedded().
	Migrations []migrate.Migration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now stamps rows. Defaults to time.Now.
	Now func() time.Time

	// IDs generates session ids. Defaults to UUIDv7Generator.
	IDs IDGenerator
}

// Store provides durable storage for captured events.
//
// Thread-safety: all methods are safe for concurrent use. Writes are
// serialised by an internal mutex; the pool holds a single connection.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
	ids    IDGenerator
}

// Open creates or opens the database, applies pragmas, and migrates it to
// the latest version. It only returns a Store once no migration is pending.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ids := opts.IDs
	if ids == nil {
		ids = UUIDv7Generator{}
	}

	db, path, err := connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	migrations := opts.Migrations
	if migrations == nil {
		if migrations, err = migrate.Embedded(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load migrations: %w", err)
		}
	}
	version, err := migrateUp(ctx, db, migrations, logger, now)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("store ready", "path", path, "schema_version", version)
	return &Store{db: db, path: path, logger: logger, now: now, ids: ids}, nil
}

// OpenDB opens the database and applies pragmas without migrating it.
// It exists for manual migration tooling; capture code must use Open.
func OpenDB(ctx context.Context, opts Options) (*sql.DB, error) {
	db, _, err := connect(ctx, opts)
	return db, err
}

func connect(ctx context.Context, opts Options) (*sql.DB, string, error) {
	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// For :memory: this also keeps the database alive: it exists only as
	// long as its connection does.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to apply pragmas: %w", err)
	}
	return db, path, nil
}

func resolvePath(opts Options) (string, error) {
	if opts.Location == config.LocationMemory {
		return config.MemoryPath, nil
	}
	if opts.Path == "" {
		return "", fmt.Errorf("store location %q needs a database path", opts.Location)
	}
	if opts.Location == config.LocationProduction {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return "", fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return opts.Path, nil
}

// migrateUp runs the engine and confirms the database is current.
func migrateUp(ctx context.Context, db *sql.DB, migrations []migrate.Migration, logger *slog.Logger, now func() time.Time) (uint64, error) {
	engine := &migrate.Engine{DB: db, Migrations: migrations, Logger: logger, Now: now}

	if _, err := engine.Up(ctx); err != nil {
		return 0, fmt.Errorf("failed to migrate database: %w", err)
	}
	state, err := engine.State(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema state: %w", err)
	}
	if state.Kind != migrate.UpToDate {
		return 0, fmt.Errorf("schema is %s after migrating (version %d, %d pending)",
			state.Kind, state.Version, state.Pending)
	}
	return state.Version, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, ":memory:" for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// CheckpointResult is the outcome of PRAGMA wal_checkpoint.
type CheckpointResult struct {
	Busy bool

	// LogFrames and CheckpointedFrames are -1 when the database is not in WAL mode.
	LogFrames          int
	CheckpointedFrames int
}

// Checkpoint copies the WAL into the database file, truncates the WAL and
// lets SQLite refresh its query planner statistics.
func (s *Store) Checkpoint(ctx context.Context) (CheckpointResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		res  CheckpointResult
		busy int
	)
	err := s.db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)").
		Scan(&busy, &res.LogFrames, &res.CheckpointedFrames)
	if err != nil {
		return CheckpointResult{}, fmt.Errorf("wal checkpoint: %w", err)
	}
	res.Busy = busy != 0

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return res, fmt.Errorf("optimize: %w", err)
	}
	return res, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
