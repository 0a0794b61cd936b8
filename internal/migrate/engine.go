package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

const ledgerDDL = `
CREATE TABLE IF NOT EXISTS main.migration (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    direction TEXT NOT NULL CHECK (direction IN ('Up', 'Down')),
    applied_timestamp INTEGER NOT NULL,
    applied_at TEXT NOT NULL
)`

const (
	directionUp   = "Up"
	directionDown = "Down"
)

// StateKind classifies a database relative to the compiled migrations.
type StateKind int

const (
	// Uninitialized means the ledger table does not exist yet.
	Uninitialized StateKind = iota

	// AtVersion means at least one compiled migration is newer than the
	// high-water mark.
	AtVersion

	// UpToDate means no compiled migration is newer than the high-water mark.
	UpToDate
)

func (k StateKind) String() string {
	switch k {
	case Uninitialized:
		return "uninitialized"
	case AtVersion:
		return "at_version"
	case UpToDate:
		return "up_to_date"
	}
	return fmt.Sprintf("StateKind(%d)", int(k))
}

// State is the result of Engine.State.
type State struct {
	Kind StateKind

	// Version is the high-water mark, 0 when nothing is applied.
	Version uint64

	// Pending counts compiled migrations newer than Version.
	Pending int
}

// StatusEntry describes one compiled migration in Engine.Status.
type StatusEntry struct {
	Migration Migration
	Applied   bool
	AppliedAt time.Time

	// Pending is true when Up would apply the migration.
	Pending bool
}

// Engine applies compiled migrations to a database.
//
// Engine itself holds no lock. Callers that share DB with writers must not
// write until Up has returned.
type Engine struct {
	DB         *sql.DB
	Migrations []Migration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now stamps ledger rows. Defaults to time.Now.
	Now func() time.Time
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// State reports whether the database is uninitialized, behind, or current.
func (e *Engine) State(ctx context.Context) (State, error) {
	migrations, err := checkSet(slices.Clone(e.Migrations))
	if err != nil {
		return State{}, err
	}
	exists, err := checkLedger(ctx, e.DB)
	if err != nil {
		return State{}, err
	}
	if !exists {
		return State{Kind: Uninitialized, Pending: len(migrations)}, nil
	}

	applied, err := replay(ctx, e.DB)
	if err != nil {
		return State{}, err
	}
	hwm := highWater(applied)

	state := State{Kind: UpToDate, Version: hwm}
	for _, m := range migrations {
		if m.Timestamp > hwm {
			state.Pending++
		}
	}
	if state.Pending > 0 {
		state.Kind = AtVersion
	}
	return state, nil
}

// HighWaterMark returns the timestamp of the newest applied migration, or 0.
func (e *Engine) HighWaterMark(ctx context.Context) (uint64, error) {
	exists, err := checkLedger(ctx, e.DB)
	if err != nil || !exists {
		return 0, err
	}
	applied, err := replay(ctx, e.DB)
	if err != nil {
		return 0, err
	}
	return highWater(applied), nil
}

// Up applies, oldest first, every migration newer than the high-water mark.
// Each migration and its ledger row commit together. On failure the returned
// slice holds the migrations that were applied before the failing one.
func (e *Engine) Up(ctx context.Context) ([]Migration, error) {
	migrations, err := checkSet(slices.Clone(e.Migrations))
	if err != nil {
		return nil, err
	}
	if err := ensureLedger(ctx, e.DB); err != nil {
		return nil, err
	}
	applied, err := replay(ctx, e.DB)
	if err != nil {
		return nil, err
	}
	hwm := highWater(applied)

	var done []Migration
	for _, m := range migrations {
		if m.Timestamp <= hwm {
			continue
		}
		if err := e.apply(ctx, m, m.Up, directionUp); err != nil {
			return done, err
		}
		e.logger().Info("applied migration", "timestamp", m.Timestamp, "name", m.Name)
		done = append(done, m)
	}
	return done, nil
}

// Rollback runs the down script of the newest applied migration and records
// it in the ledger. It is operator tooling; start-up never calls it.
func (e *Engine) Rollback(ctx context.Context) (Migration, error) {
	migrations, err := checkSet(slices.Clone(e.Migrations))
	if err != nil {
		return Migration{}, err
	}
	exists, err := checkLedger(ctx, e.DB)
	if err != nil {
		return Migration{}, err
	}
	if !exists {
		return Migration{}, &MigrationError{Code: ErrCodeNothingToRollback, Message: "no ledger"}
	}
	applied, err := replay(ctx, e.DB)
	if err != nil {
		return Migration{}, err
	}
	hwm := highWater(applied)
	if hwm == 0 {
		return Migration{}, &MigrationError{Code: ErrCodeNothingToRollback, Message: "no migration applied"}
	}

	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Timestamp == hwm })
	if i < 0 {
		return Migration{}, invalid(hwm, "ledger references a migration that is not compiled in")
	}
	m := migrations[i]
	if err := e.apply(ctx, m, m.Down, directionDown); err != nil {
		return Migration{}, err
	}
	e.logger().Warn("rolled back migration", "timestamp", m.Timestamp, "name", m.Name)
	return m, nil
}

// Status lists every compiled migration with whether it has been applied.
func (e *Engine) Status(ctx context.Context) ([]StatusEntry, error) {
	migrations, err := checkSet(slices.Clone(e.Migrations))
	if err != nil {
		return nil, err
	}
	exists, err := checkLedger(ctx, e.DB)
	if err != nil {
		return nil, err
	}
	applied := map[uint64]time.Time{}
	if exists {
		if applied, err = replay(ctx, e.DB); err != nil {
			return nil, err
		}
	}
	hwm := highWater(applied)

	entries := make([]StatusEntry, 0, len(migrations))
	for _, m := range migrations {
		at, ok := applied[m.Timestamp]
		entries = append(entries, StatusEntry{
			Migration: m,
			Applied:   ok,
			AppliedAt: at,
			Pending:   !ok && m.Timestamp > hwm,
		})
	}
	return entries, nil
}

func (e *Engine) apply(ctx context.Context, m Migration, script, direction string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %s: begin tx: %w", m, err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return &MigrationError{
			Code:      ErrCodeScriptFailed,
			Timestamp: m.Timestamp,
			Message:   fmt.Sprintf("%s script of %q failed", direction, m.Name),
			Err:       err,
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO main.migration (direction, applied_timestamp, applied_at)
		VALUES (?, ?, ?)
	`, direction, int64(m.Timestamp), e.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("migration %s: record ledger row: %w", m, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %s: commit: %w", m, err)
	}
	return nil
}

// checkLedger reports whether the ledger exists. More than one table named
// "migration" across the main and temp schemas is a DUPLICATE_LEDGER error.
func checkLedger(ctx context.Context, q queryer) (bool, error) {
	var mainCount, tempCount int
	err := q.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'migration'),
			(SELECT count(*) FROM sqlite_temp_master WHERE type = 'table' AND name = 'migration')
	`).Scan(&mainCount, &tempCount)
	if err != nil {
		return false, fmt.Errorf("inspect ledger: %w", err)
	}
	if total := mainCount + tempCount; total > 1 {
		return false, &MigrationError{
			Code:    ErrCodeDuplicateLedger,
			Message: fmt.Sprintf("found %d tables named \"migration\", expected at most 1", total),
		}
	}
	return mainCount == 1, nil
}

func ensureLedger(ctx context.Context, db *sql.DB) error {
	exists, err := checkLedger(ctx, db)
	if err != nil || exists {
		return err
	}
	if _, err := db.ExecContext(ctx, ledgerDDL); err != nil {
		return fmt.Errorf("create ledger: %w", err)
	}
	return nil
}

// replay walks the ledger in id order: Up adds a version, Down removes it.
// The result maps each applied version to the time of its latest Up row.
func replay(ctx context.Context, q queryer) (map[uint64]time.Time, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT direction, applied_timestamp, applied_at
		FROM main.migration
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	defer rows.Close()

	applied := map[uint64]time.Time{}
	for rows.Next() {
		var (
			direction, appliedAt string
			ts                   int64
		)
		if err := rows.Scan(&direction, &ts, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		switch direction {
		case directionUp:
			at, _ := time.Parse(time.RFC3339Nano, appliedAt)
			applied[uint64(ts)] = at
		case directionDown:
			delete(applied, uint64(ts))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return applied, nil
}

func highWater(applied map[uint64]time.Time) uint64 {
	var hwm uint64
	for ts := range applied {
		hwm = max(hwm, ts)
	}
	return hwm
}
