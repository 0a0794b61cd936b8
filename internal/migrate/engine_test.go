package migrate

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mWidgets = Migration{
		Timestamp: 100,
		Name:      "widgets",
		Up:        "CREATE TABLE widgets (id INTEGER PRIMARY KEY, label TEXT NOT NULL);",
		Down:      "DROP TABLE widgets;",
	}
	mSeed = Migration{
		Timestamp: 200,
		Name:      "seed_widgets",
		Up:        "INSERT INTO widgets (label) VALUES ('alpha');\nINSERT INTO widgets (label) VALUES ('beta');",
		Down:      "DELETE FROM widgets;",
	}
	mIndex = Migration{
		Timestamp: 300,
		Name:      "index_widgets",
		Up:        "CREATE UNIQUE INDEX idx_widgets_label ON widgets(label);",
		Down:      "DROP INDEX idx_widgets_label;",
	}
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// One connection: every query must see the same in-memory database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func newEngine(t *testing.T, db *sql.DB, migrations ...Migration) *Engine {
	t.Helper()
	at := time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
	return &Engine{
		DB:         db,
		Migrations: migrations,
		Now: func() time.Time {
			at = at.Add(time.Second)
			return at
		},
	}
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type IN ('table', 'index') AND name = ?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func timestamps(ms []Migration) []uint64 {
	out := make([]uint64, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Timestamp)
	}
	return out
}

func TestEngine_FreshDatabase(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	e := newEngine(t, db, mWidgets, mSeed, mIndex)

	state, err := e.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, State{Kind: Uninitialized, Pending: 3}, state)

	hwm, err := e.HighWaterMark(ctx)
	require.NoError(t, err)
	assert.Zero(t, hwm)

	applied, err := e.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 200, 300}, timestamps(applied))

	state, err = e.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, State{Kind: UpToDate, Version: 300}, state)
	assert.True(t, tableExists(t, db, "idx_widgets_label"))
}

func TestEngine_UpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	e := newEngine(t, db, mWidgets, mSeed, mIndex)

	_, err := e.Up(ctx)
	require.NoError(t, err)

	applied, err := e.Up(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	var ledger, widgets int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM migration`).Scan(&ledger))
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM widgets`).Scan(&widgets))
	assert.Equal(t, 3, ledger)
	assert.Equal(t, 2, widgets, "seed must not run twice")
}

func TestEngine_AppliesInTimestampOrder(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	// Declared out of order; seed and index depend on widgets existing.
	e := newEngine(t, db, mIndex, mWidgets, mSeed)

	applied, err := e.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 200, 300}, timestamps(applied))

	rows, err := db.Query(`SELECT applied_timestamp FROM migration ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()
	var order []uint64
	for rows.Next() {
		var ts uint64
		require.NoError(t, rows.Scan(&ts))
		order = append(order, ts)
	}
	assert.Equal(t, []uint64{100, 200, 300}, order)
}

func TestEngine_OnlyNewerMigrationsApply(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := newEngine(t, db, mWidgets).Up(ctx)
	require.NoError(t, err)

	e := newEngine(t, db, mWidgets, mSeed, mIndex)
	state, err := e.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, State{Kind: AtVersion, Version: 100, Pending: 2}, state)

	applied, err := e.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{200, 300}, timestamps(applied))
}

func TestEngine_SkipsMigrationsOlderThanHighWaterMark(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := newEngine(t, db, mWidgets, mIndex).Up(ctx)
	require.NoError(t, err)

	// A migration authored with an older timestamp arrives late.
	e := newEngine(t, db, mWidgets, mSeed, mIndex)
	applied, err := e.Up(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	status, err := e.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 3)
	assert.True(t, status[0].Applied)
	assert.False(t, status[1].Applied)
	assert.False(t, status[1].Pending)
	assert.True(t, status[2].Applied)
}

func TestEngine_ScriptFailureKeepsEarlierMigrations(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	broken := Migration{
		Timestamp: 200,
		Name:      "broken",
		Up:        "CREATE TABLE gadgets (id INTEGER PRIMARY KEY);\nINSERT INTO missing_table VALUES (1);",
		Down:      "DROP TABLE gadgets;",
	}
	e := newEngine(t, db, mWidgets, broken, mIndex)

	applied, err := e.Up(ctx)
	require.Error(t, err)
	assert.True(t, IsScriptFailed(err), "got %v", err)
	assert.Equal(t, []uint64{100}, timestamps(applied))

	var me *MigrationError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, uint64(200), me.Timestamp)

	hwm, err := e.HighWaterMark(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), hwm)
	assert.True(t, tableExists(t, db, "widgets"))
	assert.False(t, tableExists(t, db, "gadgets"), "failed migration must roll back entirely")
	assert.False(t, tableExists(t, db, "idx_widgets_label"))

	// Once fixed, start-up continues from the last good version.
	e.Migrations = []Migration{mWidgets, mSeed, mIndex}
	applied, err = e.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{200, 300}, timestamps(applied))
}

func TestEngine_DuplicateLedger(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	e := newEngine(t, db, mWidgets)

	_, err := e.Up(ctx)
	require.NoError(t, err)

	_, err = db.Exec(`CREATE TEMP TABLE migration (id INTEGER)`)
	require.NoError(t, err)

	_, err = e.Up(ctx)
	assert.True(t, IsDuplicateLedger(err), "got %v", err)

	_, err = e.State(ctx)
	assert.True(t, IsDuplicateLedger(err), "got %v", err)

	_, err = e.HighWaterMark(ctx)
	assert.True(t, IsDuplicateLedger(err), "got %v", err)
}

func TestEngine_InvalidMigrationSet(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	clash := mSeed
	clash.Timestamp = mWidgets.Timestamp
	e := newEngine(t, db, mWidgets, clash)

	_, err := e.Up(ctx)
	assert.True(t, IsInvalidMigration(err), "got %v", err)
	assert.False(t, tableExists(t, db, "migration"), "nothing may run before the set is validated")
}

func TestEngine_Rollback(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	e := newEngine(t, db, mWidgets, mSeed, mIndex)

	_, err := e.Rollback(ctx)
	assert.True(t, IsNothingToRollback(err), "got %v", err)

	_, err = e.Up(ctx)
	require.NoError(t, err)

	m, err := e.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, mIndex, m)
	assert.False(t, tableExists(t, db, "idx_widgets_label"))

	hwm, err := e.HighWaterMark(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), hwm)

	state, err := e.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, State{Kind: AtVersion, Version: 200, Pending: 1}, state)

	for _, want := range []uint64{200, 100} {
		m, err := e.Rollback(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, m.Timestamp)
	}
	_, err = e.Rollback(ctx)
	assert.True(t, IsNothingToRollback(err), "got %v", err)
	assert.False(t, tableExists(t, db, "widgets"))

	// A fully rolled back database migrates up again from scratch.
	applied, err := e.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uint64{100, 200, 300}, timestamps(applied))
}

func TestEngine_Status(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := newEngine(t, db, mWidgets).Up(ctx)
	require.NoError(t, err)

	status, err := newEngine(t, db, mWidgets, mSeed).Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 2)

	assert.True(t, status[0].Applied)
	assert.Equal(t, time.Date(2024, 5, 17, 9, 30, 1, 0, time.UTC), status[0].AppliedAt)
	assert.False(t, status[0].Pending)

	assert.False(t, status[1].Applied)
	assert.True(t, status[1].AppliedAt.IsZero())
	assert.True(t, status[1].Pending)
}

func TestEngine_EmbeddedMigrations(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	migrations, err := Embedded()
	require.NoError(t, err)

	e := newEngine(t, db, migrations...)
	applied, err := e.Up(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, len(migrations))

	for _, table := range []string{"processes", "capture_sessions", "staged_inputs"} {
		assert.True(t, tableExists(t, db, table), table)
	}

	// Every down script must undo its up script.
	for range migrations {
		_, err := e.Rollback(ctx)
		require.NoError(t, err)
	}
	for _, table := range []string{"processes", "capture_sessions", "staged_inputs"} {
		assert.False(t, tableExists(t, db, table), table)
	}
}
