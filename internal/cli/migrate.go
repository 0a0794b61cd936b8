package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tapline/internal/migrate"
	"github.com/roach88/tapline/internal/store"
)

// MigrationInfo describes one migration in command output.
type MigrationInfo struct {
	Timestamp uint64    `json:"timestamp"`
	Name      string    `json:"name"`
	Applied   bool      `json:"applied"`
	AppliedAt time.Time `json:"applied_at,omitzero"`
	Pending   bool      `json:"pending"`
}

// MigrateStatus is the result of migrate status.
type MigrateStatus struct {
	State      string          `json:"state"`
	Version    uint64          `json:"version"`
	Migrations []MigrationInfo `json:"migrations"`
}

// WriteText renders the status table.
func (s MigrateStatus) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Schema: %s (version %d)\n", s.State, s.Version)
	fmt.Fprintln(w)
	for _, m := range s.Migrations {
		mark, note := "[ ]", "skipped"
		switch {
		case m.Applied:
			mark, note = "[x]", "applied "+m.AppliedAt.UTC().Format(time.RFC3339)
		case m.Pending:
			note = "pending"
		}
		fmt.Fprintf(w, "  %s %d-%s  %s\n", mark, m.Timestamp, m.Name, note)
	}
	return nil
}

// MigrateResult is the result of migrate up and migrate down.
type MigrateResult struct {
	Direction string          `json:"direction"`
	Version   uint64          `json:"version"`
	Changed   []MigrationInfo `json:"changed"`
}

// WriteText lists the migrations that were run.
func (r MigrateResult) WriteText(w io.Writer) error {
	if len(r.Changed) == 0 {
		_, err := fmt.Fprintf(w, "Nothing to do (version %d)\n", r.Version)
		return err
	}
	verb := "Applied"
	if r.Direction == "down" {
		verb = "Rolled back"
	}
	for _, m := range r.Changed {
		fmt.Fprintf(w, "%s %d-%s\n", verb, m.Timestamp, m.Name)
	}
	_, err := fmt.Fprintf(w, "Schema version %d\n", r.Version)
	return err
}

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect and manage the database schema",
		Long: `Inspect and manage the database schema.

run and stats migrate the database automatically. These subcommands are for
operators: up applies pending migrations, status lists every compiled
migration, and down rolls back the newest applied one.`,
	}

	cmd.AddCommand(newMigrateUpCommand(rootOpts))
	cmd.AddCommand(newMigrateStatusCommand(rootOpts))
	cmd.AddCommand(newMigrateDownCommand(rootOpts))
	return cmd
}

func newMigrateUpCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "up",
		Short:         "Apply pending migrations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *migrate.Engine) error {
				applied, err := e.Up(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "migration failed", err)
				}
				version, err := e.HighWaterMark(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read schema version", err)
				}
				result := MigrateResult{Direction: "up", Version: version, Changed: []MigrationInfo{}}
				for _, m := range applied {
					result.Changed = append(result.Changed, MigrationInfo{Timestamp: m.Timestamp, Name: m.Name, Applied: true})
				}
				return opts.formatter(cmd).Success(result)
			})
		},
	}
}

func newMigrateStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "List compiled migrations and whether they are applied",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *migrate.Engine) error {
				state, err := e.State(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read schema state", err)
				}
				entries, err := e.Status(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read migration status", err)
				}
				status := MigrateStatus{
					State:      state.Kind.String(),
					Version:    state.Version,
					Migrations: make([]MigrationInfo, 0, len(entries)),
				}
				for _, entry := range entries {
					status.Migrations = append(status.Migrations, MigrationInfo{
						Timestamp: entry.Migration.Timestamp,
						Name:      entry.Migration.Name,
						Applied:   entry.Applied,
						AppliedAt: entry.AppliedAt,
						Pending:   entry.Pending,
					})
				}
				return opts.formatter(cmd).Success(status)
			})
		},
	}
}

func newMigrateDownCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "down",
		Short:         "Roll back the newest applied migration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *migrate.Engine) error {
				m, err := e.Rollback(ctx)
				if migrate.IsNothingToRollback(err) {
					return WrapExitError(ExitFailure, "nothing to roll back", err)
				}
				if err != nil {
					return WrapExitError(ExitFailure, "rollback failed", err)
				}
				version, err := e.HighWaterMark(ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "failed to read schema version", err)
				}
				return opts.formatter(cmd).Success(MigrateResult{
					Direction: "down",
					Version:   version,
					Changed:   []MigrationInfo{{Timestamp: m.Timestamp, Name: m.Name}},
				})
			})
		},
	}
}

// withEngine opens the configured database without migrating it and hands
// fn an engine over the embedded migrations.
func withEngine(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, *migrate.Engine) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	migrations, err := migrate.Embedded()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to load migrations", err)
	}
	storeOpts, err := storeOptions(opts)
	if err != nil {
		return err
	}
	db, err := store.OpenDB(ctx, storeOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer closeDB(opts, db)

	return fn(ctx, &migrate.Engine{DB: db, Migrations: migrations, Logger: opts.Logger, Now: opts.Now})
}

func closeDB(opts *RootOptions, db *sql.DB) {
	if err := db.Close(); err != nil {
		opts.Logger.Error("error closing database", "error", err)
	}
}
