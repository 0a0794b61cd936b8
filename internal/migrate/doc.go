// Package migrate brings a SQLite database to the latest schema version.
//
// Migrations are authored as migrations/<unix-seconds>-<name>/{up,down}.sql
// and compiled by cmd/migrationc into compiled.psv, a pipe-delimited table
// that is embedded into the binary. At start-up the Engine:
//
//  1. verifies there is exactly one ledger table named "migration"
//  2. replays the ledger to find the high-water mark
//  3. applies every compiled migration newer than the mark, oldest first
//
// Each migration runs in its own transaction together with its ledger row,
// so a failed script leaves the database at the previous version. Down
// scripts are only ever run by Engine.Rollback, which is operator tooling
// and never part of start-up.
package migrate
