// Package store provides SQLite-backed durable storage for captured input.
//
// The store records:
//   - Processes: one dimension row per distinct (NFC-normalised) process name
//   - Staged inputs: one fact row per persisted event, referencing its process
//   - Capture sessions: one row per run of a capture source (UUIDv7 ids)
//
// # Write Gate
//
// Open runs the migration engine to completion before it returns, so a
// *Store only exists once the schema is current. All writes go through one
// mutex and one connection; each RecordEvent is a single transaction that
// inserts the process row (when new) and the fact row together.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
