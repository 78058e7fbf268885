// Package docstore provides generic document persistence over named
// collections, backed by SQLite.
//
// # Model
//
// Every record is a Document: a JSON body plus an id and creation
// timestamp kept in dedicated columns. Collections and their secondary
// indexes are declared up front in a Schema; indexes become SQLite
// expression indexes over json_extract of the body, so equality queries
// on declared fields stay cheap while everything else is an explicit
// linear scan.
//
// # Operations
//
//   - Insert: append a new document (id and timestamp filled in if zero)
//   - Patch: atomic field merge via json_patch; ErrNotFound if absent
//   - Delete: remove by id; ErrNotFound if absent
//   - Get: fetch by id
//   - QueryByIndex: equality query over a declared index, optionally
//     newest-first, limited, or capped to documents created before a
//     cutoff time
//
// Query results are finite slices materialized at call time (snapshot
// semantics), never live cursors.
//
// # Timestamps
//
// created_at is stored as Unix milliseconds. Retention math upstream is
// millisecond-based, and integer ordering avoids the tie-breaking
// problems of second-granularity string timestamps.
//
// # Testing
//
// Use NewSQLiteStore(":memory:", schema) for tests; every package that
// consumes the store runs against a real in-memory database.
package docstore
