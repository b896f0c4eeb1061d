// Package journalengine provides a PostgreSQL-backed change journal for the
// statemachine package.
//
// The Journal records every dispatched StateChange as a statemachine.StorableChange
// and reads the recorded history back in sequence order, so a StateManager can
// be rebuilt deterministically via statemachine.Replayer. It also stores and
// loads state Snapshots for incremental rebuilds.
//
// The Journal supports three PostgreSQL database libraries through an adapter
// pattern: pgxpool.Pool, sql.DB, and sqlx.DB. All provide equivalent
// functionality; choose whichever your application already uses.
//
// Appends are guarded by an optimistic concurrency check: the caller supplies
// the sequence number it observed when it last read the journal, and the
// append only succeeds if no other writer has appended since.
package journalengine
