// Package memoryengine provides an in-memory change journal for the
// statemachine package.
//
// It offers the same append/read/snapshot surface as the PostgreSQL-backed
// journalengine, including the optimistic concurrency semantics, but keeps
// everything in process memory. It is intended for tests and for callers
// that do not need durability.
package memoryengine
