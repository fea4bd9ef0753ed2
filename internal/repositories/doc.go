// Package repositories implements SQLite persistence for play history.
//
// [PlayRepository] handles CRUD operations with atomic sequence generation for stable ordering.
// Deletes are soft via deleted_at timestamps, and deleted records are excluded from queries by default.
//
// [PlayRecorder] adapts the repository to the dispatcher's recorder hook so every click lands in history.
//
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
