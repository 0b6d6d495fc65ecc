// Package storage persists transformed market records behind one Backend
// interface with two implementations:
//   - PostgreSQL (pgx pool): the primary analytics store
//   - SQLite (embedded file): the fallback when Postgres is unreachable
//
// The backend is probed once at startup and fixed for the process lifetime.
// Rows are keyed by (entity_id, extracted_at); re-upserting a key overwrites
// the non-key fields, so replaying a run converges instead of duplicating.
package storage
