// Package model defines shared data types used across the crypto ETL pipeline.
//
// Types flow through the stages in order: RawEntry (fetch) -> ValidatedEntry
// (validate) -> TransformedRecord (transform, persisted by load). RunOutcome
// and LoadSummary report on a run; they are logged, never stored.
//
// Conventions:
//   - Money/volume fields: float64 in the configured quote currency
//   - Timestamps: time.Time, always UTC
//   - IDs: string for external asset identifiers, uuid.UUID for run IDs
package model
