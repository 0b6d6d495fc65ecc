// Package validate enforces the minimal response contract on raw market
// payloads before they enter the pipeline.
//
// Two layers:
//   - Payload: the top level must be a non-empty JSON array (shape errors are
//     fatal for the run and never retried)
//   - Entries: per-entry required-field and type checks; defective entries
//     are dropped with a warning, null numerics are coerced to defaults
package validate
