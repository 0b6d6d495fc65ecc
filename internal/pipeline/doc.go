// Package pipeline orchestrates the ETL run loop.
//
// A run is strictly sequential: extract, validate, transform, load. The
// Pipeline turns whatever happens into a RunOutcome; the Orchestrator owns
// the interval schedule, a single-flight lock so runs never overlap, and a
// circuit breaker that halts the schedule after too many consecutive
// failures.
package pipeline
