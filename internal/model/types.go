package model

import (
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Pipeline Stage Types
// -----------------------------------------------------------------------------

// RawEntry is one asset exactly as returned by the markets endpoint.
// Ephemeral: discarded once validation has produced a ValidatedEntry.
type RawEntry map[string]any

// ValidatedEntry is a RawEntry with required fields confirmed present and
// coerced to canonical types. Null numerics are already defaulted here
// (0 for price/cap/volume/change, 9999 for rank).
type ValidatedEntry struct {
	ID             string  // Stable external identifier (e.g., "bitcoin")
	Symbol         string  // Exchange symbol, case as received
	Name           string  // Display name
	CurrentPrice   float64 // Unit price in the quote currency
	MarketCap      float64 // Total market capitalization
	TotalVolume    float64 // 24h traded volume
	PriceChangePct float64 // 24h price change, percent
	Rank           int     // Market-cap rank, 9999 when the API omitted it
}

// TransformedRecord is the durable unit persisted by the loader.
// Invariants: every numeric field is clamped and NaN/Inf-free, Symbol is
// uppercase, ExtractedAt carries UTC.
// (EntityID, ExtractedAt) is the storage-layer uniqueness key.
type TransformedRecord struct {
	EntityID        string    // Stable external identifier
	Symbol          string    // Uppercase symbol
	Name            string    // Display name, falls back to EntityID
	CurrentPrice    float64   // Clamped to [0, 1e9]
	MarketCap       float64   // Clamped to [0, 1e15]
	TotalVolume     float64   // Clamped to [0, 1e13]
	PriceChangePct  float64   // Clamped to [-100, 10000]
	Rank            int       // Clamped to [1, 100000]
	VolatilityScore float64   // |PriceChangePct| * TotalVolume, post-clamp
	ExtractedAt     time.Time // Stamped once per run at fetch time, UTC
}

// -----------------------------------------------------------------------------
// Run Reporting Types
// -----------------------------------------------------------------------------

// Trigger sources recorded on a RunOutcome.
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerReplay    = "replay"
	TriggerCLI       = "cli"
)

// LoadSummary aggregates the outcome of one load call across all batches.
type LoadSummary struct {
	Total    int           // Rows attempted
	Upserted int           // Rows inserted or overwritten
	Failed   int           // Rows in batches whose transaction failed
	Elapsed  time.Duration // Wall time spent loading
}

// SuccessRatio returns Upserted/Total, or 0 when nothing was attempted.
func (s LoadSummary) SuccessRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Upserted) / float64(s.Total)
}

// MarketSummary is a per-run digest of the transformed snapshot, computed
// after transform and attached to the RunOutcome for logging and the ops API.
type MarketSummary struct {
	Records           int       // Transformed records in the snapshot
	TotalMarketCap    float64   // Sum of market caps
	AvgPrice          float64   // Mean current price
	AvgChangePct      float64   // Mean 24h change
	Gainers           int       // Records with positive 24h change
	Losers            int       // Records with negative 24h change
	TopGainer         string    // EntityID with the highest 24h change
	TopGainerPct      float64   // Its 24h change
	MostVolatile      string    // EntityID with the highest volatility score
	MostVolatileScore float64   // Its volatility score
	ExtractedAt       time.Time // Snapshot watermark
}

// RunOutcome is the structured result of exactly one pipeline run. It is
// returned to the caller and logged, never persisted to the relational store.
type RunOutcome struct {
	RunID              uuid.UUID      // Unique per run
	Trigger            string         // TriggerScheduled, TriggerManual, ...
	StartedAt          time.Time      // UTC
	Success            bool           // See pipeline.RunOnce for the success policy
	EntriesExtracted   int            // Raw entries returned by fetch
	RecordsTransformed int            // Records surviving transform
	Load               *LoadSummary   // Nil when the run failed before loading
	Summary            *MarketSummary // Nil when the run failed before transform
	Err                string         // Empty on success
	Duration           time.Duration  // Total run wall time
}
