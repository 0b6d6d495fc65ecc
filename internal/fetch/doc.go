// Package fetch implements the extract stage: a CoinGecko markets API
// client, retry with exponential backoff, and audit snapshot persistence.
//
// Endpoint:
//   - GET /coins/markets (top-N assets by market cap, 24h change included)
//
// Every successful payload is written to the snapshot store before shape
// validation, so defective responses remain inspectable and any run can be
// replayed offline via SnapshotFetcher.
package fetch
