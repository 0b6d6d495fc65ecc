// Package server is the ops HTTP surface of the pipeline.
//
// Endpoints:
//   - POST /api/v1/etl/trigger: run the pipeline now, synchronously
//   - GET  /health: storage reachability, row count, breaker state
//   - GET  /api/v1/market/latest: rows of the newest extraction
//
// A trigger that collides with an in-flight run returns 409; an open
// circuit breaker returns 503.
package server
