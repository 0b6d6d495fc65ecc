// Package transform normalizes validated market entries into durable records.
//
// All functions are pure (no I/O). Strings are trimmed and symbols uppercased;
// every numeric field is NaN/Inf-sanitized, clamped into a documented range,
// and rounded; the derived volatility score (|24h change| * volume) is
// computed after clamping. Output is sorted ascending by market-cap rank so
// load order is reproducible across runs with identical input.
package transform
