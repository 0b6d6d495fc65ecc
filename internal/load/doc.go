// Package load writes transformed records to the storage backend in
// fixed-size batches, one transaction per batch. Partial failure degrades
// the load summary instead of aborting the run.
package load
