// Package batch executes many independent single-item storage
// operations with bounded concurrency, per-item retry, and lossless
// aggregation of partial results. A single failing item never aborts
// the rest of the batch; only configuration violations surface as
// errors from Run.
package batch
