// Package ingestion turns article URLs into indexed chunks.
//
// An Ingester handles one URL synchronously: fetch, extract the main content,
// split it into overlapping chunks and hand them to the index. Ingested URLs
// are recorded in the response cache so repeats are answered without a fetch.
//
// A Scheduler runs batches of URLs on a fixed-size worker pool. Only one batch
// may be in progress at a time. A batch is processed in consecutive slices the
// size of the pool, and a slice starts only after every job of the previous
// slice has finished. Failures are recorded per URL and never abort siblings.
package ingestion
