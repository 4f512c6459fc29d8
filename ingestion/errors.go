package ingestion

import "errors"

var (
	// ErrBatchInProgress is returned when a batch is submitted while another runs.
	ErrBatchInProgress = errors.New("batch already in progress")

	// ErrSchedulerClosed is returned by SubmitBatch after Release.
	ErrSchedulerClosed = errors.New("scheduler released")

	// ErrIngesterRequired is returned when a scheduler is built without an ingester.
	ErrIngesterRequired = errors.New("ingester required")

	// ErrFetcherRequired is returned when an ingester is built without a fetcher.
	ErrFetcherRequired = errors.New("fetcher required")

	// ErrIndexRequired is returned when an ingester is built without an index.
	ErrIndexRequired = errors.New("index required")

	// ErrInvalidMaxAttempts is returned when RetryWithBackoff is called with maxAttempts <= 0.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
