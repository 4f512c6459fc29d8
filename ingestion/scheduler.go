// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/lore/core"
)

// DefaultConcurrency is the number of jobs run in parallel, and so the slice size.
const DefaultConcurrency = 3

// JobRunner ingests one URL. Ingester satisfies it.
type JobRunner interface {
	Ingest(ctx context.Context, url, title string) (*core.IngestResult, error)
}

// Scheduler runs single-flight ingestion batches on an ants pool.
type Scheduler struct {
	runner      JobRunner
	pool        *ants.Pool
	concurrency int
	progressOut io.Writer
	onComplete  func(core.BatchStatus)
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	status   core.BatchStatus
	jobs     []core.IngestionJob
	progress *ProgressTracker
	closed   bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler) error

// WithConcurrency sets the pool size and slice length. Default is DefaultConcurrency.
func WithConcurrency(n int) SchedulerOption {
	return func(s *Scheduler) error {
		if n < 1 {
			return fmt.Errorf("%w: concurrency must be at least 1, got %d", core.ErrValidation, n)
		}
		s.concurrency = n
		return nil
	}
}

// WithProgress reports every batch's progress to w.
func WithProgress(w io.Writer) SchedulerOption {
	return func(s *Scheduler) error {
		s.progressOut = w
		return nil
	}
}

// WithOnComplete registers a hook called with the final status of each batch.
func WithOnComplete(fn func(core.BatchStatus)) SchedulerOption {
	return func(s *Scheduler) error {
		s.onComplete = fn
		return nil
	}
}

// WithSchedulerLogger sets a custom logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) error {
		if logger != nil {
			s.logger = logger.With("component", "scheduler")
		}
		return nil
	}
}

// NewScheduler creates a scheduler running jobs through runner.
func NewScheduler(runner JobRunner, opts ...SchedulerOption) (*Scheduler, error) {
	if runner == nil {
		return nil, ErrIngesterRequired
	}
	s := &Scheduler{
		runner:      runner,
		concurrency: DefaultConcurrency,
		logger:      slog.Default().With("component", "scheduler"),
		status:      core.BatchStatus{Errors: []string{}},
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(s.concurrency)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	// Batches outlive the request that submitted them.
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// SubmitBatch validates urls and starts processing them in the background.
// It returns ErrBatchInProgress, without touching the running batch, if a
// batch has not finished yet.
func (s *Scheduler) SubmitBatch(ctx context.Context, urls []string) error {
	if err := core.ValidateBatch(urls); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	if s.status.InProgress {
		s.mu.Unlock()
		return ErrBatchInProgress
	}
	s.status = core.BatchStatus{Total: len(urls), InProgress: true, Errors: []string{}}
	s.jobs = make([]core.IngestionJob, len(urls))
	for i, u := range urls {
		s.jobs[i] = core.IngestionJob{URL: u, Status: core.JobQueued}
	}
	s.progress = nil
	if s.progressOut != nil {
		s.progress = NewProgressTracker(s.progressOut, len(urls), 1)
		s.progress.Start()
	}
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("batch accepted", "urls", len(urls), "concurrency", s.concurrency)
	go s.run(append([]string(nil), urls...))
	return nil
}

func (s *Scheduler) run(urls []string) {
	defer s.wg.Done()

	for start := 0; start < len(urls); start += s.concurrency {
		end := min(start+s.concurrency, len(urls))

		var slice sync.WaitGroup
		for i := start; i < end; i++ {
			if s.ctx.Err() != nil {
				s.finish(i, s.ctx.Err())
				continue
			}
			s.setStatus(i, core.JobProcessing)
			slice.Add(1)
			if err := s.pool.Submit(func() {
				defer slice.Done()
				_, err := s.runner.Ingest(s.ctx, urls[i], "")
				s.finish(i, err)
			}); err != nil {
				slice.Done()
				s.finish(i, err)
			}
		}
		slice.Wait()
		s.logger.Debug("slice finished", "from", start, "to", end)
	}

	s.mu.Lock()
	s.status.InProgress = false
	final := s.snapshot()
	progress := s.progress
	s.mu.Unlock()

	if progress != nil {
		progress.Finish()
	}
	s.logger.Info("batch finished", "processed", final.Processed, "failed", len(final.Errors))
	if s.onComplete != nil {
		s.onComplete(final)
	}
}

func (s *Scheduler) setStatus(i int, status core.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.jobs[i].Status.Terminal() {
		s.jobs[i].Status = status
	}
}

// finish moves job i to its terminal state.
func (s *Scheduler) finish(i int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &s.jobs[i]
	if job.Status.Terminal() {
		return
	}
	if err != nil {
		job.Status = core.JobFailed
		job.Error = err.Error()
		s.status.Errors = append(s.status.Errors, fmt.Sprintf("%s: %s", job.URL, err))
		s.logger.Warn("ingestion failed", "url", job.URL, "err", err)
	} else {
		job.Status = core.JobCompleted
	}
	s.status.Processed++
	if s.progress != nil {
		s.progress.Done(err != nil)
	}
}

// snapshot copies the status. Must be called with lock held.
func (s *Scheduler) snapshot() core.BatchStatus {
	st := s.status
	st.Errors = append([]string{}, s.status.Errors...)
	return st
}

// Status returns a snapshot of the current or last batch.
func (s *Scheduler) Status() core.BatchStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Jobs returns a snapshot of the current or last batch's jobs.
func (s *Scheduler) Jobs() []core.IngestionJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.IngestionJob(nil), s.jobs...)
}

// Wait blocks until the running batch, if any, has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Release cancels the running batch, waits for it and frees the pool.
// The scheduler should not be used after calling Release.
func (s *Scheduler) Release() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.pool.Release()
}
