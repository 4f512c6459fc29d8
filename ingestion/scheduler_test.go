package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/lore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackingRunner records concurrency and the order jobs start and finish.
type trackingRunner struct {
	mu      sync.Mutex
	events  []string
	fail    map[string]error
	gate    chan struct{}
	active  atomic.Int32
	maxSeen atomic.Int32
	delay   time.Duration
}

func (r *trackingRunner) log(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *trackingRunner) Ingest(ctx context.Context, url, title string) (*core.IngestResult, error) {
	n := r.active.Add(1)
	for {
		seen := r.maxSeen.Load()
		if n <= seen || r.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	r.log("start " + url)
	defer func() {
		r.log("end " + url)
		r.active.Add(-1)
	}()

	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	if err := r.fail[url]; err != nil {
		return nil, err
	}
	return &core.IngestResult{URL: url}, nil
}

func (r *trackingRunner) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func urls(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://news.example/%d", i+1)
	}
	return out
}

func TestNewScheduler_Options(t *testing.T) {
	_, err := NewScheduler(nil)
	assert.ErrorIs(t, err, ErrIngesterRequired)

	_, err = NewScheduler(&trackingRunner{}, WithConcurrency(0))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestScheduler_SlicesOfConcurrencyLimit(t *testing.T) {
	runner := &trackingRunner{delay: 10 * time.Millisecond}
	var final core.BatchStatus
	s, err := NewScheduler(runner, WithConcurrency(2), WithOnComplete(func(st core.BatchStatus) { final = st }))
	require.NoError(t, err)
	defer s.Release()

	batch := urls(4)
	require.NoError(t, s.SubmitBatch(context.Background(), batch))
	s.Wait()

	st := s.Status()
	assert.Equal(t, 4, st.Processed)
	assert.Equal(t, 4, st.Total)
	assert.False(t, st.InProgress)
	assert.Empty(t, st.Errors)
	assert.Equal(t, st, final)
	assert.LessOrEqual(t, runner.maxSeen.Load(), int32(2))

	// every job of the first slice ends before any job of the second starts
	order := runner.order()
	pos := make(map[string]int, len(order))
	for i, e := range order {
		pos[e] = i
	}
	for _, first := range batch[:2] {
		for _, second := range batch[2:] {
			assert.Less(t, pos["end "+first], pos["start "+second])
		}
	}

	for _, job := range s.Jobs() {
		assert.Equal(t, core.JobCompleted, job.Status)
	}
}

func TestScheduler_FailuresAreIsolated(t *testing.T) {
	batch := urls(4)
	runner := &trackingRunner{fail: map[string]error{
		batch[1]: core.ErrNotFound,
		batch[3]: errors.New("boom"),
	}}
	s, err := NewScheduler(runner, WithConcurrency(2))
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.SubmitBatch(context.Background(), batch))
	s.Wait()

	st := s.Status()
	assert.Equal(t, 4, st.Processed)
	require.Len(t, st.Errors, 2)
	assert.ElementsMatch(t, []string{
		batch[1] + ": not found",
		batch[3] + ": boom",
	}, st.Errors)

	jobs := s.Jobs()
	assert.Equal(t, core.JobCompleted, jobs[0].Status)
	assert.Equal(t, core.JobFailed, jobs[1].Status)
	assert.Equal(t, "not found", jobs[1].Error)
}

func TestScheduler_SingleFlight(t *testing.T) {
	runner := &trackingRunner{gate: make(chan struct{})}
	s, err := NewScheduler(runner, WithConcurrency(2))
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.SubmitBatch(context.Background(), urls(3)))
	require.Eventually(t, func() bool { return runner.active.Load() == 2 }, time.Second, 5*time.Millisecond)
	before := s.Status()
	require.True(t, before.InProgress)

	err = s.SubmitBatch(context.Background(), urls(1))
	assert.ErrorIs(t, err, ErrBatchInProgress)
	assert.Equal(t, before, s.Status(), "rejected submission leaves the batch untouched")
	assert.Len(t, s.Jobs(), 3)

	close(runner.gate)
	s.Wait()
	assert.Equal(t, 3, s.Status().Processed)

	require.NoError(t, s.SubmitBatch(context.Background(), urls(1)), "accepted once the batch finished")
	s.Wait()
	assert.Equal(t, 1, s.Status().Total)
}

func TestScheduler_Validation(t *testing.T) {
	s, err := NewScheduler(&trackingRunner{})
	require.NoError(t, err)
	defer s.Release()

	ctx := context.Background()
	assert.ErrorIs(t, s.SubmitBatch(ctx, nil), core.ErrValidation)
	assert.ErrorIs(t, s.SubmitBatch(ctx, urls(core.MaxBatchSize+1)), core.ErrValidation)
	assert.ErrorIs(t, s.SubmitBatch(ctx, []string{"https://ok.example", "ftp://nope"}), core.ErrValidation)
	assert.False(t, s.Status().InProgress)
}

func TestScheduler_ReleaseCancelsBatch(t *testing.T) {
	runner := &trackingRunner{gate: make(chan struct{})}
	s, err := NewScheduler(runner, WithConcurrency(1))
	require.NoError(t, err)

	require.NoError(t, s.SubmitBatch(context.Background(), urls(3)))
	require.Eventually(t, func() bool { return runner.active.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Release()

	st := s.Status()
	assert.False(t, st.InProgress)
	assert.Equal(t, 3, st.Processed)
	assert.Len(t, st.Errors, 3)
	assert.ErrorIs(t, s.SubmitBatch(context.Background(), urls(1)), ErrSchedulerClosed)
}

func TestScheduler_Progress(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewScheduler(&trackingRunner{}, WithConcurrency(2), WithProgress(&buf))
	require.NoError(t, err)
	defer s.Release()

	require.NoError(t, s.SubmitBatch(context.Background(), urls(2)))
	s.Wait()
	assert.Contains(t, buf.String(), "2/2")
}
