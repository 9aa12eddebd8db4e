package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingAggregator struct {
	started chan struct{}
	release chan struct{}
	err     error
}

func (a *blockingAggregator) Run(ctx context.Context) (*RunSummary, error) {
	if a.started != nil {
		close(a.started)
		<-a.release
	}
	if a.err != nil {
		return nil, a.err
	}
	_, hasDeadline := ctx.Deadline()
	return &RunSummary{NoEvent: hasDeadline}, nil
}

func TestRebuildJob_Metadata(t *testing.T) {
	job := NewRebuildJob(&blockingAggregator{}, "0 * * * *", time.Minute)
	assert.Equal(t, JobName, job.GetName())
	assert.Equal(t, "0 * * * *", job.GetSchedule())
}

func TestRebuildJob_TriggerAppliesTimeoutAndRecords(t *testing.T) {
	job := NewRebuildJob(&blockingAggregator{}, "@hourly", time.Minute)
	assert.Nil(t, job.LastRun())

	summary, err := job.Trigger(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.NoEvent)
	assert.Same(t, summary, job.LastRun())
}

func TestRebuildJob_RefusesOverlap(t *testing.T) {
	agg := &blockingAggregator{started: make(chan struct{}), release: make(chan struct{})}
	job := NewRebuildJob(agg, "@hourly", time.Minute)

	done := make(chan error, 1)
	go func() {
		done <- job.Execute(context.Background())
	}()
	<-agg.started

	_, err := job.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(agg.release)
	assert.NoError(t, <-done)
}

func TestRebuildJob_PropagatesFatal(t *testing.T) {
	job := NewRebuildJob(&blockingAggregator{err: &FatalJobError{Step: "clear_cache", Err: errors.New("x")}}, "@hourly", 0)

	err := job.Execute(context.Background())
	var fatalErr *FatalJobError
	require.ErrorAs(t, err, &fatalErr)
	assert.Nil(t, job.LastRun())
}
