package service

import (
	"context"
	"sync"
	"time"
)

const JobName = "leaderboard-rebuild"

// RebuildJob serialises rebuilds coming from the scheduler and from manual
// triggers. A trigger that arrives while a rebuild runs is refused.
type RebuildJob struct {
	aggregator Aggregator
	schedule   string
	timeout    time.Duration

	running sync.Mutex

	mu   sync.RWMutex
	last *RunSummary
}

func NewRebuildJob(aggregator Aggregator, schedule string, timeout time.Duration) *RebuildJob {
	return &RebuildJob{
		aggregator: aggregator,
		schedule:   schedule,
		timeout:    timeout,
	}
}

func (j *RebuildJob) GetName() string {
	return JobName
}

func (j *RebuildJob) GetSchedule() string {
	return j.schedule
}

func (j *RebuildJob) Execute(ctx context.Context) error {
	_, err := j.Trigger(ctx)
	return err
}

// Trigger runs one rebuild under the job timeout.
func (j *RebuildJob) Trigger(ctx context.Context) (*RunSummary, error) {
	if !j.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer j.running.Unlock()

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	summary, err := j.aggregator.Run(ctx)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	j.last = summary
	j.mu.Unlock()
	return summary, nil
}

// LastRun returns the summary of the most recent successful rebuild.
func (j *RebuildJob) LastRun() *RunSummary {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.last
}
