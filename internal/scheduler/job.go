package scheduler

import "context"

// Job is a unit of background work the scheduler can run on a cron
// schedule or on demand.
type Job interface {
	// GetName identifies the job in logs and in RunByName.
	GetName() string

	// GetSchedule returns a standard five-field cron expression. An empty
	// schedule registers the job as on-demand only.
	GetSchedule() string

	Execute(ctx context.Context) error
}
