package scheduler

import (
	"context"
	"fmt"
	"time"

	"anoa.com/bountyboard/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Scheduler owns the cron runner and the registered jobs.
type Scheduler struct {
	cron *cron.Cron
	jobs []Job
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		jobs: make([]Job, 0),
	}
}

// Register adds a job. Jobs with a schedule are added to cron; an invalid
// schedule is returned as an error and the job is not registered.
func (s *Scheduler) Register(job Job) error {
	log := logger.WithComponent("scheduler").WithField("job", job.GetName())

	schedule := job.GetSchedule()
	if schedule == "" {
		s.jobs = append(s.jobs, job)
		log.Info("registered as on-demand job")
		return nil
	}

	_, err := s.cron.AddFunc(schedule, func() {
		s.run(context.Background(), job)
	})
	if err != nil {
		return fmt.Errorf("schedule %s with %q: %w", job.GetName(), schedule, err)
	}

	s.jobs = append(s.jobs, job)
	log.WithField("cron", schedule).Info("job scheduled")
	return nil
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	log := logger.WithComponent("scheduler").WithField("job", job.GetName())
	log.Info("starting job")

	start := time.Now()
	err := job.Execute(ctx)
	if err != nil {
		log.WithField("duration", time.Since(start).String()).Errorf("job failed: %v", err)
		return err
	}

	log.WithField("duration", time.Since(start).String()).Info("job completed")
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.WithComponent("scheduler").Infof("scheduler started with %d jobs", len(s.jobs))
}

// Stop halts the cron runner and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.WithComponent("scheduler").Warn("stopped before running jobs finished")
		return
	}
	logger.WithComponent("scheduler").Info("scheduler stopped")
}

// RunByName executes a registered job immediately.
func (s *Scheduler) RunByName(ctx context.Context, name string) error {
	for _, job := range s.jobs {
		if job.GetName() == name {
			return s.run(ctx, job)
		}
	}
	return fmt.Errorf("job %q is not registered", name)
}

func (s *Scheduler) Jobs() []string {
	names := make([]string, len(s.jobs))
	for i, job := range s.jobs {
		names[i] = job.GetName()
	}
	return names
}
