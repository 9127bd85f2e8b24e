// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/user/forumbot/internal/claim"
	"github.com/user/forumbot/internal/metrics"
)

const jobTimeout = time.Minute

// Job is a named function fired on a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context)
}

// Scheduler fires jobs through a cron ticker.
type Scheduler struct {
	jobs []Job
	cron *cron.Cron
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler for jobs.
func New(jobs ...Job) *Scheduler {
	return &Scheduler{
		jobs: jobs,
		cron: cron.New(cron.WithParser(cronParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Start registers jobs that have a schedule and starts the cron ticker. Jobs
// with an invalid schedule are logged and skipped. It returns the number of
// jobs registered.
func (s *Scheduler) Start() int {
	registered := 0
	for _, job := range s.jobs {
		if job.Schedule == "" || job.Run == nil {
			continue
		}
		_, err := s.cron.AddFunc(job.Schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()
			slog.Debug("cron firing job", "name", job.Name)
			job.Run(ctx)
		})
		if err != nil {
			slog.Error("invalid cron schedule", "name", job.Name, "schedule", job.Schedule, "error", err)
			continue
		}
		registered++
		slog.Info("scheduled job", "name", job.Name, "schedule", job.Schedule)
	}

	s.cron.Start()
	return registered
}

// Stop stops the cron ticker and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// SweepJob finalizes claims stuck in processing for longer than staleAfter.
func SweepJob(m *claim.Manager, schedule string, staleAfter time.Duration, mt *metrics.Metrics) Job {
	return Job{
		Name:     "claim-sweep",
		Schedule: schedule,
		Run: func(ctx context.Context) {
			n, err := m.Sweep(ctx, staleAfter)
			if err != nil {
				slog.Warn("claim sweep failed", "error", err)
			}
			if n > 0 {
				mt.Swept(n)
				slog.Info("swept abandoned claims", "count", n)
			}
		},
	}
}
