package types

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// CronManager schedules named repeating jobs. The context handed to a job
// expires at the configured job timeout; runs of the same job never overlap.
type CronManager interface {
	LifecycleManager
	Add(jobName, spec string, job func(ctx context.Context)) error
}

type JobEntry struct {
	ID            cron.EntryID
	Name          string
	Spec          string
	Job           func()
	AddedAt       time.Time
	LastRun       time.Time
	NextRun       time.Time
	LastDuration  time.Duration
	TotalDuration time.Duration
	AvgDuration   time.Duration
	RunCount      int64
	Error         error
}
