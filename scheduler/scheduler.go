package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of background work run on a cron schedule.
type Job interface {
	Run()
}

type SchedulerParams struct {
	Logger zerolog.Logger
}

func NewScheduler(params SchedulerParams) *Scheduler {
	cronLogger := cronLogger{logger: params.Logger}
	return &Scheduler{
		cron:       cron.New(cron.WithLogger(cronLogger)),
		cronLogger: cronLogger,
		logger:     params.Logger,
		jobs:       make(map[cron.EntryID]string),
	}
}

type Scheduler struct {
	cron       *cron.Cron
	cronLogger cronLogger
	mu         sync.Mutex
	jobs       map[cron.EntryID]string
	logger     zerolog.Logger
}

// Start the scheduler in its own routine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop the scheduler and wait for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// AddJob schedules job under name. A tick of job that is still running when
// the next one fires is skipped, other jobs are not affected. A panic is
// logged and does not stop later ticks.
func (s *Scheduler) AddJob(ctx context.Context, name, schedule string, job Job) error {
	wrapped := cron.NewChain(
		cron.SkipIfStillRunning(s.cronLogger),
		cron.Recover(s.cronLogger),
	).Then(job)
	entry, err := s.cron.AddJob(schedule, wrapped)
	if err != nil {
		return fmt.Errorf("could not add job %q: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[entry] = name
	s.mu.Unlock()

	s.logger.Info().Str("job", name).Str("schedule", schedule).Msg("job scheduled")
	return nil
}

// Jobs returns the names of the scheduled jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for _, name := range s.jobs {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) RemoveJobs() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for entry := range s.jobs {
		s.cron.Remove(entry)
		delete(s.jobs, entry)
	}
}

// JobFunc adapts a function to Job.
type JobFunc func()

func (f JobFunc) Run() {
	f()
}

type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Trace().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
