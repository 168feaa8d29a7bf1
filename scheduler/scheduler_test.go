package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/stupid-simple/pkgledger/scheduler"
)

type MockJob struct {
	mock.Mock
}

func (m *MockJob) Run() {
	m.Called()
}

func TestNewScheduler(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	assert.NotNil(t, s, "Scheduler should not be nil")
}

func TestScheduler_AddJob(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	mockJob := new(MockJob)

	err := s.AddJob(context.Background(), "ci-watch", "* * * * *", mockJob)
	assert.NoError(t, err, "Should add job without error")

	err = s.AddJob(context.Background(), "publish", "@every 30s", mockJob)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"ci-watch", "publish"}, s.Jobs())

	// Test with invalid schedule.
	err = s.AddJob(context.Background(), "broken", "invalid-schedule", mockJob)
	assert.Error(t, err, "Should return error with invalid schedule")
	assert.Len(t, s.Jobs(), 2)
}

func TestScheduler_StartStop(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	var runs atomic.Int32
	err := s.AddJob(context.Background(), "counter", "@every 1s", scheduler.JobFunc(func() {
		runs.Add(1)
	}))
	assert.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool {
		return runs.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_RecoversPanics(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	var runs atomic.Int32
	err := s.AddJob(context.Background(), "panics", "@every 1s", scheduler.JobFunc(func() {
		runs.Add(1)
		panic("boom")
	}))
	assert.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool {
		return runs.Load() > 1
	}, 4*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_PanicDoesNotStopLaterTicks(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	var runs atomic.Int32
	err := s.AddJob(context.Background(), "ci-watch", "@every 1s", scheduler.JobFunc(func() {
		if runs.Add(1) == 1 {
			panic("first tick")
		}
	}))
	assert.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool {
		return runs.Load() >= 3
	}, 6*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_SlowJobDoesNotBlockOthers(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	release := make(chan struct{})
	var slowRuns, fastRuns atomic.Int32
	err := s.AddJob(context.Background(), "publish", "@every 1s", scheduler.JobFunc(func() {
		slowRuns.Add(1)
		<-release
	}))
	assert.NoError(t, err)
	err = s.AddJob(context.Background(), "ci-watch", "@every 1s", scheduler.JobFunc(func() {
		fastRuns.Add(1)
	}))
	assert.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool {
		return fastRuns.Load() >= 3
	}, 6*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(1), slowRuns.Load(), "overlapping ticks of the slow job are skipped")
	close(release)
	s.Stop()
}

func TestScheduler_RemoveJobs(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	s := scheduler.NewScheduler(scheduler.SchedulerParams{
		Logger: logger,
	})

	mockJob1 := new(MockJob)
	mockJob2 := new(MockJob)

	err := s.AddJob(context.Background(), "one", "* * * * *", mockJob1)
	assert.NoError(t, err)

	err = s.AddJob(context.Background(), "two", "*/5 * * * *", mockJob2)
	assert.NoError(t, err)

	s.RemoveJobs()
	assert.Empty(t, s.Jobs())

	err = s.AddJob(context.Background(), "one", "* * * * *", mockJob1)
	assert.NoError(t, err, "Should be able to add job again after removal")
}
