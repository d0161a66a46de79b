package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs  atomic.Int32
	fail  bool
	panic bool
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) RunOnce(context.Context) error {
	j.runs.Add(1)
	if j.panic {
		panic("boom")
	}
	if j.fail {
		return errors.New("job failed")
	}
	return nil
}

func TestScheduler_RunsPeriodically(t *testing.T) {
	job := &countingJob{}
	s := NewScheduler(5*time.Millisecond, job, nil)
	s.Start(context.Background())
	s.Start(context.Background())

	require.Eventually(t, func() bool { return job.runs.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()
	s.Stop()

	n := job.runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, job.runs.Load())
}

func TestScheduler_SurvivesFailingJobs(t *testing.T) {
	for _, job := range []*countingJob{{fail: true}, {panic: true}} {
		s := NewScheduler(5*time.Millisecond, job, nil)
		s.Start(context.Background())
		require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, time.Millisecond)
		s.Stop()
	}
}

func TestScheduler_StopsWithParentContext(t *testing.T) {
	job := &countingJob{}
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(time.Hour, job, nil)
	s.Start(ctx)
	cancel()
	s.Stop()
	assert.Zero(t, job.runs.Load())
}

func TestNewScheduler_DefaultsInterval(t *testing.T) {
	s := NewScheduler(0, &countingJob{}, nil)
	assert.Equal(t, time.Minute, s.interval)
}
