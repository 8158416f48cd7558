package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countJob struct {
	runs  atomic.Int32
	block chan struct{}
}

func (j *countJob) Name() string {
	return "count"
}

func (j *countJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
	return nil
}

func TestAddJob(t *testing.T) {
	s := NewCronScheduler()
	job := &countJob{}
	require.NoError(t, s.AddJob(job, ""))
	require.Equal(t, 0, s.Scheduled())
	require.Error(t, s.AddJob(job, "not a cron expression"))
	require.NoError(t, s.AddJob(job, "*/5 * * * *"))
	require.Error(t, s.AddJob(job, "0 * * * *"))
	require.Equal(t, 1, s.Scheduled())
}

func TestWrapSkipsOverlappingRuns(t *testing.T) {
	s := NewCronScheduler()
	s.Start(context.Background())
	defer s.Stop()
	job := &countJob{block: make(chan struct{})}
	run := s.wrap(job, "@manual")

	done := make(chan struct{})
	go func() {
		run()
		close(done)
	}()
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 10*time.Millisecond)
	run()
	require.Equal(t, int32(1), job.runs.Load())
	close(job.block)
	<-done
	run()
	require.Equal(t, int32(2), job.runs.Load())
}
