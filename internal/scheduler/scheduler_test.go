package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRule(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Stop()
	})

	require.NoError(t, s.RegisterRule(1, "stale movies", "0 3 * * *", func(context.Context) error {
		return nil
	}))

	job, ok := s.GetJob(1)
	require.True(t, ok)
	assert.Equal(t, "stale movies", job.Name)
	assert.Equal(t, "0 3 * * *", job.Schedule)
	assert.Equal(t, JobStatusScheduled, job.Status)

	assert.Len(t, s.GetJobs(), 1)
}

func TestRegisterRuleReplaces(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Stop()
	})

	require.NoError(t, s.RegisterRule(1, "stale movies", "0 3 * * *", func(context.Context) error {
		return nil
	}))
	require.NoError(t, s.RegisterRule(1, "stale movies", "0 4 * * *", func(context.Context) error {
		return nil
	}))

	job, ok := s.GetJob(1)
	require.True(t, ok)
	assert.Equal(t, "0 4 * * *", job.Schedule)
	assert.Len(t, s.GetJobs(), 1)
}

func TestRegisterRuleInvalidSchedule(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Stop()
	})

	err = s.RegisterRule(1, "broken", "not a cron", func(context.Context) error {
		return nil
	})
	require.Error(t, err)
	_, ok := s.GetJob(1)
	assert.False(t, ok)
}

func TestUnregisterRule(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Stop()
	})

	require.NoError(t, s.RegisterRule(1, "stale movies", "0 3 * * *", func(context.Context) error {
		return nil
	}))
	s.UnregisterRule(1)
	_, ok := s.GetJob(1)
	assert.False(t, ok)

	// Unregistering again is a no-op.
	s.UnregisterRule(1)
}

func TestScheduledJobRuns(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Stop()
	})

	var runs atomic.Int32
	// Every-second cron to observe at least one execution.
	require.NoError(t, s.RegisterRule(1, "fast rule", "* * * * * *", func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	s.Start()

	require.Eventually(t, func() bool {
		return runs.Load() >= 1
	}, 5*time.Second, 50*time.Millisecond)

	job, ok := s.GetJob(1)
	require.True(t, ok)
	assert.GreaterOrEqual(t, job.RunCount, 1)
}
