package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/database/mock"
)

func runQueue(t *testing.T, q *Queue, until func() bool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = q.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for !until() {
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatal("queue did not reach expected state in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestQueueRunsJob(t *testing.T) {
	db := mock.NewMockDB()
	q := New(db, 2, 20*time.Millisecond)

	var mu sync.Mutex
	var payloads []string
	q.Register(database.JobKindScan, func(_ context.Context, job *database.Job) error {
		mu.Lock()
		defer mu.Unlock()
		payloads = append(payloads, job.Payload)
		return nil
	})

	job := &database.Job{Kind: database.JobKindScan, Payload: `{"scan_id":1}`, MaxAttempts: 1}
	require.NoError(t, db.EnqueueJob(context.Background(), job))

	runQueue(t, q, func() bool {
		stored := db.GetJob(job.ID)
		return stored != nil && stored.Status == database.JobStatusCompleted
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`{"scan_id":1}`}, payloads)
}

func TestQueueRetriesUntilBudgetSpent(t *testing.T) {
	db := mock.NewMockDB()
	q := New(db, 1, 20*time.Millisecond)

	var mu sync.Mutex
	attempts := 0
	q.Register(database.JobKindDeletion, func(_ context.Context, _ *database.Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		return errors.New("collaborator unreachable")
	})

	job := &database.Job{Kind: database.JobKindDeletion, Payload: `{}`, MaxAttempts: 3}
	require.NoError(t, db.EnqueueJob(context.Background(), job))

	// First attempt fails and is requeued with a delay.
	runQueue(t, q, func() bool {
		stored := db.GetJob(job.ID)
		return stored != nil && stored.Status == database.JobStatusQueued && stored.Attempts == 1
	})

	stored := db.GetJob(job.ID)
	require.NotNil(t, stored)
	assert.True(t, stored.RunAt.After(time.Now()))
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "collaborator unreachable", *stored.LastError)
}

func TestQueueFailsPermanentlyOnLastAttempt(t *testing.T) {
	db := mock.NewMockDB()
	q := New(db, 1, 20*time.Millisecond)

	q.Register(database.JobKindDeletion, func(_ context.Context, _ *database.Job) error {
		return errors.New("still broken")
	})

	job := &database.Job{Kind: database.JobKindDeletion, Payload: `{}`, MaxAttempts: 1}
	require.NoError(t, db.EnqueueJob(context.Background(), job))

	runQueue(t, q, func() bool {
		stored := db.GetJob(job.ID)
		return stored != nil && stored.Status == database.JobStatusFailed
	})

	stored := db.GetJob(job.ID)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "still broken", *stored.LastError)
}

func TestQueueUnknownKindFails(t *testing.T) {
	db := mock.NewMockDB()
	q := New(db, 1, 20*time.Millisecond)
	q.Register(database.JobKindScan, func(_ context.Context, _ *database.Job) error { return nil })

	job := &database.Job{Kind: database.JobKindDeletion, Payload: `{}`, MaxAttempts: 5}
	require.NoError(t, db.EnqueueJob(context.Background(), job))

	runQueue(t, q, func() bool {
		stored := db.GetJob(job.ID)
		return stored != nil && stored.Status == database.JobStatusFailed
	})
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, baseRetryDelay, retryDelay(1))
	assert.Equal(t, 2*baseRetryDelay, retryDelay(2))
	assert.Equal(t, 4*baseRetryDelay, retryDelay(3))
	assert.Equal(t, maxRetryDelay, retryDelay(100))
}
