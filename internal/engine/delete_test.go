package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/media"
)

func seedApprovedCandidate(t *testing.T, h *testHarness, mediaType media.MediaType) *database.Candidate {
	t.Helper()
	candidate := &database.Candidate{
		RuleID:    1,
		ScanID:    1,
		TitleKey:  "movie-old",
		MediaType: mediaType,
		Title:     "Old Movie",
		FileSize:  2 << 30,
		ArrID:     lo.ToPtr(int32(55)),
		Status:    database.ReviewStatusApproved,
	}
	require.NoError(t, h.db.CreateCandidate(context.Background(), candidate))
	return candidate
}

func deletionJob(t *testing.T, candidateID uint, attempts, maxAttempts int) *database.Job {
	t.Helper()
	payload, err := marshalDeletionPayload(deletionPayload{CandidateID: candidateID, RequestID: "req-test"})
	require.NoError(t, err)
	return &database.Job{
		Kind:        database.JobKindDeletion,
		Payload:     payload,
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
	}
}

func TestDeletionRemovesItemAndFiles(t *testing.T) {
	h := newHarness(t, false)
	candidate := seedApprovedCandidate(t, h, media.MediaTypeMovie)
	ctx := context.Background()

	require.NoError(t, h.engine.handleDeletionJob(ctx, deletionJob(t, candidate.ID, 1, 3)))

	assert.Equal(t, []string{"movie-old"}, h.library.Removed())
	assert.Equal(t, []int32{55}, h.radarr.Deleted())
	assert.Empty(t, h.sonarr.Deleted())

	got, err := h.db.GetCandidateByID(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ReviewStatusDeleted, got.Status)

	logs, err := h.db.ListDeletionLogs(ctx, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, database.DeletionOutcomeDeleted, logs[0].Outcome)
	assert.Equal(t, "req-test", logs[0].RequestID)
}

func TestDeletionUsesSonarrForSeries(t *testing.T) {
	h := newHarness(t, false)
	candidate := seedApprovedCandidate(t, h, media.MediaTypeTV)

	require.NoError(t, h.engine.handleDeletionJob(context.Background(), deletionJob(t, candidate.ID, 1, 3)))

	assert.Equal(t, []int32{55}, h.sonarr.Deleted())
	assert.Empty(t, h.radarr.Deleted())
}

func TestDeletionIsIdempotent(t *testing.T) {
	h := newHarness(t, false)
	candidate := seedApprovedCandidate(t, h, media.MediaTypeMovie)
	ctx := context.Background()

	job := deletionJob(t, candidate.ID, 1, 3)
	require.NoError(t, h.engine.handleDeletionJob(ctx, job))
	// Redelivered job: the candidate already reached an end state.
	require.NoError(t, h.engine.handleDeletionJob(ctx, job))

	assert.Len(t, h.library.Removed(), 1)
	assert.Len(t, h.radarr.Deleted(), 1)

	logs, err := h.db.ListDeletionLogs(ctx, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, database.DeletionOutcomeSkipped, logs[0].Outcome)
}

func TestDeletionDryRun(t *testing.T) {
	h := newHarness(t, true)
	candidate := seedApprovedCandidate(t, h, media.MediaTypeMovie)
	ctx := context.Background()

	require.NoError(t, h.engine.handleDeletionJob(ctx, deletionJob(t, candidate.ID, 1, 3)))

	assert.Empty(t, h.library.Removed())
	assert.Empty(t, h.radarr.Deleted())

	got, err := h.db.GetCandidateByID(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ReviewStatusApproved, got.Status)

	logs, err := h.db.ListDeletionLogs(ctx, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, database.DeletionOutcomeDryRun, logs[0].Outcome)
}

func TestDeletionPartialWhenFilesRemain(t *testing.T) {
	h := newHarness(t, false)
	candidate := seedApprovedCandidate(t, h, media.MediaTypeMovie)
	h.radarr.FilesDeleted = false
	ctx := context.Background()

	require.NoError(t, h.engine.handleDeletionJob(ctx, deletionJob(t, candidate.ID, 1, 3)))

	got, err := h.db.GetCandidateByID(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ReviewStatusPartiallyDeleted, got.Status)

	logs, err := h.db.ListDeletionLogs(ctx, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, database.DeletionOutcomePartial, logs[0].Outcome)
}

func TestDeletionWithoutArrCountsAsComplete(t *testing.T) {
	h := newHarness(t, false)
	candidate := &database.Candidate{
		RuleID:    1,
		ScanID:    1,
		TitleKey:  "movie-unmanaged",
		MediaType: media.MediaTypeMovie,
		Title:     "Unmanaged Movie",
		Status:    database.ReviewStatusApproved,
	}
	require.NoError(t, h.db.CreateCandidate(context.Background(), candidate))

	require.NoError(t, h.engine.handleDeletionJob(context.Background(), deletionJob(t, candidate.ID, 1, 3)))

	got, err := h.db.GetCandidateByID(context.Background(), candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ReviewStatusDeleted, got.Status)
	assert.Empty(t, h.radarr.Deleted())
}

func TestDeletionExhaustedAttemptsKeepsCandidateApproved(t *testing.T) {
	h := newHarness(t, false)
	candidate := seedApprovedCandidate(t, h, media.MediaTypeMovie)
	h.library.RemoveItemError = assert.AnError
	ctx := context.Background()

	// Final attempt fails: the job is done, the candidate stays approved so
	// the operator can re-drive it later.
	require.Error(t, h.engine.handleDeletionJob(ctx, deletionJob(t, candidate.ID, 3, 3)))

	got, err := h.db.GetCandidateByID(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ReviewStatusApproved, got.Status)

	logs, err := h.db.ListDeletionLogs(ctx, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, database.DeletionOutcomeFailed, logs[0].Outcome)

	// Once the collaborator recovers, a new deletion batch picks the
	// candidate up again.
	h.library.RemoveItemError = nil
	_, outcomes := h.engine.TriggerDeletion(ctx, []uint{candidate.ID}, true, "admin")
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)

	jobs := h.db.Jobs()
	var redriven *database.Job
	for i := range jobs {
		if jobs[i].Kind == database.JobKindDeletion && jobs[i].Status == database.JobStatusQueued {
			redriven = &jobs[i]
		}
	}
	require.NotNil(t, redriven, "re-driven deletion job not enqueued")
	require.NoError(t, h.engine.handleDeletionJob(ctx, redriven))

	got, err = h.db.GetCandidateByID(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ReviewStatusDeleted, got.Status)
}

func TestTriggerDeletionBatch(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	pending := &database.Candidate{
		RuleID: 1, ScanID: 1, TitleKey: "movie-pending", MediaType: media.MediaTypeMovie,
		Title: "Pending Movie", Status: database.ReviewStatusPending,
	}
	require.NoError(t, h.db.CreateCandidate(ctx, pending))
	approved := seedApprovedCandidate(t, h, media.MediaTypeMovie)

	requestID, outcomes := h.engine.TriggerDeletion(ctx, []uint{pending.ID, approved.ID, 99}, true, "admin")
	require.NotEmpty(t, requestID)
	require.Len(t, outcomes, 3)
	assert.NoError(t, outcomes[0].Err)
	// Already approved candidates are enqueued again instead of erroring.
	assert.NoError(t, outcomes[1].Err)
	assert.ErrorIs(t, outcomes[2].Err, database.ErrNotFound)

	got, err := h.db.GetCandidateByID(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ReviewStatusApproved, got.Status)
	assert.Equal(t, "admin", got.ReviewedBy)

	var payloads []deletionPayload
	for _, job := range h.db.Jobs() {
		if job.Kind != database.JobKindDeletion {
			continue
		}
		var p deletionPayload
		require.NoError(t, json.Unmarshal([]byte(job.Payload), &p))
		payloads = append(payloads, p)
	}
	require.Len(t, payloads, 2)
	for _, p := range payloads {
		// The whole batch shares one request id for the audit trail.
		assert.Equal(t, requestID, p.RequestID)
		assert.False(t, p.KeepFiles)
	}
}

func TestTriggerDeletionKeepFiles(t *testing.T) {
	h := newHarness(t, false)
	candidate := seedApprovedCandidate(t, h, media.MediaTypeMovie)
	ctx := context.Background()

	_, outcomes := h.engine.TriggerDeletion(ctx, []uint{candidate.ID}, false, "admin")
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)

	jobs := h.db.Jobs()
	var job *database.Job
	for i := range jobs {
		if jobs[i].Kind == database.JobKindDeletion {
			job = &jobs[i]
		}
	}
	require.NotNil(t, job, "deletion job not enqueued")
	require.NoError(t, h.engine.handleDeletionJob(ctx, job))

	// The library entry goes away but the files stay with the download manager.
	assert.Equal(t, []string{"movie-old"}, h.library.Removed())
	assert.Empty(t, h.radarr.Deleted())

	got, err := h.db.GetCandidateByID(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ReviewStatusDeleted, got.Status)
}

func TestDeletionRetriableFailureKeepsCandidateApproved(t *testing.T) {
	h := newHarness(t, false)
	candidate := seedApprovedCandidate(t, h, media.MediaTypeMovie)
	h.library.RemoveItemError = assert.AnError
	ctx := context.Background()

	// Not the final attempt: the queue will redeliver, the candidate stays
	// approved.
	require.Error(t, h.engine.handleDeletionJob(ctx, deletionJob(t, candidate.ID, 1, 3)))

	got, err := h.db.GetCandidateByID(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ReviewStatusApproved, got.Status)
}
