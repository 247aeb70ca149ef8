package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"

	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/media"
	"github.com/curatarr/curatarr/internal/media/arr"
)

// collaboratorRetries is the number of in-process retries per collaborator
// call, on top of the queue's own redelivery.
const collaboratorRetries = 2

type deletionPayload struct {
	CandidateID uint   `json:"candidate_id"`
	RequestID   string `json:"request_id"`
	// KeepFiles removes the item from the library only, leaving the files
	// with the download manager.
	KeepFiles bool `json:"keep_files,omitempty"`
}

func marshalDeletionPayload(p deletionPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal deletion payload: %w", err)
	}
	return string(data), nil
}

// handleDeletionJob executes one approved deletion. The handler is idempotent
// under at-least-once delivery: a candidate that already reached an end state
// is skipped with an audit row instead of being deleted twice.
func (e *Engine) handleDeletionJob(ctx context.Context, job *database.Job) error {
	var payload deletionPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return fmt.Errorf("invalid deletion payload: %w", err)
	}

	candidate, err := e.db.GetCandidateByID(ctx, payload.CandidateID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			e.logger.Warn("deletion candidate no longer exists", "candidate", payload.CandidateID)
			return nil
		}
		return err
	}

	logger := e.logger.With(
		"candidate", candidate.ID,
		"title", candidate.Title,
		"request_id", payload.RequestID,
	)

	if candidate.Status != database.ReviewStatusApproved {
		logger.Warn("candidate is not approved, skipping deletion", "status", candidate.Status)
		e.audit(ctx, candidate, payload.RequestID, job.Attempts, database.DeletionOutcomeSkipped,
			fmt.Sprintf("candidate status is %s", candidate.Status))
		return nil
	}

	if e.cfg.DryRun {
		logger.Info("dry run, would delete item", "size", humanize.IBytes(uint64(candidate.FileSize)))
		e.audit(ctx, candidate, payload.RequestID, job.Attempts, database.DeletionOutcomeDryRun, "dry run enabled")
		return nil
	}

	// Remove the item from the library server first. If this fails the item
	// is fully intact and the job can be retried as a whole. The candidate
	// stays approved even when the job runs out of attempts, so the operator
	// can re-drive it through a new deletion batch; the failed job row is the
	// alerting surface.
	if err := e.removeFromLibrary(ctx, candidate.TitleKey); err != nil {
		logger.Error("failed to remove item from library server", "error", err)
		e.audit(ctx, candidate, payload.RequestID, job.Attempts, database.DeletionOutcomeFailed, err.Error())
		return fmt.Errorf("failed to remove item from library server: %w", err)
	}

	// Then delete the files through the download manager. Past this point the
	// library item is gone, so a failure is recorded as partial instead of
	// retrying the whole job.
	filesDeleted := true
	var filesErr error
	if !payload.KeepFiles {
		filesDeleted, filesErr = e.deleteFiles(ctx, candidate)
	}

	if filesErr != nil || !filesDeleted {
		detail := "download manager did not confirm file deletion"
		if filesErr != nil {
			detail = filesErr.Error()
		}
		logger.Warn("item removed from library but files may remain", "detail", detail)
		e.audit(ctx, candidate, payload.RequestID, job.Attempts, database.DeletionOutcomePartial, detail)
		if err := e.db.TransitionCandidate(ctx, candidate.ID, database.ReviewStatusApproved, database.ReviewStatusPartiallyDeleted, "", ""); err != nil {
			logger.Error("failed to mark candidate partially deleted", "error", err)
		}
		return nil
	}

	e.audit(ctx, candidate, payload.RequestID, job.Attempts, database.DeletionOutcomeDeleted, "")
	if err := e.db.TransitionCandidate(ctx, candidate.ID, database.ReviewStatusApproved, database.ReviewStatusDeleted, "", ""); err != nil {
		logger.Error("failed to mark candidate deleted", "error", err)
	}
	logger.Info("item deleted", "size_freed", humanize.IBytes(uint64(candidate.FileSize)))
	return nil
}

// removeFromLibrary removes the item from the library server, retrying
// transient failures with exponential backoff.
func (e *Engine) removeFromLibrary(ctx context.Context, titleKey string) error {
	op := func() error {
		return e.library.RemoveItem(ctx, titleKey)
	}
	return backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), collaboratorRetries), ctx))
}

// deleteFiles asks the download manager to delete the item's files. Items not
// managed by a download manager have nothing else to delete and count as
// fully deleted.
func (e *Engine) deleteFiles(ctx context.Context, candidate *database.Candidate) (bool, error) {
	var arrer arr.Arrer
	switch candidate.MediaType {
	case media.MediaTypeMovie:
		arrer = e.radarr
	case media.MediaTypeTV:
		arrer = e.sonarr
	}
	if arrer == nil || candidate.ArrID == nil {
		return true, nil
	}

	var filesDeleted bool
	op := func() error {
		var err error
		filesDeleted, err = arrer.DeleteFiles(ctx, *candidate.ArrID)
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), collaboratorRetries), ctx))
	return filesDeleted, err
}

// audit writes one deletion audit row. Audit failures are logged but never
// fail the deletion itself.
func (e *Engine) audit(ctx context.Context, candidate *database.Candidate, requestID string, attempt int, outcome database.DeletionOutcome, detail string) {
	entry := &database.DeletionLog{
		CandidateID: candidate.ID,
		RequestID:   requestID,
		TitleKey:    candidate.TitleKey,
		Title:       candidate.Title,
		MediaType:   candidate.MediaType,
		FileSize:    candidate.FileSize,
		Outcome:     outcome,
		Detail:      detail,
		Attempt:     attempt,
	}
	if err := e.db.CreateDeletionLog(ctx, entry); err != nil {
		e.logger.Error("failed to write deletion audit row", "candidate", candidate.ID, "error", err)
	}
}
