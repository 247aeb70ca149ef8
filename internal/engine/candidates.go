package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/feedback"
)

// ReviewOutcome reports the result of one candidate in a bulk review.
type ReviewOutcome struct {
	CandidateID uint
	Err         error
}

// ListCandidates returns candidates matching the filter.
func (e *Engine) ListCandidates(ctx context.Context, filter database.CandidateFilter) ([]database.Candidate, error) {
	return e.db.ListCandidates(ctx, filter)
}

// GetCandidate returns one candidate by ID.
func (e *Engine) GetCandidate(ctx context.Context, id uint) (*database.Candidate, error) {
	return e.db.GetCandidateByID(ctx, id)
}

// ApproveCandidate approves a pending candidate and enqueues its deletion.
// The note is optional reviewer commentary stored on the candidate.
func (e *Engine) ApproveCandidate(ctx context.Context, id uint, reviewedBy, note string) error {
	return e.approveAndEnqueue(ctx, id, reviewedBy, note, uuid.NewString(), true)
}

func (e *Engine) approveCandidate(ctx context.Context, id uint, reviewedBy string) error {
	return e.approveAndEnqueue(ctx, id, reviewedBy, "", uuid.NewString(), true)
}

// approveAndEnqueue moves a pending candidate to approved and enqueues its
// deletion under the given request id.
func (e *Engine) approveAndEnqueue(ctx context.Context, id uint, reviewedBy, note, requestID string, deleteFiles bool) error {
	if err := e.db.TransitionCandidate(ctx, id, database.ReviewStatusPending, database.ReviewStatusApproved, reviewedBy, note); err != nil {
		if errors.Is(err, database.ErrInvalidTransition) {
			return ErrAlreadyReviewed
		}
		return err
	}

	if err := e.enqueueDeletion(ctx, id, requestID, deleteFiles); err != nil {
		return err
	}
	e.logger.Info("candidate approved", "candidate", id, "reviewed_by", reviewedBy)
	return nil
}

func (e *Engine) enqueueDeletion(ctx context.Context, id uint, requestID string, deleteFiles bool) error {
	payload, err := marshalDeletionPayload(deletionPayload{
		CandidateID: id,
		RequestID:   requestID,
		KeepFiles:   !deleteFiles,
	})
	if err != nil {
		return err
	}
	job := &database.Job{
		Kind:        database.JobKindDeletion,
		Payload:     payload,
		MaxAttempts: e.cfg.Queue.MaxDeletionAttempts,
	}
	if err := e.db.EnqueueJob(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue deletion: %w", err)
	}
	return nil
}

// TriggerDeletion approves a batch of candidates and enqueues their deletions
// under one shared request id. Already approved candidates are enqueued again,
// which re-drives deletions whose jobs ran out of attempts.
func (e *Engine) TriggerDeletion(ctx context.Context, candidateIDs []uint, deleteFiles bool, requestedBy string) (string, []ReviewOutcome) {
	requestID := uuid.NewString()

	outcomes := make([]ReviewOutcome, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		err := e.approveAndEnqueue(ctx, id, requestedBy, "", requestID, deleteFiles)
		if errors.Is(err, ErrAlreadyReviewed) {
			candidate, getErr := e.db.GetCandidateByID(ctx, id)
			if getErr == nil && candidate.Status == database.ReviewStatusApproved {
				err = e.enqueueDeletion(ctx, id, requestID, deleteFiles)
			}
		}
		outcomes = append(outcomes, ReviewOutcome{CandidateID: id, Err: err})
	}

	e.logger.Info("deletion batch queued", "request_id", requestID, "candidates", len(candidateIDs), "requested_by", requestedBy)
	return requestID, outcomes
}

// RejectCandidate rejects a pending candidate. The item stays in the library
// and can be flagged again by a future scan.
func (e *Engine) RejectCandidate(ctx context.Context, id uint, reviewedBy, note string) error {
	if err := e.db.TransitionCandidate(ctx, id, database.ReviewStatusPending, database.ReviewStatusRejected, reviewedBy, note); err != nil {
		if errors.Is(err, database.ErrInvalidTransition) {
			return ErrAlreadyReviewed
		}
		return err
	}
	e.logger.Info("candidate rejected", "candidate", id, "reviewed_by", reviewedBy)
	return nil
}

// ReviewCandidates applies one decision to many candidates. Each candidate
// succeeds or fails on its own, one already-reviewed candidate does not stop
// the rest.
func (e *Engine) ReviewCandidates(ctx context.Context, ids []uint, approve bool, reviewedBy, note string) []ReviewOutcome {
	outcomes := make([]ReviewOutcome, 0, len(ids))
	for _, id := range ids {
		var err error
		if approve {
			err = e.ApproveCandidate(ctx, id, reviewedBy, note)
		} else {
			err = e.RejectCandidate(ctx, id, reviewedBy, note)
		}
		outcomes = append(outcomes, ReviewOutcome{CandidateID: id, Err: err})
	}
	return outcomes
}

// AddFeedback stores one user mark for a title.
func (e *Engine) AddFeedback(ctx context.Context, titleKey, mediaType string, mark feedback.Mark, markedBy string) error {
	if !mark.Valid() {
		return fmt.Errorf("unknown feedback mark: %q", mark)
	}
	mt, err := parseMediaType(mediaType)
	if err != nil {
		return err
	}
	return e.db.AddFeedbackMark(ctx, &database.FeedbackMark{
		TitleKey:  titleKey,
		MediaType: mt,
		Mark:      mark,
		MarkedBy:  markedBy,
	})
}
