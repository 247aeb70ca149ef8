package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/media"
	"github.com/curatarr/curatarr/internal/rules"
)

type scanPayload struct {
	ScanID uint `json:"scan_id"`
	RuleID uint `json:"rule_id"`
}

func marshalScanPayload(p scanPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal scan payload: %w", err)
	}
	return string(data), nil
}

// NewScanJob builds the queue job for one scan. Scan jobs never retry, a
// crashed scan is requeued by the stale-jobs reset instead. Exposed so the
// CLI can enqueue a scan without a running engine.
func NewScanJob(scanID, ruleID uint, priority int) (*database.Job, error) {
	payload, err := marshalScanPayload(scanPayload{ScanID: scanID, RuleID: ruleID})
	if err != nil {
		return nil, err
	}
	return &database.Job{
		Kind:        database.JobKindScan,
		Payload:     payload,
		Priority:    priority,
		MaxAttempts: 1,
	}, nil
}

func parseMediaType(s string) (media.MediaType, error) {
	mediaType := media.MediaType(s)
	if !mediaType.Valid() {
		return "", fmt.Errorf("unknown media type: %q", s)
	}
	return mediaType, nil
}

// handleScanJob runs one queued scan: aggregate the library, evaluate every
// item against the rule and upsert candidates for the matches.
//
// A scan failure never leaves partial candidates behind for this run: flagged
// candidates are written as the scan goes, but the scan is only marked
// completed when the whole evaluation succeeded. Per-item aggregation errors
// skip the item and count it, they do not fail the scan.
func (e *Engine) handleScanJob(ctx context.Context, job *database.Job) error {
	var payload scanPayload
	if err := json.Unmarshal([]byte(job.Payload), &payload); err != nil {
		return fmt.Errorf("invalid scan payload: %w", err)
	}

	logger := e.logger.With("scan", payload.ScanID, "rule_id", payload.RuleID)

	rule, err := e.db.GetRuleByID(ctx, payload.RuleID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return e.db.FailScan(ctx, payload.ScanID, "rule no longer exists")
		}
		return err
	}
	if !rule.Enabled {
		logger.Warn("rule was disabled after the scan was queued")
		return e.db.FailScan(ctx, payload.ScanID, "rule is disabled")
	}

	if err := e.db.StartScan(ctx, payload.ScanID); err != nil {
		if errors.Is(err, database.ErrInvalidTransition) {
			// Re-delivered job whose scan already ran to an end state.
			logger.Warn("scan is not pending, skipping")
			return nil
		}
		return err
	}

	root, err := rules.Parse([]byte(rule.Criteria), rule.MediaType)
	if err != nil {
		if failErr := e.db.FailScan(ctx, payload.ScanID, err.Error()); failErr != nil {
			logger.Error("failed to mark scan failed", "error", failErr)
		}
		return fmt.Errorf("stored criteria no longer parse: %w", err)
	}

	items, err := e.aggregator.Build(ctx, rule.MediaType)
	if err != nil {
		if failErr := e.db.FailScan(ctx, payload.ScanID, err.Error()); failErr != nil {
			logger.Error("failed to mark scan failed", "error", failErr)
		}
		return fmt.Errorf("failed to aggregate media items: %w", err)
	}

	now := time.Now()
	var evaluated, matched, skipped, created int
	for i := range items {
		item := &items[i]
		evaluated++

		// keep_forever forces retention regardless of the rule. Auto-delete
		// rules still evaluate the item so the protection lands in the
		// review history instead of vanishing into the skip count.
		if item.KeepForever() && !rule.AutoDelete {
			skipped++
			continue
		}

		verdict := rules.EvaluateAt(item, root, now)
		if !verdict.Matched {
			continue
		}
		matched++

		wasCreated, err := e.flagCandidate(ctx, rule, payload.ScanID, item, verdict.Reasons)
		if err != nil {
			logger.Warn("failed to flag candidate, skipping item", "title", item.Title, "error", err)
			skipped++
			continue
		}
		if wasCreated {
			created++
		}
	}

	if err := e.db.CompleteScan(ctx, payload.ScanID, evaluated, matched, skipped, created); err != nil {
		return err
	}
	logger.Info("scan completed", "evaluated", evaluated, "matched", matched, "skipped", skipped, "candidates_created", created)
	return nil
}

// flagCandidate upserts the candidate for a matched item. An existing open
// candidate for the same rule and title is refreshed in place, its review
// state survives rescans. Returns whether a new candidate was created.
//
// Auto-delete rules never leave a candidate pending: matches are approved
// and enqueued right away, unless an active request or a keep_forever mark
// protects the item, in which case the candidate is recorded as rejected
// with the reason.
func (e *Engine) flagCandidate(ctx context.Context, rule *database.Rule, scanID uint, item *media.MediaItem, reasons []string) (bool, error) {
	var protection string
	if rule.AutoDelete {
		switch {
		case item.Requested():
			protection = "active request protects the item"
		case item.KeepForever():
			protection = "keep_forever mark protects the item"
		}
	}
	protected := protection != ""
	if protected {
		reasons = append(reasons, protection)
	}

	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return false, fmt.Errorf("failed to marshal reasons: %w", err)
	}

	fileSize, _ := item.FileSize()

	existing, err := e.db.FindOpenCandidate(ctx, rule.ID, item.TitleKey)
	if err == nil {
		return false, e.db.RefreshCandidate(ctx, existing.ID, scanID, string(reasonsJSON), fileSize)
	}
	if !errors.Is(err, database.ErrNotFound) {
		return false, err
	}

	playCount, _ := item.PlayCount()
	lastPlayedAt, _ := item.LastPlayedAt()

	candidate := &database.Candidate{
		RuleID:       rule.ID,
		ScanID:       scanID,
		TitleKey:     item.TitleKey,
		MediaType:    item.MediaType,
		Title:        item.Title,
		Year:         item.Year,
		FileSize:     fileSize,
		PlayCount:    playCount,
		LastPlayedAt: lastPlayedAt,
		Reasons:      string(reasonsJSON),
		Status:       database.ReviewStatusPending,
	}
	if protected {
		candidate.Status = database.ReviewStatusRejected
		candidate.ReviewedBy = "auto"
	}
	if item.Library != nil {
		candidate.PosterURL = item.Library.PosterURL
	}
	if item.Request != nil {
		candidate.RequestedBy = item.Request.RequestedBy
	}
	if item.Arr != nil {
		arrID := item.Arr.ArrID
		candidate.ArrID = &arrID
	}

	if err := e.db.CreateCandidate(ctx, candidate); err != nil {
		return false, err
	}

	if rule.AutoDelete && !protected {
		if err := e.approveCandidate(ctx, candidate.ID, "auto"); err != nil {
			return true, fmt.Errorf("failed to auto-approve candidate: %w", err)
		}
	}
	return true, nil
}
