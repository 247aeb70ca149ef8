package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/database"
	dbmock "github.com/curatarr/curatarr/internal/database/mock"
	"github.com/curatarr/curatarr/internal/feedback"
	"github.com/curatarr/curatarr/internal/media"
	"github.com/curatarr/curatarr/internal/media/arr"
	arrmock "github.com/curatarr/curatarr/internal/media/arr/mock"
	"github.com/curatarr/curatarr/internal/media/mediaserver"
	servermock "github.com/curatarr/curatarr/internal/media/mediaserver/mock"
	"github.com/curatarr/curatarr/internal/media/requests"
	reqmock "github.com/curatarr/curatarr/internal/media/requests/mock"
	"github.com/curatarr/curatarr/internal/media/stats"
	"github.com/curatarr/curatarr/internal/queue"
	"github.com/curatarr/curatarr/internal/scheduler"
)

// newTestEngine builds an engine around injected collaborators.
func newTestEngine(
	cfg *config.Config,
	db database.DB,
	library mediaserver.Client,
	statser stats.Statser,
	requester requests.Requester,
	radarrClient, sonarrClient arr.Arrer,
) (*Engine, error) {
	sched, err := scheduler.New()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		db:         db,
		library:    library,
		radarr:     radarrClient,
		sonarr:     sonarrClient,
		aggregator: NewAggregator(library, statser, requester, radarrClient, sonarrClient, db),
		scheduler:  sched,
		queue:      queue.New(db, cfg.Queue.Workers, 20*time.Millisecond),
		logger:     log.WithPrefix("engine"),
	}
	e.queue.Register(database.JobKindScan, e.handleScanJob)
	e.queue.Register(database.JobKindDeletion, e.handleDeletionJob)
	return e, nil
}

type testHarness struct {
	engine    *Engine
	db        *dbmock.MockDB
	library   *servermock.Client
	radarr    *arrmock.Arrer
	sonarr    *arrmock.Arrer
	requester *reqmock.Requester
}

func newHarness(t *testing.T, dryRun bool) *testHarness {
	t.Helper()

	db := dbmock.NewMockDB()
	library := servermock.New()
	radarr := arrmock.New()
	sonarr := arrmock.New()
	requester := reqmock.New()

	cfg := &config.Config{
		DryRun: dryRun,
		Queue: config.QueueConfig{
			Workers:             1,
			PollInterval:        1,
			MaxDeletionAttempts: 3,
		},
	}

	e, err := newTestEngine(cfg, db, library, nil, requester, radarr, sonarr)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = e.Close()
	})

	return &testHarness{engine: e, db: db, library: library, radarr: radarr, sonarr: sonarr, requester: requester}
}

const unwatchedCriteria = `{"group":{"op":"and","children":[
	{"condition":{"attribute":"play_count","operator":"eq","value":0}},
	{"condition":{"attribute":"added_at","operator":"older_than","value":180}}
]}}`

func (h *testHarness) createRule(t *testing.T, autoDelete bool) *database.Rule {
	t.Helper()
	rule, err := h.engine.CreateRule(context.Background(), RuleInput{
		Name:       "stale movies",
		MediaType:  "movie",
		Criteria:   []byte(unwatchedCriteria),
		Enabled:    true,
		AutoDelete: autoDelete,
	})
	require.NoError(t, err)
	return rule
}

func (h *testHarness) seedLibrary(now time.Time) {
	h.library.SetItems(media.MediaTypeMovie, []mediaserver.LibraryItem{
		{
			TitleKey:  "movie-old",
			MediaType: media.MediaTypeMovie,
			Title:     "Old Movie",
			Year:      2010,
			PlayCount: 0,
			AddedAt:   lo.ToPtr(now.AddDate(0, 0, -200)),
			FileSize:  2 << 30,
			TmdbID:    101,
		},
		{
			TitleKey:     "movie-watched",
			MediaType:    media.MediaTypeMovie,
			Title:        "Watched Movie",
			Year:         2020,
			PlayCount:    4,
			AddedAt:      lo.ToPtr(now.AddDate(0, 0, -300)),
			LastPlayedAt: lo.ToPtr(now.AddDate(0, 0, -5)),
			FileSize:     1 << 30,
			TmdbID:       102,
		},
	})
}

// runScan triggers and executes a scan synchronously through the job handler.
func (h *testHarness) runScan(t *testing.T, ruleID uint) *database.Scan {
	t.Helper()
	ctx := context.Background()

	scan, err := h.engine.TriggerScan(ctx, ruleID, database.ScanTriggerManual)
	require.NoError(t, err)

	jobs := h.db.Jobs()
	var scanJob *database.Job
	for i := range jobs {
		if jobs[i].Kind == database.JobKindScan && jobs[i].Status == database.JobStatusQueued {
			var p scanPayload
			require.NoError(t, json.Unmarshal([]byte(jobs[i].Payload), &p))
			if p.ScanID == scan.ID {
				scanJob = &jobs[i]
			}
		}
	}
	require.NotNil(t, scanJob, "scan job not enqueued")
	require.NoError(t, h.engine.handleScanJob(ctx, scanJob))

	completed, err := h.db.GetScanByID(ctx, scan.ID)
	require.NoError(t, err)
	return completed
}

func TestCreateRuleValidation(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	_, err := h.engine.CreateRule(ctx, RuleInput{
		Name:      "broken",
		MediaType: "movie",
		Criteria:  []byte(`{"condition":{"attribute":"bogus","operator":"eq","value":1}}`),
		Enabled:   true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown attribute")

	_, err = h.engine.CreateRule(ctx, RuleInput{
		Name:      "bad schedule",
		MediaType: "movie",
		Criteria:  []byte(unwatchedCriteria),
		Schedule:  "whenever",
		Enabled:   true,
	})
	require.Error(t, err)

	_, err = h.engine.CreateRule(ctx, RuleInput{
		Name:      "bad media type",
		MediaType: "music",
		Criteria:  []byte(unwatchedCriteria),
		Enabled:   true,
	})
	require.Error(t, err)

	rule, err := h.engine.CreateRule(ctx, RuleInput{
		Name:      "nightly",
		MediaType: "movie",
		Criteria:  []byte(unwatchedCriteria),
		Schedule:  "0 3 * * *",
		Enabled:   true,
	})
	require.NoError(t, err)

	// The scheduled rule is registered with the scheduler.
	jobs := h.engine.ScheduledJobs()
	assert.Contains(t, jobs, rule.ID)
}

func TestUpdateRuleSyncsSchedule(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	rule, err := h.engine.CreateRule(ctx, RuleInput{
		Name:      "nightly",
		MediaType: "movie",
		Criteria:  []byte(unwatchedCriteria),
		Schedule:  "0 3 * * *",
		Enabled:   true,
	})
	require.NoError(t, err)
	assert.Contains(t, h.engine.ScheduledJobs(), rule.ID)

	// Disabling removes the schedule.
	_, err = h.engine.UpdateRule(ctx, rule.ID, RuleInput{
		Name:      "nightly",
		MediaType: "movie",
		Criteria:  []byte(unwatchedCriteria),
		Schedule:  "0 3 * * *",
		Enabled:   false,
	})
	require.NoError(t, err)
	assert.NotContains(t, h.engine.ScheduledJobs(), rule.ID)
}

func TestTriggerScanGuards(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	rule := h.createRule(t, false)

	disabled, err := h.engine.CreateRule(ctx, RuleInput{
		Name:      "disabled rule",
		MediaType: "movie",
		Criteria:  []byte(unwatchedCriteria),
		Enabled:   false,
	})
	require.NoError(t, err)

	_, err = h.engine.TriggerScan(ctx, disabled.ID, database.ScanTriggerManual)
	assert.ErrorIs(t, err, ErrRuleDisabled)

	_, err = h.engine.TriggerScan(ctx, rule.ID, database.ScanTriggerManual)
	require.NoError(t, err)

	// A second trigger while the first scan is still active is rejected.
	_, err = h.engine.TriggerScan(ctx, rule.ID, database.ScanTriggerManual)
	assert.ErrorIs(t, err, ErrScanInProgress)
}

func TestManualScanRunsAtHighPriority(t *testing.T) {
	h := newHarness(t, false)
	rule := h.createRule(t, false)

	_, err := h.engine.TriggerScan(context.Background(), rule.ID, database.ScanTriggerManual)
	require.NoError(t, err)

	jobs := h.db.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, database.JobPriorityHigh, jobs[0].Priority)
}

func TestScanFlagsMatchingItems(t *testing.T) {
	h := newHarness(t, false)
	rule := h.createRule(t, false)
	h.seedLibrary(time.Now())

	scan := h.runScan(t, rule.ID)
	assert.Equal(t, database.ScanStatusCompleted, scan.Status)
	assert.Equal(t, 2, scan.ItemsEvaluated)
	assert.Equal(t, 1, scan.ItemsMatched)
	assert.Equal(t, 1, scan.CandidatesCreated)

	candidates, err := h.engine.ListCandidates(context.Background(), database.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "movie-old", candidates[0].TitleKey)
	assert.Equal(t, database.ReviewStatusPending, candidates[0].Status)
	assert.Contains(t, candidates[0].Reasons, "play_count eq 0")
}

func TestScanSkipsKeepForever(t *testing.T) {
	h := newHarness(t, false)
	rule := h.createRule(t, false)
	h.seedLibrary(time.Now())

	require.NoError(t, h.engine.AddFeedback(context.Background(), "movie-old", "movie", feedback.MarkKeepForever, "alice"))

	scan := h.runScan(t, rule.ID)
	assert.Equal(t, 1, scan.ItemsSkipped)
	assert.Equal(t, 0, scan.ItemsMatched)

	candidates, err := h.engine.ListCandidates(context.Background(), database.CandidateFilter{})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestRescanRefreshesOpenCandidate(t *testing.T) {
	h := newHarness(t, false)
	rule := h.createRule(t, false)
	h.seedLibrary(time.Now())

	first := h.runScan(t, rule.ID)
	second := h.runScan(t, rule.ID)

	assert.Equal(t, 1, first.CandidatesCreated)
	assert.Equal(t, 1, second.ItemsMatched)
	assert.Equal(t, 0, second.CandidatesCreated)

	candidates, err := h.engine.ListCandidates(context.Background(), database.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, second.ID, candidates[0].ScanID)
}

func TestScanFailsWhenLibraryUnreachable(t *testing.T) {
	h := newHarness(t, false)
	rule := h.createRule(t, false)
	h.library.ListItemsError = assert.AnError

	ctx := context.Background()
	scan, err := h.engine.TriggerScan(ctx, rule.ID, database.ScanTriggerManual)
	require.NoError(t, err)

	jobs := h.db.Jobs()
	require.Len(t, jobs, 1)
	require.Error(t, h.engine.handleScanJob(ctx, &jobs[0]))

	failed, err := h.db.GetScanByID(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, database.ScanStatusFailed, failed.Status)

	candidates, err := h.engine.ListCandidates(ctx, database.CandidateFilter{})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestAutoDeleteApprovesAndEnqueues(t *testing.T) {
	h := newHarness(t, false)
	rule := h.createRule(t, true)
	h.seedLibrary(time.Now())

	h.runScan(t, rule.ID)

	candidates, err := h.engine.ListCandidates(context.Background(), database.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, database.ReviewStatusApproved, candidates[0].Status)
	assert.Equal(t, "auto", candidates[0].ReviewedBy)

	var deletionJobs int
	for _, job := range h.db.Jobs() {
		if job.Kind == database.JobKindDeletion {
			deletionJobs++
			assert.Equal(t, 3, job.MaxAttempts)
		}
	}
	assert.Equal(t, 1, deletionJobs)
}

func TestSetRuleEnabledSyncsSchedule(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	rule, err := h.engine.CreateRule(ctx, RuleInput{
		Name:      "nightly",
		MediaType: "movie",
		Criteria:  []byte(unwatchedCriteria),
		Schedule:  "0 3 * * *",
		Enabled:   true,
	})
	require.NoError(t, err)
	assert.Contains(t, h.engine.ScheduledJobs(), rule.ID)

	disabled, err := h.engine.SetRuleEnabled(ctx, rule.ID, false)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled)
	assert.NotContains(t, h.engine.ScheduledJobs(), rule.ID)

	// Toggling to the current state is a no-op.
	same, err := h.engine.SetRuleEnabled(ctx, rule.ID, false)
	require.NoError(t, err)
	assert.False(t, same.Enabled)

	enabled, err := h.engine.SetRuleEnabled(ctx, rule.ID, true)
	require.NoError(t, err)
	assert.True(t, enabled.Enabled)
	assert.Contains(t, h.engine.ScheduledJobs(), rule.ID)
}

func TestListRuleSummaries(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	rule := h.createRule(t, false)
	idle, err := h.engine.CreateRule(ctx, RuleInput{
		Name:      "never scanned",
		MediaType: "movie",
		Criteria:  []byte(unwatchedCriteria),
		Enabled:   true,
	})
	require.NoError(t, err)

	h.seedLibrary(time.Now())
	h.runScan(t, rule.ID)
	h.runScan(t, rule.ID)

	summaries, err := h.engine.ListRuleSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byID := make(map[uint]RuleSummary, len(summaries))
	for _, s := range summaries {
		byID[s.ID] = s
	}

	scanned := byID[rule.ID]
	assert.Equal(t, int64(2), scanned.ScanCount)
	require.NotNil(t, scanned.LastScan)
	assert.Equal(t, database.ScanStatusCompleted, scanned.LastScan.Status)

	fresh := byID[idle.ID]
	assert.Zero(t, fresh.ScanCount)
	assert.Nil(t, fresh.LastScan)
}

func TestAutoDeleteProtectsRequestedItems(t *testing.T) {
	h := newHarness(t, false)
	rule := h.createRule(t, true)
	h.seedLibrary(time.Now())
	h.requester.SetActiveRequest(media.MediaTypeMovie, requests.Request{
		CatalogID:   101,
		RequestedBy: "alice",
	})

	h.runScan(t, rule.ID)

	candidates, err := h.engine.ListCandidates(context.Background(), database.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, database.ReviewStatusRejected, candidates[0].Status)
	assert.Equal(t, "auto", candidates[0].ReviewedBy)
	assert.Contains(t, candidates[0].Reasons, "active request protects the item")

	// The protected item is never queued for deletion.
	for _, job := range h.db.Jobs() {
		assert.NotEqual(t, database.JobKindDeletion, job.Kind)
	}
}

func TestAutoDeleteRejectsKeepForever(t *testing.T) {
	h := newHarness(t, false)
	rule := h.createRule(t, true)
	h.seedLibrary(time.Now())
	require.NoError(t, h.engine.AddFeedback(context.Background(), "movie-old", "movie", feedback.MarkKeepForever, "alice"))

	scan := h.runScan(t, rule.ID)
	assert.Equal(t, 0, scan.ItemsSkipped)

	candidates, err := h.engine.ListCandidates(context.Background(), database.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, database.ReviewStatusRejected, candidates[0].Status)
	assert.Equal(t, "auto", candidates[0].ReviewedBy)
	assert.Contains(t, candidates[0].Reasons, "keep_forever mark protects the item")

	for _, job := range h.db.Jobs() {
		assert.NotEqual(t, database.JobKindDeletion, job.Kind)
	}
}

func TestReviewCandidates(t *testing.T) {
	h := newHarness(t, false)
	rule := h.createRule(t, false)
	h.seedLibrary(time.Now())
	h.runScan(t, rule.ID)

	ctx := context.Background()
	candidates, err := h.engine.ListCandidates(ctx, database.CandidateFilter{Status: database.ReviewStatusPending})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	id := candidates[0].ID

	require.NoError(t, h.engine.ApproveCandidate(ctx, id, "admin", "freeing space"))
	// The losing side of a review race is told so.
	assert.ErrorIs(t, h.engine.RejectCandidate(ctx, id, "other", ""), ErrAlreadyReviewed)
	assert.ErrorIs(t, h.engine.ApproveCandidate(ctx, id, "other", ""), ErrAlreadyReviewed)

	got, err := h.engine.GetCandidate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, database.ReviewStatusApproved, got.Status)
	assert.Equal(t, "admin", got.ReviewedBy)
	assert.Equal(t, "freeing space", got.ReviewNote)

	// Only the winning approval enqueued a deletion.
	var deletionJobs int
	for _, job := range h.db.Jobs() {
		if job.Kind == database.JobKindDeletion {
			deletionJobs++
		}
	}
	assert.Equal(t, 1, deletionJobs)
}

func TestBulkReviewReportsPerCandidate(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	require.NoError(t, h.db.CreateCandidate(ctx, &database.Candidate{
		RuleID: 1, ScanID: 1, TitleKey: "movie-a", MediaType: media.MediaTypeMovie,
		Title: "A", Status: database.ReviewStatusPending,
	}))
	require.NoError(t, h.db.CreateCandidate(ctx, &database.Candidate{
		RuleID: 1, ScanID: 1, TitleKey: "movie-b", MediaType: media.MediaTypeMovie,
		Title: "B", Status: database.ReviewStatusRejected,
	}))

	outcomes := h.engine.ReviewCandidates(ctx, []uint{1, 2, 99}, false, "admin", "")
	require.Len(t, outcomes, 3)
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, ErrAlreadyReviewed)
	assert.ErrorIs(t, outcomes[2].Err, database.ErrNotFound)
}

func TestAddFeedbackValidation(t *testing.T) {
	h := newHarness(t, false)
	ctx := context.Background()

	assert.Error(t, h.engine.AddFeedback(ctx, "movie-1", "movie", feedback.Mark("love_it"), "alice"))
	assert.Error(t, h.engine.AddFeedback(ctx, "movie-1", "music", feedback.MarkNotInterested, "alice"))
	assert.NoError(t, h.engine.AddFeedback(ctx, "movie-1", "movie", feedback.MarkNotInterested, "alice"))
}
