// Package engine wires the library housekeeping pipeline together: rule
// management, scheduled scans, candidate review and the deletion executor.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/media/arr"
	"github.com/curatarr/curatarr/internal/media/arr/radarr"
	"github.com/curatarr/curatarr/internal/media/arr/sonarr"
	"github.com/curatarr/curatarr/internal/media/mediaserver"
	"github.com/curatarr/curatarr/internal/media/mediaserver/jellyfin"
	"github.com/curatarr/curatarr/internal/media/requests"
	"github.com/curatarr/curatarr/internal/media/requests/overseerr"
	"github.com/curatarr/curatarr/internal/media/stats"
	"github.com/curatarr/curatarr/internal/media/stats/jellystat"
	"github.com/curatarr/curatarr/internal/queue"
	"github.com/curatarr/curatarr/internal/scheduler"
)

var (
	// ErrRuleDisabled is returned when a scan is triggered on a disabled rule.
	ErrRuleDisabled = errors.New("rule is disabled")
	// ErrScanInProgress is returned when a rule already has an active scan.
	ErrScanInProgress = errors.New("a scan for this rule is already in progress")
	// ErrAlreadyReviewed is returned when a candidate was reviewed concurrently.
	ErrAlreadyReviewed = errors.New("candidate has already been reviewed")
)

// Engine coordinates scans, reviews and deletions across the collaborators.
type Engine struct {
	cfg        *config.Config
	db         database.DB
	library    mediaserver.Client
	radarr     arr.Arrer
	sonarr     arr.Arrer
	aggregator *Aggregator
	scheduler  *scheduler.Scheduler
	queue      *queue.Queue
	logger     *log.Logger
}

// New creates a new Engine instance. Only the library server is mandatory,
// absent collaborators leave their data sources empty.
func New(cfg *config.Config, db database.DB) (*Engine, error) {
	library := jellyfin.New(cfg.Jellyfin)

	var statser stats.Statser
	if cfg.Jellystat != nil {
		statser = jellystat.New(cfg.Jellystat)
	}

	var requester requests.Requester
	if cfg.Overseerr != nil {
		requester = overseerr.New(cfg.Overseerr)
	}

	var radarrClient, sonarrClient arr.Arrer
	if cfg.Radarr != nil {
		radarrClient = radarr.New(cfg.Radarr)
	}
	if cfg.Sonarr != nil {
		sonarrClient = sonarr.New(cfg.Sonarr)
	}

	sched, err := scheduler.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		db:         db,
		library:    library,
		radarr:     radarrClient,
		sonarr:     sonarrClient,
		aggregator: NewAggregator(library, statser, requester, radarrClient, sonarrClient, db),
		scheduler:  sched,
		queue:      queue.New(db, cfg.Queue.Workers, time.Duration(cfg.Queue.PollInterval)*time.Second),
		logger:     log.WithPrefix("engine"),
	}

	e.queue.Register(database.JobKindScan, e.handleScanJob)
	e.queue.Register(database.JobKindDeletion, e.handleDeletionJob)

	return e, nil
}

// Run registers the scheduled rules, starts the scheduler and runs the job
// queue. It blocks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.reconcileSchedules(ctx); err != nil {
		return err
	}
	e.scheduler.Start()

	if e.cfg.DryRun {
		e.logger.Warn("dry run enabled, deletions will only be logged")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.queue.Run(ctx)
	})
	return g.Wait()
}

// Close stops the scheduler.
func (e *Engine) Close() error {
	return e.scheduler.Stop()
}

// reconcileSchedules registers a scheduler job for every enabled rule that
// carries a schedule.
func (e *Engine) reconcileSchedules(ctx context.Context) error {
	rules, err := e.db.ListRules(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}

	for _, rule := range rules {
		if rule.Schedule == "" {
			continue
		}
		if err := e.registerRuleSchedule(rule); err != nil {
			e.logger.Error("failed to schedule rule", "rule", rule.Name, "error", err)
		}
	}
	return nil
}

func (e *Engine) registerRuleSchedule(rule database.Rule) error {
	ruleID := rule.ID
	return e.scheduler.RegisterRule(rule.ID, rule.Name, rule.Schedule, func(ctx context.Context) error {
		_, err := e.TriggerScan(ctx, ruleID, database.ScanTriggerScheduled)
		if errors.Is(err, ErrScanInProgress) {
			e.logger.Warn("skipping scheduled scan, previous scan still active", "rule_id", ruleID)
			return nil
		}
		return err
	})
}
