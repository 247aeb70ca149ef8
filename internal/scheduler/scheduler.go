// Package scheduler manages recurring rule scans with cron schedules.
//
// Jobs are registered per rule and can be replaced or removed while the
// scheduler is running, rule edits take effect without a restart.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
)

// JobStatus represents the status of a scheduled job.
type JobStatus string

const (
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobInfo contains bookkeeping for one scheduled rule.
type JobInfo struct {
	RuleID     uint       `json:"ruleId"`
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Status     JobStatus  `json:"status"`
	LastRun    time.Time  `json:"lastRun"`
	NextRun    time.Time  `json:"nextRun"`
	RunCount   int        `json:"runCount"`
	ErrorCount int        `json:"errorCount"`
	LastError  string     `json:"lastError,omitempty"`
	gocronJob  gocron.Job `json:"-"`
}

// JobFunc represents a function that can be scheduled.
type JobFunc func(ctx context.Context) error

// Scheduler manages the recurring scans of all scheduled rules.
type Scheduler struct {
	mu     sync.Mutex
	gocron gocron.Scheduler
	jobs   map[uint]*JobInfo
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new scheduler.
func New() (*Scheduler, error) {
	gocronScheduler, err := gocron.NewScheduler(gocron.WithLogger(newLogger()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		gocron: gocronScheduler,
		jobs:   make(map[uint]*JobInfo),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	log.Info("Starting rule scheduler")
	s.gocron.Start()

	s.mu.Lock()
	defer s.mu.Unlock()
	for ruleID, jobInfo := range s.jobs {
		if nextRun, err := jobInfo.gocronJob.NextRun(); err == nil {
			jobInfo.NextRun = nextRun
		} else {
			log.Warn("Failed to get next run time for rule", "rule_id", ruleID, "error", err)
		}
	}
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() error {
	log.Info("Stopping rule scheduler")
	s.cancel()
	return s.gocron.Shutdown()
}

// RegisterRule schedules the recurring scan of one rule. An existing job for
// the same rule is replaced, so rule edits just re-register. The job runs in
// singleton mode, a slow scan is never overlapped by its own schedule.
func (s *Scheduler) RegisterRule(ruleID uint, name, schedule string, jobFunc JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[ruleID]; ok {
		if err := s.gocron.RemoveJob(existing.gocronJob.ID()); err != nil {
			log.Warn("Failed to remove previous job for rule", "rule_id", ruleID, "error", err)
		}
		delete(s.jobs, ruleID)
	}

	jobInfo := &JobInfo{
		RuleID:   ruleID,
		Name:     name,
		Schedule: schedule,
		Status:   JobStatusScheduled,
	}

	// A sixth field means the schedule carries seconds.
	withSeconds := len(strings.Fields(schedule)) == 6

	job, err := s.gocron.NewJob(
		gocron.CronJob(schedule, withSeconds),
		gocron.NewTask(s.wrapJobFunc(ruleID, jobFunc)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule rule %q: %w", name, err)
	}
	jobInfo.gocronJob = job

	if nextRun, err := job.NextRun(); err == nil {
		jobInfo.NextRun = nextRun
	}

	s.jobs[ruleID] = jobInfo
	log.Info("Scheduled rule", "rule_id", ruleID, "name", name, "schedule", schedule)
	return nil
}

// UnregisterRule removes the scheduled job of a rule. Unknown rules are a
// no-op, disabled and manual-only rules are simply never registered.
func (s *Scheduler) UnregisterRule(ruleID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobInfo, ok := s.jobs[ruleID]
	if !ok {
		return
	}
	if err := s.gocron.RemoveJob(jobInfo.gocronJob.ID()); err != nil {
		log.Warn("Failed to remove job for rule", "rule_id", ruleID, "error", err)
	}
	delete(s.jobs, ruleID)
	log.Info("Unscheduled rule", "rule_id", ruleID, "name", jobInfo.Name)
}

// GetJobs returns a snapshot of all scheduled jobs.
func (s *Scheduler) GetJobs() map[uint]JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make(map[uint]JobInfo, len(s.jobs))
	for ruleID, jobInfo := range s.jobs {
		jobs[ruleID] = *jobInfo
	}
	return jobs
}

// GetJob returns the bookkeeping for one rule's job.
func (s *Scheduler) GetJob(ruleID uint) (JobInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobInfo, ok := s.jobs[ruleID]
	if !ok {
		return JobInfo{}, false
	}
	return *jobInfo, true
}

// wrapJobFunc wraps a job function to update job statistics.
func (s *Scheduler) wrapJobFunc(ruleID uint, jobFunc JobFunc) func() {
	return func() {
		s.mu.Lock()
		jobInfo, ok := s.jobs[ruleID]
		if !ok {
			s.mu.Unlock()
			return
		}
		jobInfo.Status = JobStatusRunning
		jobInfo.LastRun = time.Now()
		jobInfo.RunCount++
		name := jobInfo.Name
		s.mu.Unlock()

		log.Info("Starting scheduled scan", "rule_id", ruleID, "name", name)
		err := jobFunc(s.ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		jobInfo, ok = s.jobs[ruleID]
		if !ok {
			return
		}
		if err != nil {
			log.Error("Scheduled scan failed", "rule_id", ruleID, "name", name, "error", err)
			jobInfo.Status = JobStatusFailed
			jobInfo.ErrorCount++
			jobInfo.LastError = err.Error()
		} else {
			jobInfo.Status = JobStatusCompleted
			jobInfo.LastError = ""
		}
		if nextRun, nextErr := jobInfo.gocronJob.NextRun(); nextErr == nil {
			jobInfo.NextRun = nextRun
		}
	}
}
