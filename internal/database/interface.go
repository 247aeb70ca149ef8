package database

import (
	"context"
	"errors"
	"time"

	"github.com/curatarr/curatarr/internal/feedback"
	"github.com/curatarr/curatarr/internal/media"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateRuleName is returned when a rule name is already taken.
	ErrDuplicateRuleName = errors.New("rule name already exists")
	// ErrInvalidTransition is returned when a status change races with a
	// concurrent update or skips a lifecycle state.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// CandidateFilter narrows candidate listings. Zero values mean "any".
type CandidateFilter struct {
	RuleID    uint
	ScanID    uint
	MediaType media.MediaType
	Status    ReviewStatus
	Limit     int
	Offset    int
}

// DeletionStats aggregates the audit log.
type DeletionStats struct {
	TotalAttempts  int64
	TotalDeleted   int64
	TotalFailed    int64
	TotalSizeFreed int64
	LastDeletionAt *time.Time
}

// DB defines the interface for database operations.
type DB interface {
	// Rule management
	CreateRule(ctx context.Context, rule *Rule) error
	UpdateRule(ctx context.Context, rule *Rule) error
	DeleteRule(ctx context.Context, id uint) error
	GetRuleByID(ctx context.Context, id uint) (*Rule, error)
	GetRuleByName(ctx context.Context, name string) (*Rule, error)
	ListRules(ctx context.Context, enabledOnly bool) ([]Rule, error)

	// Scan tracking
	CreateScan(ctx context.Context, scan *Scan) error
	StartScan(ctx context.Context, scanID uint) error
	CompleteScan(ctx context.Context, scanID uint, evaluated, matched, skipped, created int) error
	FailScan(ctx context.Context, scanID uint, errorMessage string) error
	GetScanByID(ctx context.Context, scanID uint) (*Scan, error)
	ListScans(ctx context.Context, ruleID uint, limit, offset int) ([]Scan, error)
	CountScans(ctx context.Context, ruleID uint) (int64, error)
	HasActiveScan(ctx context.Context, ruleID uint) (bool, error)

	// Candidate review
	FindOpenCandidate(ctx context.Context, ruleID uint, titleKey string) (*Candidate, error)
	CreateCandidate(ctx context.Context, candidate *Candidate) error
	RefreshCandidate(ctx context.Context, id uint, scanID uint, reasons string, fileSize int64) error
	GetCandidateByID(ctx context.Context, id uint) (*Candidate, error)
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]Candidate, error)
	TransitionCandidate(ctx context.Context, id uint, from, to ReviewStatus, reviewedBy, note string) error
	CountCandidatesByStatus(ctx context.Context) (map[ReviewStatus]int64, error)
	PurgeCandidates(ctx context.Context) (int64, error)

	// Deletion audit log
	CreateDeletionLog(ctx context.Context, entry *DeletionLog) error
	ListDeletionLogs(ctx context.Context, since *time.Time, limit, offset int) ([]DeletionLog, error)
	GetDeletionStats(ctx context.Context, since *time.Time) (*DeletionStats, error)

	// Durable job queue
	EnqueueJob(ctx context.Context, job *Job) error
	ClaimNextJob(ctx context.Context, now time.Time) (*Job, error)
	CompleteJob(ctx context.Context, jobID uint) error
	RetryJob(ctx context.Context, jobID uint, runAt time.Time, lastError string) error
	FailJob(ctx context.Context, jobID uint, lastError string) error
	ListFailedJobs(ctx context.Context, limit int) ([]Job, error)
	ResetStaleJobs(ctx context.Context) (int64, error)

	// User feedback
	AddFeedbackMark(ctx context.Context, mark *FeedbackMark) error
	MarksFor(ctx context.Context, titleKeys []string) (map[string][]feedback.Mark, error)

	// Utility
	Close() error
}
