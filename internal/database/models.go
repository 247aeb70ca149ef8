package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/curatarr/curatarr/internal/feedback"
	"github.com/curatarr/curatarr/internal/media"
)

// ScanTrigger records how a scan was started.
type ScanTrigger string

const (
	ScanTriggerScheduled ScanTrigger = "scheduled"
	ScanTriggerManual    ScanTrigger = "manual"
)

// ScanStatus represents the lifecycle state of a scan.
type ScanStatus string

const (
	ScanStatusPending   ScanStatus = "pending"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusFailed    ScanStatus = "failed"
)

// ReviewStatus represents the review state of a deletion candidate.
type ReviewStatus string

const (
	ReviewStatusPending          ReviewStatus = "pending"
	ReviewStatusApproved         ReviewStatus = "approved"
	ReviewStatusRejected         ReviewStatus = "rejected"
	ReviewStatusDeleted          ReviewStatus = "deleted"
	ReviewStatusPartiallyDeleted ReviewStatus = "partially_deleted"
)

// Open reports whether a candidate in this status still awaits a decision.
func (s ReviewStatus) Open() bool {
	return s == ReviewStatusPending || s == ReviewStatusApproved
}

// DeletionOutcome records the result of one deletion attempt.
type DeletionOutcome string

const (
	DeletionOutcomeDeleted DeletionOutcome = "deleted"
	DeletionOutcomePartial DeletionOutcome = "partial"
	DeletionOutcomeFailed  DeletionOutcome = "failed"
	DeletionOutcomeSkipped DeletionOutcome = "skipped"
	DeletionOutcomeDryRun  DeletionOutcome = "dry_run"
)

// JobKind identifies the handler responsible for a queued job.
type JobKind string

const (
	JobKindScan     JobKind = "scan"
	JobKindDeletion JobKind = "deletion"
)

// JobStatus represents the lifecycle state of a queued job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job priorities. Manual triggers jump ahead of scheduled work.
const (
	JobPriorityNormal = 0
	JobPriorityHigh   = 10
)

// Rule represents a stored maintenance rule.
type Rule struct {
	gorm.Model
	Name        string          `gorm:"not null;uniqueIndex"`
	Description string
	MediaType   media.MediaType `gorm:"not null"`
	// Criteria is the validated criteria tree, stored as JSON.
	Criteria string `gorm:"not null"`
	// Schedule is a cron expression. Empty means manual trigger only.
	Schedule string
	Enabled  bool `gorm:"not null;default:true"`
	// AutoDelete approves matching candidates without human review.
	AutoDelete bool `gorm:"not null;default:false"`
}

// Scan represents one evaluation run of a rule against the library.
type Scan struct {
	gorm.Model
	RuleID            uint        `gorm:"not null;index"`
	RuleName          string      `gorm:"not null"`
	Trigger           ScanTrigger `gorm:"not null"`
	Status            ScanStatus  `gorm:"not null;index"`
	StartedAt         *time.Time
	CompletedAt       *time.Time
	ItemsEvaluated    int
	ItemsMatched      int
	ItemsSkipped      int
	CandidatesCreated int
	ErrorMessage      *string
}

// Candidate represents a media item flagged for deletion by a scan.
type Candidate struct {
	gorm.Model
	RuleID    uint            `gorm:"not null;index"`
	ScanID    uint            `gorm:"not null;index"`
	TitleKey  string          `gorm:"not null;index"`
	MediaType media.MediaType `gorm:"not null"`
	Title     string          `gorm:"not null"`
	Year      int32
	FileSize  int64
	PosterURL string
	// Playback snapshot taken at flag time, not re-derived afterwards.
	PlayCount    int32
	LastPlayedAt *time.Time
	RequestedBy  string
	// ArrID is the Radarr or Sonarr identifier, when the item is managed there.
	ArrID *int32
	// Reasons is a JSON array describing the matched conditions.
	Reasons    string
	Status     ReviewStatus `gorm:"not null;index"`
	ReviewedBy string
	// ReviewNote is the reviewer's free-form comment, last writer wins.
	ReviewNote string
	ReviewedAt *time.Time
	ResolvedAt *time.Time
}

// DeletionLog is the audit record of one deletion attempt. Every attempt
// writes a row, including dry runs and idempotent skips.
type DeletionLog struct {
	gorm.Model
	CandidateID uint   `gorm:"not null;index"`
	RequestID   string `gorm:"not null;index"`
	TitleKey    string `gorm:"not null;index"`
	Title       string
	MediaType   media.MediaType
	FileSize    int64
	Outcome     DeletionOutcome `gorm:"not null;index"`
	Detail      string
	Attempt     int
}

// Job is one unit of durable queued work.
type Job struct {
	gorm.Model
	Kind JobKind `gorm:"not null;index"`
	// Payload is the handler-specific job payload, stored as JSON.
	Payload     string    `gorm:"not null"`
	Status      JobStatus `gorm:"not null;index"`
	Priority    int       `gorm:"not null;default:0"`
	RunAt       time.Time `gorm:"not null;index"`
	Attempts    int       `gorm:"not null;default:0"`
	MaxAttempts int       `gorm:"not null;default:1"`
	LastError   *string
}

// FeedbackMark is one user mark on a library item. A user has at most one
// mark per title; re-marking replaces the previous mark.
type FeedbackMark struct {
	gorm.Model
	TitleKey  string          `gorm:"not null;uniqueIndex:idx_feedback_title_user"`
	MediaType media.MediaType `gorm:"not null"`
	Mark      feedback.Mark   `gorm:"not null"`
	MarkedBy  string          `gorm:"not null;uniqueIndex:idx_feedback_title_user"`
}
