// Package mock provides an in-memory database.DB implementation for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/curatarr/curatarr/internal/database"
	"github.com/curatarr/curatarr/internal/feedback"
)

var _ database.DB = (*MockDB)(nil)

// MockDB is a mock implementation of database.DB for testing.
type MockDB struct {
	mu sync.RWMutex

	rules        map[uint]*database.Rule
	nextRuleID   uint
	scans        map[uint]*database.Scan
	nextScanID   uint
	candidates   map[uint]*database.Candidate
	nextCandID   uint
	deletionLogs []database.DeletionLog
	jobs         map[uint]*database.Job
	nextJobID    uint
	marks        map[string]map[string]feedback.Mark

	// Error simulation
	CreateRuleError        error
	UpdateRuleError        error
	DeleteRuleError        error
	GetRuleError           error
	ListRulesError         error
	CreateScanError        error
	ScanTransitionError    error
	ListScansError         error
	HasActiveScanError     error
	CandidateError         error
	TransitionError        error
	CreateDeletionLogError error
	DeletionStatsError     error
	EnqueueJobError        error
	ClaimNextJobError      error
	JobTransitionError     error
	FeedbackError          error
}

// NewMockDB creates a new MockDB instance.
func NewMockDB() *MockDB {
	return &MockDB{
		rules:      make(map[uint]*database.Rule),
		nextRuleID: 1,
		scans:      make(map[uint]*database.Scan),
		nextScanID: 1,
		candidates: make(map[uint]*database.Candidate),
		nextCandID: 1,
		jobs:       make(map[uint]*database.Job),
		nextJobID:  1,
		marks:      make(map[string]map[string]feedback.Mark),
	}
}

func (m *MockDB) CreateRule(_ context.Context, rule *database.Rule) error {
	if m.CreateRuleError != nil {
		return m.CreateRuleError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rules {
		if existing.Name == rule.Name {
			return database.ErrDuplicateRuleName
		}
	}
	rule.ID = m.nextRuleID
	rule.CreatedAt = time.Now()
	m.nextRuleID++
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *MockDB) UpdateRule(_ context.Context, rule *database.Rule) error {
	if m.UpdateRuleError != nil {
		return m.UpdateRuleError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.ID]; !ok {
		return database.ErrNotFound
	}
	for id, existing := range m.rules {
		if id != rule.ID && existing.Name == rule.Name {
			return database.ErrDuplicateRuleName
		}
	}
	cp := *rule
	m.rules[rule.ID] = &cp
	return nil
}

func (m *MockDB) DeleteRule(_ context.Context, id uint) error {
	if m.DeleteRuleError != nil {
		return m.DeleteRuleError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.rules, id)
	for candID, cand := range m.candidates {
		if cand.RuleID == id {
			delete(m.candidates, candID)
		}
	}
	for scanID, scan := range m.scans {
		if scan.RuleID == id {
			delete(m.scans, scanID)
		}
	}
	return nil
}

func (m *MockDB) GetRuleByID(_ context.Context, id uint) (*database.Rule, error) {
	if m.GetRuleError != nil {
		return nil, m.GetRuleError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rule, ok := m.rules[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *rule
	return &cp, nil
}

func (m *MockDB) GetRuleByName(_ context.Context, name string) (*database.Rule, error) {
	if m.GetRuleError != nil {
		return nil, m.GetRuleError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rule := range m.rules {
		if rule.Name == name {
			cp := *rule
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *MockDB) ListRules(_ context.Context, enabledOnly bool) ([]database.Rule, error) {
	if m.ListRulesError != nil {
		return nil, m.ListRulesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rules []database.Rule
	for _, rule := range m.rules {
		if enabledOnly && !rule.Enabled {
			continue
		}
		rules = append(rules, *rule)
	}
	return rules, nil
}

func (m *MockDB) CreateScan(_ context.Context, scan *database.Scan) error {
	if m.CreateScanError != nil {
		return m.CreateScanError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	scan.ID = m.nextScanID
	scan.CreatedAt = time.Now()
	scan.Status = database.ScanStatusPending
	m.nextScanID++
	cp := *scan
	m.scans[scan.ID] = &cp
	return nil
}

func (m *MockDB) StartScan(_ context.Context, scanID uint) error {
	if m.ScanTransitionError != nil {
		return m.ScanTransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	scan, ok := m.scans[scanID]
	if !ok || scan.Status != database.ScanStatusPending {
		return database.ErrInvalidTransition
	}
	scan.Status = database.ScanStatusRunning
	scan.StartedAt = lo.ToPtr(time.Now())
	return nil
}

func (m *MockDB) CompleteScan(_ context.Context, scanID uint, evaluated, matched, skipped, created int) error {
	if m.ScanTransitionError != nil {
		return m.ScanTransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	scan, ok := m.scans[scanID]
	if !ok || scan.Status != database.ScanStatusRunning {
		return database.ErrInvalidTransition
	}
	scan.Status = database.ScanStatusCompleted
	scan.CompletedAt = lo.ToPtr(time.Now())
	scan.ItemsEvaluated = evaluated
	scan.ItemsMatched = matched
	scan.ItemsSkipped = skipped
	scan.CandidatesCreated = created
	return nil
}

func (m *MockDB) FailScan(_ context.Context, scanID uint, errorMessage string) error {
	if m.ScanTransitionError != nil {
		return m.ScanTransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	scan, ok := m.scans[scanID]
	if !ok || (scan.Status != database.ScanStatusPending && scan.Status != database.ScanStatusRunning) {
		return database.ErrInvalidTransition
	}
	scan.Status = database.ScanStatusFailed
	scan.CompletedAt = lo.ToPtr(time.Now())
	scan.ErrorMessage = &errorMessage
	return nil
}

func (m *MockDB) GetScanByID(_ context.Context, scanID uint) (*database.Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	scan, ok := m.scans[scanID]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *scan
	return &cp, nil
}

func (m *MockDB) ListScans(_ context.Context, ruleID uint, limit, offset int) ([]database.Scan, error) {
	if m.ListScansError != nil {
		return nil, m.ListScansError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var scans []database.Scan
	for id := m.nextScanID; id > 0; id-- {
		scan, ok := m.scans[id]
		if !ok {
			continue
		}
		if ruleID != 0 && scan.RuleID != ruleID {
			continue
		}
		scans = append(scans, *scan)
	}
	if offset > 0 {
		if offset >= len(scans) {
			return nil, nil
		}
		scans = scans[offset:]
	}
	if limit > 0 && len(scans) > limit {
		scans = scans[:limit]
	}
	return scans, nil
}

func (m *MockDB) CountScans(_ context.Context, ruleID uint) (int64, error) {
	if m.ListScansError != nil {
		return 0, m.ListScansError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, scan := range m.scans {
		if ruleID != 0 && scan.RuleID != ruleID {
			continue
		}
		count++
	}
	return count, nil
}

func (m *MockDB) HasActiveScan(_ context.Context, ruleID uint) (bool, error) {
	if m.HasActiveScanError != nil {
		return false, m.HasActiveScanError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, scan := range m.scans {
		if scan.RuleID != ruleID {
			continue
		}
		if scan.Status == database.ScanStatusPending || scan.Status == database.ScanStatusRunning {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockDB) FindOpenCandidate(_ context.Context, ruleID uint, titleKey string) (*database.Candidate, error) {
	if m.CandidateError != nil {
		return nil, m.CandidateError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cand := range m.candidates {
		if cand.RuleID == ruleID && cand.TitleKey == titleKey && cand.Status.Open() {
			cp := *cand
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *MockDB) CreateCandidate(_ context.Context, candidate *database.Candidate) error {
	if m.CandidateError != nil {
		return m.CandidateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	candidate.ID = m.nextCandID
	candidate.CreatedAt = time.Now()
	m.nextCandID++
	cp := *candidate
	m.candidates[candidate.ID] = &cp
	return nil
}

func (m *MockDB) RefreshCandidate(_ context.Context, id uint, scanID uint, reasons string, fileSize int64) error {
	if m.CandidateError != nil {
		return m.CandidateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cand, ok := m.candidates[id]
	if !ok {
		return database.ErrNotFound
	}
	cand.ScanID = scanID
	cand.Reasons = reasons
	cand.FileSize = fileSize
	return nil
}

func (m *MockDB) GetCandidateByID(_ context.Context, id uint) (*database.Candidate, error) {
	if m.CandidateError != nil {
		return nil, m.CandidateError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	cand, ok := m.candidates[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *cand
	return &cp, nil
}

func (m *MockDB) ListCandidates(_ context.Context, filter database.CandidateFilter) ([]database.Candidate, error) {
	if m.CandidateError != nil {
		return nil, m.CandidateError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var candidates []database.Candidate
	for id := m.nextCandID; id > 0; id-- {
		cand, ok := m.candidates[id]
		if !ok {
			continue
		}
		if filter.RuleID != 0 && cand.RuleID != filter.RuleID {
			continue
		}
		if filter.ScanID != 0 && cand.ScanID != filter.ScanID {
			continue
		}
		if filter.MediaType != "" && cand.MediaType != filter.MediaType {
			continue
		}
		if filter.Status != "" && cand.Status != filter.Status {
			continue
		}
		candidates = append(candidates, *cand)
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(candidates) {
			return nil, nil
		}
		candidates = candidates[filter.Offset:]
	}
	if filter.Limit > 0 && len(candidates) > filter.Limit {
		candidates = candidates[:filter.Limit]
	}
	return candidates, nil
}

func (m *MockDB) TransitionCandidate(_ context.Context, id uint, from, to database.ReviewStatus, reviewedBy, note string) error {
	if m.TransitionError != nil {
		return m.TransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cand, ok := m.candidates[id]
	if !ok {
		return database.ErrNotFound
	}
	if cand.Status != from {
		return database.ErrInvalidTransition
	}
	cand.Status = to
	if reviewedBy != "" {
		cand.ReviewedBy = reviewedBy
		cand.ReviewedAt = lo.ToPtr(time.Now())
	}
	if note != "" {
		cand.ReviewNote = note
	}
	if !to.Open() {
		cand.ResolvedAt = lo.ToPtr(time.Now())
	}
	return nil
}

func (m *MockDB) PurgeCandidates(_ context.Context) (int64, error) {
	if m.CandidateError != nil {
		return 0, m.CandidateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	count := int64(len(m.candidates))
	m.candidates = make(map[uint]*database.Candidate)
	return count, nil
}

func (m *MockDB) CountCandidatesByStatus(_ context.Context) (map[database.ReviewStatus]int64, error) {
	if m.CandidateError != nil {
		return nil, m.CandidateError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[database.ReviewStatus]int64)
	for _, cand := range m.candidates {
		counts[cand.Status]++
	}
	return counts, nil
}

func (m *MockDB) CreateDeletionLog(_ context.Context, entry *database.DeletionLog) error {
	if m.CreateDeletionLogError != nil {
		return m.CreateDeletionLogError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = uint(len(m.deletionLogs) + 1)
	entry.CreatedAt = time.Now()
	m.deletionLogs = append(m.deletionLogs, *entry)
	return nil
}

func (m *MockDB) ListDeletionLogs(_ context.Context, since *time.Time, limit, offset int) ([]database.DeletionLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []database.DeletionLog
	for i := len(m.deletionLogs) - 1; i >= 0; i-- {
		entry := m.deletionLogs[i]
		if since != nil && entry.CreatedAt.Before(*since) {
			continue
		}
		entries = append(entries, entry)
	}
	if offset > 0 {
		if offset >= len(entries) {
			return nil, nil
		}
		entries = entries[offset:]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *MockDB) GetDeletionStats(_ context.Context, since *time.Time) (*database.DeletionStats, error) {
	if m.DeletionStatsError != nil {
		return nil, m.DeletionStatsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &database.DeletionStats{}
	for _, entry := range m.deletionLogs {
		if since != nil && entry.CreatedAt.Before(*since) {
			continue
		}
		stats.TotalAttempts++
		switch entry.Outcome {
		case database.DeletionOutcomeDeleted:
			stats.TotalDeleted++
			stats.TotalSizeFreed += entry.FileSize
			t := entry.CreatedAt
			stats.LastDeletionAt = &t
		case database.DeletionOutcomeFailed:
			stats.TotalFailed++
		}
	}
	return stats, nil
}

func (m *MockDB) EnqueueJob(_ context.Context, job *database.Job) error {
	if m.EnqueueJobError != nil {
		return m.EnqueueJobError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job.ID = m.nextJobID
	job.CreatedAt = time.Now()
	job.Status = database.JobStatusQueued
	if job.RunAt.IsZero() {
		job.RunAt = time.Now()
	}
	if job.MaxAttempts < 1 {
		job.MaxAttempts = 1
	}
	m.nextJobID++
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MockDB) ClaimNextJob(_ context.Context, now time.Time) (*database.Job, error) {
	if m.ClaimNextJobError != nil {
		return nil, m.ClaimNextJobError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *database.Job
	for id := uint(1); id < m.nextJobID; id++ {
		job, ok := m.jobs[id]
		if !ok || job.Status != database.JobStatusQueued || job.RunAt.After(now) {
			continue
		}
		if best == nil || job.Priority > best.Priority {
			best = job
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Status = database.JobStatusRunning
	best.Attempts++
	cp := *best
	return &cp, nil
}

func (m *MockDB) CompleteJob(_ context.Context, jobID uint) error {
	if m.JobTransitionError != nil {
		return m.JobTransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != database.JobStatusRunning {
		return database.ErrInvalidTransition
	}
	job.Status = database.JobStatusCompleted
	return nil
}

func (m *MockDB) RetryJob(_ context.Context, jobID uint, runAt time.Time, lastError string) error {
	if m.JobTransitionError != nil {
		return m.JobTransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != database.JobStatusRunning {
		return database.ErrInvalidTransition
	}
	job.Status = database.JobStatusQueued
	job.RunAt = runAt
	job.LastError = &lastError
	return nil
}

func (m *MockDB) FailJob(_ context.Context, jobID uint, lastError string) error {
	if m.JobTransitionError != nil {
		return m.JobTransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != database.JobStatusRunning {
		return database.ErrInvalidTransition
	}
	job.Status = database.JobStatusFailed
	job.LastError = &lastError
	return nil
}

func (m *MockDB) ListFailedJobs(_ context.Context, limit int) ([]database.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var jobs []database.Job
	for id := m.nextJobID; id > 0; id-- {
		job, ok := m.jobs[id]
		if !ok || job.Status != database.JobStatusFailed {
			continue
		}
		jobs = append(jobs, *job)
		if limit > 0 && len(jobs) >= limit {
			break
		}
	}
	return jobs, nil
}

func (m *MockDB) ResetStaleJobs(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, job := range m.jobs {
		if job.Status == database.JobStatusRunning {
			job.Status = database.JobStatusQueued
			job.RunAt = time.Now()
			count++
		}
	}
	return count, nil
}

// GetJob returns a stored job for test assertions.
func (m *MockDB) GetJob(id uint) *database.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

// Jobs returns all stored jobs for test assertions.
func (m *MockDB) Jobs() []database.Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var jobs []database.Job
	for id := uint(1); id < m.nextJobID; id++ {
		if job, ok := m.jobs[id]; ok {
			jobs = append(jobs, *job)
		}
	}
	return jobs
}

func (m *MockDB) AddFeedbackMark(_ context.Context, mark *database.FeedbackMark) error {
	if m.FeedbackError != nil {
		return m.FeedbackError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marks[mark.TitleKey] == nil {
		m.marks[mark.TitleKey] = make(map[string]feedback.Mark)
	}
	m.marks[mark.TitleKey][mark.MarkedBy] = mark.Mark
	return nil
}

func (m *MockDB) MarksFor(_ context.Context, titleKeys []string) (map[string][]feedback.Mark, error) {
	if m.FeedbackError != nil {
		return nil, m.FeedbackError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	marks := make(map[string][]feedback.Mark)
	for _, key := range titleKeys {
		for _, mark := range m.marks[key] {
			marks[key] = append(marks[key], mark)
		}
	}
	return marks, nil
}

func (m *MockDB) Close() error {
	return nil
}
