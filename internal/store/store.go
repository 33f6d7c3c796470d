package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	opsErrors "github.com/harunnryd/opsgate/internal/errors"

	"github.com/oklog/ulid/v2"
)

// Store is the in-memory registry of sessions, jobs and job events.
// A single mutex guards every map. Reads return deep copies so callers
// never observe a later mutation through a returned value.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	jobs     map[string]*Job
	events   map[string][]JobEvent
	now      func() time.Time
}

func New() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		jobs:     make(map[string]*Job),
		events:   make(map[string][]JobEvent),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func newID() string {
	return ulid.Make().String()
}

func jobNotFound(id string) error {
	return opsErrors.NotFound(fmt.Sprintf("job not found: %s", id))
}

func sessionNotFound(id string) error {
	return opsErrors.NotFound(fmt.Sprintf("session not found: %s", id))
}

// --- Sessions ---

func (s *Store) CreateSession(userID string, metadata map[string]any) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &Session{
		ID:        newID(),
		CreatedAt: s.now(),
		UserID:    userID,
		Metadata:  copyMap(metadata),
		Messages:  []Message{},
	}
	s.sessions[session.ID] = session
	return session.clone()
}

func (s *Store) GetSession(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return Session{}, sessionNotFound(id)
	}
	return session.clone(), nil
}

func (s *Store) AppendSessionMessage(id string, role Role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return sessionNotFound(id)
	}
	session.Messages = append(session.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	})
	return nil
}

// --- Jobs ---

func (s *Store) CreateJob(in NewJob) (Job, error) {
	if in.Status != StatusQueued && in.Status != StatusAwaitingApproval {
		return Job{}, opsErrors.InvalidInput(fmt.Sprintf("initial job status must be queued or awaiting_approval, got %q", in.Status))
	}
	if in.RequiredApprovals < 0 {
		return Job{}, opsErrors.InvalidInput("required approvals cannot be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	job := &Job{
		ID:                newID(),
		Status:            in.Status,
		Risk:              in.Risk,
		Environment:       in.Environment,
		Goal:              in.Goal,
		SessionID:         in.SessionID,
		RequiredApprovals: in.RequiredApprovals,
		RunDiagnostics:    in.RunDiagnostics,
		Approvals:         []Approval{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.jobs[job.ID] = job
	s.events[job.ID] = []JobEvent{}
	return job.clone(), nil
}

func (s *Store) GetJob(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, jobNotFound(id)
	}
	return job.clone(), nil
}

// FinishJob records the final report and its terminal status together, so
// no reader sees one without the other. The report carries the approvals
// held at this moment.
func (s *Store) FinishJob(id string, report Report) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, jobNotFound(id)
	}
	if !report.Status.Terminal() {
		return Job{}, opsErrors.InvalidInput(fmt.Sprintf("report status %q is not terminal", report.Status))
	}
	if job.Report != nil {
		return Job{}, opsErrors.Conflict(fmt.Sprintf("report already set for job %s", id))
	}
	if job.Status != StatusRunning {
		return Job{}, opsErrors.Conflict(fmt.Sprintf("job %s is %s, not running", id, job.Status))
	}

	r := report.clone()
	r.JobID = id
	r.Approvals = copyApprovals(job.Approvals)
	job.Report = &r
	job.Status = report.Status
	job.UpdatedAt = s.now()
	return job.clone(), nil
}

func (s *Store) appendApprovalLocked(job *Job, approver, comment string) {
	now := s.now()
	job.Approvals = append(job.Approvals, Approval{
		Approver:  approver,
		Comment:   comment,
		Timestamp: now,
	})
	job.UpdatedAt = now
}

// ApproveJob records an approval and, in the same critical section, claims
// the job for execution when the approval threshold has been reached.
// triggered is true for exactly one caller per job.
func (s *Store) ApproveJob(id, approver, comment string) (job Job, triggered bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false, jobNotFound(id)
	}
	s.appendApprovalLocked(j, approver, comment)

	if j.Status == StatusAwaitingApproval && len(j.Approvals) >= j.RequiredApprovals {
		j.Status = StatusRunning
		j.UpdatedAt = s.now()
		triggered = true
		slog.Debug("Approval threshold reached", "job_id", id, "approvals", len(j.Approvals))
	}
	return j.clone(), triggered, nil
}

// ClaimJob moves a queued job to running. claimed is false when the job
// was not queued.
func (s *Store) ClaimJob(id string) (job Job, claimed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false, jobNotFound(id)
	}
	if j.Status != StatusQueued {
		return j.clone(), false, nil
	}
	j.Status = StatusRunning
	j.UpdatedAt = s.now()
	return j.clone(), true, nil
}

// ListJobs returns matching jobs, newest first.
func (s *Store) ListJobs(filter JobFilter) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Environment != "" && job.Environment != filter.Environment {
			continue
		}
		jobs = append(jobs, job.clone())
	}

	// ULIDs sort by creation time.
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].ID > jobs[j].ID
	})
	if filter.Limit > 0 && len(jobs) > filter.Limit {
		jobs = jobs[:filter.Limit]
	}
	return jobs
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{
		Sessions: len(s.sessions),
		Jobs:     make(map[JobStatus]int, len(JobStatuses)),
	}
	for _, status := range JobStatuses {
		stats.Jobs[status] = 0
	}
	for _, job := range s.jobs {
		stats.Jobs[job.Status]++
	}
	return stats
}

// --- Events ---

func (s *Store) AddJobEvent(id, eventType, message string, details map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return jobNotFound(id)
	}
	if details == nil {
		details = map[string]any{}
	}
	s.events[id] = append(s.events[id], JobEvent{
		Timestamp: s.now(),
		Type:      eventType,
		Message:   message,
		Details:   copyMap(details),
	})
	return nil
}

func (s *Store) GetJobEvents(id string) ([]JobEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return nil, jobNotFound(id)
	}
	events := s.events[id]
	out := make([]JobEvent, len(events))
	for i, event := range events {
		out[i] = event
		out[i].Details = copyMap(event.Details)
	}
	return out, nil
}
