package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobDraft              JobStatus = "draft"
	JobPosted             JobStatus = "posted"
	JobAssigned           JobStatus = "assigned"
	JobInProgress         JobStatus = "in_progress"
	JobSubmitted          JobStatus = "submitted"
	JobAwaitingCompletion JobStatus = "awaiting_completion"
	JobRevisionRequested  JobStatus = "revision_requested"
	JobCompleted          JobStatus = "completed"
	JobCancelled          JobStatus = "cancelled"
)

// jobTransitions is the legal edge set of the job lifecycle. Completion
// is only ever driven by payment finality; cancellation is allowed from
// any pre-completion state.
var jobTransitions = map[JobStatus][]JobStatus{
	JobDraft:              {JobPosted, JobCancelled},
	JobPosted:             {JobAssigned, JobCancelled},
	JobAssigned:           {JobInProgress, JobCancelled},
	JobInProgress:         {JobSubmitted, JobAwaitingCompletion, JobCancelled},
	JobSubmitted:          {JobRevisionRequested, JobCompleted, JobCancelled},
	JobAwaitingCompletion: {JobRevisionRequested, JobCompleted, JobCancelled},
	JobRevisionRequested:  {JobInProgress, JobCancelled},
}

// Deliverable reports whether the worker's delivery is sitting with the
// client, i.e. revision and completion actions are legal.
func (s JobStatus) Deliverable() bool {
	return s == JobSubmitted || s == JobAwaitingCompletion
}

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobCancelled
}

// ProgressUpdate is one entry in a job's ordered progress log.
type ProgressUpdate struct {
	Percent int       `json:"percent"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

type Job struct {
	ID          uuid.UUID        `json:"id"`
	ClientID    uuid.UUID        `json:"clientId"`
	WorkerID    *uuid.UUID       `json:"workerId,omitempty"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Budget      Money            `json:"budget"`
	Deadline    *time.Time       `json:"deadline,omitempty"`
	Status      JobStatus        `json:"status"`
	Progress    int              `json:"progress"`
	ProgressLog []ProgressUpdate `json:"progressLog,omitempty"`
	Rating      *int             `json:"rating,omitempty"`
	Review      *string          `json:"review,omitempty"`

	// Version supports optimistic locking; the store rejects a write
	// whose version no longer matches the row.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CanTransition reports whether the lifecycle permits moving from the
// job's current status to the given one.
func (j *Job) CanTransition(to JobStatus) bool {
	for _, next := range jobTransitions[j.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the job to the given status or fails with
// InvalidStateTransition.
func (j *Job) Transition(to JobStatus) error {
	if !j.CanTransition(to) {
		return &InvalidStateTransitionError{Entity: "job", From: string(j.Status), To: string(to)}
	}
	j.Status = to
	return nil
}

// Assign records the accepted worker and moves the job to assigned.
// A job holds at most one assigned worker.
func (j *Job) Assign(workerID uuid.UUID) error {
	if err := j.Transition(JobAssigned); err != nil {
		return err
	}
	j.WorkerID = &workerID
	return nil
}

// AdvanceProgress appends a progress entry, enforcing monotonic
// non-decrease while the job is in progress.
func (j *Job) AdvanceProgress(percent int, note string, now time.Time) error {
	if j.Status != JobInProgress {
		return &InvalidStateTransitionError{Entity: "job", From: string(j.Status), To: "progress update"}
	}
	if percent < j.Progress {
		return &ValidationError{Field: "percent", Reason: "progress cannot decrease"}
	}
	j.Progress = percent
	j.ProgressLog = append(j.ProgressLog, ProgressUpdate{Percent: percent, Note: note, At: now})
	return nil
}

// RequestRevision sends a delivered job back to the worker. Reason is
// mandatory and lands in the progress log for the audit trail.
func (j *Job) RequestRevision(reason string, now time.Time) error {
	if reason == "" {
		return &ValidationError{Field: "reason", Reason: "revision reason is required"}
	}
	if !j.Status.Deliverable() {
		return &InvalidStateTransitionError{Entity: "job", From: string(j.Status), To: string(JobRevisionRequested)}
	}
	j.Status = JobRevisionRequested
	j.ProgressLog = append(j.ProgressLog, ProgressUpdate{Percent: j.Progress, Note: "revision requested: " + reason, At: now})
	return nil
}

// Rate stores the client's rating and review. Only legal while the
// delivery sits with the client; the status is untouched because
// completion waits on the payment.
func (j *Job) Rate(rating int, review string) error {
	if rating < 1 || rating > 5 {
		return &ValidationError{Field: "rating", Reason: "rating must be between 1 and 5"}
	}
	if !j.Status.Deliverable() {
		return &InvalidStateTransitionError{Entity: "job", From: string(j.Status), To: string(JobCompleted)}
	}
	j.Rating = &rating
	if review != "" {
		j.Review = &review
	}
	return nil
}

// JobFilter narrows job listings.
type JobFilter struct {
	Status   JobStatus
	ClientID *uuid.UUID
	WorkerID *uuid.UUID
}
