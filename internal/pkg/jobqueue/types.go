package jobqueue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agenciohq/agencio/internal/pkg/webhook"
)

// JobType names the kinds of background work the queue runs.
type JobType string

const (
	JobTypeIntentRetry    JobType = "intent_retry"
	JobTypePayloadArchive JobType = "payload_archive"
)

// JobStatus tracks a job through its lifecycle.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job is one unit of background work. The payload is the JSON encoding of the
// type-specific payload struct.
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	LastError   string          `json:"last_error,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
}

// NewJob wraps a typed payload into a pending job.
func NewJob(jobType JobType, payload interface{}) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", jobType, err)
	}
	return &Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Status:      JobStatusPending,
		Payload:     raw,
		MaxAttempts: defaultMaxAttempts,
		EnqueuedAt:  time.Now(),
	}, nil
}

// Decode unmarshals the job payload into the type-specific struct.
func (j *Job) Decode(into interface{}) error {
	if err := json.Unmarshal(j.Payload, into); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

// Retryable reports whether a failed job still has attempts left.
func (j *Job) Retryable() bool {
	return j.Status == JobStatusFailed && j.Attempts < j.MaxAttempts
}

func (j *Job) begin() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.StartedAt = &now
}

func (j *Job) finish() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.FinishedAt = &now
	j.LastError = ""
}

func (j *Job) fail(errMsg string) {
	j.Status = JobStatusFailed
	j.LastError = errMsg
	j.Attempts++
}

// IntentRetryJobPayload carries a side-effect intent whose synchronous
// execution failed and is being retried in the background.
type IntentRetryJobPayload struct {
	Intent webhook.Intent `json:"intent"`
}

// PayloadArchiveJobPayload carries one raw webhook payload headed for the
// object-storage archive.
type PayloadArchiveJobPayload struct {
	Provider   string    `json:"provider"`
	EventID    string    `json:"event_id"`
	Payload    string    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}
