package jobqueue

import (
	"context"
	"fmt"

	"github.com/agenciohq/agencio/internal/pkg/webhook"
)

// IntentExecutor runs a single side-effect intent. The webhook dispatcher
// implements it, so background retries share the synchronous execution path.
type IntentExecutor interface {
	Execute(ctx context.Context, intent webhook.Intent) error
}

// processIntentRetryJob re-executes an intent whose synchronous dispatch
// failed.
func (q *Queue) processIntentRetryJob(ctx context.Context, job *Job) error {
	if q.executor == nil {
		return fmt.Errorf("no intent executor configured")
	}

	var payload IntentRetryJobPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}
	return q.executor.Execute(ctx, payload.Intent)
}

// IntentRetryEnqueuer adapts the queue to the dispatcher's retry hook.
type IntentRetryEnqueuer struct {
	Queue *Queue
}

// EnqueueIntentRetry queues an intent for background execution.
func (e *IntentRetryEnqueuer) EnqueueIntentRetry(intent webhook.Intent) error {
	_, err := e.Queue.Enqueue(JobTypeIntentRetry, IntentRetryJobPayload{Intent: intent})
	return err
}
