package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/agenciohq/agencio/internal/pkg/cache"
)

// Redis layout: each job body lives under its own key, the pending and
// processing lists hold job ids, and per-status counters sit in one hash.
const (
	jobKeyPrefix  = "webhook:jobs:item:"
	pendingKey    = "webhook:jobs:pending"
	processingKey = "webhook:jobs:processing"
	statsKey      = "webhook:jobs:stats"

	defaultMaxAttempts = 3
	jobRetention       = 24 * time.Hour

	stuckAge      = 10 * time.Minute
	sweepInterval = time.Minute
)

// Queue runs background jobs over Redis lists. Dequeue moves the job id from
// pending to processing in one step, so a crashed worker leaves a trace the
// sweeper can recover instead of losing the job.
type Queue struct {
	rdb     *redis.Client
	workers int
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	executor IntentExecutor
	archiver PayloadArchiver
}

// NewQueue creates a queue with the given worker count.
func NewQueue(workers int) *Queue {
	if workers <= 0 {
		workers = 3
	}
	return &Queue{
		rdb:     cache.GetClient(),
		workers: workers,
		stopCh:  make(chan struct{}),
	}
}

// SetIntentExecutor wires the executor used for intent retry jobs. Must be
// called before Start.
func (q *Queue) SetIntentExecutor(executor IntentExecutor) {
	q.executor = executor
}

// SetPayloadArchiver wires the archiver used for payload archive jobs.
func (q *Queue) SetPayloadArchiver(archiver PayloadArchiver) {
	q.archiver = archiver
}

// Start launches the workers and the stuck-job sweeper.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})

	log.Infof("[JobQueue] Starting %d workers", q.workers)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.wg.Add(1)
	go q.sweeper()
}

// Stop signals the workers and waits for them to drain.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.running {
		return
	}
	log.Info("[JobQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

// Enqueue stores a job and pushes its id onto the pending list.
func (q *Queue) Enqueue(jobType JobType, payload interface{}) (*Job, error) {
	job, err := NewJob(jobType, payload)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	ctx := context.Background()
	pipe := q.rdb.Pipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, body, jobRetention)
	pipe.LPush(ctx, pendingKey, job.ID)
	pipe.HIncrBy(ctx, statsKey, string(JobStatusPending), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}

	log.Infof("[JobQueue] Enqueued %s job %s", job.Type, job.ID)
	return job, nil
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[JobQueue] Worker %d stopping", id)
			return
		default:
		}

		job, err := q.dequeue(ctx)
		if err != nil {
			if err != redis.Nil {
				log.Errorf("[JobQueue] Worker %d dequeue error: %v", id, err)
				time.Sleep(time.Second)
			}
			continue
		}
		if job != nil {
			q.run(ctx, job)
		}
	}
}

// dequeue blocks briefly for the next job id and loads its body. A job whose
// body expired is dropped from the processing list.
func (q *Queue) dequeue(ctx context.Context) (*Job, error) {
	id, err := q.rdb.BRPopLPush(ctx, pendingKey, processingKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	body, err := q.rdb.Get(ctx, jobKeyPrefix+id).Result()
	if err != nil {
		q.rdb.LRem(ctx, processingKey, 1, id)
		return nil, fmt.Errorf("job body missing for %s", id)
	}

	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		q.rdb.LRem(ctx, processingKey, 1, id)
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (q *Queue) run(ctx context.Context, job *Job) {
	job.begin()
	q.save(ctx, job)

	var err error
	switch job.Type {
	case JobTypeIntentRetry:
		err = q.processIntentRetryJob(ctx, job)
	case JobTypePayloadArchive:
		err = q.processPayloadArchiveJob(ctx, job)
	default:
		err = fmt.Errorf("unknown job type %q", job.Type)
	}

	if err == nil {
		job.finish()
		q.bump(ctx, JobStatusCompleted)
		q.rdb.Del(ctx, jobKeyPrefix+job.ID)
		q.rdb.LRem(ctx, processingKey, 1, job.ID)
		return
	}

	log.Errorf("[JobQueue] Job %s (%s) failed: %v", job.ID, job.Type, err)
	job.fail(err.Error())

	if job.Retryable() {
		job.Status = JobStatusRetrying
		q.save(ctx, job)
		// Linear backoff, one minute per attempt already made.
		delay := time.Minute * time.Duration(job.Attempts)
		id := job.ID
		time.AfterFunc(delay, func() {
			q.rdb.LPush(context.Background(), pendingKey, id)
		})
	} else {
		log.Errorf("[JobQueue] Job %s gave up after %d attempts", job.ID, job.Attempts)
		q.save(ctx, job)
		q.bump(ctx, JobStatusFailed)
	}
	q.rdb.LRem(ctx, processingKey, 1, job.ID)
}

// sweeper requeues jobs that sat in the processing list past stuckAge,
// recovering work lost to a crashed worker.
func (q *Queue) sweeper() {
	defer q.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.sweepOnce(ctx)
		}
	}
}

func (q *Queue) sweepOnce(ctx context.Context) {
	ids, err := q.rdb.LRange(ctx, processingKey, 0, -1).Result()
	if err != nil {
		log.Errorf("[JobQueue] Sweeper list error: %v", err)
		return
	}

	now := time.Now()
	for _, id := range ids {
		body, err := q.rdb.Get(ctx, jobKeyPrefix+id).Result()
		if err != nil {
			// Expired or corrupt bodies just get evicted from the list.
			q.rdb.LRem(ctx, processingKey, 1, id)
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(body), &job); err != nil {
			q.rdb.LRem(ctx, processingKey, 1, id)
			continue
		}
		if job.Status != JobStatusProcessing {
			q.rdb.LRem(ctx, processingKey, 1, id)
			continue
		}

		started := job.EnqueuedAt
		if job.StartedAt != nil {
			started = *job.StartedAt
		}
		if now.Sub(started) <= stuckAge {
			continue
		}

		log.Warnf("[JobQueue] Recovering stuck %s job %s, age=%s", job.Type, job.ID, now.Sub(started))
		job.Status = JobStatusPending
		job.LastError = "recovered by sweeper"
		q.save(ctx, &job)
		q.rdb.LRem(ctx, processingKey, 1, id)
		q.rdb.RPush(ctx, pendingKey, id)
	}
}

func (q *Queue) save(ctx context.Context, job *Job) {
	body, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Encode job %s failed: %v", job.ID, err)
		return
	}
	if err := q.rdb.Set(ctx, jobKeyPrefix+job.ID, body, jobRetention).Err(); err != nil {
		log.Errorf("[JobQueue] Save job %s failed: %v", job.ID, err)
	}
}

func (q *Queue) bump(ctx context.Context, status JobStatus) {
	if err := q.rdb.HIncrBy(ctx, statsKey, string(status), 1).Err(); err != nil {
		log.Errorf("[JobQueue] Stats update failed: %v", err)
	}
}

// GetJob loads one job body by id.
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	body, err := q.rdb.Get(ctx, jobKeyPrefix+id).Result()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Stats returns the per-status job counters.
func (q *Queue) Stats(ctx context.Context) (map[JobStatus]int64, error) {
	raw, err := q.rdb.HGetAll(ctx, statsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[JobStatus]int64, len(raw))
	for status, count := range raw {
		if n, err := json.Number(count).Int64(); err == nil {
			out[JobStatus(status)] = n
		}
	}
	return out, nil
}

// PendingCount returns the number of queued jobs.
func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, pendingKey).Result()
}

// ProcessingCount returns the number of jobs currently being worked.
func (q *Queue) ProcessingCount(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, processingKey).Result()
}
