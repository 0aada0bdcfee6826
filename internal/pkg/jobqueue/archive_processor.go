package jobqueue

import (
	"context"
	"time"

	"github.com/agenciohq/agencio/internal/pkg/archive"
	"github.com/gofiber/fiber/v2/log"
)

// PayloadArchiver stores one raw webhook payload in object storage.
type PayloadArchiver interface {
	StorePayload(ctx context.Context, provider, eventID string, payload []byte, receivedAt time.Time) (string, error)
}

// processPayloadArchiveJob uploads one raw payload to the archive bucket.
func (q *Queue) processPayloadArchiveJob(ctx context.Context, job *Job) error {
	archiver := q.archiver
	if archiver == nil {
		if client := archive.GetClient(); client != nil {
			archiver = client
		}
	}
	if archiver == nil {
		// The archive is optional; without it the job is done.
		log.Debugf("[JobQueue] Payload archive disabled, dropping job %s", job.ID)
		return nil
	}

	var payload PayloadArchiveJobPayload
	if err := job.Decode(&payload); err != nil {
		return err
	}

	_, err := archiver.StorePayload(ctx, payload.Provider, payload.EventID, []byte(payload.Payload), payload.ReceivedAt)
	return err
}

// EnqueuePayloadArchive queues a raw webhook payload for upload to the
// archive bucket.
func (q *Queue) EnqueuePayloadArchive(provider, eventID string, rawPayload []byte, receivedAt time.Time) error {
	_, err := q.Enqueue(JobTypePayloadArchive, PayloadArchiveJobPayload{
		Provider:   provider,
		EventID:    eventID,
		Payload:    string(rawPayload),
		ReceivedAt: receivedAt,
	})
	return err
}
