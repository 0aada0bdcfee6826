package counter

import (
	"context"
	"strconv"

	"github.com/agenciohq/agencio/internal/pkg/cache"
)

// Per-provider ingestion counters kept in Redis hashes. Fields are provider
// names; one hash per outcome.
const (
	receivedKey     = "webhook:counters:received"
	deduplicatedKey = "webhook:counters:deduplicated"
	rejectedKey     = "webhook:counters:rejected"
	failedKey       = "webhook:counters:failed"
)

// Counts is a point-in-time view of one provider's ingestion counters.
type Counts struct {
	Received     int64 `json:"received"`
	Deduplicated int64 `json:"deduplicated"`
	Rejected     int64 `json:"rejected"`
	Failed       int64 `json:"failed"`
}

// AddReceived increments the received counter for a provider.
func AddReceived(provider string) error {
	return incr(receivedKey, provider)
}

// AddDeduplicated increments the duplicate-suppressed counter for a provider.
func AddDeduplicated(provider string) error {
	return incr(deduplicatedKey, provider)
}

// AddRejected increments the signature-rejected counter for a provider.
func AddRejected(provider string) error {
	return incr(rejectedKey, provider)
}

// AddFailed increments the processing-failed counter for a provider.
func AddFailed(provider string) error {
	return incr(failedKey, provider)
}

func incr(key, provider string) error {
	return cache.GetClient().HIncrBy(context.Background(), key, provider, 1).Err()
}

// Snapshot reads the current counters for one provider.
func Snapshot(ctx context.Context, provider string) (*Counts, error) {
	rdb := cache.GetClient()

	counts := &Counts{}
	for _, entry := range []struct {
		key  string
		into *int64
	}{
		{receivedKey, &counts.Received},
		{deduplicatedKey, &counts.Deduplicated},
		{rejectedKey, &counts.Rejected},
		{failedKey, &counts.Failed},
	} {
		raw, err := rdb.HGet(ctx, entry.key, provider).Result()
		if err != nil {
			// Missing field means no events yet for this outcome.
			continue
		}
		if v, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			*entry.into = v
		}
	}
	return counts, nil
}
