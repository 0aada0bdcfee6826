package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/agenciohq/agencio/app/models"
)

type messagingEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string         `json:"field"`
			Value messagingValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type messagingValue struct {
	MessagingProduct string `json:"messaging_product"`
	Messages         []struct {
		ID        string `json:"id"`
		From      string `json:"from"`
		Timestamp string `json:"timestamp"`
		Type      string `json:"type"`
		Text      struct {
			Body string `json:"body"`
		} `json:"text"`
	} `json:"messages"`
	Statuses []struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		Timestamp   string `json:"timestamp"`
		RecipientID string `json:"recipient_id"`
		Errors      []struct {
			Title string `json:"title"`
		} `json:"errors"`
	} `json:"statuses"`
}

// NormalizeMessaging maps a messaging provider payload into canonical
// events: one per inbound message and one per delivery-status record. A
// change may carry either block, both, or neither.
func NormalizeMessaging(rawBody []byte, receivedAt time.Time) ([]Event, error) {
	var envelope messagingEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(envelope.Entry) == 0 {
		return nil, fmt.Errorf("%w: messaging payload has no entries", ErrMalformedPayload)
	}

	var events []Event
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			value := change.Value

			for _, msg := range value.Messages {
				msgID := strings.TrimSpace(msg.ID)
				if msgID == "" {
					return nil, fmt.Errorf("%w: inbound message missing id", ErrMalformedPayload)
				}
				events = append(events, Event{
					Provider:   models.ProviderMessaging,
					ID:         msgID,
					Type:       EventMessageReceived,
					ReceivedAt: receivedAt,
					RawPayload: rawBody,
					Message: &MessageReceived{
						MessageID: msgID,
						From:      strings.TrimSpace(msg.From),
						Body:      msg.Text.Body,
						Timestamp: parseUnixSeconds(msg.Timestamp, receivedAt),
					},
				})
			}

			for _, st := range value.Statuses {
				msgID := strings.TrimSpace(st.ID)
				statusValue := strings.ToLower(strings.TrimSpace(st.Status))
				if msgID == "" || statusValue == "" {
					return nil, fmt.Errorf("%w: status record missing id or status", ErrMalformedPayload)
				}
				failureReason := ""
				if len(st.Errors) > 0 {
					failureReason = strings.TrimSpace(st.Errors[0].Title)
				}
				events = append(events, Event{
					Provider: models.ProviderMessaging,
					// The same message id recurs across sent/delivered/read,
					// so dedup happens at status level.
					ID:         msgID + ":" + statusValue,
					Type:       EventMessageStatus,
					ReceivedAt: receivedAt,
					RawPayload: rawBody,
					Status: &MessageStatus{
						MessageID:     msgID,
						Status:        statusValue,
						RecipientID:   strings.TrimSpace(st.RecipientID),
						Timestamp:     parseUnixSeconds(st.Timestamp, receivedAt),
						FailureReason: failureReason,
					},
				})
			}
		}
	}
	return events, nil
}

// parseUnixSeconds parses the provider's stringly unix timestamp, falling
// back to the receive time when absent or unparseable.
func parseUnixSeconds(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Unix(secs, 0).UTC()
}
