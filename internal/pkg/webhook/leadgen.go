package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/agenciohq/agencio/app/models"
)

// leadgenFieldName is the only change field the lead-gen provider delivers
// that we care about; all other change fields are ignored, not errors.
const leadgenFieldName = "leadgen"

type leadgenEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Time    int64  `json:"time"`
		Changes []struct {
			Field string       `json:"field"`
			Value leadgenValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type leadgenValue struct {
	LeadgenID   string `json:"leadgen_id"`
	PageID      string `json:"page_id"`
	FormID      string `json:"form_id"`
	AdID        string `json:"ad_id"`
	CampaignID  string `json:"campaign_id"`
	CreatedTime int64  `json:"created_time"`
	FieldData   []struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	} `json:"field_data"`
}

// NormalizeLeadgen maps a lead-gen provider payload into canonical events,
// one per leadgen change. Changes for other fields are skipped.
func NormalizeLeadgen(rawBody []byte, receivedAt time.Time) ([]Event, error) {
	var envelope leadgenEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(envelope.Entry) == 0 {
		return nil, fmt.Errorf("%w: leadgen payload has no entries", ErrMalformedPayload)
	}

	var events []Event
	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			if !strings.EqualFold(strings.TrimSpace(change.Field), leadgenFieldName) {
				continue
			}
			value := change.Value
			if strings.TrimSpace(value.LeadgenID) == "" {
				return nil, fmt.Errorf("%w: leadgen change missing leadgen_id", ErrMalformedPayload)
			}

			lead := &LeadCreated{
				LeadgenID:  strings.TrimSpace(value.LeadgenID),
				PageRef:    strings.TrimSpace(value.PageID),
				FormID:     strings.TrimSpace(value.FormID),
				AdID:       strings.TrimSpace(value.AdID),
				CampaignID: strings.TrimSpace(value.CampaignID),
			}
			if value.CreatedTime > 0 {
				lead.CreatedTime = time.Unix(value.CreatedTime, 0).UTC()
			} else {
				lead.CreatedTime = receivedAt
			}
			applyLeadFieldData(lead, value)

			events = append(events, Event{
				Provider:   models.ProviderLeadgen,
				ID:         lead.LeadgenID,
				Type:       EventLeadCreated,
				ReceivedAt: receivedAt,
				RawPayload: rawBody,
				Lead:       lead,
			})
		}
	}
	return events, nil
}

// applyLeadFieldData maps the form's name/value pairs onto the contact and
// attribution fields. Unknown form fields are ignored.
func applyLeadFieldData(lead *LeadCreated, value leadgenValue) {
	for _, field := range value.FieldData {
		if len(field.Values) == 0 {
			continue
		}
		v := strings.TrimSpace(field.Values[0])
		if v == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(field.Name)) {
		case "full_name", "name":
			lead.FullName = v
		case "email":
			lead.Email = v
		case "phone_number", "phone":
			lead.Phone = v
		case "utm_source":
			lead.UTMSource = v
		case "utm_medium":
			lead.UTMMedium = v
		case "utm_campaign":
			lead.UTMCampaign = v
		}
	}
}
