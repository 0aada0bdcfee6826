package webhook

import (
	"errors"
	"testing"
	"time"

	"github.com/agenciohq/agencio/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testReceivedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestNormalizeLeadgen(t *testing.T) {
	payload := []byte(`{
		"object": "page",
		"entry": [{
			"id": "page_100",
			"time": 1765700000,
			"changes": [
				{"field": "feed", "value": {}},
				{"field": "leadgen", "value": {
					"leadgen_id": "lg_42",
					"page_id": "page_100",
					"form_id": "form_7",
					"ad_id": "ad_9",
					"created_time": 1765700000,
					"field_data": [
						{"name": "full_name", "values": ["Jamie Doe"]},
						{"name": "email", "values": ["jamie@example.com"]},
						{"name": "phone_number", "values": ["+491701111111"]},
						{"name": "utm_source", "values": ["instagram"]},
						{"name": "favorite_color", "values": ["blue"]}
					]
				}}
			]
		}]
	}`)

	events, err := NormalizeLeadgen(payload, testReceivedAt)
	require.NoError(t, err)
	require.Len(t, events, 1)

	evt := events[0]
	assert.Equal(t, models.ProviderLeadgen, evt.Provider)
	assert.Equal(t, "lg_42", evt.ID)
	assert.Equal(t, EventLeadCreated, evt.Type)
	require.NotNil(t, evt.Lead)
	assert.Equal(t, "page_100", evt.Lead.PageRef)
	assert.Equal(t, "form_7", evt.Lead.FormID)
	assert.Equal(t, "Jamie Doe", evt.Lead.FullName)
	assert.Equal(t, "jamie@example.com", evt.Lead.Email)
	assert.Equal(t, "+491701111111", evt.Lead.Phone)
	assert.Equal(t, "instagram", evt.Lead.UTMSource)
	assert.Equal(t, time.Unix(1765700000, 0).UTC(), evt.Lead.CreatedTime)
}

func TestNormalizeLeadgenRejectsMissingLeadgenID(t *testing.T) {
	payload := []byte(`{"object":"page","entry":[{"id":"p","changes":[{"field":"leadgen","value":{"page_id":"p"}}]}]}`)
	_, err := NormalizeLeadgen(payload, testReceivedAt)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestNormalizeLeadgenRejectsNonJSON(t *testing.T) {
	_, err := NormalizeLeadgen([]byte("not json at all"), testReceivedAt)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestNormalizeLeadgenSkipsOtherChangeFields(t *testing.T) {
	payload := []byte(`{"object":"page","entry":[{"id":"p","changes":[{"field":"feed","value":{}}]}]}`)
	events, err := NormalizeLeadgen(payload, testReceivedAt)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestNormalizeMessaging(t *testing.T) {
	payload := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "waba_1",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"messages": [{
						"id": "wamid.in1",
						"from": "491702222222",
						"timestamp": "1765700100",
						"type": "text",
						"text": {"body": "Hallo!"}
					}],
					"statuses": [{
						"id": "wamid.out1",
						"status": "delivered",
						"timestamp": "1765700200",
						"recipient_id": "491703333333"
					}]
				}
			}]
		}]
	}`)

	events, err := NormalizeMessaging(payload, testReceivedAt)
	require.NoError(t, err)
	require.Len(t, events, 2)

	in := events[0]
	assert.Equal(t, EventMessageReceived, in.Type)
	assert.Equal(t, "wamid.in1", in.ID)
	require.NotNil(t, in.Message)
	assert.Equal(t, "491702222222", in.Message.From)
	assert.Equal(t, "Hallo!", in.Message.Body)
	assert.Equal(t, time.Unix(1765700100, 0).UTC(), in.Message.Timestamp)

	st := events[1]
	assert.Equal(t, EventMessageStatus, st.Type)
	// Status events carry the status in the id so each stage dedupes
	// independently.
	assert.Equal(t, "wamid.out1:delivered", st.ID)
	require.NotNil(t, st.Status)
	assert.Equal(t, "delivered", st.Status.Status)
	assert.Equal(t, "491703333333", st.Status.RecipientID)
}

func TestNormalizeMessagingCarriesFailureReason(t *testing.T) {
	payload := []byte(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "waba_1", "changes": [{"field": "messages", "value": {
			"statuses": [{
				"id": "wamid.out9",
				"status": "failed",
				"timestamp": "1765700300",
				"recipient_id": "491704444444",
				"errors": [{"title": "Message undeliverable"}]
			}]
		}}]}]
	}`)

	events, err := NormalizeMessaging(payload, testReceivedAt)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Message undeliverable", events[0].Status.FailureReason)
}

func TestNormalizeMessagingRejectsEmptyEnvelope(t *testing.T) {
	_, err := NormalizeMessaging([]byte(`{"object":"whatsapp_business_account"}`), testReceivedAt)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestNormalizePayments(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		entityKey string
		wantType  EventType
	}{
		{"payment captured", "payment.captured", "payment", EventPaymentCaptured},
		{"payment authorized", "payment.authorized", "payment", EventPaymentAuthorized},
		{"payment failed", "payment.failed", "payment", EventPaymentFailed},
		{"subscription activated", "subscription.activated", "subscription", EventSubActivated},
		{"subscription charged", "subscription.charged", "subscription", EventSubCharged},
		{"invoice paid", "invoice.paid", "invoice", EventInvoicePaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(`{
				"event": "` + tt.eventName + `",
				"payload": {"` + tt.entityKey + `": {"entity": {"id": "ent_1", "amount": 49900, "currency": "eur"}}},
				"created_at": 1765700400
			}`)
			events, err := NormalizePayments(payload, testReceivedAt)
			require.NoError(t, err)
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantType, events[0].Type)
			assert.Equal(t, tt.eventName+":ent_1", events[0].ID)
		})
	}
}

func TestNormalizePaymentsAmountsStayIntegral(t *testing.T) {
	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{
		"id":"pay_1","amount":49999,"currency":"eur","subscription_id":"sub_1","customer_id":"cust_1"
	}}}}`)
	events, err := NormalizePayments(payload, testReceivedAt)
	require.NoError(t, err)
	require.NotNil(t, events[0].Payment)
	assert.Equal(t, int64(49999), events[0].Payment.AmountMinorUnits)
	assert.Equal(t, "EUR", events[0].Payment.Currency)
	assert.Equal(t, "sub_1", events[0].Payment.SubscriptionRef)
	assert.Equal(t, "cust_1", events[0].Payment.CustomerRef)
}

func TestNormalizePaymentsUnknownEventIsNoop(t *testing.T) {
	payload := []byte(`{"event":"refund.created","payload":{}}`)
	events, err := NormalizePayments(payload, testReceivedAt)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventNoop, events[0].Type)
	assert.Equal(t, "refund.created:unknown", events[0].ID)
}

func TestNormalizePaymentsRejectsMissingEntityID(t *testing.T) {
	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"amount":100}}}}`)
	_, err := NormalizePayments(payload, testReceivedAt)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}

func TestNormalizePaymentsRejectsMissingEventName(t *testing.T) {
	_, err := NormalizePayments([]byte(`{"payload":{}}`), testReceivedAt)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}
