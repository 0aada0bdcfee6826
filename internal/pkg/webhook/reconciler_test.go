package webhook

import (
	"testing"
	"time"

	"github.com/agenciohq/agencio/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leadEvent(leadgenID, pageRef, phone string) Event {
	return Event{
		Provider: models.ProviderLeadgen,
		ID:       leadgenID,
		Type:     EventLeadCreated,
		Lead: &LeadCreated{
			LeadgenID: leadgenID,
			PageRef:   pageRef,
			FullName:  "Jamie Doe",
			Email:     "jamie@example.com",
			Phone:     phone,
		},
	}
}

func statusEvent(messageID, status string, at time.Time) Event {
	return Event{
		Provider: models.ProviderMessaging,
		ID:       messageID + ":" + status,
		Type:     EventMessageStatus,
		Status: &MessageStatus{
			MessageID:   messageID,
			Status:      status,
			RecipientID: "491700000001",
			Timestamp:   at,
		},
	}
}

func paymentEvent(t EventType, paymentID, subRef, customerRef string) Event {
	return Event{
		Provider: models.ProviderPayments,
		ID:       string(t) + ":" + paymentID,
		Type:     t,
		Payment: &PaymentEvent{
			PaymentID:        paymentID,
			AmountMinorUnits: 49900,
			Currency:         "EUR",
			SubscriptionRef:  subRef,
			CustomerRef:      customerRef,
		},
	}
}

func TestApplyLeadCreatesOnceWithWelcomeIntent(t *testing.T) {
	clients := newFakeClientRepo(&models.BusinessClient{
		Name:            "Studio Nord",
		LeadgenPageRef:  "page_100",
		WelcomeTemplate: "studio_welcome",
	})
	leads := newFakeLeadRepo()
	r := newTestReconciler(clients, leads, newFakeMessageRepo(), newFakeBillingRepo())

	intents, err := r.Apply(leadEvent("lg_1", "page_100", "491701111111"))
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, IntentSendTemplatedMessage, intents[0].Kind)
	assert.Equal(t, "studio_welcome", intents[0].TemplateName)
	assert.Equal(t, "491701111111", intents[0].To)
	assert.Equal(t, []string{"Jamie Doe"}, intents[0].Params)

	stored, err := leads.GetByExternalID(models.ProviderLeadgen, "lg_1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.UUID)
	assert.Equal(t, clients.clients[0].ID, stored.BusinessClientID)

	// Second application of the same lead is a no-op.
	intents, err = r.Apply(leadEvent("lg_1", "page_100", "491701111111"))
	require.NoError(t, err)
	assert.Empty(t, intents)
	count, _ := leads.Count()
	assert.Equal(t, int64(1), count)
}

func TestApplyLeadWithoutPhoneStoresSilently(t *testing.T) {
	r := newTestReconciler(newFakeClientRepo(), newFakeLeadRepo(), newFakeMessageRepo(), newFakeBillingRepo())

	intents, err := r.Apply(leadEvent("lg_2", "page_unknown", ""))
	require.NoError(t, err)
	assert.Empty(t, intents)

	stored, err := r.Leads.GetByExternalID(models.ProviderLeadgen, "lg_2")
	require.NoError(t, err)
	assert.Zero(t, stored.BusinessClientID)
}

func TestApplyMessageReceivedIsIdempotent(t *testing.T) {
	messages := newFakeMessageRepo()
	r := newTestReconciler(newFakeClientRepo(), newFakeLeadRepo(), messages, newFakeBillingRepo())

	evt := Event{
		Provider: models.ProviderMessaging,
		ID:       "wamid.in1",
		Type:     EventMessageReceived,
		Message: &MessageReceived{
			MessageID: "wamid.in1",
			From:      "491702222222",
			Body:      "Hallo, ich interessiere mich für das Angebot",
			Timestamp: time.Now().UTC(),
		},
	}
	_, err := r.Apply(evt)
	require.NoError(t, err)
	_, err = r.Apply(evt)
	require.NoError(t, err)

	stored, err := messages.GetByProviderMessageID("wamid.in1")
	require.NoError(t, err)
	assert.Equal(t, models.MessageDirectionInbound, stored.Direction)
	assert.Equal(t, models.MessageStatusDelivered, stored.Status)
	assert.Len(t, messages.historyFor(stored.ID), 1)
}

func TestMessageStatusNeverRegresses(t *testing.T) {
	messages := newFakeMessageRepo()
	r := newTestReconciler(newFakeClientRepo(), newFakeLeadRepo(), messages, newFakeBillingRepo())
	now := time.Now().UTC()

	// Receipts arrive shuffled: read first, then delivered, then sent.
	for i, status := range []string{models.MessageStatusRead, models.MessageStatusDelivered, models.MessageStatusSent} {
		_, err := r.Apply(statusEvent("wamid.out1", status, now.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	stored, err := messages.GetByProviderMessageID("wamid.out1")
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusRead, stored.Status)
	// Every receipt still landed in the history.
	assert.Len(t, messages.historyFor(stored.ID), 3)
}

func TestMessageStatusForUnknownMessageCreatesRecord(t *testing.T) {
	messages := newFakeMessageRepo()
	r := newTestReconciler(newFakeClientRepo(), newFakeLeadRepo(), messages, newFakeBillingRepo())

	_, err := r.Apply(statusEvent("wamid.out2", models.MessageStatusDelivered, time.Now().UTC()))
	require.NoError(t, err)

	stored, err := messages.GetByProviderMessageID("wamid.out2")
	require.NoError(t, err)
	assert.Equal(t, models.MessageDirectionOutbound, stored.Direction)
	assert.Equal(t, "491700000001", stored.CounterpartyAddress)
	assert.Equal(t, models.MessageStatusDelivered, stored.Status)
}

func TestMessageFailedAfterDeliveredKeepsStatus(t *testing.T) {
	messages := newFakeMessageRepo()
	r := newTestReconciler(newFakeClientRepo(), newFakeLeadRepo(), messages, newFakeBillingRepo())
	now := time.Now().UTC()

	_, err := r.Apply(statusEvent("wamid.out3", models.MessageStatusDelivered, now))
	require.NoError(t, err)

	failed := statusEvent("wamid.out3", models.MessageStatusFailed, now.Add(time.Second))
	failed.Status.FailureReason = "recipient unreachable"
	_, err = r.Apply(failed)
	require.NoError(t, err)

	stored, _ := messages.GetByProviderMessageID("wamid.out3")
	assert.Equal(t, models.MessageStatusDelivered, stored.Status)
	assert.Empty(t, stored.FailureReason)
}

func TestMessageFailedBeforeDeliveryApplies(t *testing.T) {
	messages := newFakeMessageRepo()
	r := newTestReconciler(newFakeClientRepo(), newFakeLeadRepo(), messages, newFakeBillingRepo())
	now := time.Now().UTC()

	_, err := r.Apply(statusEvent("wamid.out4", models.MessageStatusSent, now))
	require.NoError(t, err)
	failed := statusEvent("wamid.out4", models.MessageStatusFailed, now.Add(time.Second))
	failed.Status.FailureReason = "template rejected"
	_, err = r.Apply(failed)
	require.NoError(t, err)

	stored, _ := messages.GetByProviderMessageID("wamid.out4")
	assert.Equal(t, models.MessageStatusFailed, stored.Status)
	assert.Equal(t, "template rejected", stored.FailureReason)

	// A late delivered receipt does not resurrect a failed message.
	_, err = r.Apply(statusEvent("wamid.out4", models.MessageStatusDelivered, now.Add(2*time.Second)))
	require.NoError(t, err)
	stored, _ = messages.GetByProviderMessageID("wamid.out4")
	assert.Equal(t, models.MessageStatusFailed, stored.Status)
}

func TestPaymentAuthorizedThenCaptured(t *testing.T) {
	billing := newFakeBillingRepo()
	r := newTestReconciler(newFakeClientRepo(), newFakeLeadRepo(), newFakeMessageRepo(), billing)

	_, err := r.Apply(paymentEvent(EventPaymentAuthorized, "pay_1", "", ""))
	require.NoError(t, err)
	stored, _ := billing.GetPayment("pay_1")
	assert.Equal(t, models.PaymentStatusAuthorized, stored.Status)

	_, err = r.Apply(paymentEvent(EventPaymentCaptured, "pay_1", "", ""))
	require.NoError(t, err)
	stored, _ = billing.GetPayment("pay_1")
	assert.Equal(t, models.PaymentStatusCaptured, stored.Status)

	// Captured is terminal: a late failed event is logged and dropped.
	_, err = r.Apply(paymentEvent(EventPaymentFailed, "pay_1", "", ""))
	require.NoError(t, err)
	stored, _ = billing.GetPayment("pay_1")
	assert.Equal(t, models.PaymentStatusCaptured, stored.Status)
}

func TestPaymentFailedNotifiesClient(t *testing.T) {
	clients := newFakeClientRepo(&models.BusinessClient{
		Name:               "Studio Nord",
		BillingCustomerRef: "cust_1",
	})
	r := newTestReconciler(clients, newFakeLeadRepo(), newFakeMessageRepo(), newFakeBillingRepo())

	evt := paymentEvent(EventPaymentFailed, "pay_2", "", "cust_1")
	evt.Payment.FailureReason = "card declined"
	intents, err := r.Apply(evt)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, IntentNotifyPaymentFailure, intents[0].Kind)
	assert.Equal(t, clients.clients[0].ID, intents[0].ClientID)
	assert.Equal(t, "card declined", intents[0].Reason)
}

func TestCapturedPaymentActivatesSubscription(t *testing.T) {
	clients := newFakeClientRepo(&models.BusinessClient{
		Name:               "Studio Nord",
		BillingCustomerRef: "cust_1",
	})
	billing := newFakeBillingRepo()
	r := newTestReconciler(clients, newFakeLeadRepo(), newFakeMessageRepo(), billing)

	intents, err := r.Apply(paymentEvent(EventPaymentCaptured, "pay_3", "sub_1", "cust_1"))
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, IntentActivateClientFeature, intents[0].Kind)

	sub, err := billing.GetSubscription("sub_1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, 1, sub.PaidCount)
	assert.Equal(t, "pay_3", sub.LastPaymentRef)

	// Replaying the same capture does not double count the cycle.
	intents, err = r.Apply(paymentEvent(EventPaymentCaptured, "pay_3", "sub_1", "cust_1"))
	require.NoError(t, err)
	assert.Empty(t, intents)
	sub, _ = billing.GetSubscription("sub_1")
	assert.Equal(t, 1, sub.PaidCount)
}

func TestCapturedPaymentAdvancesActiveSubscription(t *testing.T) {
	billing := newFakeBillingRepo()
	require.NoError(t, billing.UpsertSubscription(&models.Subscription{
		ProviderSubscriptionID: "sub_2",
		Status:                 models.SubscriptionStatusActive,
		PaidCount:              3,
		RemainingCount:         9,
		LastPaymentRef:         "pay_old",
	}))
	r := newTestReconciler(newFakeClientRepo(), newFakeLeadRepo(), newFakeMessageRepo(), billing)

	intents, err := r.Apply(paymentEvent(EventPaymentCaptured, "pay_4", "sub_2", ""))
	require.NoError(t, err)
	assert.Empty(t, intents)

	sub, _ := billing.GetSubscription("sub_2")
	assert.Equal(t, 4, sub.PaidCount)
	assert.Equal(t, 8, sub.RemainingCount)
	assert.Equal(t, "pay_4", sub.LastPaymentRef)
}

func subscriptionEvent(t EventType, subID, customerRef string, paid, remaining, total int) Event {
	return Event{
		Provider: models.ProviderPayments,
		ID:       string(t) + ":" + subID,
		Type:     t,
		Subscription: &SubscriptionEvent{
			SubscriptionID: subID,
			PlanRef:        "plan_growth",
			CustomerRef:    customerRef,
			PaidCount:      paid,
			RemainingCount: remaining,
			TotalCount:     total,
		},
	}
}

func TestSubscriptionActivationEmitsFeatureIntentOnce(t *testing.T) {
	clients := newFakeClientRepo(&models.BusinessClient{
		Name:               "Studio Nord",
		BillingCustomerRef: "cust_1",
	})
	billing := newFakeBillingRepo()
	r := newTestReconciler(clients, newFakeLeadRepo(), newFakeMessageRepo(), billing)

	intents, err := r.Apply(subscriptionEvent(EventSubActivated, "sub_3", "cust_1", 0, 12, 12))
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, IntentActivateClientFeature, intents[0].Kind)

	// Duplicate activation is a no-op with no second intent.
	intents, err = r.Apply(subscriptionEvent(EventSubActivated, "sub_3", "cust_1", 0, 12, 12))
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestSubscriptionChargedPrefersProviderCounters(t *testing.T) {
	billing := newFakeBillingRepo()
	require.NoError(t, billing.UpsertSubscription(&models.Subscription{
		ProviderSubscriptionID: "sub_4",
		Status:                 models.SubscriptionStatusActive,
		PaidCount:              2,
		RemainingCount:         10,
	}))
	r := newTestReconciler(newFakeClientRepo(), newFakeLeadRepo(), newFakeMessageRepo(), billing)

	_, err := r.Apply(subscriptionEvent(EventSubCharged, "sub_4", "", 5, 7, 12))
	require.NoError(t, err)
	sub, _ := billing.GetSubscription("sub_4")
	assert.Equal(t, 5, sub.PaidCount)
	assert.Equal(t, 7, sub.RemainingCount)
	assert.Equal(t, 12, sub.TotalCount)

	// Without counters the cycle is advanced locally.
	_, err = r.Apply(subscriptionEvent(EventSubCharged, "sub_4", "", 0, 0, 0))
	require.NoError(t, err)
	sub, _ = billing.GetSubscription("sub_4")
	assert.Equal(t, 6, sub.PaidCount)
	assert.Equal(t, 6, sub.RemainingCount)
}

func TestSubscriptionCompletedIsTerminal(t *testing.T) {
	clients := newFakeClientRepo(&models.BusinessClient{
		Name:               "Studio Nord",
		BillingCustomerRef: "cust_1",
	})
	billing := newFakeBillingRepo()
	require.NoError(t, billing.UpsertSubscription(&models.Subscription{
		ProviderSubscriptionID: "sub_5",
		BusinessClientID:       1,
		Status:                 models.SubscriptionStatusActive,
	}))
	r := newTestReconciler(clients, newFakeLeadRepo(), newFakeMessageRepo(), billing)

	intents, err := r.Apply(subscriptionEvent(EventSubCompleted, "sub_5", "cust_1", 0, 0, 0))
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, IntentNotifyRenewalReminder, intents[0].Kind)

	// A cancel after completion is a conflict, not a transition.
	intents, err = r.Apply(subscriptionEvent(EventSubCancelled, "sub_5", "cust_1", 0, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, intents)
	sub, _ := billing.GetSubscription("sub_5")
	assert.Equal(t, models.SubscriptionStatusCompleted, sub.Status)
}

func invoiceEvent(t EventType, invoiceID string, amount, amountPaid int64) Event {
	return Event{
		Provider: models.ProviderPayments,
		ID:       string(t) + ":" + invoiceID,
		Type:     t,
		Invoice: &InvoiceEvent{
			InvoiceID:            invoiceID,
			SubscriptionRef:      "sub_1",
			AmountMinorUnits:     amount,
			AmountPaidMinorUnits: amountPaid,
			Currency:             "EUR",
		},
	}
}

func TestInvoicePartialPaymentsThenPaid(t *testing.T) {
	billing := newFakeBillingRepo()
	r := newTestReconciler(newFakeClientRepo(), newFakeLeadRepo(), newFakeMessageRepo(), billing)

	_, err := r.Apply(invoiceEvent(EventInvoicePartPaid, "inv_1", 100000, 40000))
	require.NoError(t, err)
	inv, _ := billing.GetInvoice("inv_1")
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, inv.Status)
	assert.Equal(t, int64(40000), inv.AmountPaidMinorUnits)

	// Partial payment recurs with a growing paid amount.
	_, err = r.Apply(invoiceEvent(EventInvoicePartPaid, "inv_1", 100000, 70000))
	require.NoError(t, err)
	inv, _ = billing.GetInvoice("inv_1")
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, inv.Status)
	assert.Equal(t, int64(70000), inv.AmountPaidMinorUnits)

	_, err = r.Apply(invoiceEvent(EventInvoicePaid, "inv_1", 100000, 100000))
	require.NoError(t, err)
	inv, _ = billing.GetInvoice("inv_1")
	assert.Equal(t, models.InvoiceStatusPaid, inv.Status)

	// Paid is terminal.
	_, err = r.Apply(invoiceEvent(EventInvoiceExpired, "inv_1", 100000, 100000))
	require.NoError(t, err)
	inv, _ = billing.GetInvoice("inv_1")
	assert.Equal(t, models.InvoiceStatusPaid, inv.Status)
}

func TestInvoiceExpiryOnlyFromPending(t *testing.T) {
	billing := newFakeBillingRepo()
	r := newTestReconciler(newFakeClientRepo(), newFakeLeadRepo(), newFakeMessageRepo(), billing)

	_, err := r.Apply(invoiceEvent(EventInvoicePartPaid, "inv_2", 100000, 30000))
	require.NoError(t, err)
	_, err = r.Apply(invoiceEvent(EventInvoiceExpired, "inv_2", 100000, 30000))
	require.NoError(t, err)

	inv, _ := billing.GetInvoice("inv_2")
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, inv.Status)
}

func TestNoopEventIsDiscarded(t *testing.T) {
	r := newTestReconciler(newFakeClientRepo(), newFakeLeadRepo(), newFakeMessageRepo(), newFakeBillingRepo())
	intents, err := r.Apply(Event{Provider: models.ProviderPayments, ID: "refund.created:unknown", Type: EventNoop})
	require.NoError(t, err)
	assert.Empty(t, intents)
}
