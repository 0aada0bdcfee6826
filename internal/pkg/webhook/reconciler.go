package webhook

import (
	"errors"
	"fmt"

	"github.com/agenciohq/agencio/app/models"
	"github.com/agenciohq/agencio/app/repository"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// defaultWelcomeTemplate is sent to new contactable leads when the owning
// client has not configured its own template.
const defaultWelcomeTemplate = "lead_welcome"

// Reconciler applies canonical events to the owned entities via explicit
// state machines. It holds no provider knowledge: every decision is a
// function of (current status, incoming event type). All transitions are
// idempotent; re-applying an event that already took effect is a no-op.
type Reconciler struct {
	Clients  repository.ClientRepository
	Leads    repository.LeadRepository
	Messages repository.MessageRepository
	Billing  repository.BillingRepository

	locks *keyedMutex
}

// NewReconciler creates a reconciler over the given repositories.
func NewReconciler(repos *repository.Repositories) *Reconciler {
	return &Reconciler{
		Clients:  repos.Client,
		Leads:    repos.Lead,
		Messages: repos.Message,
		Billing:  repos.Billing,
		locks:    newKeyedMutex(),
	}
}

// Apply runs the event through the matching state machine and returns the
// side-effect intents it produced. State is committed before Apply returns;
// intents are executed afterwards and never hold any lock taken here.
func (r *Reconciler) Apply(evt Event) ([]Intent, error) {
	switch evt.Type {
	case EventLeadCreated:
		return r.applyLead(evt)
	case EventMessageReceived:
		return r.applyMessageReceived(evt)
	case EventMessageStatus:
		return r.applyMessageStatus(evt)
	case EventPaymentAuthorized, EventPaymentCaptured, EventPaymentFailed:
		return r.applyPayment(evt)
	case EventSubActivated, EventSubCharged, EventSubCancelled, EventSubCompleted:
		return r.applySubscription(evt)
	case EventInvoicePaid, EventInvoicePartPaid, EventInvoiceExpired:
		return r.applyInvoice(evt)
	case EventNoop:
		return nil, nil
	default:
		log.Warnf("[Reconciler] unknown event type %q (event %s), discarding", evt.Type, evt.ID)
		return nil, nil
	}
}

// applyLead is insert-only: the first lead_created event per external id
// creates the lead, every later one is a no-op.
func (r *Reconciler) applyLead(evt Event) ([]Intent, error) {
	in := evt.Lead

	welcomeTemplate := defaultWelcomeTemplate
	var clientID uint
	client, err := r.Clients.GetByLeadgenPageRef(in.PageRef)
	switch {
	case err == nil:
		clientID = client.ID
		if client.WelcomeTemplate != "" {
			welcomeTemplate = client.WelcomeTemplate
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Unattributed leads are stored anyway; attribution can be fixed up
		// later by agency staff.
	default:
		return nil, fmt.Errorf("%w: resolve client for page %s: %v", ErrStoreUnavailable, in.PageRef, err)
	}

	lead := &models.Lead{
		UUID:             uuid.NewString(),
		Provider:         evt.Provider,
		ExternalID:       in.LeadgenID,
		BusinessClientID: clientID,
		FullName:         in.FullName,
		Email:            in.Email,
		Phone:            in.Phone,
		AdID:             in.AdID,
		CampaignID:       in.CampaignID,
		FormID:           in.FormID,
		PageRef:          in.PageRef,
		UTMSource:        in.UTMSource,
		UTMMedium:        in.UTMMedium,
		UTMCampaign:      in.UTMCampaign,
	}
	created, stored, err := r.Leads.CreateIfNotExists(lead)
	if err != nil {
		return nil, fmt.Errorf("%w: insert lead %s: %v", ErrStoreUnavailable, in.LeadgenID, err)
	}
	if !created {
		log.Infof("[Reconciler] lead %s already exists, event %s is a no-op", in.LeadgenID, evt.ID)
		return nil, nil
	}
	if !stored.Contactable() {
		return nil, nil
	}
	return []Intent{{
		Kind:         IntentSendTemplatedMessage,
		EventID:      evt.ID,
		To:           stored.Phone,
		TemplateName: welcomeTemplate,
		Params:       []string{stored.FullName},
		ClientID:     clientID,
	}}, nil
}

func (r *Reconciler) applyMessageReceived(evt Event) ([]Intent, error) {
	in := evt.Message
	unlock := r.locks.Lock("message:" + in.MessageID)
	defer unlock()

	_, err := r.Messages.GetByProviderMessageID(in.MessageID)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: load message %s: %v", ErrStoreUnavailable, in.MessageID, err)
	}

	// Inbound messages have by definition reached us, so they enter the
	// machine at delivered.
	message := &models.Message{
		ProviderMessageID:   in.MessageID,
		Direction:           models.MessageDirectionInbound,
		CounterpartyAddress: in.From,
		Body:                in.Body,
		Status:              models.MessageStatusDelivered,
	}
	if err := r.Messages.Upsert(message); err != nil {
		return nil, fmt.Errorf("%w: insert message %s: %v", ErrStoreUnavailable, in.MessageID, err)
	}
	if err := r.Messages.AppendStatusHistory(message.ID, message.Status, in.Timestamp); err != nil {
		return nil, fmt.Errorf("%w: record message history %s: %v", ErrStoreUnavailable, in.MessageID, err)
	}
	return nil, nil
}

// applyMessageStatus advances a message along queued < sent < delivered <
// read. The timestamp is always recorded in the history, but the status never
// moves backward, so out-of-order receipts cannot regress it.
func (r *Reconciler) applyMessageStatus(evt Event) ([]Intent, error) {
	in := evt.Status
	unlock := r.locks.Lock("message:" + in.MessageID)
	defer unlock()

	message, err := r.Messages.GetByProviderMessageID(in.MessageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Status receipts can outrun our record of the send. Start the
		// machine at queued and let this receipt advance it.
		message = &models.Message{
			ProviderMessageID:   in.MessageID,
			Direction:           models.MessageDirectionOutbound,
			CounterpartyAddress: in.RecipientID,
			Status:              models.MessageStatusQueued,
		}
		if err := r.Messages.Upsert(message); err != nil {
			return nil, fmt.Errorf("%w: insert message %s: %v", ErrStoreUnavailable, in.MessageID, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: load message %s: %v", ErrStoreUnavailable, in.MessageID, err)
	}

	if err := r.Messages.AppendStatusHistory(message.ID, in.Status, in.Timestamp); err != nil {
		return nil, fmt.Errorf("%w: record message history %s: %v", ErrStoreUnavailable, in.MessageID, err)
	}

	current := message.Status
	incoming := in.Status
	switch {
	case incoming == current:
		// Duplicate receipt, history entry is enough.
	case incoming == models.MessageStatusFailed:
		if current == models.MessageStatusDelivered || current == models.MessageStatusRead {
			log.Warnf("[Reconciler] message %s: failed receipt after %s, keeping status", in.MessageID, current)
			return nil, nil
		}
		if err := r.Messages.UpdateStatus(message.ID, models.MessageStatusFailed, in.FailureReason); err != nil {
			return nil, fmt.Errorf("%w: update message %s: %v", ErrStoreUnavailable, in.MessageID, err)
		}
	case current == models.MessageStatusFailed:
		log.Warnf("[Reconciler] message %s: %s receipt after failure, keeping status", in.MessageID, incoming)
	case models.MessageStatusRank(incoming) > models.MessageStatusRank(current):
		if err := r.Messages.UpdateStatus(message.ID, incoming, ""); err != nil {
			return nil, fmt.Errorf("%w: update message %s: %v", ErrStoreUnavailable, in.MessageID, err)
		}
	default:
		// Late receipt for an earlier stage; the history entry already
		// captured its timestamp.
	}
	return nil, nil
}

func (r *Reconciler) applyPayment(evt Event) ([]Intent, error) {
	in := evt.Payment
	target := paymentTargetStatus(evt.Type)

	unlock := r.locks.Lock("payment:" + in.PaymentID)

	clientID := r.resolveBillingClient(in.CustomerRef)

	var intents []Intent
	payment, err := r.Billing.GetPayment(in.PaymentID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Direct captured/failed without an authorization event is a valid
		// entry path.
		payment = &models.PaymentTransaction{
			ProviderPaymentID: in.PaymentID,
			AmountMinorUnits:  in.AmountMinorUnits,
			Currency:          in.Currency,
			Status:            target,
			SubscriptionRef:   in.SubscriptionRef,
			BusinessClientID:  clientID,
			FailureReason:     in.FailureReason,
		}
		if err := r.Billing.UpsertPayment(payment); err != nil {
			unlock()
			return nil, fmt.Errorf("%w: insert payment %s: %v", ErrStoreUnavailable, in.PaymentID, err)
		}
	case err != nil:
		unlock()
		return nil, fmt.Errorf("%w: load payment %s: %v", ErrStoreUnavailable, in.PaymentID, err)
	case payment.Status == target:
		unlock()
		return nil, nil
	case payment.Terminal():
		log.Warnf("[Reconciler] payment %s is %s, discarding %s event (conflict)", in.PaymentID, payment.Status, target)
		unlock()
		return nil, nil
	case payment.Status == models.PaymentStatusAuthorized:
		payment.Status = target
		payment.FailureReason = in.FailureReason
		if in.SubscriptionRef != "" {
			payment.SubscriptionRef = in.SubscriptionRef
		}
		if clientID != 0 {
			payment.BusinessClientID = clientID
		}
		if err := r.Billing.UpsertPayment(payment); err != nil {
			unlock()
			return nil, fmt.Errorf("%w: update payment %s: %v", ErrStoreUnavailable, in.PaymentID, err)
		}
	default:
		log.Warnf("[Reconciler] payment %s: no transition %s -> %s (conflict)", in.PaymentID, payment.Status, target)
		unlock()
		return nil, nil
	}

	// The payment lock is released before the cross-entity step so a slow
	// subscription update never holds two entity locks at once.
	unlock()

	if target == models.PaymentStatusFailed && payment.BusinessClientID != 0 {
		intents = append(intents, Intent{
			Kind:     IntentNotifyPaymentFailure,
			EventID:  evt.ID,
			ClientID: payment.BusinessClientID,
			Reason:   in.FailureReason,
		})
	}
	if target == models.PaymentStatusCaptured && payment.SubscriptionRef != "" {
		subIntents, err := r.reconcileCapturedPayment(evt, payment)
		if err != nil {
			return intents, err
		}
		intents = append(intents, subIntents...)
	}
	return intents, nil
}

// reconcileCapturedPayment is the one place a payment event reconciles a
// different entity than its own id: a captured transaction tied to a
// subscription activates it or records another paid cycle.
func (r *Reconciler) reconcileCapturedPayment(evt Event, payment *models.PaymentTransaction) ([]Intent, error) {
	subRef := payment.SubscriptionRef
	unlock := r.locks.Lock("subscription:" + subRef)
	defer unlock()

	sub, err := r.Billing.GetSubscription(subRef)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sub = &models.Subscription{
			ProviderSubscriptionID: subRef,
			BusinessClientID:       payment.BusinessClientID,
			Status:                 models.SubscriptionStatusPending,
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: load subscription %s: %v", ErrStoreUnavailable, subRef, err)
	}

	// Replaying the same payment against the subscription must not double
	// count a cycle.
	if sub.LastPaymentRef == payment.ProviderPaymentID {
		return nil, nil
	}
	if sub.Terminal() {
		log.Warnf("[Reconciler] subscription %s is %s, captured payment %s not applied (conflict)",
			subRef, sub.Status, payment.ProviderPaymentID)
		return nil, nil
	}

	var intents []Intent
	if sub.Status == models.SubscriptionStatusPending || sub.Status == "" {
		sub.Status = models.SubscriptionStatusActive
		if sub.BusinessClientID != 0 {
			intents = append(intents, Intent{
				Kind:     IntentActivateClientFeature,
				EventID:  evt.ID,
				ClientID: sub.BusinessClientID,
			})
		}
	}
	sub.PaidCount++
	if sub.RemainingCount > 0 {
		sub.RemainingCount--
	}
	sub.LastPaymentRef = payment.ProviderPaymentID
	if err := r.Billing.UpsertSubscription(sub); err != nil {
		return nil, fmt.Errorf("%w: update subscription %s: %v", ErrStoreUnavailable, subRef, err)
	}
	return intents, nil
}

func (r *Reconciler) applySubscription(evt Event) ([]Intent, error) {
	in := evt.Subscription
	unlock := r.locks.Lock("subscription:" + in.SubscriptionID)
	defer unlock()

	clientID := r.resolveBillingClient(in.CustomerRef)

	sub, err := r.Billing.GetSubscription(in.SubscriptionID)
	notFound := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !notFound {
		return nil, fmt.Errorf("%w: load subscription %s: %v", ErrStoreUnavailable, in.SubscriptionID, err)
	}
	if notFound {
		sub = &models.Subscription{
			ProviderSubscriptionID: in.SubscriptionID,
			Status:                 models.SubscriptionStatusPending,
		}
	}
	if clientID != 0 {
		sub.BusinessClientID = clientID
	}
	if in.PlanRef != "" {
		sub.PlanRef = in.PlanRef
	}

	var intents []Intent
	switch evt.Type {
	case EventSubActivated:
		if sub.Status == models.SubscriptionStatusActive {
			return nil, nil
		}
		if sub.Terminal() {
			log.Warnf("[Reconciler] subscription %s is %s, discarding activation (conflict)", in.SubscriptionID, sub.Status)
			return nil, nil
		}
		sub.Status = models.SubscriptionStatusActive
		applySubscriptionCounters(sub, in)
		if sub.BusinessClientID != 0 {
			intents = append(intents, Intent{
				Kind:     IntentActivateClientFeature,
				EventID:  evt.ID,
				ClientID: sub.BusinessClientID,
			})
		}
	case EventSubCharged:
		if sub.Terminal() {
			log.Warnf("[Reconciler] subscription %s is %s, discarding charge (conflict)", in.SubscriptionID, sub.Status)
			return nil, nil
		}
		// Charged is re-entrant: the subscription stays (or becomes) active
		// while the cycle advances.
		wasActive := sub.Status == models.SubscriptionStatusActive
		sub.Status = models.SubscriptionStatusActive
		if in.PaidCount > 0 {
			applySubscriptionCounters(sub, in)
		} else {
			sub.PaidCount++
			if sub.RemainingCount > 0 {
				sub.RemainingCount--
			}
			sub.CurrentPeriodStart = in.PeriodStart
			sub.CurrentPeriodEnd = in.PeriodEnd
		}
		if !wasActive && sub.BusinessClientID != 0 {
			intents = append(intents, Intent{
				Kind:     IntentActivateClientFeature,
				EventID:  evt.ID,
				ClientID: sub.BusinessClientID,
			})
		}
	case EventSubCancelled, EventSubCompleted:
		target := models.SubscriptionStatusCancelled
		if evt.Type == EventSubCompleted {
			target = models.SubscriptionStatusCompleted
		}
		if sub.Status == target {
			return nil, nil
		}
		if sub.Terminal() {
			log.Warnf("[Reconciler] subscription %s is %s, discarding %s (conflict)", in.SubscriptionID, sub.Status, target)
			return nil, nil
		}
		sub.Status = target
		if target == models.SubscriptionStatusCompleted && sub.BusinessClientID != 0 {
			intents = append(intents, Intent{
				Kind:     IntentNotifyRenewalReminder,
				EventID:  evt.ID,
				ClientID: sub.BusinessClientID,
			})
		}
	}

	if err := r.Billing.UpsertSubscription(sub); err != nil {
		return nil, fmt.Errorf("%w: upsert subscription %s: %v", ErrStoreUnavailable, in.SubscriptionID, err)
	}
	return intents, nil
}

func (r *Reconciler) applyInvoice(evt Event) ([]Intent, error) {
	in := evt.Invoice
	target := invoiceTargetStatus(evt.Type)

	unlock := r.locks.Lock("invoice:" + in.InvoiceID)
	defer unlock()

	invoice, err := r.Billing.GetInvoice(in.InvoiceID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		invoice = &models.Invoice{
			ProviderInvoiceID:    in.InvoiceID,
			SubscriptionRef:      in.SubscriptionRef,
			AmountMinorUnits:     in.AmountMinorUnits,
			AmountPaidMinorUnits: in.AmountPaidMinorUnits,
			Currency:             in.Currency,
			Status:               target,
		}
	case err != nil:
		return nil, fmt.Errorf("%w: load invoice %s: %v", ErrStoreUnavailable, in.InvoiceID, err)
	case invoice.Status == target && invoice.AmountPaidMinorUnits == in.AmountPaidMinorUnits:
		return nil, nil
	case invoice.Terminal():
		log.Warnf("[Reconciler] invoice %s is %s, discarding %s event (conflict)", in.InvoiceID, invoice.Status, target)
		return nil, nil
	case target == models.InvoiceStatusExpired && invoice.Status == models.InvoiceStatusPartiallyPaid:
		// Expiry is only reachable from pending.
		log.Warnf("[Reconciler] invoice %s: no transition partially_paid -> expired (conflict)", in.InvoiceID)
		return nil, nil
	default:
		invoice.Status = target
		if in.AmountMinorUnits > 0 {
			invoice.AmountMinorUnits = in.AmountMinorUnits
		}
		invoice.AmountPaidMinorUnits = in.AmountPaidMinorUnits
		if in.SubscriptionRef != "" {
			invoice.SubscriptionRef = in.SubscriptionRef
		}
	}

	if err := r.Billing.UpsertInvoice(invoice); err != nil {
		return nil, fmt.Errorf("%w: upsert invoice %s: %v", ErrStoreUnavailable, in.InvoiceID, err)
	}
	return nil, nil
}

// resolveBillingClient maps a payments-provider customer reference to a
// business client id, or 0 when unknown.
func (r *Reconciler) resolveBillingClient(customerRef string) uint {
	if customerRef == "" {
		return 0
	}
	client, err := r.Clients.GetByBillingCustomerRef(customerRef)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Errorf("[Reconciler] client lookup for customer %s failed: %v", customerRef, err)
		}
		return 0
	}
	return client.ID
}

func applySubscriptionCounters(sub *models.Subscription, in *SubscriptionEvent) {
	if in.PaidCount > 0 {
		sub.PaidCount = in.PaidCount
	}
	if in.RemainingCount > 0 {
		sub.RemainingCount = in.RemainingCount
	}
	if in.TotalCount > 0 {
		sub.TotalCount = in.TotalCount
	}
	if in.PeriodStart != nil {
		sub.CurrentPeriodStart = in.PeriodStart
	}
	if in.PeriodEnd != nil {
		sub.CurrentPeriodEnd = in.PeriodEnd
	}
}

func paymentTargetStatus(t EventType) string {
	switch t {
	case EventPaymentAuthorized:
		return models.PaymentStatusAuthorized
	case EventPaymentFailed:
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusCaptured
	}
}

func invoiceTargetStatus(t EventType) string {
	switch t {
	case EventInvoicePaid:
		return models.InvoiceStatusPaid
	case EventInvoiceExpired:
		return models.InvoiceStatusExpired
	default:
		return models.InvoiceStatusPartiallyPaid
	}
}
