package webhook

import (
	"time"

	"github.com/agenciohq/agencio/app/models"
	"gorm.io/gorm"
)

// In-memory repositories for exercising the reconciler and guard without a
// database. They mirror the real implementations' contracts: not-found is
// gorm.ErrRecordNotFound, conditional inserts report whether a row was
// created, and getters hand out copies.

type fakeClientRepo struct {
	clients   []*models.BusinessClient
	activated map[uint]time.Time
	nextID    uint
}

func newFakeClientRepo(clients ...*models.BusinessClient) *fakeClientRepo {
	repo := &fakeClientRepo{activated: map[uint]time.Time{}}
	for _, c := range clients {
		repo.Create(c)
	}
	return repo
}

func (f *fakeClientRepo) Create(client *models.BusinessClient) error {
	f.nextID++
	client.ID = f.nextID
	cp := *client
	f.clients = append(f.clients, &cp)
	return nil
}

func (f *fakeClientRepo) GetByID(id uint) (*models.BusinessClient, error) {
	for _, c := range f.clients {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeClientRepo) GetByLeadgenPageRef(pageRef string) (*models.BusinessClient, error) {
	for _, c := range f.clients {
		if c.LeadgenPageRef == pageRef {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeClientRepo) GetByBillingCustomerRef(customerRef string) (*models.BusinessClient, error) {
	for _, c := range f.clients {
		if c.BillingCustomerRef == customerRef {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeClientRepo) GetByAPIKeyHash(hash string) (*models.BusinessClient, error) {
	for _, c := range f.clients {
		if c.APIKeyHash == hash {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeClientRepo) ActivateFeatures(id uint, at time.Time) error {
	f.activated[id] = at
	for _, c := range f.clients {
		if c.ID == id {
			c.FeaturesActive = true
			c.FeaturesActivateAt = &at
		}
	}
	return nil
}

func (f *fakeClientRepo) Update(client *models.BusinessClient) error {
	for i, c := range f.clients {
		if c.ID == client.ID {
			cp := *client
			f.clients[i] = &cp
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeClientRepo) List(offset, limit int) ([]models.BusinessClient, error) {
	out := make([]models.BusinessClient, 0, len(f.clients))
	for _, c := range f.clients {
		out = append(out, *c)
	}
	return out, nil
}

type fakeLeadRepo struct {
	leads  map[string]*models.Lead
	nextID uint
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: map[string]*models.Lead{}}
}

func leadKey(provider, externalID string) string {
	return provider + ":" + externalID
}

func (f *fakeLeadRepo) CreateIfNotExists(lead *models.Lead) (bool, *models.Lead, error) {
	key := leadKey(lead.Provider, lead.ExternalID)
	if existing, ok := f.leads[key]; ok {
		cp := *existing
		return false, &cp, nil
	}
	f.nextID++
	lead.ID = f.nextID
	cp := *lead
	f.leads[key] = &cp
	out := cp
	return true, &out, nil
}

func (f *fakeLeadRepo) GetByExternalID(provider, externalID string) (*models.Lead, error) {
	if existing, ok := f.leads[leadKey(provider, externalID)]; ok {
		cp := *existing
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeLeadRepo) ListByClient(clientID uint, offset, limit int) ([]models.Lead, error) {
	var out []models.Lead
	for _, l := range f.leads {
		if l.BusinessClientID == clientID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeLeadRepo) List(offset, limit int) ([]models.Lead, error) {
	var out []models.Lead
	for _, l := range f.leads {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeLeadRepo) Count() (int64, error) {
	return int64(len(f.leads)), nil
}

type fakeMessageRepo struct {
	messages map[string]*models.Message
	history  []models.MessageStatusHistory
	nextID   uint
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: map[string]*models.Message{}}
}

func (f *fakeMessageRepo) GetByProviderMessageID(providerMessageID string) (*models.Message, error) {
	if m, ok := f.messages[providerMessageID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMessageRepo) Upsert(message *models.Message) error {
	if existing, ok := f.messages[message.ProviderMessageID]; ok {
		message.ID = existing.ID
	} else {
		f.nextID++
		message.ID = f.nextID
	}
	cp := *message
	f.messages[message.ProviderMessageID] = &cp
	return nil
}

func (f *fakeMessageRepo) UpdateStatus(id uint, status, failureReason string) error {
	for _, m := range f.messages {
		if m.ID == id {
			m.Status = status
			if failureReason != "" {
				m.FailureReason = failureReason
			}
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeMessageRepo) AppendStatusHistory(messageID uint, status string, occurredAt time.Time) error {
	f.history = append(f.history, models.MessageStatusHistory{
		MessageID:  messageID,
		Status:     status,
		OccurredAt: occurredAt,
	})
	return nil
}

func (f *fakeMessageRepo) ListByCounterparty(address string, offset, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.messages {
		if m.CounterpartyAddress == address {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) historyFor(messageID uint) []models.MessageStatusHistory {
	var out []models.MessageStatusHistory
	for _, h := range f.history {
		if h.MessageID == messageID {
			out = append(out, h)
		}
	}
	return out
}

type fakeBillingRepo struct {
	payments      map[string]*models.PaymentTransaction
	subscriptions map[string]*models.Subscription
	invoices      map[string]*models.Invoice
	nextID        uint
}

func newFakeBillingRepo() *fakeBillingRepo {
	return &fakeBillingRepo{
		payments:      map[string]*models.PaymentTransaction{},
		subscriptions: map[string]*models.Subscription{},
		invoices:      map[string]*models.Invoice{},
	}
}

func (f *fakeBillingRepo) GetPayment(providerPaymentID string) (*models.PaymentTransaction, error) {
	if p, ok := f.payments[providerPaymentID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillingRepo) UpsertPayment(payment *models.PaymentTransaction) error {
	if existing, ok := f.payments[payment.ProviderPaymentID]; ok {
		payment.ID = existing.ID
	} else {
		f.nextID++
		payment.ID = f.nextID
	}
	cp := *payment
	f.payments[payment.ProviderPaymentID] = &cp
	return nil
}

func (f *fakeBillingRepo) GetSubscription(providerSubscriptionID string) (*models.Subscription, error) {
	if s, ok := f.subscriptions[providerSubscriptionID]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillingRepo) UpsertSubscription(sub *models.Subscription) error {
	if existing, ok := f.subscriptions[sub.ProviderSubscriptionID]; ok {
		sub.ID = existing.ID
	} else {
		f.nextID++
		sub.ID = f.nextID
	}
	cp := *sub
	f.subscriptions[sub.ProviderSubscriptionID] = &cp
	return nil
}

func (f *fakeBillingRepo) ListSubscriptionsByClient(clientID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range f.subscriptions {
		if s.BusinessClientID == clientID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeBillingRepo) GetInvoice(providerInvoiceID string) (*models.Invoice, error) {
	if i, ok := f.invoices[providerInvoiceID]; ok {
		cp := *i
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBillingRepo) UpsertInvoice(invoice *models.Invoice) error {
	if existing, ok := f.invoices[invoice.ProviderInvoiceID]; ok {
		invoice.ID = existing.ID
	} else {
		f.nextID++
		invoice.ID = f.nextID
	}
	cp := *invoice
	f.invoices[invoice.ProviderInvoiceID] = &cp
	return nil
}

func (f *fakeBillingRepo) ListInvoicesBySubscription(subscriptionRef string) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, i := range f.invoices {
		if i.SubscriptionRef == subscriptionRef {
			out = append(out, *i)
		}
	}
	return out, nil
}

type fakeWebhookEventRepo struct {
	events    map[string]*models.WebhookEvent
	processed map[uint]string
	failWith  error
	nextID    uint
}

func newFakeWebhookEventRepo() *fakeWebhookEventRepo {
	return &fakeWebhookEventRepo{
		events:    map[string]*models.WebhookEvent{},
		processed: map[uint]string{},
	}
}

func (f *fakeWebhookEventRepo) CreateIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if f.failWith != nil {
		return false, nil, f.failWith
	}
	key := event.Provider + ":" + event.ProviderEventID
	if existing, ok := f.events[key]; ok {
		cp := *existing
		return false, &cp, nil
	}
	f.nextID++
	event.ID = f.nextID
	cp := *event
	f.events[key] = &cp
	out := cp
	return true, &out, nil
}

func (f *fakeWebhookEventRepo) MarkProcessed(id uint, processingError string) error {
	f.processed[id] = processingError
	return nil
}

func (f *fakeWebhookEventRepo) Delete(id uint) error {
	for key, e := range f.events {
		if e.ID == id {
			delete(f.events, key)
			return nil
		}
	}
	return nil
}

func (f *fakeWebhookEventRepo) CountByProviderSince(provider string, since time.Time) (int64, error) {
	var n int64
	for _, e := range f.events {
		if e.Provider == provider {
			n++
		}
	}
	return n, nil
}

func newTestReconciler(clients *fakeClientRepo, leads *fakeLeadRepo, messages *fakeMessageRepo, billing *fakeBillingRepo) *Reconciler {
	return &Reconciler{
		Clients:  clients,
		Leads:    leads,
		Messages: messages,
		Billing:  billing,
		locks:    newKeyedMutex(),
	}
}
