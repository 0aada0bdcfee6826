package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agenciohq/agencio/app/models"
	"github.com/agenciohq/agencio/app/repository"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// MessageGateway sends templated outbound messages through the messaging
// provider and returns the provider-assigned message id.
type MessageGateway interface {
	SendTemplate(ctx context.Context, to, templateName string, params []string) (string, error)
}

// Notifier delivers operational notifications to agency staff and clients.
type Notifier interface {
	NotifyPaymentFailure(clientID uint, reason string) error
	NotifyRenewalReminder(clientID uint) error
}

// RetryEnqueuer hands an intent off for background retry after its one
// synchronous attempt fails.
type RetryEnqueuer interface {
	EnqueueIntentRetry(intent Intent) error
}

// Dispatcher executes side-effect intents after reconciled state has been
// committed. Each intent runs independently under its own deadline; one
// failing intent never blocks the others, and no failure here propagates back
// to the webhook response.
type Dispatcher struct {
	Gateway   MessageGateway
	Notifier  Notifier
	Retry     RetryEnqueuer
	Clients   repository.ClientRepository
	Messages  repository.MessageRepository
	Templates repository.TemplateRepository

	Timeout time.Duration
}

// NewDispatcher creates a dispatcher with the default per-intent deadline.
func NewDispatcher(gateway MessageGateway, notifier Notifier, retry RetryEnqueuer, repos *repository.Repositories) *Dispatcher {
	return &Dispatcher{
		Gateway:   gateway,
		Notifier:  notifier,
		Retry:     retry,
		Clients:   repos.Client,
		Messages:  repos.Message,
		Templates: repos.Template,
		Timeout:   10 * time.Second,
	}
}

// Dispatch executes all intents produced by one event. Each intent gets one
// synchronous attempt; a failure is logged with the originating event id and
// handed to the background retry queue immediately, so the webhook response
// is never held up by backoff loops. Failures never propagate to the
// handler, which already committed the state change.
func (d *Dispatcher) Dispatch(ctx context.Context, intents []Intent) {
	for _, intent := range intents {
		if err := d.Execute(ctx, intent); err != nil {
			log.Errorf("[Dispatcher] %v: intent %s for event %s: %v", ErrDispatchFailed, intent.Kind, intent.EventID, err)
			d.enqueueRetry(intent)
		}
	}
}

// Execute runs a single intent once. The jobqueue retry processor calls this
// directly so background attempts share the exact same execution path.
func (d *Dispatcher) Execute(ctx context.Context, intent Intent) error {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	switch intent.Kind {
	case IntentSendTemplatedMessage:
		return d.sendTemplatedMessage(ctx, intent)
	case IntentActivateClientFeature:
		return d.activateClientFeatures(intent)
	case IntentNotifyPaymentFailure:
		return d.Notifier.NotifyPaymentFailure(intent.ClientID, intent.Reason)
	case IntentNotifyRenewalReminder:
		return d.Notifier.NotifyRenewalReminder(intent.ClientID)
	default:
		return fmt.Errorf("unknown intent kind %q", intent.Kind)
	}
}

func (d *Dispatcher) sendTemplatedMessage(ctx context.Context, intent Intent) error {
	// Only templates present and active in the registry may go out. An
	// unregistered template is dropped, not retried, since retrying cannot
	// make it sendable.
	if d.Templates != nil {
		if _, err := d.Templates.GetActiveByName(intent.TemplateName); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warnf("[Dispatcher] template %s not registered, dropping send for event %s", intent.TemplateName, intent.EventID)
				return nil
			}
			return fmt.Errorf("look up template %s: %w", intent.TemplateName, err)
		}
	}

	providerMessageID, err := d.Gateway.SendTemplate(ctx, intent.To, intent.TemplateName, intent.Params)
	if err != nil {
		return fmt.Errorf("send template %s to %s: %w", intent.TemplateName, intent.To, err)
	}

	// Record the send so later status receipts attach to an existing row
	// instead of a skeleton.
	message := &models.Message{
		ProviderMessageID:   providerMessageID,
		Direction:           models.MessageDirectionOutbound,
		CounterpartyAddress: intent.To,
		TemplateName:        intent.TemplateName,
		Status:              models.MessageStatusQueued,
	}
	if err := d.Messages.Upsert(message); err != nil {
		// The message left through the gateway; a bookkeeping miss must not
		// trigger a retry that would send it twice.
		log.Errorf("[Dispatcher] sent message %s but failed to record it: %v", providerMessageID, err)
		return nil
	}
	if err := d.Messages.AppendStatusHistory(message.ID, models.MessageStatusQueued, time.Now().UTC()); err != nil {
		log.Errorf("[Dispatcher] history for message %s not recorded: %v", providerMessageID, err)
	}
	return nil
}

func (d *Dispatcher) activateClientFeatures(intent Intent) error {
	if err := d.Clients.ActivateFeatures(intent.ClientID, time.Now().UTC()); err != nil {
		return fmt.Errorf("activate features for client %d: %w", intent.ClientID, err)
	}
	return nil
}

func (d *Dispatcher) enqueueRetry(intent Intent) {
	if d.Retry == nil {
		return
	}
	if err := d.Retry.EnqueueIntentRetry(intent); err != nil {
		log.Errorf("[Dispatcher] could not queue intent %s for retry: %v", intent.Kind, err)
	}
}
