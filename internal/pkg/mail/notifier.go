package mail

import (
	"errors"
	"fmt"

	"github.com/agenciohq/agencio/app/repository"
	"github.com/agenciohq/agencio/internal/pkg/env"
	"github.com/gofiber/fiber/v2/log"
)

// Sender abstracts the mail transport for tests.
type Sender func(to, subject, body string) error

// Notifier emails billing notifications to client contacts, falling back to
// the agency operations inbox when a client has no contact email.
type Notifier struct {
	Clients repository.ClientRepository
	Send    Sender
	OpsAddr string
}

// NewNotifier creates a notifier over the client repository using SMTP.
func NewNotifier(clients repository.ClientRepository) *Notifier {
	return &Notifier{
		Clients: clients,
		Send:    SendMail,
		OpsAddr: env.GetEnv("OPS_NOTIFY_EMAIL", ""),
	}
}

// NotifyPaymentFailure tells the client (or operations) that a charge failed.
func (n *Notifier) NotifyPaymentFailure(clientID uint, reason string) error {
	name, addr, err := n.recipient(clientID)
	if err != nil {
		return err
	}
	if reason == "" {
		reason = "the payment provider did not give a reason"
	}
	subject := "Payment failed for your subscription"
	body := fmt.Sprintf(
		"Hello %s,\n\nyour latest payment could not be processed: %s.\nPlease update your payment method to keep your campaigns running.\n",
		name, reason,
	)
	return n.Send(addr, subject, body)
}

// NotifyRenewalReminder tells the client their subscription has run out of
// cycles and needs renewal.
func (n *Notifier) NotifyRenewalReminder(clientID uint) error {
	name, addr, err := n.recipient(clientID)
	if err != nil {
		return err
	}
	subject := "Your subscription has ended"
	body := fmt.Sprintf(
		"Hello %s,\n\nyour subscription has completed its final billing cycle.\nRenew it to keep lead capture and messaging active for your account.\n",
		name,
	)
	return n.Send(addr, subject, body)
}

func (n *Notifier) recipient(clientID uint) (string, string, error) {
	client, err := n.Clients.GetByID(clientID)
	if err != nil {
		return "", "", fmt.Errorf("load client %d: %w", clientID, err)
	}
	if client.ContactEmail != "" {
		return client.Name, client.ContactEmail, nil
	}
	if n.OpsAddr != "" {
		log.Warnf("[Mail] client %d has no contact email, notifying operations", clientID)
		return client.Name, n.OpsAddr, nil
	}
	return "", "", errors.New("no recipient: client has no contact email and OPS_NOTIFY_EMAIL is unset")
}
