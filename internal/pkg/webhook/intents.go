package webhook

// IntentKind identifies a side effect the reconciler wants performed.
type IntentKind string

const (
	IntentSendTemplatedMessage  IntentKind = "send_templated_message"
	IntentActivateClientFeature IntentKind = "activate_client_features"
	IntentNotifyPaymentFailure  IntentKind = "notify_payment_failure"
	IntentNotifyRenewalReminder IntentKind = "notify_renewal_reminder"
)

// Intent describes one side effect produced by reconciliation. Intents are
// executed after state is committed, independently and best-effort; a failed
// intent never rolls back the entity change that produced it.
type Intent struct {
	Kind IntentKind `json:"kind"`
	// EventID is the originating provider event id, logged with every
	// dispatch failure so the intent can be replayed.
	EventID      string   `json:"event_id"`
	To           string   `json:"to,omitempty"`
	TemplateName string   `json:"template_name,omitempty"`
	Params       []string `json:"params,omitempty"`
	ClientID     uint     `json:"client_id,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}
