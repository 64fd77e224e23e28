package stripe

import (
	"context"
	"encoding/json"
	"fmt"

	stripesdk "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/JoshDFN/ic-commerce/internal/observability"
)

// Settler applies a confirmed payment intent to the order ledger. The memory
// ledger implements it directly; a remote ledger settles on its own webhook.
type Settler interface {
	SettleIntent(intentID string) bool
}

// WebhookResult reports how one webhook delivery was handled.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	Message   string `json:"message,omitempty"`
}

// WebhookService verifies Stripe webhook signatures and settles succeeded
// payment intents. Settlement is idempotent: the same intent may already have
// been recorded by the client's checkout path.
type WebhookService struct {
	secret  string
	settler Settler
	log     observability.Logger
}

func NewWebhookService(secret string, settler Settler, logger observability.Logger) *WebhookService {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &WebhookService{
		secret:  secret,
		settler: settler,
		log:     logger.With(observability.F("component", "stripe_webhook")),
	}
}

// Process verifies and dispatches one delivery. A signature failure is the
// caller's cue to reject the request; processing failures after verification
// are reported in the result so the caller can still acknowledge receipt.
func (s *WebhookService) Process(_ context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.secret)
	if err != nil {
		s.log.Error("webhook_signature_invalid", observability.F("error", err))
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: string(event.Type),
		Processed: true,
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var intent stripesdk.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			result.Processed = false
			result.Message = err.Error()
			return result, nil
		}
		settled := s.settler.SettleIntent(intent.ID)
		s.log.Info("webhook_intent_succeeded",
			observability.F("event_id", event.ID),
			observability.F("intent_id", intent.ID),
			observability.F("settled", settled),
		)
		if !settled {
			result.Message = "no order for intent"
		}
	case "payment_intent.payment_failed":
		s.log.Warn("webhook_intent_failed", observability.F("event_id", event.ID))
	default:
		s.log.Debug("webhook_event_ignored", observability.F("event_type", string(event.Type)))
		result.Message = "Event type not handled"
	}

	return result, nil
}
