package stripe

import (
	"context"
	"errors"
	"fmt"

	stripesdk "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"

	"github.com/JoshDFN/ic-commerce/internal/domain/payment"
	"github.com/JoshDFN/ic-commerce/internal/observability"
)

const componentProcessor = "stripe_processor"

// Processor confirms payment intents against Stripe. The handle carries the
// client secret; confirmation addresses the underlying intent.
type Processor struct {
	paymentMethod string
	log           observability.Logger
}

// Configure sets the account-level API key. Call once at startup.
func Configure(secretKey string) {
	stripesdk.Key = secretKey
}

// NewProcessor builds a processor that confirms with the given payment method
// id (a tokenized card, e.g. "pm_card_visa" in test mode).
func NewProcessor(paymentMethod string, logger observability.Logger) *Processor {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Processor{
		paymentMethod: paymentMethod,
		log:           logger.With(observability.F("component", componentProcessor)),
	}
}

var _ payment.Processor = (*Processor)(nil)

// Confirm charges the intent behind the handle. Billing details live on the
// order record, not on the charge; the intent only needs a payment method.
func (p *Processor) Confirm(ctx context.Context, handle payment.Handle, billing payment.BillingDetails) (payment.Confirmation, error) {
	params := &stripesdk.PaymentIntentConfirmParams{
		Params: stripesdk.Params{Context: ctx},
	}
	if p.paymentMethod != "" {
		params.PaymentMethod = stripesdk.String(p.paymentMethod)
	}
	if billing.Email != "" {
		params.ReceiptEmail = stripesdk.String(billing.Email)
	}

	intent, err := paymentintent.Confirm(handle.IntentID(), params)
	if err != nil {
		var stripeErr *stripesdk.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripesdk.ErrorTypeCard {
			p.log.Warn("payment_declined",
				observability.F("intent_id", handle.IntentID()),
				observability.F("decline_code", stripeErr.DeclineCode),
			)
			return payment.Confirmation{}, fmt.Errorf("%w: %s", payment.ErrDeclined, stripeErr.Msg)
		}
		return payment.Confirmation{}, fmt.Errorf("stripe: confirm intent: %w", err)
	}

	if intent.Status != stripesdk.PaymentIntentStatusSucceeded {
		return payment.Confirmation{}, fmt.Errorf("%w: intent status %s", payment.ErrDeclined, intent.Status)
	}

	p.log.Info("payment_confirmed",
		observability.F("intent_id", intent.ID),
		observability.F("amount", intent.Amount),
	)
	return payment.Confirmation{
		Reference: intent.ID,
		Status:    payment.StatusSucceeded,
		Amount:    intent.Amount,
	}, nil
}
