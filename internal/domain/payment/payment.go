package payment

import (
	"errors"
	"strings"
)

var (
	// ErrDeclined marks a processor-reported failure. Checkout-local and
	// retryable in place; the entered form data survives.
	ErrDeclined = errors.New("payment: declined")
	// ErrNotConfigured marks a missing or inactive payment method. Fatal for
	// checkout; requires operator intervention, not a retry.
	ErrNotConfigured = errors.New("payment: not configured")
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// MethodTypeStripe is the processor type this storefront checks out with.
const MethodTypeStripe = "stripe"

// Method is a payment method as configured on the ledger.
type Method struct {
	ID             string
	Name           string
	Type           string
	Active         bool
	PublishableKey string
}

// Handle is the opaque reference issued for an authorized-but-unconfirmed
// charge. For Stripe this is the payment intent client secret.
type Handle string

func (h Handle) IsZero() bool { return h == "" }

// IntentID extracts the processor-side intent identifier from the handle.
// Client secrets are shaped "<intent id>_secret_<nonce>".
func (h Handle) IntentID() string {
	s := string(h)
	if i := strings.Index(s, "_secret"); i > 0 {
		return s[:i]
	}
	return s
}

// BillingDetails is the contact and address information attached to a
// confirmation attempt.
type BillingDetails struct {
	Name       string
	Email      string
	Line1      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Confirmation is a processor-reported successful charge.
type Confirmation struct {
	Reference string
	Status    Status
	Amount    int64
}
