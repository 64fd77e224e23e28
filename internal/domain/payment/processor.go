package payment

import "context"

// Processor confirms an authorized charge with the external payment service.
// Confirmation may involve user interaction on the processor side, so
// implementations must not impose their own deadline; cancellation is driven
// by the caller's context only.
type Processor interface {
	Confirm(ctx context.Context, handle Handle, billing BillingDetails) (Confirmation, error)
}
