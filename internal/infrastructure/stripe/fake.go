package stripe

import (
	"context"
	"fmt"
	"strings"

	"github.com/JoshDFN/ic-commerce/internal/domain/payment"
)

// FakeProcessor approves every confirmation, except handles carrying a
// "declined" marker, which it rejects. Demo deployments run on it so checkout
// works end to end without Stripe credentials.
type FakeProcessor struct{}

func NewFakeProcessor() *FakeProcessor { return &FakeProcessor{} }

var _ payment.Processor = (*FakeProcessor)(nil)

func (*FakeProcessor) Confirm(_ context.Context, handle payment.Handle, _ payment.BillingDetails) (payment.Confirmation, error) {
	intentID := handle.IntentID()
	if strings.Contains(intentID, "declined") {
		return payment.Confirmation{}, fmt.Errorf("%w: card was declined", payment.ErrDeclined)
	}
	return payment.Confirmation{
		Reference: intentID,
		Status:    payment.StatusSucceeded,
	}, nil
}
