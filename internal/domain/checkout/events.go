package checkout

import "time"

// CheckoutCompletedEvent is emitted when a transaction completes from the
// shopper's perspective. Ledger bookkeeping may still be settling via the
// webhook path.
type CheckoutCompletedEvent struct {
	TransactionID string
	OrderNumber   string
	ChargedTotal  int64
	OccurredAt    time.Time
}

func (CheckoutCompletedEvent) EventName() string { return "checkout.completed" }

func NewCheckoutCompletedEvent(t *Transaction) CheckoutCompletedEvent {
	conf := t.Confirmation()
	return CheckoutCompletedEvent{
		TransactionID: t.ID,
		OrderNumber:   conf.OrderNumber,
		ChargedTotal:  conf.ChargedTotal,
		OccurredAt:    time.Now().UTC(),
	}
}

// CheckoutFailedEvent is emitted when a transaction terminates without a
// confirmed charge.
type CheckoutFailedEvent struct {
	TransactionID string
	Reason        string
	OccurredAt    time.Time
}

func (CheckoutFailedEvent) EventName() string { return "checkout.failed" }

func NewCheckoutFailedEvent(t *Transaction, reason string) CheckoutFailedEvent {
	return CheckoutFailedEvent{
		TransactionID: t.ID,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
}
