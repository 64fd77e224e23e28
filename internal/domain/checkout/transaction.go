package checkout

import (
	"errors"
	"time"

	"github.com/JoshDFN/ic-commerce/internal/domain/cart"
	"github.com/JoshDFN/ic-commerce/internal/domain/payment"
)

var (
	ErrEmptyCart              = errors.New("checkout: cart is empty")
	ErrInvalidStateTransition = errors.New("checkout: invalid state transition")
)

type Status string

const (
	StatusInit                     Status = "init"
	StatusAwaitingPaymentSetup     Status = "awaiting_payment_setup"
	StatusAwaitingUserConfirmation Status = "awaiting_user_confirmation"
	StatusConfirmingPayment        Status = "confirming_payment"
	StatusRecordingOrder           Status = "recording_order"
	StatusCompleted                Status = "completed"
	StatusFailed                   Status = "failed"
)

// Transaction is the client-local, ephemeral record of one checkout attempt.
// It is never persisted: abandoning it restarts checkout from the cart.
type Transaction struct {
	ID             string
	Cart           *cart.Cart
	EstimatedTotal int64
	PublishableKey string
	Handle         payment.Handle
	Form           Form
	ProcessorRef   string
	FailureReason  string
	StartedAt      time.Time

	state transactionState
}

// Begin snapshots the cart and opens a transaction in the payment-setup
// state. An empty cart refuses to start; the caller returns the shopper to
// the cart view.
func Begin(id string, c *cart.Cart, estimatedTotal int64) (*Transaction, error) {
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	return &Transaction{
		ID:             id,
		Cart:           c.Clone(),
		EstimatedTotal: estimatedTotal,
		StartedAt:      time.Now().UTC(),
		state:          awaitingPaymentSetupState{},
	}, nil
}

func (t *Transaction) Status() Status {
	if t.state == nil {
		return StatusInit
	}
	return t.state.Status()
}

// PaymentPrepared records the payment handle and publishable credential
// obtained from the gateway.
func (t *Transaction) PaymentPrepared(handle payment.Handle, publishableKey string) error {
	next, err := t.state.OnPaymentPrepared(t)
	if err != nil {
		return err
	}
	t.Handle = handle
	t.PublishableKey = publishableKey
	t.state = next
	return nil
}

// DetailsSubmitted stores a locally validated form and moves into payment
// confirmation. The form must already have passed Validate.
func (t *Transaction) DetailsSubmitted(form Form) error {
	next, err := t.state.OnDetailsSubmitted(t)
	if err != nil {
		return err
	}
	t.Form = form
	t.state = next
	return nil
}

// ProcessorSucceeded records the confirmed charge reference and moves into
// ledger bookkeeping.
func (t *Transaction) ProcessorSucceeded(reference string) error {
	next, err := t.state.OnProcessorSucceeded(t)
	if err != nil {
		return err
	}
	t.ProcessorRef = reference
	t.state = next
	return nil
}

// ProcessorDeclined returns the transaction to the confirmation step so the
// shopper can retry without re-entering anything.
func (t *Transaction) ProcessorDeclined(reason string) error {
	next, err := t.state.OnProcessorDeclined(t, reason)
	if err != nil {
		return err
	}
	t.state = next
	return nil
}

// Recorded marks ledger bookkeeping finished, successfully or not. Once the
// processor has confirmed, this is the only way forward.
func (t *Transaction) Recorded() error {
	next, err := t.state.OnRecorded(t)
	if err != nil {
		return err
	}
	t.state = next
	return nil
}

// Fail terminates the transaction. Reachable from any non-terminal state.
func (t *Transaction) Fail(reason string) error {
	next, err := t.state.OnFailed(t, reason)
	if err != nil {
		return err
	}
	t.state = next
	return nil
}

// Confirmation is the payload handed back for display on completion.
type Confirmation struct {
	OrderNumber  string
	ChargedTotal int64
	Email        string
}

func (t *Transaction) Confirmation() Confirmation {
	number := ""
	if t.Cart != nil {
		number = t.Cart.Number
	}
	return Confirmation{
		OrderNumber:  number,
		ChargedTotal: t.EstimatedTotal,
		Email:        t.Form.Email,
	}
}
