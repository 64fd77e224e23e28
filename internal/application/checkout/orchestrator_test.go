package checkout

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoshDFN/ic-commerce/internal/application/auth"
	cartapp "github.com/JoshDFN/ic-commerce/internal/application/cart"
	sessionapp "github.com/JoshDFN/ic-commerce/internal/application/session"
	domcart "github.com/JoshDFN/ic-commerce/internal/domain/cart"
	domain "github.com/JoshDFN/ic-commerce/internal/domain/checkout"
	"github.com/JoshDFN/ic-commerce/internal/domain/gateway"
	"github.com/JoshDFN/ic-commerce/internal/domain/payment"
	"github.com/JoshDFN/ic-commerce/internal/domain/session"
)

type fakeLedger struct {
	cart    *domcart.Cart
	methods []payment.Method

	addressErr  error
	recordErr   error
	completeErr error
	methodsErr  error
	intentErr   error

	addressCalls  int
	recordCalls   int
	completeCalls int
}

func (f *fakeLedger) GetCart(context.Context, string) (*domcart.Cart, error) {
	if f.cart == nil {
		return nil, gateway.ErrCartNotFound
	}
	return f.cart.Clone(), nil
}

func (f *fakeLedger) AddToCart(context.Context, string, int, string) (*domcart.Cart, error) {
	return f.cart.Clone(), nil
}

func (f *fakeLedger) UpdateLineItem(context.Context, string, int, string) (*domcart.Cart, error) {
	return f.cart.Clone(), nil
}

func (f *fakeLedger) RemoveFromCart(context.Context, string, string) (*domcart.Cart, error) {
	return f.cart.Clone(), nil
}

func (f *fakeLedger) ApplyCoupon(context.Context, string, string) (*domcart.Cart, error) {
	return f.cart.Clone(), nil
}

func (f *fakeLedger) GetPaymentMethods(context.Context) ([]payment.Method, error) {
	return f.methods, f.methodsErr
}

func (f *fakeLedger) CreatePaymentIntent(_ context.Context, amount int64) (payment.Handle, error) {
	if f.intentErr != nil {
		return "", f.intentErr
	}
	return payment.Handle(fmt.Sprintf("pi_%d_secret_x", amount)), nil
}

func (f *fakeLedger) SetOrderAddress(context.Context, gateway.AddressInput, string) (*domcart.Cart, error) {
	f.addressCalls++
	if f.addressErr != nil {
		return nil, f.addressErr
	}
	c := f.cart.Clone()
	c.State = domcart.StateDelivery
	return c, nil
}

func (f *fakeLedger) RecordPayment(context.Context, string, string, payment.Status, string) error {
	f.recordCalls++
	return f.recordErr
}

func (f *fakeLedger) CompleteCheckout(context.Context, string) (*domcart.Cart, error) {
	f.completeCalls++
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	c := f.cart.Clone()
	c.State = domcart.StateComplete
	return c, nil
}

type scriptedProcessor struct {
	declines int
	calls    int
}

func (p *scriptedProcessor) Confirm(_ context.Context, handle payment.Handle, _ payment.BillingDetails) (payment.Confirmation, error) {
	p.calls++
	if p.calls <= p.declines {
		return payment.Confirmation{}, fmt.Errorf("%w: card was declined", payment.ErrDeclined)
	}
	return payment.Confirmation{
		Reference: handle.IntentID(),
		Status:    payment.StatusSucceeded,
	}, nil
}

type memStore struct {
	token session.Token
	set   bool
}

func (s *memStore) Load(context.Context) (session.Token, error) {
	if !s.set {
		return session.Token{}, session.ErrNotFound
	}
	return s.token, nil
}
func (s *memStore) Save(_ context.Context, t session.Token) error {
	s.token, s.set = t, true
	return nil
}
func (s *memStore) Clear(context.Context) error {
	s.token, s.set = session.Token{}, false
	return nil
}

type seqIDGen struct{ n int }

func (g *seqIDGen) NewID() string {
	g.n++
	return fmt.Sprintf("id-%d", g.n)
}

func stripeMethod() payment.Method {
	return payment.Method{
		ID:             "pm-1",
		Name:           "Credit Card",
		Type:           payment.MethodTypeStripe,
		Active:         true,
		PublishableKey: "pk_test_x",
	}
}

func ledgerCart(itemTotal int64) *domcart.Cart {
	return &domcart.Cart{
		ID:        "order-1",
		Number:    "ORD-000001",
		State:     domcart.StateCart,
		ItemTotal: itemTotal,
		Total:     itemTotal,
		LineItems: []domcart.LineItem{
			{ID: "li-1", VariantID: "v1", Quantity: 1, Price: itemTotal},
		},
	}
}

func validForm() domain.Form {
	return domain.Form{
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Address: "123 Main Street",
		City:    "Springfield",
		Zip:     "62704",
	}
}

func newTestOrchestrator(gw gateway.Client, proc payment.Processor) *Orchestrator {
	resolver := auth.NewAnonymousResolver()
	sessions := sessionapp.NewService(&memStore{}, &seqIDGen{}, nil)
	carts := cartapp.NewService(gw, sessions, resolver, nil, nil)
	return NewOrchestrator(
		gw, proc, carts, sessions, resolver, nil, &seqIDGen{},
		ShippingPolicy{Fee: 799, FreeThreshold: 10000},
		nil,
	)
}

func TestBegin_EmptyCartRefused(t *testing.T) {
	gw := &fakeLedger{methods: []payment.Method{stripeMethod()}}
	o := newTestOrchestrator(gw, &scriptedProcessor{})

	_, err := o.Begin(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestBegin_ShippingEstimate(t *testing.T) {
	gw := &fakeLedger{cart: ledgerCart(4800), methods: []payment.Method{stripeMethod()}}
	o := newTestOrchestrator(gw, &scriptedProcessor{})

	result, err := o.Begin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(799), result.ShippingTotal)
	assert.Equal(t, int64(5599), result.EstimatedTotal)
	assert.Equal(t, "pk_test_x", result.PublishableKey)
	assert.NotEmpty(t, result.PaymentHandle)

	status, err := o.Status(result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingUserConfirmation, status)
}

func TestBegin_FreeShippingAtThreshold(t *testing.T) {
	gw := &fakeLedger{cart: ledgerCart(10000), methods: []payment.Method{stripeMethod()}}
	o := newTestOrchestrator(gw, &scriptedProcessor{})

	result, err := o.Begin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.ShippingTotal)
	assert.Equal(t, int64(10000), result.EstimatedTotal)
}

func TestBegin_NoActiveCardMethodIsFatal(t *testing.T) {
	inactive := stripeMethod()
	inactive.Active = false
	gw := &fakeLedger{cart: ledgerCart(4800), methods: []payment.Method{inactive}}
	o := newTestOrchestrator(gw, &scriptedProcessor{})

	_, err := o.Begin(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSubmit_InvalidFormNeverReachesProcessor(t *testing.T) {
	gw := &fakeLedger{cart: ledgerCart(4800), methods: []payment.Method{stripeMethod()}}
	proc := &scriptedProcessor{}
	o := newTestOrchestrator(gw, proc)

	begun, err := o.Begin(context.Background())
	require.NoError(t, err)

	form := validForm()
	form.Zip = "ABCDE"
	_, err = o.Submit(context.Background(), begun.TransactionID, form)

	var fieldErrs domain.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Contains(t, fieldErrs, "Zip")
	assert.Zero(t, proc.calls, "validation failures cost no network call")

	status, err := o.Status(begun.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingUserConfirmation, status)
}

func TestSubmit_UnknownTransaction(t *testing.T) {
	gw := &fakeLedger{cart: ledgerCart(4800), methods: []payment.Method{stripeMethod()}}
	o := newTestOrchestrator(gw, &scriptedProcessor{})

	_, err := o.Submit(context.Background(), "nope", validForm())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestSubmit_DeclineThenRetrySucceeds(t *testing.T) {
	gw := &fakeLedger{cart: ledgerCart(4800), methods: []payment.Method{stripeMethod()}}
	proc := &scriptedProcessor{declines: 1}
	o := newTestOrchestrator(gw, proc)

	begun, err := o.Begin(context.Background())
	require.NoError(t, err)

	_, err = o.Submit(context.Background(), begun.TransactionID, validForm())
	assert.ErrorIs(t, err, ErrDeclined)

	status, err := o.Status(begun.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingUserConfirmation, status, "decline is retryable in place")
	assert.Zero(t, gw.recordCalls, "nothing is recorded for a declined charge")

	conf, err := o.Submit(context.Background(), begun.TransactionID, validForm())
	require.NoError(t, err)
	assert.Equal(t, "ORD-000001", conf.OrderNumber)
	assert.Equal(t, int64(5599), conf.ChargedTotal)
}

func TestSubmit_LedgerFailuresDoNotFailCompletion(t *testing.T) {
	gw := &fakeLedger{
		cart:        ledgerCart(4800),
		methods:     []payment.Method{stripeMethod()},
		addressErr:  gateway.Unavailable(assert.AnError),
		recordErr:   gateway.Unavailable(assert.AnError),
		completeErr: gateway.Unavailable(assert.AnError),
	}
	o := newTestOrchestrator(gw, &scriptedProcessor{})

	begun, err := o.Begin(context.Background())
	require.NoError(t, err)

	conf, err := o.Submit(context.Background(), begun.TransactionID, validForm())
	require.NoError(t, err, "confirmed charge completes regardless of ledger faults")
	assert.Equal(t, "ORD-000001", conf.OrderNumber)
	assert.Equal(t, "jane@example.com", conf.Email)

	// All three bookkeeping calls were attempted.
	assert.Equal(t, 1, gw.addressCalls)
	assert.Equal(t, 1, gw.recordCalls)
	assert.Equal(t, 1, gw.completeCalls)

	// The transaction is closed; a replay is not possible.
	_, err = o.Submit(context.Background(), begun.TransactionID, validForm())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestAbandon(t *testing.T) {
	gw := &fakeLedger{cart: ledgerCart(4800), methods: []payment.Method{stripeMethod()}}
	o := newTestOrchestrator(gw, &scriptedProcessor{})

	begun, err := o.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, o.Abandon(context.Background(), begun.TransactionID))
	_, err = o.Status(begun.TransactionID)
	assert.ErrorIs(t, err, ErrTransactionNotFound)

	assert.ErrorIs(t, o.Abandon(context.Background(), begun.TransactionID), ErrTransactionNotFound)
}
