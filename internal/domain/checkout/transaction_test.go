package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoshDFN/ic-commerce/internal/domain/cart"
)

func testCart() *cart.Cart {
	return &cart.Cart{
		ID:        "order-1",
		Number:    "ORD-000001",
		State:     cart.StateCart,
		ItemTotal: 4800,
		Total:     5599,
		LineItems: []cart.LineItem{
			{ID: "li-1", VariantID: "var-1", Quantity: 2, Price: 2400},
		},
	}
}

func TestBegin_EmptyCartRefused(t *testing.T) {
	_, err := Begin("txn-1", &cart.Cart{}, 0)
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = Begin("txn-1", nil, 0)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestBegin_SnapshotsCart(t *testing.T) {
	c := testCart()
	txn, err := Begin("txn-1", c, 5599)
	require.NoError(t, err)

	assert.Equal(t, StatusAwaitingPaymentSetup, txn.Status())
	assert.Equal(t, int64(5599), txn.EstimatedTotal)

	// Later cart mutations must not leak into the transaction snapshot.
	c.LineItems[0].Quantity = 99
	assert.Equal(t, 2, txn.Cart.LineItems[0].Quantity)
}

func TestTransaction_HappyPath(t *testing.T) {
	txn, err := Begin("txn-1", testCart(), 5599)
	require.NoError(t, err)

	require.NoError(t, txn.PaymentPrepared("pi_1_secret_abc", "pk_test_x"))
	assert.Equal(t, StatusAwaitingUserConfirmation, txn.Status())

	require.NoError(t, txn.DetailsSubmitted(validForm()))
	assert.Equal(t, StatusConfirmingPayment, txn.Status())

	require.NoError(t, txn.ProcessorSucceeded("pi_1"))
	assert.Equal(t, StatusRecordingOrder, txn.Status())

	require.NoError(t, txn.Recorded())
	assert.Equal(t, StatusCompleted, txn.Status())

	conf := txn.Confirmation()
	assert.Equal(t, "ORD-000001", conf.OrderNumber)
	assert.Equal(t, int64(5599), conf.ChargedTotal)
	assert.Equal(t, "jane@example.com", conf.Email)
}

func TestTransaction_DeclineIsRetryableInPlace(t *testing.T) {
	txn, err := Begin("txn-1", testCart(), 5599)
	require.NoError(t, err)
	require.NoError(t, txn.PaymentPrepared("pi_1_secret_abc", "pk_test_x"))

	form := validForm()
	require.NoError(t, txn.DetailsSubmitted(form))
	require.NoError(t, txn.ProcessorDeclined("card was declined"))

	assert.Equal(t, StatusAwaitingUserConfirmation, txn.Status())
	assert.Equal(t, "card was declined", txn.FailureReason)
	assert.Equal(t, form, txn.Form, "entered details survive a decline")

	// Second attempt goes straight through.
	require.NoError(t, txn.DetailsSubmitted(form))
	assert.Empty(t, txn.FailureReason)
	require.NoError(t, txn.ProcessorSucceeded("pi_1"))
	require.NoError(t, txn.Recorded())
	assert.Equal(t, StatusCompleted, txn.Status())
}

func TestTransaction_NoFailureAfterProcessorSuccess(t *testing.T) {
	txn, err := Begin("txn-1", testCart(), 5599)
	require.NoError(t, err)
	require.NoError(t, txn.PaymentPrepared("pi_1_secret_abc", "pk_test_x"))
	require.NoError(t, txn.DetailsSubmitted(validForm()))
	require.NoError(t, txn.ProcessorSucceeded("pi_1"))

	// The charge is confirmed; bookkeeping problems cannot fail the
	// transaction.
	assert.ErrorIs(t, txn.Fail("ledger unreachable"), ErrInvalidStateTransition)
	assert.Equal(t, StatusRecordingOrder, txn.Status())

	require.NoError(t, txn.Recorded())
	assert.Equal(t, StatusCompleted, txn.Status())
	assert.ErrorIs(t, txn.Fail("too late"), ErrInvalidStateTransition)
}

func TestTransaction_OutOfOrderTransitionsRejected(t *testing.T) {
	txn, err := Begin("txn-1", testCart(), 5599)
	require.NoError(t, err)

	assert.ErrorIs(t, txn.DetailsSubmitted(validForm()), ErrInvalidStateTransition)
	assert.ErrorIs(t, txn.ProcessorSucceeded("pi_1"), ErrInvalidStateTransition)
	assert.ErrorIs(t, txn.Recorded(), ErrInvalidStateTransition)
	assert.Equal(t, StatusAwaitingPaymentSetup, txn.Status())
}

func TestTransaction_FailBeforeConfirmIsTerminal(t *testing.T) {
	txn, err := Begin("txn-1", testCart(), 5599)
	require.NoError(t, err)

	require.NoError(t, txn.Fail("payment not configured"))
	assert.Equal(t, StatusFailed, txn.Status())
	assert.Equal(t, "payment not configured", txn.FailureReason)

	assert.ErrorIs(t, txn.PaymentPrepared("pi", "pk"), ErrInvalidStateTransition)
}
