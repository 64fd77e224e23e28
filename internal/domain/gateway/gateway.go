package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/JoshDFN/ic-commerce/internal/domain/cart"
	"github.com/JoshDFN/ic-commerce/internal/domain/payment"
)

var (
	// ErrCartNotFound is the ledger's "no cart for this session" answer.
	// For a guest this is an ordinary outcome, not a failure.
	ErrCartNotFound = errors.New("gateway: cart not found")
	// ErrUnavailable normalizes every transport-layer fault (unreachable,
	// malformed response). Always retryable; never corrupts cached state.
	ErrUnavailable = errors.New("gateway: unavailable")
)

// BusinessError carries a ledger rejection verbatim (insufficient stock,
// invalid coupon, invalid address). Surfaced to the user as-is.
type BusinessError struct {
	Message string
}

func (e *BusinessError) Error() string { return e.Message }

// NewBusinessError wraps a ledger rejection message.
func NewBusinessError(msg string) error {
	return &BusinessError{Message: msg}
}

// IsBusiness reports whether err is a ledger business rejection.
func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

// Unavailable wraps a transport fault into the normalized failure shape.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// AddressInput is the contact and shipping (optionally billing) information
// persisted on the order before completion.
type AddressInput struct {
	Email                 string
	Shipping              Address
	Billing               *Address
	UseShippingForBilling bool
}

type Address struct {
	FirstName   string
	LastName    string
	Address1    string
	Address2    string
	City        string
	StateName   string
	Zipcode     string
	CountryCode string
	Phone       string
}

// Client is the only surface the rest of the system sees of the remote order
// ledger. Every session-scoped call accepts an optional token; an empty token
// means an authenticated identity is in effect and the gateway attributes the
// cart itself.
type Client interface {
	GetCart(ctx context.Context, sessionToken string) (*cart.Cart, error)
	AddToCart(ctx context.Context, variantID string, quantity int, sessionToken string) (*cart.Cart, error)
	UpdateLineItem(ctx context.Context, lineItemID string, quantity int, sessionToken string) (*cart.Cart, error)
	RemoveFromCart(ctx context.Context, lineItemID string, sessionToken string) (*cart.Cart, error)
	ApplyCoupon(ctx context.Context, code string, sessionToken string) (*cart.Cart, error)

	GetPaymentMethods(ctx context.Context) ([]payment.Method, error)
	CreatePaymentIntent(ctx context.Context, amount int64) (payment.Handle, error)

	SetOrderAddress(ctx context.Context, input AddressInput, sessionToken string) (*cart.Cart, error)
	RecordPayment(ctx context.Context, orderID, processorReference string, status payment.Status, sessionToken string) error
	CompleteCheckout(ctx context.Context, sessionToken string) (*cart.Cart, error)
}
