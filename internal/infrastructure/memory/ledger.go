package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JoshDFN/ic-commerce/internal/domain/cart"
	"github.com/JoshDFN/ic-commerce/internal/domain/gateway"
	"github.com/JoshDFN/ic-commerce/internal/domain/payment"
)

const (
	maxLineQuantity = 999

	shippingFee           = 799
	freeShippingThreshold = 10000

	welcomeCouponCode = "WELCOME10"
	welcomeCouponRate = 10 // percent off item total

	invalidCouponMessage = "Invalid or inactive promotion code"
)

// Product is a purchasable variant seeded into the demo catalog.
type Product struct {
	VariantID   string
	Name        string
	Slug        string
	Price       int64
	Currency    string
	ImageURL    string
	InStock     int
}

type orderRecord struct {
	cart      cart.Cart
	email     string
	paid      bool
	paymentID string
	intentID  string
}

// Ledger is an in-process order ledger implementing the gateway contract for
// demo deployments and tests. It keeps the same observable behavior as the
// remote backend: implicit cart creation, merge-by-variant adds, wholesale
// authoritative responses, and idempotent payment settlement.
type Ledger struct {
	mu             sync.Mutex
	catalog        map[string]Product
	byToken        map[string]*orderRecord
	byIntent       map[string]*orderRecord
	orderSeq       int
	intentSeq      int
	publishableKey string
	now            func() time.Time
}

func NewLedger(products []Product, publishableKey string) *Ledger {
	catalog := make(map[string]Product, len(products))
	for _, p := range products {
		catalog[p.VariantID] = p
	}
	return &Ledger{
		catalog:        catalog,
		byToken:        make(map[string]*orderRecord),
		byIntent:       make(map[string]*orderRecord),
		publishableKey: publishableKey,
		now:            time.Now,
	}
}

var _ gateway.Client = (*Ledger)(nil)

func (l *Ledger) GetCart(_ context.Context, sessionToken string) (*cart.Cart, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.activeRecordLocked(sessionToken)
	if !ok {
		return nil, gateway.ErrCartNotFound
	}
	return rec.cart.Clone(), nil
}

func (l *Ledger) AddToCart(_ context.Context, variantID string, quantity int, sessionToken string) (*cart.Cart, error) {
	if quantity <= 0 {
		return nil, gateway.NewBusinessError("Quantity must be greater than zero")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	product, ok := l.catalog[variantID]
	if !ok {
		return nil, gateway.NewBusinessError("Product not found")
	}

	rec := l.ensureCartLocked(sessionToken)

	merged := false
	for i := range rec.cart.LineItems {
		li := &rec.cart.LineItems[i]
		if li.VariantID == variantID {
			if li.Quantity+quantity > maxLineQuantity {
				return nil, gateway.NewBusinessError("Quantity limit exceeded")
			}
			li.Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		if quantity > maxLineQuantity {
			return nil, gateway.NewBusinessError("Quantity limit exceeded")
		}
		rec.cart.LineItems = append(rec.cart.LineItems, cart.LineItem{
			ID:          fmt.Sprintf("li-%s-%d", variantID, len(rec.cart.LineItems)+1),
			VariantID:   variantID,
			Quantity:    quantity,
			Price:       product.Price,
			Currency:    product.Currency,
			ProductName: product.Name,
			ProductSlug: product.Slug,
			ImageURL:    product.ImageURL,
		})
	}

	l.recomputeLocked(rec)
	return rec.cart.Clone(), nil
}

func (l *Ledger) UpdateLineItem(_ context.Context, lineItemID string, quantity int, sessionToken string) (*cart.Cart, error) {
	if quantity <= 0 {
		return l.RemoveFromCart(context.Background(), lineItemID, sessionToken)
	}
	if quantity > maxLineQuantity {
		return nil, gateway.NewBusinessError("Quantity limit exceeded")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.activeRecordLocked(sessionToken)
	if !ok {
		return nil, gateway.ErrCartNotFound
	}
	for i := range rec.cart.LineItems {
		if rec.cart.LineItems[i].ID == lineItemID {
			rec.cart.LineItems[i].Quantity = quantity
			l.recomputeLocked(rec)
			return rec.cart.Clone(), nil
		}
	}
	return nil, gateway.NewBusinessError("Line item not found")
}

func (l *Ledger) RemoveFromCart(_ context.Context, lineItemID string, sessionToken string) (*cart.Cart, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.activeRecordLocked(sessionToken)
	if !ok {
		return nil, gateway.ErrCartNotFound
	}
	for i := range rec.cart.LineItems {
		if rec.cart.LineItems[i].ID == lineItemID {
			rec.cart.LineItems = append(rec.cart.LineItems[:i], rec.cart.LineItems[i+1:]...)
			l.recomputeLocked(rec)
			return rec.cart.Clone(), nil
		}
	}
	return nil, gateway.NewBusinessError("Line item not found")
}

func (l *Ledger) ApplyCoupon(_ context.Context, code string, sessionToken string) (*cart.Cart, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.activeRecordLocked(sessionToken)
	if !ok {
		return nil, gateway.ErrCartNotFound
	}
	if code != welcomeCouponCode {
		return nil, gateway.NewBusinessError(invalidCouponMessage)
	}

	for _, a := range rec.cart.Adjustments {
		if a.Label == welcomeCouponCode {
			// Already applied; the recompute keeps the amount current.
			l.recomputeLocked(rec)
			return rec.cart.Clone(), nil
		}
	}
	rec.cart.Adjustments = append(rec.cart.Adjustments, cart.Adjustment{
		ID:    fmt.Sprintf("adj-%s", welcomeCouponCode),
		Label: welcomeCouponCode,
	})
	l.recomputeLocked(rec)
	return rec.cart.Clone(), nil
}

func (l *Ledger) GetPaymentMethods(context.Context) ([]payment.Method, error) {
	return []payment.Method{
		{
			ID:             "pm-stripe",
			Name:           "Credit Card",
			Type:           payment.MethodTypeStripe,
			Active:         true,
			PublishableKey: l.publishableKey,
		},
	}, nil
}

func (l *Ledger) CreatePaymentIntent(_ context.Context, amount int64) (payment.Handle, error) {
	if amount <= 0 {
		return "", gateway.NewBusinessError("Amount must be greater than zero")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.intentSeq++
	intentID := fmt.Sprintf("pi_demo_%06d", l.intentSeq)
	return payment.Handle(fmt.Sprintf("%s_secret_%06d", intentID, l.intentSeq)), nil
}

func (l *Ledger) SetOrderAddress(_ context.Context, input gateway.AddressInput, sessionToken string) (*cart.Cart, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.activeRecordLocked(sessionToken)
	if !ok {
		return nil, gateway.ErrCartNotFound
	}
	if input.Email == "" {
		return nil, gateway.NewBusinessError("Email is required")
	}
	rec.email = input.Email
	if rec.cart.State == cart.StateCart {
		rec.cart.State = cart.StateDelivery
	}
	l.recomputeLocked(rec)
	return rec.cart.Clone(), nil
}

func (l *Ledger) RecordPayment(_ context.Context, orderID, processorReference string, status payment.Status, sessionToken string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.byToken[sessionToken]
	if !ok {
		return gateway.ErrCartNotFound
	}
	if orderID != "" && rec.cart.ID != orderID {
		return gateway.NewBusinessError("Order not found")
	}
	if status != payment.StatusSucceeded {
		return nil
	}
	if rec.paid {
		// already_paid: settlement may arrive from both the client and
		// the webhook.
		return nil
	}
	rec.paid = true
	rec.paymentID = processorReference
	rec.intentID = payment.Handle(processorReference).IntentID()
	l.byIntent[rec.intentID] = rec
	return nil
}

func (l *Ledger) CompleteCheckout(_ context.Context, sessionToken string) (*cart.Cart, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.byToken[sessionToken]
	if !ok {
		return nil, gateway.ErrCartNotFound
	}
	if rec.cart.State == cart.StateComplete {
		return rec.cart.Clone(), nil
	}
	if rec.cart.State != cart.StateDelivery && rec.cart.State != cart.StatePayment {
		return nil, gateway.NewBusinessError("Order is not ready for completion")
	}
	rec.cart.State = cart.StateComplete
	rec.cart.UpdatedAt = l.now().UTC()
	return rec.cart.Clone(), nil
}

// SettleIntent marks the order behind a payment intent paid and completes it.
// This is the webhook settlement path; it is idempotent with RecordPayment
// and CompleteCheckout arriving from the client.
func (l *Ledger) SettleIntent(intentID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.byIntent[intentID]
	if !ok {
		return false
	}
	rec.paid = true
	if rec.cart.State != cart.StateComplete {
		rec.cart.State = cart.StateComplete
		rec.cart.UpdatedAt = l.now().UTC()
	}
	return true
}

// Paid reports settlement state for an order; used by tests and admin views.
func (l *Ledger) Paid(sessionToken string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.byToken[sessionToken]
	return ok && rec.paid
}

func (l *Ledger) ensureCartLocked(sessionToken string) *orderRecord {
	if rec, ok := l.activeRecordLocked(sessionToken); ok {
		return rec
	}
	l.orderSeq++
	rec := &orderRecord{
		cart: cart.Cart{
			ID:     fmt.Sprintf("order-%06d", l.orderSeq),
			Number: fmt.Sprintf("ORD-%06d", l.orderSeq),
			State:  cart.StateCart,
		},
	}
	l.byToken[sessionToken] = rec
	return rec
}

// activeRecordLocked resolves the session's open order. A settled or canceled
// order no longer answers to its token: the session starts fresh, and the
// closed order stays reachable only through its payment intent. Completion
// itself still finds the binding, which keeps CompleteCheckout idempotent.
func (l *Ledger) activeRecordLocked(sessionToken string) (*orderRecord, bool) {
	rec, ok := l.byToken[sessionToken]
	if !ok || rec.cart.State == cart.StateComplete || rec.cart.State == cart.StateCanceled {
		return nil, false
	}
	return rec, true
}

// recomputeLocked rebuilds every derived total from the line items and
// adjustments, the way the backend recomputes on each mutation.
func (l *Ledger) recomputeLocked(rec *orderRecord) {
	var itemTotal int64
	for _, li := range rec.cart.LineItems {
		itemTotal += li.Price * int64(li.Quantity)
	}
	rec.cart.ItemTotal = itemTotal

	if itemTotal >= freeShippingThreshold || itemTotal == 0 {
		rec.cart.ShipmentTotal = 0
	} else {
		rec.cart.ShipmentTotal = shippingFee
	}

	var promoTotal int64
	for i := range rec.cart.Adjustments {
		adj := &rec.cart.Adjustments[i]
		if adj.Label == welcomeCouponCode {
			adj.Amount = -(itemTotal * welcomeCouponRate / 100)
		}
		promoTotal += adj.Amount
	}
	rec.cart.PromoTotal = promoTotal
	rec.cart.AdjustmentTotal = promoTotal
	rec.cart.TaxTotal = 0
	rec.cart.Total = itemTotal + rec.cart.ShipmentTotal + promoTotal
	rec.cart.UpdatedAt = l.now().UTC()
}
