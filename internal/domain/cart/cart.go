package cart

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("cart: not found")
	ErrInvalidQuantity = errors.New("cart: quantity must be greater than zero")
	ErrEmptyCouponCode = errors.New("cart: coupon code is required")
)

// State mirrors the ledger's order lifecycle. The client never sets it; it
// only displays what the ledger returns.
type State string

const (
	StateCart     State = "cart"
	StateDelivery State = "delivery"
	StatePayment  State = "payment"
	StateComplete State = "complete"
	StateCanceled State = "canceled"
)

// Cart is the client-held projection of an in-progress order. The ledger owns
// the record; every field here is a cached copy of the last response.
type Cart struct {
	ID              string
	Number          string
	State           State
	ItemTotal       int64
	ShipmentTotal   int64
	AdjustmentTotal int64
	PromoTotal      int64
	TaxTotal        int64
	Total           int64
	LineItems       []LineItem
	Adjustments     []Adjustment
	UpdatedAt       time.Time
}

// LineItem is one variant/quantity entry. Price is the unit price snapshot
// taken by the ledger when the item was added, in cents.
type LineItem struct {
	ID          string
	VariantID   string
	Quantity    int
	Price       int64
	Currency    string
	ProductName string
	ProductSlug string
	ImageURL    string
}

// Adjustment is a ledger-computed addition or deduction. Included marks taxes
// already baked into displayed prices.
type Adjustment struct {
	ID       string
	Label    string
	Amount   int64
	Included bool
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.LineItems) == 0
}

func (c *Cart) ItemCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, li := range c.LineItems {
		n += li.Quantity
	}
	return n
}

// Clone returns a deep copy so callers can hand out snapshots without
// exposing the cached projection to mutation.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	clone := *c
	clone.LineItems = append([]LineItem(nil), c.LineItems...)
	clone.Adjustments = append([]Adjustment(nil), c.Adjustments...)
	return &clone
}
