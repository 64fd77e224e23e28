package cart

import "time"

// CartReplacedEvent is emitted whenever the cached projection is replaced by
// an authoritative ledger response. Consumers render the new cart; they never
// mutate it.
type CartReplacedEvent struct {
	Cart       *Cart
	OccurredAt time.Time
}

func (CartReplacedEvent) EventName() string { return "cart.replaced" }

func NewCartReplacedEvent(c *Cart) CartReplacedEvent {
	return CartReplacedEvent{
		Cart:       c.Clone(),
		OccurredAt: time.Now().UTC(),
	}
}

// CartMutationFailedEvent is emitted when a mutation is rejected; the cached
// cart is left untouched.
type CartMutationFailedEvent struct {
	Operation  string
	Reason     string
	OccurredAt time.Time
}

func (CartMutationFailedEvent) EventName() string { return "cart.mutation_failed" }

func NewCartMutationFailedEvent(op, reason string) CartMutationFailedEvent {
	return CartMutationFailedEvent{
		Operation:  op,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
