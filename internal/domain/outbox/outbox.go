package outbox

import "context"

// Event is any domain event with a name identifier, e.g. "cart.replaced".
type Event interface {
	EventName() string
}

// Handler processes a published event. Handlers observe; they never mutate
// the publisher's state.
type Handler func(ctx context.Context, e Event) error

// Publisher delivers events to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers for event names.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
