package outbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domoutbox "github.com/JoshDFN/ic-commerce/internal/domain/outbox"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	var mu sync.Mutex
	got := []string{}
	done := make(chan struct{}, 2)

	bus.Subscribe("cart.replaced", func(_ context.Context, e domoutbox.Event) error {
		mu.Lock()
		got = append(got, e.EventName())
		mu.Unlock()
		done <- struct{}{}
		return nil
	})
	bus.Subscribe("cart.replaced", func(context.Context, domoutbox.Event) error {
		done <- struct{}{}
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "cart.replaced"}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler not invoked")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"cart.replaced"}, got)
}

func TestBus_PanickingHandlerDoesNotStopDelivery(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	done := make(chan struct{}, 1)
	bus.Subscribe("checkout.completed", func(context.Context, domoutbox.Event) error {
		panic("boom")
	})
	bus.Subscribe("checkout.completed", func(context.Context, domoutbox.Event) error {
		done <- struct{}{}
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "checkout.completed"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("surviving handler not invoked")
	}
}

func TestBus_UnsubscribedEventIsDropped(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	assert.NoError(t, bus.Publish(context.Background(), testEvent{name: "nobody.cares"}))
}
