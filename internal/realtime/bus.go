package realtime

import "context"

// Bus carries feed events between process instances. Publish sends an event
// toward every instance (including the local one); Start begins forwarding
// received events to the local hub and returns once the subscription is
// established.
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	Start(ctx context.Context) error
	Close() error
}

// localBus is the single-instance Bus: Publish goes straight to the hub.
type localBus struct {
	hub *Hub
}

// NewLocalBus returns a Bus that loops events back to the given hub without
// any external broker. Used when REDIS_ADDR is not configured.
func NewLocalBus(hub *Hub) Bus {
	return &localBus{hub: hub}
}

func (b *localBus) Publish(_ context.Context, ev Event) error {
	b.hub.Broadcast(ev)
	return nil
}

func (b *localBus) Start(context.Context) error { return nil }

func (b *localBus) Close() error { return nil }
