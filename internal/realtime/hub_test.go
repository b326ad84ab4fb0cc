package realtime

import (
	"context"
	"testing"
	"time"
)

func TestHub_SubscribeBroadcastCancel(t *testing.T) {
	h := NewHub()

	ch1, cancel1 := h.Subscribe()
	ch2, cancel2 := h.Subscribe()
	defer cancel2()

	if h.Len() != 2 {
		t.Fatalf("Len = %d, want 2", h.Len())
	}

	ev := Event{Type: EventLessonUpdated, LessonID: "l-1", Status: "generated"}
	h.Broadcast(ev)

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case got := <-ch:
			if got != ev {
				t.Fatalf("event mismatch: %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber did not receive event")
		}
	}

	cancel1()
	if h.Len() != 1 {
		t.Fatalf("Len after cancel = %d, want 1", h.Len())
	}
	// Canceled channel must be closed.
	if _, open := <-ch1; open {
		t.Fatalf("canceled channel should be closed")
	}
	// Double cancel is a no-op.
	cancel1()
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe()
	defer cancel()

	// Overflow the buffer without reading.
	for i := 0; i < subscriberBuffer+1; i++ {
		h.Broadcast(Event{Type: EventLessonCreated, LessonID: "x"})
	}

	if h.Len() != 0 {
		t.Fatalf("slow subscriber should have been dropped, Len = %d", h.Len())
	}

	// Drain: buffered events then close.
	n := 0
	for range ch {
		n++
	}
	if n != subscriberBuffer {
		t.Fatalf("expected %d buffered events, got %d", subscriberBuffer, n)
	}
}

func TestLocalBus_PublishReachesHub(t *testing.T) {
	h := NewHub()
	bus := NewLocalBus(h)

	if err := bus.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ch, cancel := h.Subscribe()
	defer cancel()

	ev := Event{Type: EventLessonUpdated, LessonID: "l-9", Status: "failed"}
	if err := bus.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-ch:
		if got != ev {
			t.Fatalf("event mismatch: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("event did not reach the hub")
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
