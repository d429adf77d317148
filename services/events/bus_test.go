package events

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish(550)

	for name, ch := range map[string]chan MovieChanged{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.MovieID != 550 {
				t.Errorf("subscriber %s: expected movie 550, got %d", name, ev.MovieID)
			}
			if ev.EventID == "" {
				t.Errorf("subscriber %s: expected an event id", name)
			}
			if ev.OccurredAt.IsZero() {
				t.Errorf("subscriber %s: expected a timestamp", name)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s: no event received", name)
		}
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	// Fill the buffer and keep publishing; a stalled subscriber must not
	// block the publisher.
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(ch)*3; i++ {
			bus.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a stalled subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("expected a closed channel after Unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel
	bus.Publish(550)

	// Unsubscribing twice is harmless
	bus.Unsubscribe(ch)
}
