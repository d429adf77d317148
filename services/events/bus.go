package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MovieChanged is published after every executed movie action, regardless of
// outcome, so UI layers holding an optimistic per-movie lock can release it.
type MovieChanged struct {
	EventID    string    `json:"eventId"`
	MovieID    int       `json:"movieId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Bus is a fire-and-forget in-process broadcaster. Delivery to a live
// subscriber is at-least-once; a subscriber that stopped draining its channel
// is skipped rather than blocking the publisher.
type Bus struct {
	mu   sync.Mutex
	subs map[chan MovieChanged]struct{}
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan MovieChanged]struct{})}
}

// Subscribe registers a new subscriber channel.
func (b *Bus) Subscribe() chan MovieChanged {
	ch := make(chan MovieChanged, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan MovieChanged) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish broadcasts a movie-changed event. It never blocks.
func (b *Bus) Publish(movieID int) {
	event := MovieChanged{
		EventID:    uuid.NewString(),
		MovieID:    movieID,
		OccurredAt: time.Now().UTC(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			// subscriber is not draining; drop rather than block
		}
	}
}
