package server

import (
	"sync"

	"shelfrank/internal/cycle"
)

const subscriberBuffer = 64

// Broadcaster fans cycle progress events out to any number of SSE
// subscribers. It implements cycle.Notifier. Slow subscribers drop events
// rather than stall the cycle.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan cycle.Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan cycle.Event]struct{})}
}

func (b *Broadcaster) Notify(e cycle.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe registers a new listener. The returned cancel func must be
// called when the listener goes away; after cancel the channel is closed.
func (b *Broadcaster) Subscribe() (<-chan cycle.Event, func()) {
	ch := make(chan cycle.Event, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount is used by the health endpoint.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
