// Package events fans ledger notifications out to live subscribers.
package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fairtrace/provenance/pkg/ledger"
)

const DefaultBufferSize = 64

var _ ledger.Notifier = (*Broker)(nil)

// Filter selects the events a subscriber receives. Zero fields match
// everything.
type Filter struct {
	Types  []ledger.EventType
	Handle ledger.Handle
}

func (f Filter) match(ev ledger.Event) bool {
	if f.Handle != "" && f.Handle != ev.Handle {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == ev.Type {
			return true
		}
	}
	return false
}

type subscriber struct {
	ch     chan ledger.Event
	filter Filter
}

// Broker is a ledger.Notifier that delivers each event to every matching
// subscriber. Delivery never blocks the ledger: a subscriber whose buffer is
// full misses the event.
type Broker struct {
	mu         sync.RWMutex
	subs       map[*subscriber]struct{}
	closed     bool
	bufferSize int
	dropped    atomic.Uint64
}

// NewBroker returns a broker whose subscriptions buffer bufferSize events.
// Non-positive sizes use DefaultBufferSize.
func NewBroker(bufferSize int) *Broker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broker{
		subs:       make(map[*subscriber]struct{}),
		bufferSize: bufferSize,
	}
}

// Subscribe registers a subscriber. The returned channel is closed when ctx
// ends or the broker is closed.
func (b *Broker) Subscribe(ctx context.Context, f Filter) <-chan ledger.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan ledger.Event)
		close(ch)
		return ch
	}

	sub := &subscriber{ch: make(chan ledger.Event, b.bufferSize), filter: f}
	b.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub.ch)
		}
	}()
	return sub.ch
}

// Notify publishes ev.
func (b *Broker) Notify(_ context.Context, ev ledger.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		if !sub.filter.match(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Close ends every subscription. Later Notify calls are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	clear(b.subs)
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber was
// not keeping up.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}
