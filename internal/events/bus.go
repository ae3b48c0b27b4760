// Package events provides the publish-subscribe channel used by the offline
// sync engine to report connectivity transitions and sync outcomes to the UI
// layer.
package events

import (
	"sync"
	"time"

	"github.com/avolkau/studysync/internal/entities"
)

type Type string

const (
	TypeOnline      Type = "online"
	TypeOffline     Type = "offline"
	TypeSyncSuccess Type = "sync-success"
	TypeSyncFailed  Type = "sync-failed"
)

// Event is a typed notification. Operation is set for sync events and
// carries the original payload of the affected queued operation.
type Event struct {
	Type      Type
	Operation *entities.QueuedOperation
	Err       string
	At        time.Time
}

// Subscription is a handle to a registered subscriber. Events arrive on C;
// call Unsubscribe to stop receiving and release the channel.
type Subscription struct {
	C chan Event

	bus   *Bus
	id    int
	types map[Type]bool
	once  sync.Once
}

// Unsubscribe removes the subscription from the bus and closes C.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.id)
		close(s.C)
	})
}

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// whose channel is full misses the event.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*Subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*Subscription)}
}

// Subscribe registers a subscriber for the given event types. With no types
// given, the subscription receives every event.
func (b *Bus) Subscribe(types ...Type) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		C:     make(chan Event, 16),
		bus:   b,
		id:    b.nextID,
		types: make(map[Type]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}

	b.subs[b.nextID] = sub
	b.nextID++
	return sub
}

// Publish delivers the event to every matching subscriber.
func (b *Bus) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if len(sub.types) > 0 && !sub.types[evt.Type] {
			continue
		}
		select {
		case sub.C <- evt:
		default:
			// Subscriber is not keeping up; drop rather than block.
		}
	}
}

func (b *Bus) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}
