package events

import (
	"sync"
	"time"

	"vid2audio/domain/conversion"
)

// DefaultHistory is the number of events kept for Since when no size is given
const DefaultHistory = 500

// Bus sequences run events, keeps a bounded history and fans events out to listeners.
// Publish holds the bus lock while listeners run, so every listener sees events in
// sequence order even when several workers publish concurrently.
type Bus struct {
	mu        sync.Mutex
	nextSeq   int64
	nextSubID int
	maxEvents int
	events    []conversion.Event
	listeners map[int]conversion.Listener
	order     []int
	now       func() time.Time
}

// NewBus creates a bus keeping at most maxEvents events of history
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = DefaultHistory
	}

	return &Bus{
		maxEvents: maxEvents,
		events:    make([]conversion.Event, 0, maxEvents),
		listeners: make(map[int]conversion.Listener),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe registers a listener and returns a function that removes it.
// Listeners must not subscribe or unsubscribe from inside HandleEvent.
func (b *Bus) Subscribe(l conversion.Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	id := b.nextSubID
	b.listeners[id] = l
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish assigns sequence and timestamp, records the event and delivers it
func (b *Bus) Publish(event conversion.Event) conversion.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]conversion.Event(nil), b.events[trim:]...)
	}

	for _, id := range b.order {
		b.listeners[id].HandleEvent(event)
	}

	return event
}

// Since returns events with sequence strictly greater than seq
func (b *Bus) Since(seq int64) []conversion.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]conversion.Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// LastSeq returns the sequence number of the most recent event
func (b *Bus) LastSeq() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextSeq
}
