package events

import (
	"sync"

	"vid2audio/domain/conversion"
)

// ChannelListener forwards events to a buffered channel.
// Sends block once the buffer is full, so the consumer must keep draining C.
type ChannelListener struct {
	ch     chan conversion.Event
	mu     sync.Mutex
	closed bool
}

// NewChannelListener creates a listener with the given channel buffer
func NewChannelListener(buffer int) *ChannelListener {
	return &ChannelListener{ch: make(chan conversion.Event, buffer)}
}

// C returns the receive side of the channel
func (l *ChannelListener) C() <-chan conversion.Event {
	return l.ch
}

// HandleEvent implements conversion.Listener
func (l *ChannelListener) HandleEvent(e conversion.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.ch <- e
}

// Close closes the channel; later events are dropped
func (l *ChannelListener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}

// Recorder keeps every event it receives
type Recorder struct {
	mu     sync.Mutex
	events []conversion.Event
}

// HandleEvent implements conversion.Listener
func (r *Recorder) HandleEvent(e conversion.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []conversion.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]conversion.Event(nil), r.events...)
}

// ForTask returns the recorded events of one task, in order
func (r *Recorder) ForTask(id conversion.TaskID) []conversion.Event {
	var out []conversion.Event
	for _, e := range r.Events() {
		if e.IsTaskEvent() && e.TaskID == id {
			out = append(out, e)
		}
	}
	return out
}

// Types returns the recorded event types, in order
func (r *Recorder) Types() []conversion.EventType {
	events := r.Events()
	out := make([]conversion.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
