package notify

import "sync"

// Sink receives events from the protocol engine. Publish is called
// synchronously from the dispatch path, so implementations must be fast and
// must not call back into the client.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// Collector buffers events in memory. Used by tests and simple front-ends.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func NewCollector() *Collector { return &Collector{} }

func (c *Collector) Publish(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Reset discards buffered events.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}

// Tee fans one event out to several sinks in order.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(ev Event) {
		for _, s := range sinks {
			s.Publish(ev)
		}
	})
}
