// Package events carries lifecycle notifications (backend spawn, generation
// outcomes) from components to whoever wants them.
package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Event is a named lifecycle event with optional fields.
type Event struct {
	Name    string
	Subject string
	Fields  map[string]any
}

// Publisher receives events. Implementations should be lightweight and
// non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// Noop drops events.
type Noop struct{}

func (Noop) Publish(Event) {}

// Memory stores events in-memory for tests and /status inspection.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory { return &Memory{} }

func (p *Memory) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *Memory) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the event names in publish order.
func (p *Memory) Names() []string {
	evs := p.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Name
	}
	return out
}

// Log writes every event to a zerolog logger at debug level.
type Log struct {
	Logger zerolog.Logger
}

func (p Log) Publish(e Event) {
	ev := p.Logger.Debug().Str("event", e.Name)
	if e.Subject != "" {
		ev = ev.Str("subject", e.Subject)
	}
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("event")
}

// Multi fans an event out to several publishers.
type Multi []Publisher

func (m Multi) Publish(e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(e)
		}
	}
}

// OrNoop returns p, or Noop when p is nil.
func OrNoop(p Publisher) Publisher {
	if p == nil {
		return Noop{}
	}
	return p
}
