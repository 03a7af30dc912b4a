package console

import (
	"sync"

	"github.com/samber/mo"

	"github.com/lewisedginton/chat_console/internal/transport"
)

// Mapping links a command message to the response it produced.
type Mapping struct {
	Trigger  transport.Message
	Response transport.Message
}

// Mappings is the process-lifetime record of trigger to response. Entries are
// never expired.
type Mappings struct {
	mu      sync.Mutex
	entries map[string]Mapping
}

// NewMappings creates an empty mapping table.
func NewMappings() *Mappings {
	return &Mappings{entries: make(map[string]Mapping)}
}

// Record stores the response for trigger, replacing any previous one.
func (m *Mappings) Record(trigger, response transport.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[trigger.Key()] = Mapping{Trigger: trigger, Response: response}
}

// Lookup returns the mapping recorded for trigger.
func (m *Mappings) Lookup(trigger transport.Message) mo.Option[Mapping] {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[trigger.Key()]
	if !ok {
		return mo.None[Mapping]()
	}
	return mo.Some(entry)
}

// Take removes and returns the mapping recorded for trigger.
func (m *Mappings) Take(trigger transport.Message) mo.Option[Mapping] {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[trigger.Key()]
	if !ok {
		return mo.None[Mapping]()
	}
	delete(m.entries, trigger.Key())
	return mo.Some(entry)
}

// Len returns the number of recorded mappings.
func (m *Mappings) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
