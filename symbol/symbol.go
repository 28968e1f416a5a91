// Package symbol interns identifier text into unique, comparable handles.
package symbol

import (
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Symbol: an interned identifier
// ---------------------------------------------------------------------------

// Symbol is the unique handle for a piece of identifier text.
// Two symbols from the same Table are equal iff they are the same pointer.
type Symbol struct {
	name string
	id   uint32
}

// Name returns the source text of the symbol.
func (s *Symbol) Name() string { return s.name }

// ID returns the interning order of the symbol within its table.
func (s *Symbol) ID() uint32 { return s.id }

func (s *Symbol) String() string { return s.name }

// Compare orders symbols by their source text. It returns a negative number
// when s sorts before other, zero when the text is equal, positive otherwise.
func (s *Symbol) Compare(other *Symbol) int {
	if s == other {
		return 0
	}
	return strings.Compare(s.name, other.name)
}

// ---------------------------------------------------------------------------
// Table: the interning cache
// ---------------------------------------------------------------------------

// Table interns symbol strings to unique handles. Entries are never evicted;
// Reset discards the whole cache between independent runs.
type Table struct {
	mu     sync.RWMutex
	byName map[string]*Symbol // name -> handle
	byID   []*Symbol          // ID -> handle
}

// NewTable creates a new empty symbol table.
func NewTable() *Table {
	return &Table{
		byName: make(map[string]*Symbol),
		byID:   make([]*Symbol, 0, 256),
	}
}

// Intern returns the handle for name, creating a new one if needed.
func (t *Table) Intern(name string) *Symbol {
	// Fast path: read-only lookup
	t.mu.RLock()
	if s, ok := t.byName[name]; ok {
		t.mu.RUnlock()
		return s
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Double-check after acquiring write lock
	if s, ok := t.byName[name]; ok {
		return s
	}

	s := &Symbol{name: name, id: uint32(len(t.byID))}
	t.byName[name] = s
	t.byID = append(t.byID, s)
	return s
}

// Lookup returns the handle for name without creating one.
func (t *Table) Lookup(name string) (*Symbol, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byName[name]
	return s, ok
}

// Len returns the number of interned symbols.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// All returns all symbol names in interning order.
func (t *Table) All() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]string, len(t.byID))
	for i, s := range t.byID {
		result[i] = s.name
	}
	return result
}

// Reset forgets every interned symbol. Handles created before the reset stay
// valid but are no longer identical to handles created after it.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byName = make(map[string]*Symbol)
	t.byID = t.byID[:0:0]
}
