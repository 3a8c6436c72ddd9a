package tables

import (
	"fmt"
	"sort"
	"sync"
)

// Port describes one input or output port of the forwarding engine and the
// token of the port node that represents it in the graph.
type Port struct {
	Index uint32
	Name  string
	Token Token
}

// PortTable is a fixed capacity table of ports keyed by index.
//
// Thread-safety: all methods are safe for concurrent use.
type PortTable struct {
	mu       sync.RWMutex
	maxIndex uint32
	byIndex  map[uint32]Port
	byName   map[string]uint32
}

// NewPortTable creates a table accepting indices below maxIndex.
func NewPortTable(maxIndex uint32) *PortTable {
	return &PortTable{
		maxIndex: maxIndex,
		byIndex:  make(map[uint32]Port),
		byName:   make(map[string]uint32),
	}
}

// SetMaxIndex changes the capacity. Ports at or above the new limit are
// dropped.
func (t *PortTable) SetMaxIndex(maxIndex uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maxIndex = maxIndex
	for idx, p := range t.byIndex {
		if idx >= maxIndex {
			delete(t.byIndex, idx)
			t.unbind(p)
		}
	}
}

// MaxIndex returns the capacity.
func (t *PortTable) MaxIndex() uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.maxIndex
}

// Insert stores p, replacing any port with the same index.
func (t *PortTable) Insert(p Port) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.Index >= t.maxIndex {
		return fmt.Errorf("tables: port index %d out of range (max %d)", p.Index, t.maxIndex)
	}
	if old, ok := t.byIndex[p.Index]; ok && old.Name != p.Name {
		t.unbind(old)
	}
	t.byIndex[p.Index] = p
	if p.Name != "" {
		// a name moves to the port inserted last
		t.byName[p.Name] = p.Index
	}
	return nil
}

// unbind drops the name of p unless another port took it over.
func (t *PortTable) unbind(p Port) {
	if idx, ok := t.byName[p.Name]; ok && idx == p.Index {
		delete(t.byName, p.Name)
	}
}

// Remove deletes the port with the given index.
func (t *PortTable) Remove(index uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byIndex[index]
	if ok {
		delete(t.byIndex, index)
		t.unbind(p)
	}
	return ok
}

// ByIndex returns the port with the given index.
func (t *PortTable) ByIndex(index uint32) (Port, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.byIndex[index]
	return p, ok
}

// ByName returns the port with the given name.
func (t *PortTable) ByName(name string) (Port, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.byName[name]
	if !ok {
		return Port{}, false
	}
	p, ok := t.byIndex[idx]
	return p, ok
}

// Len returns the number of ports.
func (t *PortTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byIndex)
}

// Ports returns every port ordered by index.
func (t *PortTable) Ports() []Port {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Port, 0, len(t.byIndex))
	for _, p := range t.byIndex {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// RemoveToken deletes every port represented by tok and returns how many
// were dropped.
func (t *PortTable) RemoveToken(tok Token) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for idx, p := range t.byIndex {
		if p.Token == tok {
			delete(t.byIndex, idx)
			t.unbind(p)
			n++
		}
	}
	return n
}
