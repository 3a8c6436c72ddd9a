package tables

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// ErrEmptyName is returned when a table insert is given an empty name.
var ErrEmptyName = errors.New("tables: empty name")

// --------------------------------------------------------------------------
// StringTable
// --------------------------------------------------------------------------

// StringTable maps names to entries of type E.
//
// Thread-safety: all methods are safe for concurrent use.
type StringTable[E any] struct {
	mu      sync.RWMutex
	entries map[string]E
}

// NewStringTable creates an empty table.
func NewStringTable[E any]() *StringTable[E] {
	return &StringTable[E]{entries: make(map[string]E)}
}

// Insert stores (or replaces) the entry for name.
func (t *StringTable[E]) Insert(name string, e E) error {
	if name == "" {
		return ErrEmptyName
	}
	t.mu.Lock()
	t.entries[name] = e
	t.mu.Unlock()
	return nil
}

// Remove deletes name and reports whether it was present.
func (t *StringTable[E]) Remove(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[name]
	delete(t.entries, name)
	return ok
}

// Find returns the entry stored under name.
func (t *StringTable[E]) Find(name string) (E, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[name]
	return e, ok
}

// IsValid reports whether name is present.
func (t *StringTable[E]) IsValid(name string) bool {
	_, ok := t.Find(name)
	return ok
}

// Len returns the number of names.
func (t *StringTable[E]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Match returns the names matching re in sorted order.
func (t *StringTable[E]) Match(re *regexp.Regexp) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for name := range t.entries {
		if re.MatchString(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Range calls fn for every entry in name order until fn returns false.
func (t *StringTable[E]) Range(fn func(name string, e E) bool) {
	t.mu.RLock()
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	snapshot := make(map[string]E, len(t.entries))
	for k, v := range t.entries {
		snapshot[k] = v
	}
	t.mu.RUnlock()

	sort.Strings(names)
	for _, name := range names {
		if !fn(name, snapshot[name]) {
			return
		}
	}
}

// --------------------------------------------------------------------------
// IndexTable
// --------------------------------------------------------------------------

// Index is the small integer a name is mapped to by an IndexTable.
type Index uint32

// IndexNone is the reserved index of the "none" entry every IndexTable
// starts with.
const IndexNone Index = 0

// NameNone is the name bound to IndexNone.
const NameNone = "none"

// IndexTable is a bidirectional name <-> index registry. Indices are handed
// out monotonically by Create; index 0 is reserved for "none".
//
// Thread-safety: all methods are safe for concurrent use.
type IndexTable struct {
	mu      sync.RWMutex
	byName  map[string]Index
	byIndex map[Index]string
	max     Index
}

// NewIndexTable creates a table holding only the "none" entry.
func NewIndexTable() *IndexTable {
	return &IndexTable{
		byName:  map[string]Index{NameNone: IndexNone},
		byIndex: map[Index]string{IndexNone: NameNone},
	}
}

// Create returns the index of name, allocating max+1 if it is new.
func (t *IndexTable) Create(name string) (Index, error) {
	if name == "" {
		return IndexNone, ErrEmptyName
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx, ok := t.byName[name]; ok {
		return idx, nil
	}
	t.max++
	t.byName[name] = t.max
	t.byIndex[t.max] = name
	return t.max, nil
}

// Insert binds name to a caller chosen index and raises max accordingly. It
// fails if either side is already bound to something else.
func (t *IndexTable) Insert(name string, idx Index) error {
	if name == "" {
		return ErrEmptyName
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.byName[name]; ok {
		if cur == idx {
			return nil
		}
		return fmt.Errorf("tables: %q already bound to index %d", name, cur)
	}
	if other, ok := t.byIndex[idx]; ok {
		return fmt.Errorf("tables: index %d already bound to %q", idx, other)
	}
	t.byName[name] = idx
	t.byIndex[idx] = name
	if idx > t.max {
		t.max = idx
	}
	return nil
}

// Find returns the index of name.
func (t *IndexTable) Find(name string) (Index, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, ok := t.byName[name]
	return idx, ok
}

// NameOf returns the name bound to idx.
func (t *IndexTable) NameOf(idx Index) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.byIndex[idx]
	return name, ok
}

// Remove unbinds name. The "none" entry cannot be removed and indices are
// not reused.
func (t *IndexTable) Remove(name string) bool {
	if name == NameNone {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.byName[name]
	if !ok {
		return false
	}
	delete(t.byName, name)
	delete(t.byIndex, idx)
	return true
}

// IsValid reports whether idx is bound.
func (t *IndexTable) IsValid(idx Index) bool {
	_, ok := t.NameOf(idx)
	return ok
}

// Max returns the highest index handed out or inserted.
func (t *IndexTable) Max() Index {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.max
}

// Len returns the number of bindings including "none".
func (t *IndexTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byName)
}

// Match returns the names matching re in sorted order.
func (t *IndexTable) Match(re *regexp.Regexp) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for name := range t.byName {
		if re.MatchString(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Names returns every bound name ordered by index.
func (t *IndexTable) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx := make([]Index, 0, len(t.byIndex))
	for i := range t.byIndex {
		idx = append(idx, i)
	}
	sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })
	out := make([]string, len(idx))
	for i, x := range idx {
		out[i] = t.byIndex[x]
	}
	return out
}

// --------------------------------------------------------------------------
// FieldTable
// --------------------------------------------------------------------------

// FieldInfo describes a registered packet or metadata field. A Width of 0
// means the width is not fixed.
type FieldInfo struct {
	Index Index
	Width uint32
}

// FieldTable maps field names to FieldInfo. Indices are assigned on first
// insert.
type FieldTable struct {
	*StringTable[FieldInfo]
	next Index
	mu   sync.Mutex
}

// NewFieldTable creates an empty field table.
func NewFieldTable() *FieldTable {
	return &FieldTable{StringTable: NewStringTable[FieldInfo]()}
}

// Add registers name with the given width. Re-adding a name updates its
// width and keeps its index.
func (t *FieldTable) Add(name string, width uint32) (FieldInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.Find(name)
	if !ok {
		t.next++
		info.Index = t.next
	}
	info.Width = width
	if err := t.Insert(name, info); err != nil {
		return FieldInfo{}, err
	}
	return info, nil
}

// Restore stores info under name as is, e.g. when loading a snapshot.
func (t *FieldTable) Restore(name string, info FieldInfo) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.Insert(name, info); err != nil {
		return err
	}
	if info.Index > t.next {
		t.next = info.Index
	}
	return nil
}
