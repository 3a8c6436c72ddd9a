package aft

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/data"
	"io"
	"slices"
)

// --------------------------------------------------------------------------
// Entry
// --------------------------------------------------------------------------

// EntryHeader holds what every entry carries.
type EntryHeader struct {
	Parent NodeToken       `json:"parent" yaml:"parent"`                     // container the entry belongs to
	Mask   uint64          `json:"mask" yaml:"mask"`                         // defaults to MaskAll
	Params data.Parameters `json:"params,omitempty" yaml:"params,omitempty"` // optional
}

func newHeader(parent NodeToken) EntryHeader {
	return EntryHeader{Parent: parent, Mask: MaskAll}
}

// Header gives access to the common entry fields.
func (h *EntryHeader) Header() *EntryHeader { return h }

// Entry is the closed set of entry variants. It can only be implemented
// inside this package.
type Entry interface {
	Header() *EntryHeader
	fmt.Stringer

	cloneEntry() Entry
}

// RouteEntry maps a (possibly partial) key, usually a prefix, to a node in
// a Tree.
type RouteEntry struct {
	EntryHeader `yaml:",inline"`
	Key         data.TypedValue `json:"key" yaml:"key"`
	Value       NodeToken       `json:"value" yaml:"value"`
	HWFlush     bool            `json:"hw_flush,omitempty" yaml:"hw_flush,omitempty"`
}

// IndexEntry maps a slot of an indexed container to a node.
type IndexEntry struct {
	EntryHeader `yaml:",inline"`
	Key         uint32    `json:"key" yaml:"key"`
	Value       NodeToken `json:"value" yaml:"value"`
}

// KeyFieldEntry maps a field value to a node.
type KeyFieldEntry struct {
	EntryHeader `yaml:",inline"`
	Key         data.Key  `json:"key" yaml:"key"`
	Value       NodeToken `json:"value" yaml:"value"`
}

// DeleteRoute removes the RouteEntry with the same parent and key.
type DeleteRoute struct {
	EntryHeader `yaml:",inline"`
	Key         data.TypedValue `json:"key" yaml:"key"`
	HWFlush     bool            `json:"hw_flush,omitempty" yaml:"hw_flush,omitempty"`
}

// DeleteIndex removes the IndexEntry with the same parent and key.
type DeleteIndex struct {
	EntryHeader `yaml:",inline"`
	Key         uint32 `json:"key" yaml:"key"`
}

// DeleteKeyField removes the KeyFieldEntry with the same parent and key.
type DeleteKeyField struct {
	EntryHeader `yaml:",inline"`
	Key         data.Key `json:"key" yaml:"key"`
}

// NewRouteEntry creates a route entry with default header values.
func NewRouteEntry(parent NodeToken, key data.TypedValue, value NodeToken) *RouteEntry {
	return &RouteEntry{EntryHeader: newHeader(parent), Key: key, Value: value}
}

// NewIndexEntry creates an index entry with default header values.
func NewIndexEntry(parent NodeToken, key uint32, value NodeToken) *IndexEntry {
	return &IndexEntry{EntryHeader: newHeader(parent), Key: key, Value: value}
}

// NewKeyFieldEntry creates a key field entry with default header values.
func NewKeyFieldEntry(parent NodeToken, key data.Key, value NodeToken) *KeyFieldEntry {
	return &KeyFieldEntry{EntryHeader: newHeader(parent), Key: key, Value: value}
}

// DeleteOf returns the delete counterpart of e. Delete entries are returned
// unchanged.
func DeleteOf(e Entry) Entry {
	switch x := e.(type) {
	case *RouteEntry:
		return &DeleteRoute{EntryHeader: x.EntryHeader, Key: x.Key, HWFlush: x.HWFlush}
	case *IndexEntry:
		return &DeleteIndex{EntryHeader: x.EntryHeader, Key: x.Key}
	case *KeyFieldEntry:
		return &DeleteKeyField{EntryHeader: x.EntryHeader, Key: x.Key}
	case *DeleteRoute, *DeleteIndex, *DeleteKeyField:
		return e
	default:
		panic(fmt.Sprintf("aft: unhandled entry variant %T", e))
	}
}

func (e *RouteEntry) cloneEntry() Entry {
	c := *e
	c.Params = e.Params.Clone()
	return &c
}

func (e *IndexEntry) cloneEntry() Entry {
	c := *e
	c.Params = e.Params.Clone()
	return &c
}

func (e *KeyFieldEntry) cloneEntry() Entry {
	c := *e
	c.Params = e.Params.Clone()
	return &c
}

func (e *DeleteRoute) cloneEntry() Entry {
	c := *e
	c.Params = e.Params.Clone()
	return &c
}

func (e *DeleteIndex) cloneEntry() Entry {
	c := *e
	c.Params = e.Params.Clone()
	return &c
}

func (e *DeleteKeyField) cloneEntry() Entry {
	c := *e
	c.Params = e.Params.Clone()
	return &c
}

func (e *RouteEntry) String() string {
	return fmt.Sprintf("RouteEntry parent=%s key=%s value=%s", tokenString(e.Parent), e.Key, tokenString(e.Value))
}

func (e *IndexEntry) String() string {
	return fmt.Sprintf("IndexEntry parent=%s key=%d value=%s", tokenString(e.Parent), e.Key, tokenString(e.Value))
}

func (e *KeyFieldEntry) String() string {
	return fmt.Sprintf("KeyFieldEntry parent=%s key=%s value=%s", tokenString(e.Parent), e.Key, tokenString(e.Value))
}

func (e *DeleteRoute) String() string {
	return fmt.Sprintf("DeleteRoute parent=%s key=%s", tokenString(e.Parent), e.Key)
}

func (e *DeleteIndex) String() string {
	return fmt.Sprintf("DeleteIndex parent=%s key=%d", tokenString(e.Parent), e.Key)
}

func (e *DeleteKeyField) String() string {
	return fmt.Sprintf("DeleteKeyField parent=%s key=%s", tokenString(e.Parent), e.Key)
}

// CloneEntry returns a deep copy of e.
func CloneEntry(e Entry) Entry { return e.cloneEntry() }

func cloneIndexEntries(in []IndexEntry) []IndexEntry {
	out := slices.Clone(in)
	for i := range out {
		out[i].Params = in[i].Params.Clone()
	}
	return out
}

// --------------------------------------------------------------------------
// Entry keys
// --------------------------------------------------------------------------

// EntryKeyKind tells which key shape an entry uses.
type EntryKeyKind uint8

const (
	EntryKeyData  EntryKeyKind = iota // RouteEntry: a typed value
	EntryKeyIndex                     // IndexEntry: a slot number
	EntryKeyField                     // KeyFieldEntry: a field/value pair
)

// EntryKey identifies an entry within its parent container.
type EntryKey struct {
	Kind  EntryKeyKind
	Data  data.TypedValue
	Index uint32
	Field data.Key
}

// String is the canonical form of the key. Two entries of one container
// collide exactly when their key strings are equal.
func (k EntryKey) String() string {
	switch k.Kind {
	case EntryKeyData:
		return "data:" + valueKey(k.Data)
	case EntryKeyIndex:
		return fmt.Sprintf("index:%d", k.Index)
	case EntryKeyField:
		return "field:" + k.Field.Field.Name + "=" + valueKey(k.Field.Data)
	default:
		return fmt.Sprintf("unknown:%d", k.Kind)
	}
}

// valueKey renders kind, bit length and serialized form of v. Values of one
// kind that differ only in width get different keys.
func valueKey(v data.TypedValue) string {
	if !v.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%s/%d/%x", v.Kind(), v.BitLength(), v.Serialize())
}

// KeyOf returns the key of e. A delete entry has the key of the entry it
// removes.
func KeyOf(e Entry) EntryKey {
	switch x := e.(type) {
	case *RouteEntry:
		return EntryKey{Kind: EntryKeyData, Data: x.Key}
	case *DeleteRoute:
		return EntryKey{Kind: EntryKeyData, Data: x.Key}
	case *IndexEntry:
		return EntryKey{Kind: EntryKeyIndex, Index: x.Key}
	case *DeleteIndex:
		return EntryKey{Kind: EntryKeyIndex, Index: x.Key}
	case *KeyFieldEntry:
		return EntryKey{Kind: EntryKeyField, Field: x.Key}
	case *DeleteKeyField:
		return EntryKey{Kind: EntryKeyField, Field: x.Key}
	default:
		panic(fmt.Sprintf("aft: unhandled entry variant %T", e))
	}
}

// EntryValue returns the node an entry points to, TokenNone for deletes.
func EntryValue(e Entry) NodeToken {
	switch x := e.(type) {
	case *RouteEntry:
		return x.Value
	case *IndexEntry:
		return x.Value
	case *KeyFieldEntry:
		return x.Value
	case *DeleteRoute, *DeleteIndex, *DeleteKeyField:
		return TokenNone
	default:
		panic(fmt.Sprintf("aft: unhandled entry variant %T", e))
	}
}

// IsDelete reports whether e removes an entry instead of adding one.
func IsDelete(e Entry) bool {
	switch e.(type) {
	case *DeleteRoute, *DeleteIndex, *DeleteKeyField:
		return true
	case *RouteEntry, *IndexEntry, *KeyFieldEntry:
		return false
	default:
		panic(fmt.Sprintf("aft: unhandled entry variant %T", e))
	}
}

// EntryNextNodes returns the node the entry points to, if any.
func EntryNextNodes(e Entry) []NodeToken {
	if v := EntryValue(e); v.IsSet() {
		return []NodeToken{v}
	}
	return nil
}

// EntryIsValid checks the references of e. Delete entries only need a valid
// parent.
func EntryIsValid(e Entry, v Validator, w io.Writer) bool {
	ok := v.ValidateToken(e.Header().Parent, w)
	switch x := e.(type) {
	case *RouteEntry:
		ok = v.ValidateToken(x.Value, w) && ok
		if !x.Key.IsValid() {
			diag(w, "route entry without key")
			ok = false
		}
	case *IndexEntry:
		ok = v.ValidateToken(x.Value, w) && ok
	case *KeyFieldEntry:
		ok = v.ValidateKey(x.Key, w) && ok
		ok = v.ValidateToken(x.Value, w) && ok
	case *DeleteRoute, *DeleteIndex, *DeleteKeyField:
	default:
		panic(fmt.Sprintf("aft: unhandled entry variant %T", e))
	}
	return ok
}

// embeddedEntryValid checks an entry given inline in an indexed container.
func embeddedEntryValid(e IndexEntry, maxIndex uint32, v Validator, w io.Writer) bool {
	ok := v.ValidateToken(e.Value, w)
	if e.Key >= maxIndex {
		diag(w, "entry index %d out of range (max %d)", e.Key, maxIndex)
		ok = false
	}
	return ok
}
