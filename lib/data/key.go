package data

import (
	"fmt"
	"sort"
	"strings"
)

// Field names a packet or metadata field, e.g. "ip.dst". Fields compare by name.
type Field struct {
	Name string `json:"name" yaml:"name"`
}

// NewField is a shorthand for Field{Name: name}.
func NewField(name string) Field { return Field{Name: name} }

func (f Field) String() string { return f.Name }

// Fields builds a field slice from names.
func Fields(names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n}
	}
	return out
}

// Key binds a value to a field. Keys are used as match criteria, as entry
// keys of key-field containers and as template variables of encaps.
type Key struct {
	Field Field      `json:"field" yaml:"field"`
	Data  TypedValue `json:"data" yaml:"data"`
}

// NewKey creates a key for the named field.
func NewKey(field string, v TypedValue) Key {
	return Key{Field: Field{Name: field}, Data: v}
}

// Equal reports whether field and value match. Keys without data never match.
func (k Key) Equal(o Key) bool {
	return k.Field == o.Field && k.Data.IsValid() && o.Data.IsValid() && k.Data.Equal(o.Data)
}

func (k Key) String() string {
	return fmt.Sprintf("{field:%s, data:%s}", k.Field.Name, k.Data)
}

// ConcatKeys concatenates the values of keys, in order, into a single bytes
// value whose bit length is the sum of the parts.
//
// Parts are packed back to back without padding: integers and booleans
// contribute their low BitLength bits, strings and buffers their leading
// BitLength bits. Byte aligned parts therefore produce their serialized form.
func ConcatKeys(keys []Key) TypedValue {
	var total uint32
	for _, k := range keys {
		total += k.Data.BitLength()
	}

	buf := make([]byte, byteLen(total))
	var pos uint32
	for _, k := range keys {
		pos = k.Data.packInto(buf, pos)
	}
	return TypedValue{kind: KindBytes, bits: total, buf: buf}
}

// packInto writes the bits of v into buf starting at bit offset pos, most
// significant bit first, and returns the offset after them.
func (v TypedValue) packInto(buf []byte, pos uint32) uint32 {
	for i := uint32(0); i < v.bits; i++ {
		var bit bool
		switch v.kind {
		case KindBool, KindUint8, KindUint16, KindUint32, KindUint64:
			bit = v.num>>(v.bits-1-i)&1 == 1
		case KindString, KindBytes:
			bit = v.buf[i/BitsInByte]&(0x80>>(i%BitsInByte)) != 0
		default:
			panic("data: concatenation of invalid value")
		}
		if bit {
			buf[pos/BitsInByte] |= 0x80 >> (pos % BitsInByte)
		}
		pos++
	}
	return pos
}

// DataForField returns the value bound to the named field.
func DataForField(keys []Key, name string) (TypedValue, bool) {
	for _, k := range keys {
		if k.Field.Name == name {
			return k.Data, true
		}
	}
	return TypedValue{}, false
}

// --------------------------------------------------------------------------
// Parameters
// --------------------------------------------------------------------------

// Parameters is an optional bag of named values attached to nodes and
// entries. A nil Parameters is empty.
type Parameters map[string]TypedValue

// Set stores v under name, allocating the map when needed.
func (p *Parameters) Set(name string, v TypedValue) {
	if *p == nil {
		*p = make(Parameters)
	}
	(*p)[name] = v
}

// Get returns the value stored under name.
func (p Parameters) Get(name string) (TypedValue, bool) {
	v, ok := p[name]
	return v, ok
}

// Keys returns the parameter names in sorted order.
func (p Parameters) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy that shares no map with p.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	out := make(Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p Parameters) String() string {
	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range p.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(p[k].String())
	}
	sb.WriteString("}")
	return sb.String()
}
