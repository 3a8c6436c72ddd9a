package data

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/netip"
	"strconv"
)

// BitsInByte is the number of bits per serialized byte.
const BitsInByte = 8

// --------------------------------------------------------------------------
// Kind
// --------------------------------------------------------------------------

// Kind identifies the concrete variant carried by a TypedValue.
type Kind uint8

const (
	KindInvalid Kind = iota // 0: zero value, never produced by a constructor
	KindBool                // 1: boolean, 1 bit
	KindUint8               // 2: unsigned 8 bit integer
	KindUint16              // 3: unsigned 16 bit integer
	KindUint32              // 4: unsigned 32 bit integer
	KindUint64              // 5: unsigned integer up to 64 bits
	KindString              // 6: text, len*8 bits
	KindBytes               // 7: opaque byte buffer with explicit bit length
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindUint64:
		return "uint64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "bool":
		return KindBool, nil
	case "uint8":
		return KindUint8, nil
	case "uint16":
		return KindUint16, nil
	case "uint32":
		return KindUint32, nil
	case "uint64":
		return KindUint64, nil
	case "string":
		return KindString, nil
	case "bytes":
		return KindBytes, nil
	default:
		return KindInvalid, fmt.Errorf("unknown value kind %q", s)
	}
}

// IsInteger reports whether the kind is one of the unsigned integer kinds.
func (k Kind) IsInteger() bool {
	return k >= KindUint8 && k <= KindUint64
}

// --------------------------------------------------------------------------
// TypedValue
// --------------------------------------------------------------------------

// TypedValue is an immutable tagged scalar or byte buffer with an explicit
// bit length. It is the payload type of keys, match values and parameters.
//
// The zero value is invalid; use one of the constructors.
type TypedValue struct {
	kind Kind
	bits uint32
	num  uint64 // bool and integer kinds
	buf  []byte // string and bytes kinds, never aliased outside the value
}

// Bool creates a 1 bit boolean value.
func Bool(v bool) TypedValue {
	var n uint64
	if v {
		n = 1
	}
	return TypedValue{kind: KindBool, bits: 1, num: n}
}

// Uint8 creates an 8 bit integer value.
func Uint8(v uint8) TypedValue { return TypedValue{kind: KindUint8, bits: 8, num: uint64(v)} }

// Uint16 creates a 16 bit integer value.
func Uint16(v uint16) TypedValue { return TypedValue{kind: KindUint16, bits: 16, num: uint64(v)} }

// Uint32 creates a 32 bit integer value.
func Uint32(v uint32) TypedValue { return TypedValue{kind: KindUint32, bits: 32, num: uint64(v)} }

// Uint64 creates a 64 bit integer value.
func Uint64(v uint64) TypedValue { return TypedValue{kind: KindUint64, bits: 64, num: v} }

// Uint creates an integer value of an arbitrary width between 1 and 64 bits,
// e.g. a 20 bit MPLS label. Bits above the width are dropped.
func Uint(v uint64, bits uint32) TypedValue {
	if bits == 0 || bits > 64 {
		panic(fmt.Sprintf("data: invalid integer width %d", bits))
	}
	if bits < 64 {
		v &= (uint64(1) << bits) - 1
	}
	return TypedValue{kind: KindUint64, bits: bits, num: v}
}

// String creates a text value of len(s)*8 bits.
func String(s string) TypedValue {
	return TypedValue{kind: KindString, bits: uint32(len(s)) * BitsInByte, buf: []byte(s)}
}

// Bytes creates a byte buffer value. Only the first ceil(bits/8) bytes of b
// are kept; b must be at least that long.
func Bytes(b []byte, bits uint32) TypedValue {
	n := byteLen(bits)
	if len(b) < n {
		panic(fmt.Sprintf("data: %d bytes cannot hold %d bits", len(b), bits))
	}
	buf := make([]byte, n)
	copy(buf, b[:n])
	return TypedValue{kind: KindBytes, bits: bits, buf: buf}
}

// Prefix creates a byte buffer holding the masked address of p with the
// prefix length as bit length.
func Prefix(p netip.Prefix) TypedValue {
	p = p.Masked()
	addr := p.Addr().AsSlice()
	return Bytes(addr, uint32(p.Bits()))
}

// Addr creates a full-length byte buffer for an IPv4 or IPv6 address.
func Addr(a netip.Addr) TypedValue {
	b := a.AsSlice()
	return Bytes(b, uint32(len(b))*BitsInByte)
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Kind returns the variant of the value.
func (v TypedValue) Kind() Kind { return v.kind }

// BitLength returns the length of the value in bits.
func (v TypedValue) BitLength() uint32 { return v.bits }

// ByteLength returns ceil(BitLength/8).
func (v TypedValue) ByteLength() int { return byteLen(v.bits) }

// IsValid reports whether v was produced by a constructor.
func (v TypedValue) IsValid() bool { return v.kind != KindInvalid }

// AsBool returns the boolean. Panics for other kinds.
func (v TypedValue) AsBool() bool {
	v.must(KindBool)
	return v.num != 0
}

// AsUint64 returns any integer kind widened to uint64. Panics for other kinds.
func (v TypedValue) AsUint64() uint64 {
	if !v.kind.IsInteger() {
		panic(fmt.Sprintf("data: %s value accessed as integer", v.kind))
	}
	return v.num
}

// AsString returns the text. Panics for other kinds.
func (v TypedValue) AsString() string {
	v.must(KindString)
	return string(v.buf)
}

// AsBytes returns a copy of the buffer of a bytes value. Panics for other kinds.
func (v TypedValue) AsBytes() []byte {
	v.must(KindBytes)
	return bytes.Clone(v.buf)
}

func (v TypedValue) must(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("data: %s value accessed as %s", v.kind, k))
	}
}

// --------------------------------------------------------------------------
// Serialization
// --------------------------------------------------------------------------

// AppendTo appends exactly ByteLength bytes to dst and returns the extended
// slice together with the number of bits written. Integers are written in
// network byte order, strings and buffers verbatim.
func (v TypedValue) AppendTo(dst []byte) ([]byte, uint32) {
	switch v.kind {
	case KindBool:
		return append(dst, byte(v.num)), v.bits
	case KindUint8, KindUint16, KindUint32, KindUint64:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], v.num)
		n := v.ByteLength()
		return append(dst, tmp[8-n:]...), v.bits
	case KindString, KindBytes:
		return append(dst, v.buf...), v.bits
	default:
		panic("data: serialize of invalid value")
	}
}

// Serialize returns the network representation of the value.
func (v TypedValue) Serialize() []byte {
	out, _ := v.AppendTo(make([]byte, 0, v.ByteLength()))
	return out
}

// Decode reconstructs a value of the given kind and bit length from its
// network representation.
func Decode(kind Kind, bits uint32, b []byte) (TypedValue, error) {
	n := byteLen(bits)
	if len(b) != n {
		return TypedValue{}, fmt.Errorf("data: %s of %d bits needs %d bytes, got %d", kind, bits, n, len(b))
	}
	switch kind {
	case KindBool:
		if bits != 1 {
			return TypedValue{}, fmt.Errorf("data: bool must be 1 bit, got %d", bits)
		}
		return Bool(b[0] != 0), nil
	case KindUint8, KindUint16, KindUint32, KindUint64:
		if want := fixedWidth(kind); want != 0 && want != bits {
			return TypedValue{}, fmt.Errorf("data: %s must be %d bits, got %d", kind, want, bits)
		}
		if bits == 0 || bits > 64 {
			return TypedValue{}, fmt.Errorf("data: invalid integer width %d", bits)
		}
		var tmp [8]byte
		copy(tmp[8-n:], b)
		return TypedValue{kind: kind, bits: bits, num: binary.BigEndian.Uint64(tmp[:])}, nil
	case KindString:
		return String(string(b)), nil
	case KindBytes:
		return Bytes(b, bits), nil
	default:
		return TypedValue{}, fmt.Errorf("data: cannot decode kind %s", kind)
	}
}

// --------------------------------------------------------------------------
// Comparison
// --------------------------------------------------------------------------

// Compare orders values totally: by bit length first, then kind, then value.
// It returns -1, 0 or +1.
func (v TypedValue) Compare(o TypedValue) int {
	switch {
	case v.bits < o.bits:
		return -1
	case v.bits > o.bits:
		return 1
	case v.kind < o.kind:
		return -1
	case v.kind > o.kind:
		return 1
	}
	switch v.kind {
	case KindString, KindBytes:
		return bytes.Compare(v.buf, o.buf)
	default:
		switch {
		case v.num < o.num:
			return -1
		case v.num > o.num:
			return 1
		}
		return 0
	}
}

// Equal reports whether both bit length and value match.
func (v TypedValue) Equal(o TypedValue) bool {
	return v.Compare(o) == 0
}

// HasPrefix reports whether the leading BitLength bits of v match p. Both
// values are compared on their serialized form, so it works for addresses
// against prefixes of the same family.
func (v TypedValue) HasPrefix(p TypedValue) bool {
	if p.bits > v.bits {
		return false
	}
	a, b := v.Serialize(), p.Serialize()
	full := int(p.bits / BitsInByte)
	if !bytes.Equal(a[:full], b[:full]) {
		return false
	}
	if rem := p.bits % BitsInByte; rem != 0 {
		mask := byte(0xff << (BitsInByte - rem))
		return a[full]&mask == b[full]&mask
	}
	return true
}

// String renders the value for descriptions and logs.
func (v TypedValue) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.num != 0)
	case KindUint8, KindUint16, KindUint32, KindUint64:
		return strconv.FormatUint(v.num, 10)
	case KindString:
		return strconv.Quote(string(v.buf))
	case KindBytes:
		return hex.EncodeToString(v.buf) + "/" + strconv.FormatUint(uint64(v.bits), 10)
	default:
		return "<invalid>"
	}
}

func byteLen(bits uint32) int {
	return int((bits + BitsInByte - 1) / BitsInByte)
}

func fixedWidth(k Kind) uint32 {
	switch k {
	case KindUint8:
		return 8
	case KindUint16:
		return 16
	case KindUint32:
		return 32
	}
	// KindUint64 carries arbitrary widths up to 64
	return 0
}
