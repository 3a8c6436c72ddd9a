// Package data implements the typed value model used as payload throughout
// the forwarding graph: TypedValue, Field, Key and Parameters.
//
// A TypedValue is an immutable tagged variant (bool, unsigned integers,
// string, byte buffer) that always knows its length in bits. Its serialized
// form is exactly ceil(bits/8) bytes; integers are written in network byte
// order so that concatenated keys look like the bytes on the wire.
//
// Usage Example:
//
//	dst := data.NewKey("ip.dst", data.Prefix(netip.MustParsePrefix("10.0.0.0/8")))
//	vrf := data.NewKey("vrf", data.Uint16(7))
//	lookup := data.ConcatKeys([]data.Key{vrf, dst}) // 24 bits
//
// Accessing a value through the accessor of another kind is a programming
// error and panics. Values are safe for concurrent use since they never change
// after construction.
package data
