package data

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"gopkg.in/yaml.v3"
	"net/netip"
	"strconv"
)

// --------------------------------------------------------------------------
// Document form (json / yaml)
// --------------------------------------------------------------------------

// valueDoc is the human readable form of a TypedValue. The value is always
// carried as text so 64 bit integers survive JSON intact.
//
// Two input-only pseudo kinds are accepted: "prefix" ("10.0.0.0/8") and
// "addr" ("192.0.2.1"), both producing a bytes value.
type valueDoc struct {
	Kind  string `json:"kind" yaml:"kind"`
	Bits  uint32 `json:"bits,omitempty" yaml:"bits,omitempty"`
	Value string `json:"value" yaml:"value"`
}

func (v TypedValue) toDoc() valueDoc {
	doc := valueDoc{Kind: v.kind.String()}
	switch v.kind {
	case KindBool:
		doc.Value = strconv.FormatBool(v.num != 0)
	case KindUint8, KindUint16, KindUint32:
		doc.Value = strconv.FormatUint(v.num, 10)
	case KindUint64:
		doc.Value = strconv.FormatUint(v.num, 10)
		if v.bits != 64 {
			doc.Bits = v.bits
		}
	case KindString:
		doc.Value = string(v.buf)
	case KindBytes:
		doc.Value = hex.EncodeToString(v.buf)
		doc.Bits = v.bits
	}
	return doc
}

func fromDoc(doc valueDoc) (TypedValue, error) {
	switch doc.Kind {
	case "bool":
		b, err := strconv.ParseBool(doc.Value)
		if err != nil {
			return TypedValue{}, err
		}
		return Bool(b), nil
	case "uint8", "uint16", "uint32":
		k, _ := ParseKind(doc.Kind)
		n, err := strconv.ParseUint(doc.Value, 0, int(fixedWidth(k)))
		if err != nil {
			return TypedValue{}, err
		}
		return TypedValue{kind: k, bits: fixedWidth(k), num: n}, nil
	case "uint64":
		n, err := strconv.ParseUint(doc.Value, 0, 64)
		if err != nil {
			return TypedValue{}, err
		}
		if doc.Bits != 0 && doc.Bits != 64 {
			if doc.Bits > 64 || n>>doc.Bits != 0 {
				return TypedValue{}, fmt.Errorf("data: %d does not fit in %d bits", n, doc.Bits)
			}
			return Uint(n, doc.Bits), nil
		}
		return Uint64(n), nil
	case "string":
		return String(doc.Value), nil
	case "bytes":
		b, err := hex.DecodeString(doc.Value)
		if err != nil {
			return TypedValue{}, err
		}
		bits := doc.Bits
		if bits == 0 {
			bits = uint32(len(b)) * BitsInByte
		}
		if byteLen(bits) != len(b) {
			return TypedValue{}, fmt.Errorf("data: %d bytes do not match %d bits", len(b), bits)
		}
		return Bytes(b, bits), nil
	case "prefix":
		p, err := netip.ParsePrefix(doc.Value)
		if err != nil {
			return TypedValue{}, err
		}
		return Prefix(p), nil
	case "addr":
		a, err := netip.ParseAddr(doc.Value)
		if err != nil {
			return TypedValue{}, err
		}
		return Addr(a), nil
	default:
		return TypedValue{}, fmt.Errorf("data: unknown value kind %q", doc.Kind)
	}
}

// MarshalJSON implements json.Marshaler.
func (v TypedValue) MarshalJSON() ([]byte, error) {
	if !v.IsValid() {
		return []byte("null"), nil
	}
	return json.Marshal(v.toDoc())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *TypedValue) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = TypedValue{}
		return nil
	}
	var doc valueDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	parsed, err := fromDoc(doc)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v TypedValue) MarshalYAML() (interface{}, error) {
	if !v.IsValid() {
		return nil, nil
	}
	return v.toDoc(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *TypedValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*v = TypedValue{}
		return nil
	}
	var doc valueDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	parsed, err := fromDoc(doc)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*v = parsed
	return nil
}

// MarshalYAML writes a field as its plain name.
func (f Field) MarshalYAML() (interface{}, error) { return f.Name, nil }

// UnmarshalYAML accepts a plain name as well as the {name: ...} mapping.
func (f *Field) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.Name = node.Value
		return nil
	}
	var m struct {
		Name string `yaml:"name"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	f.Name = m.Name
	return nil
}

// --------------------------------------------------------------------------
// Binary form (gob)
// --------------------------------------------------------------------------

// GobEncode writes 1 byte kind, 4 bytes bit length (big endian) and the
// network representation of the value.
func (v TypedValue) GobEncode() ([]byte, error) {
	if !v.IsValid() {
		return []byte{byte(KindInvalid)}, nil
	}
	out := make([]byte, 5, 5+v.ByteLength())
	out[0] = byte(v.kind)
	binary.BigEndian.PutUint32(out[1:5], v.bits)
	out, _ = v.AppendTo(out)
	return out, nil
}

// GobDecode implements gob.GobDecoder.
func (v *TypedValue) GobDecode(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("data: empty value encoding")
	}
	if Kind(b[0]) == KindInvalid {
		*v = TypedValue{}
		return nil
	}
	if len(b) < 5 {
		return fmt.Errorf("data: value encoding too short")
	}
	parsed, err := Decode(Kind(b[0]), binary.BigEndian.Uint32(b[1:5]), b[5:])
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
