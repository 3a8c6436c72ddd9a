package data

import (
	"bytes"
	"net/netip"
	"testing"
)

func TestConcatKeys(t *testing.T) {
	keys := []Key{
		NewKey("vrf", Uint16(0x0007)),
		NewKey("ip.proto", Uint8(6)),
		NewKey("ip.dst", Prefix(netip.MustParsePrefix("10.128.0.0/9"))),
	}

	got := ConcatKeys(keys)
	if got.Kind() != KindBytes {
		t.Fatalf("Kind() = %s, want bytes", got.Kind())
	}
	if got.BitLength() != 16+8+9 {
		t.Errorf("BitLength() = %d, want %d", got.BitLength(), 16+8+9)
	}
	want := []byte{0x00, 0x07, 0x06, 0x0a, 0x80}
	if !bytes.Equal(got.Serialize(), want) {
		t.Errorf("Serialize() = %x, want %x", got.Serialize(), want)
	}

	again := ConcatKeys(keys)
	if !again.Equal(got) {
		t.Error("ConcatKeys() is not deterministic")
	}
}

func TestConcatKeysAddsBitLengths(t *testing.T) {
	got := ConcatKeys([]Key{NewKey("flag", Bool(true)), NewKey("label", Uint(5, 20))})
	if got.BitLength() != 1+20 {
		t.Errorf("BitLength() = %d, want %d", got.BitLength(), 1+20)
	}
	if got.ByteLength() != 3 {
		t.Errorf("ByteLength() = %d, want 3", got.ByteLength())
	}
	want := []byte{0x80, 0x00, 0x28}
	if !bytes.Equal(got.Serialize(), want) {
		t.Errorf("Serialize() = %x, want %x", got.Serialize(), want)
	}

	short := ConcatKeys([]Key{NewKey("flag", Bool(true)), NewKey("proto", Uint8(1))})
	if short.BitLength() != 1+8 {
		t.Errorf("BitLength() = %d, want %d", short.BitLength(), 1+8)
	}
	if !bytes.Equal(short.Serialize(), []byte{0x80, 0x80}) {
		t.Errorf("Serialize() = %x, want 8080", short.Serialize())
	}
}

func TestConcatKeysEmpty(t *testing.T) {
	got := ConcatKeys(nil)
	if !got.IsValid() || got.BitLength() != 0 {
		t.Errorf("ConcatKeys(nil) = %v, want empty bytes value", got)
	}
}

func TestKeyEqual(t *testing.T) {
	a := NewKey("port", Uint16(80))
	if !a.Equal(NewKey("port", Uint16(80))) {
		t.Error("equal keys should match")
	}
	if a.Equal(NewKey("port", Uint32(80))) {
		t.Error("keys of different width should not match")
	}
	if a.Equal(NewKey("sport", Uint16(80))) {
		t.Error("keys of different fields should not match")
	}
	if (Key{Field: NewField("x")}).Equal(Key{Field: NewField("x")}) {
		t.Error("keys without data should not match")
	}
}

func TestDataForField(t *testing.T) {
	keys := []Key{NewKey("a", Uint8(1)), NewKey("b", Uint8(2))}
	if v, ok := DataForField(keys, "b"); !ok || v.AsUint64() != 2 {
		t.Errorf("DataForField(b) = %v, %v", v, ok)
	}
	if _, ok := DataForField(keys, "c"); ok {
		t.Error("DataForField(c) should not be found")
	}
}

func TestParameters(t *testing.T) {
	var p Parameters
	if _, ok := p.Get("x"); ok {
		t.Error("nil Parameters should be empty")
	}
	p.Set("b", Uint8(2))
	p.Set("a", String("one"))
	if got := p.Keys(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", got)
	}
	c := p.Clone()
	c.Set("c", Bool(true))
	if _, ok := p.Get("c"); ok {
		t.Error("Clone() shares its map with the original")
	}
	if got, want := p.String(), `{a="one", b=2}`; got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}
