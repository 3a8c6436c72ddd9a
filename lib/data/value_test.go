package data

import (
	"bytes"
	"encoding/json"
	"gopkg.in/yaml.v3"
	"net/netip"
	"testing"
)

func TestValueLengths(t *testing.T) {
	tests := []struct {
		name      string
		value     TypedValue
		wantBits  uint32
		wantBytes int
	}{
		{"bool", Bool(true), 1, 1},
		{"uint8", Uint8(7), 8, 1},
		{"uint16", Uint16(7), 16, 2},
		{"uint32", Uint32(7), 32, 4},
		{"uint64", Uint64(7), 64, 8},
		{"uint20", Uint(0xfffff, 20), 20, 3},
		{"string", String("eth0"), 32, 4},
		{"bytes", Bytes([]byte{0x0a, 0x01}, 12), 12, 2},
		{"prefix", Prefix(netip.MustParsePrefix("10.0.0.0/8")), 8, 1},
		{"default route", Prefix(netip.MustParsePrefix("0.0.0.0/0")), 0, 0},
		{"addr6", Addr(netip.MustParseAddr("2001:db8::1")), 128, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.BitLength(); got != tt.wantBits {
				t.Errorf("BitLength() = %d, want %d", got, tt.wantBits)
			}
			if got := tt.value.ByteLength(); got != tt.wantBytes {
				t.Errorf("ByteLength() = %d, want %d", got, tt.wantBytes)
			}
			if got := len(tt.value.Serialize()); got != tt.wantBytes {
				t.Errorf("len(Serialize()) = %d, want %d", got, tt.wantBytes)
			}
		})
	}
}

func TestIntegerNetworkOrder(t *testing.T) {
	tests := []struct {
		name  string
		value TypedValue
		want  []byte
	}{
		{"uint8", Uint8(0xab), []byte{0xab}},
		{"uint16", Uint16(0x0102), []byte{0x01, 0x02}},
		{"uint32", Uint32(0x01020304), []byte{0x01, 0x02, 0x03, 0x04}},
		{"uint64", Uint64(0x0102030405060708), []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{"uint20", Uint(0x12345, 20), []byte{0x01, 0x23, 0x45}},
		{"bool false", Bool(false), []byte{0}},
		{"bool true", Bool(true), []byte{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.value.Serialize(); !bytes.Equal(got, tt.want) {
				t.Errorf("Serialize() = %x, want %x", got, tt.want)
			}
			back, err := Decode(tt.value.Kind(), tt.value.BitLength(), tt.value.Serialize())
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if !back.Equal(tt.value) {
				t.Errorf("Decode() = %v, want %v", back, tt.value)
			}
		})
	}
}

func TestUintMasksHighBits(t *testing.T) {
	v := Uint(0xfff12345, 20)
	if got := v.AsUint64(); got != 0x12345 {
		t.Errorf("AsUint64() = %x, want %x", got, 0x12345)
	}
}

func TestDecodeRejectsBadLength(t *testing.T) {
	if _, err := Decode(KindUint16, 16, []byte{1}); err == nil {
		t.Error("Decode() with short buffer should fail")
	}
	if _, err := Decode(KindUint16, 12, []byte{1, 2}); err == nil {
		t.Error("Decode() with wrong uint16 width should fail")
	}
	if _, err := Decode(KindBool, 8, []byte{1}); err == nil {
		t.Error("Decode() of 8 bit bool should fail")
	}
}

func TestAccessorPanicsOnWrongKind(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("AsString() on an integer should panic")
		}
	}()
	_ = Uint8(1).AsString()
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b TypedValue
		want int
	}{
		{"equal ints", Uint16(5), Uint16(5), 0},
		{"smaller int", Uint16(4), Uint16(5), -1},
		{"shorter first", Uint8(200), Uint16(1), -1},
		{"bytes", Bytes([]byte{1, 2}, 16), Bytes([]byte{1, 3}, 16), -1},
		{"strings", String("b"), String("a"), 1},
		{"same bits different kind", Uint8(1), String("a"), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Compare(tt.b); got != tt.want {
				t.Errorf("Compare() = %d, want %d", got, tt.want)
			}
			if got := tt.b.Compare(tt.a); got != -tt.want {
				t.Errorf("reverse Compare() = %d, want %d", got, -tt.want)
			}
		})
	}
}

func TestHasPrefix(t *testing.T) {
	addr := Addr(netip.MustParseAddr("10.1.2.3"))
	tests := []struct {
		prefix string
		want   bool
	}{
		{"10.0.0.0/8", true},
		{"10.1.0.0/16", true},
		{"10.0.0.0/15", true},
		{"10.2.0.0/15", false},
		{"11.0.0.0/8", false},
		{"0.0.0.0/0", true},
		{"10.1.2.3/32", true},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			p := Prefix(netip.MustParsePrefix(tt.prefix))
			if got := addr.HasPrefix(p); got != tt.want {
				t.Errorf("HasPrefix(%s) = %v, want %v", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestValueJSON(t *testing.T) {
	values := []TypedValue{
		Bool(true),
		Uint8(3),
		Uint16(300),
		Uint32(70000),
		Uint64(1 << 63),
		Uint(0x12345, 20),
		String("port-1"),
		Prefix(netip.MustParsePrefix("192.168.0.0/20")),
		{},
	}

	for _, v := range values {
		t.Run(v.String(), func(t *testing.T) {
			b, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			var got TypedValue
			if err := json.Unmarshal(b, &got); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", b, err)
			}
			if got.IsValid() != v.IsValid() || (v.IsValid() && !got.Equal(v)) {
				t.Errorf("round trip of %s = %v, want %v", b, got, v)
			}
		})
	}
}

func TestValueYAMLPseudoKinds(t *testing.T) {
	input := `
- {kind: prefix, value: 10.0.0.0/8}
- {kind: addr, value: 192.0.2.1}
- {kind: uint16, value: "0x0800"}
- {kind: uint64, bits: 20, value: "100"}
`
	var got []TypedValue
	if err := yaml.Unmarshal([]byte(input), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	want := []TypedValue{
		Prefix(netip.MustParsePrefix("10.0.0.0/8")),
		Addr(netip.MustParseAddr("192.0.2.1")),
		Uint16(0x0800),
		Uint(100, 20),
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("value %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestValueYAMLRejectsOverflow(t *testing.T) {
	var v TypedValue
	if err := yaml.Unmarshal([]byte(`{kind: uint64, bits: 4, value: "16"}`), &v); err == nil {
		t.Error("Unmarshal() of 16 into 4 bits should fail")
	}
}

func TestValueGob(t *testing.T) {
	for _, v := range []TypedValue{Uint(9, 12), String("x"), Bytes([]byte{0xff, 0xf0}, 12), {}} {
		b, err := v.GobEncode()
		if err != nil {
			t.Fatalf("GobEncode() error = %v", err)
		}
		var got TypedValue
		if err := got.GobDecode(b); err != nil {
			t.Fatalf("GobDecode() error = %v", err)
		}
		if got.IsValid() != v.IsValid() || (v.IsValid() && !got.Equal(v)) {
			t.Errorf("gob round trip = %v, want %v", got, v)
		}
	}
}

func TestFieldYAMLForms(t *testing.T) {
	var got []Field
	if err := yaml.Unmarshal([]byte(`[ip.dst, {name: vrf}]`), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "ip.dst" || got[1].Name != "vrf" {
		t.Errorf("Unmarshal() = %v, want [ip.dst vrf]", got)
	}

	out, err := yaml.Marshal(Fields("ip.dst"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != "- ip.dst\n" {
		t.Errorf("Marshal() = %q, want %q", out, "- ip.dst\n")
	}
}
