package aft

import (
	"bytes"
	"slices"
	"testing"

	"github.com/ValentinKolb/dAFT/lib/data"
)

func TestNextNodes(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want []NodeToken
	}{
		{"counter without next", NewNode(&Counter{}), nil},
		{"counter with next", NewNode(&Counter{}).WithNext(5), []NodeToken{5}},
		{"match without false", NewNode(&Match{TrueNode: 3, FalseNode: TokenNone}), []NodeToken{3}},
		{"match with false", NewNode(&Match{TrueNode: 3, FalseNode: 4}), []NodeToken{3, 4}},
		{"switch", NewNode(&Switch{Default: 1, Cases: map[uint64]NodeToken{20: 7, 10: 6}}), []NodeToken{1, 6, 7}},
		{"list", NewNode(&List{Nodes: []NodeToken{9, 8}}).WithNext(2), []NodeToken{2, 9, 8}},
		{"tree", NewNode(&Tree{Default: TokenDiscard}), []NodeToken{TokenDiscard}},
		{"indexed list", NewNode(&IndexedList{MaxIndex: 2, Entries: []IndexEntry{{Key: 0, Value: 4}, {Key: 1, Value: 5}}}), []NodeToken{4, 5}},
		{"selector", NewNode(&Selector{Nodes: []NodeToken{11, 12}}), []NodeToken{11, 12}},
		{"unilist", NewNode(&Unilist{Elements: []NodeToken{1}, OrderedList: 2, Selector: TokenNone}), []NodeToken{1, 2}},
		{"lookup", NewNode(&Lookup{Container: 6}), []NodeToken{6}},
		{"indirect", NewNode(&Indirect{Target: 8}), []NodeToken{8}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.node.NextNodes(); !slices.Equal(got, tc.want) {
				t.Errorf("NextNodes() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNodeIsValid(t *testing.T) {
	sb := NewSandbox(DefaultConfig(t.Name()))
	_, _ = sb.InsertField("proto", 8)

	tests := []struct {
		name string
		node *Node
		want bool
	}{
		{"match with default width", NewNode(&Match{Field: data.NewField("proto"), Value: data.Uint32(6), TrueNode: TokenDiscard, FalseNode: TokenNone}), true},
		{"match with wrong width", NewNode(&Match{Field: data.NewField("proto"), Value: data.Uint8(6), TrueNode: TokenDiscard, FalseNode: TokenNone}), false},
		{"match with explicit width", NewNode(&Match{Field: data.NewField("proto"), Value: data.Uint8(6), Bits: 8, TrueNode: TokenDiscard, FalseNode: TokenNone}), true},
		{"match with unknown field", NewNode(&Match{Field: data.NewField("ttl"), Value: data.Uint32(6), TrueNode: TokenDiscard, FalseNode: TokenNone}), false},
		{"dangling next", NewNode(&Counter{}).WithNext(99), false},
		{"selector weights mismatch", NewNode(&Selector{Nodes: []NodeToken{TokenDiscard, TokenDiscard}, Weights: []uint32{1}}), false},
		{"selector without weights", NewNode(&Selector{Nodes: []NodeToken{TokenDiscard}}), true},
		{"table without capacity", NewNode(&Table{Default: TokenDiscard}), false},
		{"input port without next", NewNode(&InputPort{Index: 0}), false},
		{"input port", NewNode(&InputPort{Index: 0}).WithNext(TokenDiscard), true},
		{"no variant", &Node{Next: TokenNone}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var diagBuf bytes.Buffer
			if got := sb.ValidateNode(tc.node, &diagBuf); got != tc.want {
				t.Errorf("IsValid() = %v, want %v (%s)", got, tc.want, diagBuf.String())
			}
		})
	}
}

func TestIndexedListValidity(t *testing.T) {
	entries := []IndexEntry{{Key: 0, Value: TokenDiscard}, {Key: 1, Value: TokenDiscard}, {Key: 2, Value: TokenDiscard}}
	tests := []struct {
		maxIndex uint32
		want     bool
	}{
		{2, false},
		{3, true},
		{10, true},
	}
	for _, tc := range tests {
		n := NewNode(&IndexedList{MaxIndex: tc.maxIndex, Entries: entries})
		if got := n.IsValid(AcceptAll{}, nil); got != tc.want {
			t.Errorf("IndexedList(max=%d, %d entries).IsValid() = %v, want %v", tc.maxIndex, len(entries), got, tc.want)
		}
	}
}

func TestNodeCloneIsDeep(t *testing.T) {
	n := NewNode(&Selector{Nodes: []NodeToken{1, 2}, Weights: []uint32{1, 1}}).WithParam("color", data.String("red"))
	n.setToken(42)
	c := n.Clone()

	c.Data.(*Selector).Nodes[0] = 9
	c.Params.Set("color", data.String("blue"))
	if n.Data.(*Selector).Nodes[0] != 1 {
		t.Error("Clone() shares the node list")
	}
	if v, _ := n.Params.Get("color"); v.AsString() != "red" {
		t.Error("Clone() shares the parameters")
	}
	if c.Token() != 42 {
		t.Errorf("Clone().Token() = %d, want 42", c.Token())
	}
}

func TestContainerTypes(t *testing.T) {
	for _, name := range BuiltinTypes() {
		want := name == TypeIndexedList || name == TypeLoadBalance || name == TypeTree || name == TypeTable ||
			name == TypeSelector || name == TypeUnilist || name == TypeReplicate
		if got := IsContainerType(name); got != want {
			t.Errorf("IsContainerType(%s) = %v, want %v", name, got, want)
		}
	}
}
