package aft

import (
	"fmt"
)

// Insert stages nodes, entries, names and group bindings that a receiver
// commits as one all-or-nothing unit.
//
// Nodes are committed in push order. A node may refer to tokens returned by
// earlier pushes of the same Insert, which is how a subgraph is built in one
// transaction.
type Insert struct {
	OpBase
	stager  Stager
	nodes   []*Node
	entries []Entry
	names   []NameBinding
	groups  []GroupBinding
}

// NewInsert creates an empty Insert that resolves types and allocates tokens
// through s.
func NewInsert(s Stager) *Insert {
	op := &Insert{stager: s}
	op.init(false)
	return op
}

func (op *Insert) Kind() OpKind             { return KindInsert }
func (op *Insert) execute(r Receiver) error { return r.ReceiveInsert(op) }

// Push stages n and returns its token. A token is allocated unless n already
// carries one.
func (op *Insert) Push(n *Node) (NodeToken, error) {
	return op.PushWithToken(n, n.token)
}

// PushWithToken stages n under tok. TokenNone asks for a fresh token; any
// other value replaces the node with that token on commit.
//
// Nothing is staged when the node's type is not registered with the stager.
func (op *Insert) PushWithToken(n *Node, tok NodeToken) (NodeToken, error) {
	if n == nil || n.Data == nil {
		return TokenNone, fmt.Errorf("%w: node without variant", ErrIllegalType)
	}
	idx, ok := op.stager.FindType(n.TypeName())
	if !ok {
		return TokenNone, fmt.Errorf("%w: %s", ErrIllegalType, n.TypeName())
	}
	if tok == TokenNone {
		tok = op.stager.AllocateToken()
	}
	n.setTypeIndex(idx)
	n.setToken(tok)
	op.nodes = append(op.nodes, n)
	return tok, nil
}

// PushEntry stages an entry (or an entry delete).
func (op *Insert) PushEntry(e Entry) {
	op.entries = append(op.entries, e)
}

// PushName stages a name binding.
func (op *Insert) PushName(name string, tok NodeToken) {
	op.names = append(op.names, NameBinding{Name: name, Token: tok})
}

// PushGroup stages a group binding. Unknown groups are created on commit.
func (op *Insert) PushGroup(g GroupBinding) {
	op.groups = append(op.groups, g)
}

// Nodes returns the staged nodes in push order.
func (op *Insert) Nodes() []*Node { return op.nodes }

// Entries returns the staged entries in push order.
func (op *Insert) Entries() []Entry { return op.entries }

// Names returns the staged name bindings.
func (op *Insert) Names() []NameBinding { return op.names }

// Groups returns the staged group bindings.
func (op *Insert) Groups() []GroupBinding { return op.groups }

// Tokens returns the tokens of the staged nodes in push order.
func (op *Insert) Tokens() []NodeToken {
	out := make([]NodeToken, len(op.nodes))
	for i, n := range op.nodes {
		out[i] = n.token
	}
	return out
}

// IsEmpty reports whether nothing was staged.
func (op *Insert) IsEmpty() bool {
	return len(op.nodes) == 0 && len(op.entries) == 0 && len(op.names) == 0 && len(op.groups) == 0
}

func (op *Insert) String() string {
	return fmt.Sprintf("Insert seq=%d nodes=%d entries=%d names=%d groups=%d",
		op.Sequence, len(op.nodes), len(op.entries), len(op.names), len(op.groups))
}
