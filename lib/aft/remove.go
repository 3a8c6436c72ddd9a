package aft

import (
	"fmt"
	"slices"
)

// Remove erases nodes, entries, names and group bindings as one
// all-or-nothing unit. Entries are removed before nodes.
type Remove struct {
	OpBase
	tokens  []NodeToken
	entries []Entry
	names   []string
	groups  []GroupBinding
}

// NewRemove creates an empty Remove.
func NewRemove() *Remove {
	op := &Remove{}
	op.init(false)
	return op
}

// NewRemoveFromInsert builds the inverse of ins: its entries in reverse
// order, then its nodes in reverse order, plus its names and groups. Entry
// deletes staged by ins have no inverse and are skipped.
func NewRemoveFromInsert(ins *Insert) *Remove {
	op := NewRemove()
	for i := len(ins.entries) - 1; i >= 0; i-- {
		if !IsDelete(ins.entries[i]) {
			op.entries = append(op.entries, ins.entries[i])
		}
	}
	for i := len(ins.nodes) - 1; i >= 0; i-- {
		op.tokens = append(op.tokens, ins.nodes[i].token)
	}
	for _, nb := range ins.names {
		op.names = append(op.names, nb.Name)
	}
	op.groups = append(op.groups, ins.groups...)
	return op
}

func (op *Remove) Kind() OpKind             { return KindRemove }
func (op *Remove) execute(r Receiver) error { return r.ReceiveRemove(op) }

// Push stages the removal of a node.
func (op *Remove) Push(tok NodeToken) {
	op.tokens = append(op.tokens, tok)
}

// PushEntry stages the removal of an entry. Only parent and key of e are
// used.
func (op *Remove) PushEntry(e Entry) {
	op.entries = append(op.entries, e)
}

// PushName stages the removal of a name binding.
func (op *Remove) PushName(name string) {
	op.names = append(op.names, name)
}

// PushGroup stages the removal of a node from a group.
func (op *Remove) PushGroup(g GroupBinding) {
	op.groups = append(op.groups, g)
}

// Tokens returns the staged node tokens in removal order.
func (op *Remove) Tokens() []NodeToken { return op.tokens }

// Entries returns the staged entries in removal order.
func (op *Remove) Entries() []Entry { return op.entries }

// Names returns the staged names.
func (op *Remove) Names() []string { return op.names }

// Groups returns the staged group bindings.
func (op *Remove) Groups() []GroupBinding { return op.groups }

// Update drops from op every token, entry and name that newer also removes.
// An update modeled as remove-then-insert uses it so the older remove does
// not erase state that the newer operation now owns.
func (op *Remove) Update(newer *Remove) {
	tokens := make(map[NodeToken]bool, len(newer.tokens))
	for _, t := range newer.tokens {
		tokens[t] = true
	}
	entries := make(map[entryID]bool, len(newer.entries))
	for _, e := range newer.entries {
		entries[idOf(e)] = true
	}
	names := make(map[string]bool, len(newer.names))
	for _, n := range newer.names {
		names[n] = true
	}

	op.tokens = slices.DeleteFunc(op.tokens, func(t NodeToken) bool { return tokens[t] })
	op.entries = slices.DeleteFunc(op.entries, func(e Entry) bool { return entries[idOf(e)] })
	op.names = slices.DeleteFunc(op.names, func(n string) bool { return names[n] })
}

// IsEmpty reports whether nothing was staged.
func (op *Remove) IsEmpty() bool {
	return len(op.tokens) == 0 && len(op.entries) == 0 && len(op.names) == 0 && len(op.groups) == 0
}

func (op *Remove) String() string {
	return fmt.Sprintf("Remove seq=%d nodes=%d entries=%d names=%d groups=%d",
		op.Sequence, len(op.tokens), len(op.entries), len(op.names), len(op.groups))
}

// entryID identifies an entry within a sandbox: parent plus canonical key.
type entryID struct {
	parent NodeToken
	key    string
}

func idOf(e Entry) entryID {
	return entryID{parent: e.Header().Parent, key: KeyOf(e).String()}
}
