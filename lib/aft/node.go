package aft

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/data"
	"io"
	"sort"
	"strings"
)

// --------------------------------------------------------------------------
// Node
// --------------------------------------------------------------------------

// Node is one element of the forwarding graph: a common header plus exactly
// one variant in Data.
//
// The token and type index are stamped by Insert.Push and can not be set
// from outside this package.
type Node struct {
	token     NodeToken
	typeIndex TypeIndex

	Next   NodeToken       // optional successor, TokenNone if unset
	Mask   uint64          // defaults to MaskAll
	Group  GroupIndex      // defaults to GroupNone
	Params data.Parameters // optional
	Debug  string          // free text shown in descriptions

	Data NodeData
}

// NewNode wraps d into a node with default header values.
func NewNode(d NodeData) *Node {
	return &Node{
		token: TokenNone,
		Next:  TokenNone,
		Mask:  MaskAll,
		Group: GroupNone,
		Data:  d,
	}
}

// WithNext sets the successor and returns n.
func (n *Node) WithNext(t NodeToken) *Node {
	n.Next = t
	return n
}

// WithParam adds a parameter and returns n.
func (n *Node) WithParam(name string, v data.TypedValue) *Node {
	n.Params.Set(name, v)
	return n
}

// Token returns the token stamped by Insert.Push, TokenNone before that.
func (n *Node) Token() NodeToken { return n.token }

// TypeIndex returns the type index stamped by Insert.Push.
func (n *Node) TypeIndex() TypeIndex { return n.typeIndex }

func (n *Node) setToken(t NodeToken)       { n.token = t }
func (n *Node) setTypeIndex(idx TypeIndex) { n.typeIndex = idx }

// TypeName returns the stable discriminator of the node's variant.
func (n *Node) TypeName() string {
	if n.Data == nil {
		return ""
	}
	return n.Data.TypeName()
}

// IsContainer reports whether entries can be attached to the node.
func (n *Node) IsContainer() bool {
	return IsContainerType(n.TypeName())
}

// NextNodes returns every token the node refers to: the header successor
// followed by the variant's children.
func (n *Node) NextNodes() []NodeToken {
	var out []NodeToken
	if n.Next.IsSet() {
		out = append(out, n.Next)
	}

	switch d := n.Data.(type) {
	case *Discard, *Continue, *Receive, *LoadBalance, *Counter, *Policer,
		*Decap, *Encap, *Write, *Variable, *InputPort, *OutputPort:
	case *Match:
		out = append(out, d.TrueNode)
		if d.FalseNode.IsSet() {
			out = append(out, d.FalseNode)
		}
	case *Switch:
		out = append(out, d.Default)
		for _, c := range d.sortedCases() {
			out = append(out, d.Cases[c])
		}
	case *List:
		out = append(out, d.Nodes...)
	case *IndexedList:
		for _, e := range d.Entries {
			out = append(out, e.Value)
		}
	case *Tree:
		out = append(out, d.Default)
	case *Table:
		out = append(out, d.Default)
	case *Lookup:
		out = append(out, d.Container)
	case *Indirect:
		out = append(out, d.Target)
	case *Selector:
		out = append(out, d.Nodes...)
	case *Unilist:
		out = append(out, d.Elements...)
		if d.OrderedList.IsSet() {
			out = append(out, d.OrderedList)
		}
		if d.Selector.IsSet() {
			out = append(out, d.Selector)
		}
	case *Replicate:
		for _, e := range d.Entries {
			out = append(out, e.Value)
		}
	default:
		panic(fmt.Sprintf("aft: unhandled node variant %T", n.Data))
	}
	return out
}

// IsValid checks the node's references against v and writes the reasons of a
// failure to w.
func (n *Node) IsValid(v Validator, w io.Writer) bool {
	if n.Data == nil {
		diag(w, "node %d has no variant", n.token)
		return false
	}

	ok := true
	if n.Next.IsSet() && !v.ValidateToken(n.Next, w) {
		ok = false
	}

	switch d := n.Data.(type) {
	case *Discard, *Continue, *Receive, *Counter, *Policer, *Decap, *Unilist, *Replicate:
	case *Match:
		ok = v.ValidateField(d.Field, w) && ok
		ok = v.ValidateToken(d.TrueNode, w) && ok
		if d.FalseNode.IsSet() {
			ok = v.ValidateToken(d.FalseNode, w) && ok
		}
		if want := d.expectedBytes(); d.Value.ByteLength() != want {
			diag(w, "match value %s is %d bytes, expected %d", d.Value, d.Value.ByteLength(), want)
			ok = false
		}
	case *Switch:
		ok = v.ValidateField(d.Field, w) && ok
		ok = v.ValidateToken(d.Default, w) && ok
		for _, c := range d.sortedCases() {
			ok = v.ValidateToken(d.Cases[c], w) && ok
		}
	case *List:
		ok = v.ValidateTokens(d.Nodes, w) && ok
	case *IndexedList:
		if int(d.MaxIndex) < len(d.Entries) {
			diag(w, "indexed list holds %d entries but max index is %d", len(d.Entries), d.MaxIndex)
			ok = false
		}
		ok = validateAll(d.Entries, func(e IndexEntry) bool {
			return embeddedEntryValid(e, d.MaxIndex, v, w)
		}) && ok
	case *LoadBalance:
		ok = v.ValidateFields(d.Fields, w) && ok
	case *Tree:
		ok = v.ValidateFields(d.Fields, w) && ok
		ok = v.ValidateToken(d.Default, w) && ok
	case *Table:
		ok = v.ValidateFields(d.Fields, w) && ok
		ok = v.ValidateToken(d.Default, w) && ok
		if d.MaxIndex == 0 {
			diag(w, "table has no capacity")
			ok = false
		}
	case *Lookup:
		ok = v.ValidateFields(d.Fields, w) && ok
		ok = v.ValidateToken(d.Container, w) && ok
	case *Indirect:
		ok = v.ValidateToken(d.Target, w) && ok
	case *Encap:
		ok = v.ValidateKeys(d.Keys, w) && ok
	case *Write:
		ok = v.ValidateKey(d.Key, w) && ok
	case *Variable:
		ok = v.ValidateKey(d.Key, w) && ok
	case *Selector:
		ok = v.ValidateTokens(d.Nodes, w) && ok
		if len(d.Weights) != 0 && len(d.Weights) != len(d.Nodes) {
			diag(w, "selector has %d weights for %d nodes", len(d.Weights), len(d.Nodes))
			ok = false
		}
		if len(d.Balances) != 0 && len(d.Balances) != len(d.Nodes) {
			diag(w, "selector has %d balances for %d nodes", len(d.Balances), len(d.Nodes))
			ok = false
		}
	case *InputPort:
		// the header successor is what the port feeds into
		if !n.Next.IsSet() {
			diag(w, "input port %d has no next node", d.Index)
			ok = false
		}
	case *OutputPort:
	default:
		panic(fmt.Sprintf("aft: unhandled node variant %T", n.Data))
	}
	return ok
}

// Clone returns a deep copy, including token and type index.
func (n *Node) Clone() *Node {
	c := *n
	c.Params = n.Params.Clone()
	if n.Data != nil {
		c.Data = n.Data.clone()
	}
	return &c
}

// Describe writes a one line description of the node to w.
func (n *Node) Describe(w io.Writer) {
	_, _ = io.WriteString(w, n.String())
}

func (n *Node) String() string {
	var sb strings.Builder
	sb.WriteString(n.TypeName())
	fmt.Fprintf(&sb, " token=%s", tokenString(n.token))
	if n.Next.IsSet() {
		fmt.Fprintf(&sb, " next=%s", tokenString(n.Next))
	}
	if n.Mask != MaskAll {
		fmt.Fprintf(&sb, " mask=%#x", n.Mask)
	}
	if n.Group != GroupNone {
		fmt.Fprintf(&sb, " group=%d", n.Group)
	}
	if n.Data != nil {
		n.Data.describe(&sb)
	}
	if len(n.Params) > 0 {
		fmt.Fprintf(&sb, " params=%s", n.Params)
	}
	if n.Debug != "" {
		fmt.Fprintf(&sb, " debug=%q", n.Debug)
	}
	return sb.String()
}

func tokenString(t NodeToken) string {
	switch t {
	case TokenNone:
		return "none"
	case TokenDiscard:
		return "discard"
	default:
		return fmt.Sprintf("%d", uint64(t))
	}
}

func tokensString(ts []NodeToken) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = tokenString(t)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func fieldsString(fs []data.Field) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Name
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// --------------------------------------------------------------------------
// Type registry
// --------------------------------------------------------------------------

// NodeData is the closed set of node variants. It can only be implemented
// inside this package.
type NodeData interface {
	// TypeName is the stable name the variant is registered under.
	TypeName() string

	clone() NodeData
	describe(sb *strings.Builder)
}

// Node type names.
const (
	TypeDiscard     = "Discard"
	TypeContinue    = "Continue"
	TypeReceive     = "Receive"
	TypeMatch       = "Match"
	TypeSwitch      = "Switch"
	TypeList        = "List"
	TypeIndexedList = "IndexedList"
	TypeLoadBalance = "LoadBalance"
	TypeTree        = "Tree"
	TypeTable       = "Table"
	TypeLookup      = "Lookup"
	TypeCounter     = "Counter"
	TypePolicer     = "Policer"
	TypeIndirect    = "Indirect"
	TypeDecap       = "Decap"
	TypeEncap       = "Encap"
	TypeWrite       = "Write"
	TypeVariable    = "Variable"
	TypeSelector    = "Selector"
	TypeUnilist     = "Unilist"
	TypeReplicate   = "Replicate"
	TypeInputPort   = "InputPort"
	TypeOutputPort  = "OutputPort"
)

var builtinTypes = []string{
	TypeDiscard, TypeContinue, TypeReceive, TypeMatch, TypeSwitch, TypeList,
	TypeIndexedList, TypeLoadBalance, TypeTree, TypeTable, TypeLookup,
	TypeCounter, TypePolicer, TypeIndirect, TypeDecap, TypeEncap, TypeWrite,
	TypeVariable, TypeSelector, TypeUnilist, TypeReplicate, TypeInputPort,
	TypeOutputPort,
}

var containerTypes = map[string]bool{
	TypeIndexedList: true,
	TypeLoadBalance: true,
	TypeTree:        true,
	TypeTable:       true,
	TypeSelector:    true,
	TypeUnilist:     true,
	TypeReplicate:   true,
}

// BuiltinTypes returns the names of every node variant of this package.
func BuiltinTypes() []string {
	out := make([]string, len(builtinTypes))
	copy(out, builtinTypes)
	return out
}

// IsContainerType reports whether nodes of the named type own entries.
func IsContainerType(name string) bool {
	return containerTypes[name]
}

func sortedKeys[V any](m map[uint64]V) []uint64 {
	keys := make([]uint64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
