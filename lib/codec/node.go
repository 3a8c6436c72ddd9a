package codec

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/data"
)

// --------------------------------------------------------------------------
// Nodes
// --------------------------------------------------------------------------

// NodeDoc is the document form of a node: the header plus exactly one
// variant. Discard and Continue carry no variant data and are identified by
// Type alone.
type NodeDoc struct {
	Type   string          `json:"type" yaml:"type"`
	Token  aft.NodeToken   `json:"token" yaml:"token"`
	Next   aft.NodeToken   `json:"next" yaml:"next"`
	Mask   uint64          `json:"mask" yaml:"mask"`
	Group  aft.GroupIndex  `json:"group,omitempty" yaml:"group,omitempty"`
	Params data.Parameters `json:"params,omitempty" yaml:"params,omitempty"`
	Debug  string          `json:"debug,omitempty" yaml:"debug,omitempty"`

	Receive     *aft.Receive     `json:"receive,omitempty" yaml:"receive,omitempty"`
	Match       *aft.Match       `json:"match,omitempty" yaml:"match,omitempty"`
	Switch      *aft.Switch      `json:"switch,omitempty" yaml:"switch,omitempty"`
	List        *aft.List        `json:"list,omitempty" yaml:"list,omitempty"`
	IndexedList *aft.IndexedList `json:"indexed_list,omitempty" yaml:"indexed_list,omitempty"`
	LoadBalance *aft.LoadBalance `json:"load_balance,omitempty" yaml:"load_balance,omitempty"`
	Tree        *aft.Tree        `json:"tree,omitempty" yaml:"tree,omitempty"`
	Table       *aft.Table       `json:"table,omitempty" yaml:"table,omitempty"`
	Lookup      *aft.Lookup      `json:"lookup,omitempty" yaml:"lookup,omitempty"`
	Counter     *aft.Counter     `json:"counter,omitempty" yaml:"counter,omitempty"`
	Policer     *aft.Policer     `json:"policer,omitempty" yaml:"policer,omitempty"`
	Indirect    *aft.Indirect    `json:"indirect,omitempty" yaml:"indirect,omitempty"`
	Decap       *aft.Decap       `json:"decap,omitempty" yaml:"decap,omitempty"`
	Encap       *aft.Encap       `json:"encap,omitempty" yaml:"encap,omitempty"`
	Write       *aft.Write       `json:"write,omitempty" yaml:"write,omitempty"`
	Variable    *aft.Variable    `json:"variable,omitempty" yaml:"variable,omitempty"`
	Selector    *aft.Selector    `json:"selector,omitempty" yaml:"selector,omitempty"`
	Unilist     *aft.Unilist     `json:"unilist,omitempty" yaml:"unilist,omitempty"`
	Replicate   *aft.Replicate   `json:"replicate,omitempty" yaml:"replicate,omitempty"`
	InputPort   *aft.InputPort   `json:"input_port,omitempty" yaml:"input_port,omitempty"`
	OutputPort  *aft.OutputPort  `json:"output_port,omitempty" yaml:"output_port,omitempty"`
}

// EncodeNode converts n into its document form. The document does not share
// memory with n.
func EncodeNode(n *aft.Node) (NodeDoc, error) {
	if n == nil || n.Data == nil {
		return NodeDoc{}, fmt.Errorf("%w: node without variant", aft.ErrIllegalType)
	}
	c := n.Clone()
	doc := NodeDoc{
		Type:   c.TypeName(),
		Token:  c.Token(),
		Next:   c.Next,
		Mask:   c.Mask,
		Group:  c.Group,
		Params: c.Params,
		Debug:  c.Debug,
	}

	switch d := c.Data.(type) {
	case *aft.Discard, *aft.Continue:
	case *aft.Receive:
		doc.Receive = d
	case *aft.Match:
		doc.Match = d
	case *aft.Switch:
		doc.Switch = d
	case *aft.List:
		doc.List = d
	case *aft.IndexedList:
		doc.IndexedList = d
	case *aft.LoadBalance:
		doc.LoadBalance = d
	case *aft.Tree:
		doc.Tree = d
	case *aft.Table:
		doc.Table = d
	case *aft.Lookup:
		doc.Lookup = d
	case *aft.Counter:
		doc.Counter = d
	case *aft.Policer:
		doc.Policer = d
	case *aft.Indirect:
		doc.Indirect = d
	case *aft.Decap:
		doc.Decap = d
	case *aft.Encap:
		doc.Encap = d
	case *aft.Write:
		doc.Write = d
	case *aft.Variable:
		doc.Variable = d
	case *aft.Selector:
		doc.Selector = d
	case *aft.Unilist:
		doc.Unilist = d
	case *aft.Replicate:
		doc.Replicate = d
	case *aft.InputPort:
		doc.InputPort = d
	case *aft.OutputPort:
		doc.OutputPort = d
	default:
		return NodeDoc{}, fmt.Errorf("%w: %T", aft.ErrIllegalType, c.Data)
	}
	return doc, nil
}

// variants returns every variant set in doc.
func (doc *NodeDoc) variants() []aft.NodeData {
	var out []aft.NodeData
	add := func(set bool, d aft.NodeData) {
		if set {
			out = append(out, d)
		}
	}
	add(doc.Receive != nil, doc.Receive)
	add(doc.Match != nil, doc.Match)
	add(doc.Switch != nil, doc.Switch)
	add(doc.List != nil, doc.List)
	add(doc.IndexedList != nil, doc.IndexedList)
	add(doc.LoadBalance != nil, doc.LoadBalance)
	add(doc.Tree != nil, doc.Tree)
	add(doc.Table != nil, doc.Table)
	add(doc.Lookup != nil, doc.Lookup)
	add(doc.Counter != nil, doc.Counter)
	add(doc.Policer != nil, doc.Policer)
	add(doc.Indirect != nil, doc.Indirect)
	add(doc.Decap != nil, doc.Decap)
	add(doc.Encap != nil, doc.Encap)
	add(doc.Write != nil, doc.Write)
	add(doc.Variable != nil, doc.Variable)
	add(doc.Selector != nil, doc.Selector)
	add(doc.Unilist != nil, doc.Unilist)
	add(doc.Replicate != nil, doc.Replicate)
	add(doc.InputPort != nil, doc.InputPort)
	add(doc.OutputPort != nil, doc.OutputPort)
	return out
}

// DecodeNode builds a node from doc. The token of the document is not
// stamped; it is up to the caller to push the node with doc.Token.
func DecodeNode(doc NodeDoc) (*aft.Node, error) {
	var d aft.NodeData
	switch vs := doc.variants(); len(vs) {
	case 0:
		if doc.Type != aft.TypeDiscard && doc.Type != aft.TypeContinue {
			return nil, fmt.Errorf("%w: %q node without variant", aft.ErrIllegalType, doc.Type)
		}
		d, _ = NewVariant(doc.Type)
	case 1:
		d = vs[0]
		if doc.Type != "" && doc.Type != d.TypeName() {
			return nil, fmt.Errorf("%w: %q node carries a %s variant", aft.ErrIllegalType, doc.Type, d.TypeName())
		}
	default:
		return nil, fmt.Errorf("%w: %q node carries %d variants", aft.ErrIllegalType, doc.Type, len(vs))
	}

	n := aft.NewNode(d)
	n.Next = doc.Next
	n.Mask = doc.Mask
	n.Group = doc.Group
	n.Params = doc.Params
	n.Debug = doc.Debug
	return n.Clone(), nil
}

// NewVariant returns an empty variant of the named type. Every token field
// starts out as TokenNone, so a reference that was left out is caught by
// validation instead of silently pointing at the discard node.
func NewVariant(typeName string) (aft.NodeData, error) {
	none := aft.TokenNone
	switch typeName {
	case aft.TypeDiscard:
		return &aft.Discard{}, nil
	case aft.TypeContinue:
		return &aft.Continue{}, nil
	case aft.TypeReceive:
		return &aft.Receive{}, nil
	case aft.TypeMatch:
		return &aft.Match{TrueNode: none, FalseNode: none}, nil
	case aft.TypeSwitch:
		return &aft.Switch{Default: none}, nil
	case aft.TypeList:
		return &aft.List{}, nil
	case aft.TypeIndexedList:
		return &aft.IndexedList{}, nil
	case aft.TypeLoadBalance:
		return &aft.LoadBalance{}, nil
	case aft.TypeTree:
		return &aft.Tree{Default: none}, nil
	case aft.TypeTable:
		return &aft.Table{Default: none}, nil
	case aft.TypeLookup:
		return &aft.Lookup{Container: none}, nil
	case aft.TypeCounter:
		return &aft.Counter{}, nil
	case aft.TypePolicer:
		return &aft.Policer{}, nil
	case aft.TypeIndirect:
		return &aft.Indirect{Target: none}, nil
	case aft.TypeDecap:
		return &aft.Decap{}, nil
	case aft.TypeEncap:
		return &aft.Encap{}, nil
	case aft.TypeWrite:
		return &aft.Write{}, nil
	case aft.TypeVariable:
		return &aft.Variable{}, nil
	case aft.TypeSelector:
		return &aft.Selector{}, nil
	case aft.TypeUnilist:
		return &aft.Unilist{OrderedList: none, Selector: none}, nil
	case aft.TypeReplicate:
		return &aft.Replicate{}, nil
	case aft.TypeInputPort:
		return &aft.InputPort{}, nil
	case aft.TypeOutputPort:
		return &aft.OutputPort{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", aft.ErrIllegalType, typeName)
	}
}
