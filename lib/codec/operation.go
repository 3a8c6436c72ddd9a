package codec

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/data"
)

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// OperationDoc is the document form of an operation. Only the fields of its
// kind are set. The reply fields are filled in by whoever executed it.
type OperationDoc struct {
	Kind     string `json:"kind" yaml:"kind"`
	Sequence uint64 `json:"sequence,omitempty" yaml:"sequence,omitempty"`

	// Insert and Remove. A Remove only uses the names of its name bindings.
	Nodes   []NodeDoc          `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Entries []EntryDoc         `json:"entries,omitempty" yaml:"entries,omitempty"`
	Names   []aft.NameBinding  `json:"names,omitempty" yaml:"names,omitempty"`
	Groups  []aft.GroupBinding `json:"groups,omitempty" yaml:"groups,omitempty"`

	// Remove and NodeInfo
	Tokens []aft.NodeToken `json:"tokens,omitempty" yaml:"tokens,omitempty"`

	// SandboxFind
	Find  aft.FindOp `json:"find,omitempty" yaml:"find,omitempty"`
	Value string     `json:"value,omitempty" yaml:"value,omitempty"`

	// SandboxFind by token, NodeTest and EntryTest
	Token aft.NodeToken `json:"token,omitempty" yaml:"token,omitempty"`
	Test  uint8         `json:"test,omitempty" yaml:"test,omitempty"`
	Next  aft.NodeToken `json:"next,omitempty" yaml:"next,omitempty"`
	Count int           `json:"count,omitempty" yaml:"count,omitempty"`
	Group string        `json:"group,omitempty" yaml:"group,omitempty"`
	Entry *EntryDoc     `json:"entry,omitempty" yaml:"entry,omitempty"`

	// SandboxInfo
	Info aft.InfoRequest `json:"info,omitempty" yaml:"info,omitempty"`

	// NodeActive
	Requests []aft.ActiveRequest `json:"requests,omitempty" yaml:"requests,omitempty"`

	Reply *ReplyDoc `json:"reply,omitempty" yaml:"reply,omitempty"`
}

// ReplyDoc is the outcome of an executed operation.
type ReplyDoc struct {
	Status   bool              `json:"status" yaml:"status"`
	Error    *aft.Error        `json:"error,omitempty" yaml:"error,omitempty"`
	Results  []FindResultDoc   `json:"results,omitempty" yaml:"results,omitempty"`
	Infos    []aft.Info        `json:"infos,omitempty" yaml:"infos,omitempty"`
	Params   data.Parameters   `json:"params,omitempty" yaml:"params,omitempty"`
	Active   []aft.ActiveReply `json:"active,omitempty" yaml:"active,omitempty"`
	Observed int               `json:"observed,omitempty" yaml:"observed,omitempty"`
}

// FindResultDoc is one SandboxFind match.
type FindResultDoc struct {
	Token    aft.NodeToken `json:"token" yaml:"token"`
	TypeName string        `json:"type" yaml:"type"`
	Name     string        `json:"name,omitempty" yaml:"name,omitempty"`
	Node     *NodeDoc      `json:"node,omitempty" yaml:"node,omitempty"`
}

// EncodeOperation converts the request part of op into its document form.
// The reply is added with EncodeReply once op was executed.
func EncodeOperation(op aft.Operation) (OperationDoc, error) {
	doc := OperationDoc{Kind: op.Kind().String(), Sequence: op.Base().Sequence}

	switch o := op.(type) {
	case *aft.Insert:
		for _, n := range o.Nodes() {
			nd, err := EncodeNode(n)
			if err != nil {
				return OperationDoc{}, err
			}
			doc.Nodes = append(doc.Nodes, nd)
		}
		entries, err := encodeEntries(o.Entries())
		if err != nil {
			return OperationDoc{}, err
		}
		doc.Entries = entries
		doc.Names = append(doc.Names, o.Names()...)
		doc.Groups = append(doc.Groups, o.Groups()...)
	case *aft.Remove:
		entries, err := encodeEntries(o.Entries())
		if err != nil {
			return OperationDoc{}, err
		}
		doc.Entries = entries
		doc.Tokens = append(doc.Tokens, o.Tokens()...)
		for _, name := range o.Names() {
			doc.Names = append(doc.Names, aft.NameBinding{Name: name, Token: aft.TokenNone})
		}
		doc.Groups = append(doc.Groups, o.Groups()...)
	case *aft.SandboxInfo:
		doc.Info = o.Request
	case *aft.SandboxFind:
		doc.Find = o.Op
		doc.Token = o.Token
		doc.Value = o.Value
	case *aft.NodeInfo:
		doc.Tokens = append(doc.Tokens, o.Tokens...)
	case *aft.NodeActive:
		doc.Requests = append(doc.Requests, o.Requests...)
	case *aft.NodeTest:
		doc.Test = uint8(o.Op)
		doc.Token = o.Token
		doc.Next = o.Next
		doc.Count = o.Count
		doc.Group = o.Group
	case *aft.EntryTest:
		doc.Test = uint8(o.Op)
		doc.Next = o.Next
		ed, err := EncodeEntry(o.Entry)
		if err != nil {
			return OperationDoc{}, err
		}
		doc.Entry = &ed
	default:
		return OperationDoc{}, fmt.Errorf("%w: %T", aft.ErrUnsupported, op)
	}

	return doc, nil
}

// DecodeOperation builds an operation from doc. Nodes of an Insert are
// pushed through stager with the tokens they carry, so tokens allocated by
// the sender are kept.
func DecodeOperation(doc OperationDoc, stager aft.Stager) (aft.Operation, error) {
	kind, err := aft.ParseOpKind(doc.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", aft.ErrUnsupported, err)
	}

	var op aft.Operation
	switch kind {
	case aft.KindInsert:
		ins := aft.NewInsert(stager)
		for i, nd := range doc.Nodes {
			n, err := DecodeNode(nd)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			if _, err := ins.PushWithToken(n, nd.Token); err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
		}
		entries, err := decodeEntries(doc.Entries)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			ins.PushEntry(e)
		}
		for _, nb := range doc.Names {
			ins.PushName(nb.Name, nb.Token)
		}
		for _, g := range doc.Groups {
			ins.PushGroup(g)
		}
		op = ins
	case aft.KindRemove:
		rm := aft.NewRemove()
		entries, err := decodeEntries(doc.Entries)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			rm.PushEntry(e)
		}
		for _, t := range doc.Tokens {
			rm.Push(t)
		}
		for _, nb := range doc.Names {
			rm.PushName(nb.Name)
		}
		for _, g := range doc.Groups {
			rm.PushGroup(g)
		}
		op = rm
	case aft.KindSandboxInfo:
		op = aft.NewSandboxInfo(doc.Info)
	case aft.KindSandboxFind:
		op = aft.NewSandboxFind(doc.Find, doc.Token, doc.Value)
	case aft.KindNodeInfo:
		op = aft.NewNodeInfo(doc.Tokens...)
	case aft.KindNodeActive:
		op = aft.NewNodeActive(doc.Requests...)
	case aft.KindNodeTest:
		t := aft.NewNodeTest(aft.NodeTestOp(doc.Test), doc.Token)
		t.Next = doc.Next
		t.Count = doc.Count
		t.Group = doc.Group
		op = t
	case aft.KindEntryTest:
		if doc.Entry == nil {
			return nil, fmt.Errorf("%w: entry test without entry", aft.ErrIllegalType)
		}
		e, err := DecodeEntry(*doc.Entry)
		if err != nil {
			return nil, err
		}
		t := aft.NewEntryTest(aft.EntryTestOp(doc.Test), e)
		t.Next = doc.Next
		op = t
	}
	op.Base().Sequence = doc.Sequence
	return op, nil
}

// --------------------------------------------------------------------------
// Replies
// --------------------------------------------------------------------------

// EncodeReply captures the outcome of an executed operation.
func EncodeReply(op aft.Operation) (*ReplyDoc, error) {
	b := op.Base()
	reply := &ReplyDoc{Status: b.Status(), Error: aft.ToError(b.Err())}

	switch o := op.(type) {
	case *aft.Insert, *aft.Remove, *aft.EntryTest:
	case *aft.SandboxInfo:
		reply.Params = o.Reply.Clone()
	case *aft.SandboxFind:
		for _, r := range o.Results {
			rd := FindResultDoc{Token: r.Token, TypeName: r.TypeName, Name: r.Name}
			if r.Node != nil {
				nd, err := EncodeNode(r.Node)
				if err != nil {
					return nil, err
				}
				nd.Token = r.Token
				rd.Node = &nd
			}
			reply.Results = append(reply.Results, rd)
		}
	case *aft.NodeInfo:
		reply.Infos = append(reply.Infos, o.Pending()...)
	case *aft.NodeActive:
		reply.Active = append(reply.Active, o.Replies...)
	case *aft.NodeTest:
		reply.Observed = o.Observed
	default:
		return nil, fmt.Errorf("%w: %T", aft.ErrUnsupported, op)
	}
	return reply, nil
}

// ApplyResult copies the reply of doc into op, the caller's copy of the
// operation that was executed elsewhere. It returns the error the operation
// failed with remotely, or why the reply could not be applied.
func ApplyResult(doc OperationDoc, op aft.Operation) error {
	if doc.Kind != op.Kind().String() {
		return fmt.Errorf("reply of kind %s for a %s operation", doc.Kind, op.Kind())
	}
	reply := doc.Reply
	if reply == nil {
		return fmt.Errorf("%s reply without result", doc.Kind)
	}

	switch o := op.(type) {
	case *aft.Insert, *aft.Remove, *aft.EntryTest:
	case *aft.SandboxInfo:
		o.Reply = reply.Params.Clone()
	case *aft.SandboxFind:
		o.Results = o.Results[:0]
		for _, rd := range reply.Results {
			r := aft.FindResult{Token: rd.Token, TypeName: rd.TypeName, Name: rd.Name}
			if rd.Node != nil {
				n, err := DecodeNode(*rd.Node)
				if err != nil {
					return err
				}
				r.Node = n
			}
			o.Results = append(o.Results, r)
		}
	case *aft.NodeInfo:
		for _, i := range reply.Infos {
			o.PushInfo(i)
		}
	case *aft.NodeActive:
		o.Replies = append(o.Replies[:0], reply.Active...)
	case *aft.NodeTest:
		o.Observed = reply.Observed
	default:
		return fmt.Errorf("%w: %T", aft.ErrUnsupported, op)
	}

	if reply.Status {
		return nil
	}
	if reply.Error == nil {
		return aft.NewError(aft.RetCInternalError, "operation failed without error")
	}
	return reply.Error
}
