package aft

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/data"
)

// --------------------------------------------------------------------------
// SandboxInfo
// --------------------------------------------------------------------------

// InfoRequest selects what a SandboxInfo asks for.
type InfoRequest uint8

const (
	InfoHeartbeat InfoRequest = iota // liveness only
	InfoTelemetry                    // counters of the executing receiver
	InfoStatus                       // table sizes
)

func (r InfoRequest) String() string {
	switch r {
	case InfoHeartbeat:
		return "heartbeat"
	case InfoTelemetry:
		return "telemetry"
	case InfoStatus:
		return "status"
	default:
		return fmt.Sprintf("info(%d)", uint8(r))
	}
}

// SandboxInfo asks a receiver about itself. The reply is a parameter bag
// whose keys depend on the request.
type SandboxInfo struct {
	OpBase
	Request InfoRequest
	Reply   data.Parameters
}

// NewSandboxInfo creates an info request.
func NewSandboxInfo(req InfoRequest) *SandboxInfo {
	op := &SandboxInfo{Request: req}
	op.init(false)
	return op
}

func (op *SandboxInfo) Kind() OpKind             { return KindSandboxInfo }
func (op *SandboxInfo) execute(r Receiver) error { return r.ReceiveSandboxInfo(op) }

// --------------------------------------------------------------------------
// SandboxFind
// --------------------------------------------------------------------------

// FindOp selects how SandboxFind interprets its value.
type FindOp uint8

const (
	FindByToken FindOp = iota // Token
	FindByName                // exact name binding in Value
	FindByRegex               // regular expression over name bindings in Value
	FindByType                // type name in Value
	FindByGroup               // group name in Value
)

func (f FindOp) String() string {
	switch f {
	case FindByToken:
		return "token"
	case FindByName:
		return "name"
	case FindByRegex:
		return "regex"
	case FindByType:
		return "type"
	case FindByGroup:
		return "group"
	default:
		return fmt.Sprintf("find(%d)", uint8(f))
	}
}

// FindResult is one match of a SandboxFind. Node is nil when the sandbox
// does not cache nodes.
type FindResult struct {
	Token    NodeToken
	TypeName string
	Name     string
	Node     *Node
}

// SandboxFind looks up nodes. Results are in token order.
type SandboxFind struct {
	OpBase
	Op      FindOp
	Token   NodeToken
	Value   string
	Results []FindResult
}

// NewSandboxFind creates a find for value (a name, pattern, type or group)
// or, with FindByToken, for tok.
func NewSandboxFind(op FindOp, tok NodeToken, value string) *SandboxFind {
	f := &SandboxFind{Op: op, Token: tok, Value: value}
	f.init(false)
	return f
}

func (op *SandboxFind) Kind() OpKind             { return KindSandboxFind }
func (op *SandboxFind) execute(r Receiver) error { return r.ReceiveSandboxFind(op) }

// Tokens returns the tokens of all results.
func (op *SandboxFind) Tokens() []NodeToken {
	out := make([]NodeToken, len(op.Results))
	for i, r := range op.Results {
		out[i] = r.Token
	}
	return out
}

// --------------------------------------------------------------------------
// NodeInfo
// --------------------------------------------------------------------------

// Info is the runtime description of one node.
type Info struct {
	Token       NodeToken `json:"token" yaml:"token"`
	TypeName    string    `json:"type" yaml:"type"`
	Description string    `json:"description" yaml:"description"`
	Active      bool      `json:"active" yaml:"active"`
}

// NodeInfo asks for the description of a set of nodes. Replies are consumed
// with Pull.
type NodeInfo struct {
	OpBase
	Tokens []NodeToken
	infos  []Info
}

// NewNodeInfo creates an info request for tokens.
func NewNodeInfo(tokens ...NodeToken) *NodeInfo {
	op := &NodeInfo{Tokens: tokens}
	op.init(false)
	return op
}

func (op *NodeInfo) Kind() OpKind             { return KindNodeInfo }
func (op *NodeInfo) execute(r Receiver) error { return r.ReceiveNodeInfo(op) }

// PushInfo appends a reply. Receivers call it.
func (op *NodeInfo) PushInfo(i Info) {
	op.infos = append(op.infos, i)
}

// Pull removes and returns the oldest reply.
func (op *NodeInfo) Pull() (Info, bool) {
	if len(op.infos) == 0 {
		return Info{}, false
	}
	i := op.infos[0]
	op.infos = op.infos[1:]
	return i, true
}

// Pending returns the replies not pulled yet.
func (op *NodeInfo) Pending() []Info { return op.infos }

// --------------------------------------------------------------------------
// NodeActive
// --------------------------------------------------------------------------

// ActiveRequest sets whether a node is active.
type ActiveRequest struct {
	Token  NodeToken `json:"token" yaml:"token"`
	Active bool      `json:"active" yaml:"active"`
}

// ActiveReply is the state of a node after a NodeActive was applied. Found
// is false for unknown tokens.
type ActiveReply struct {
	Token  NodeToken `json:"token" yaml:"token"`
	Active bool      `json:"active" yaml:"active"`
	Found  bool      `json:"found" yaml:"found"`
}

// NodeActive switches nodes between active and inactive. Committed nodes
// start active.
type NodeActive struct {
	OpBase
	Requests []ActiveRequest
	Replies  []ActiveReply
}

// NewNodeActive creates an active request.
func NewNodeActive(reqs ...ActiveRequest) *NodeActive {
	op := &NodeActive{Requests: reqs}
	op.init(false)
	return op
}

func (op *NodeActive) Kind() OpKind             { return KindNodeActive }
func (op *NodeActive) execute(r Receiver) error { return r.ReceiveNodeActive(op) }

// --------------------------------------------------------------------------
// NodeTest
// --------------------------------------------------------------------------

// NodeTestOp is the property a NodeTest checks.
type NodeTestOp uint8

const (
	TestIsPresent NodeTestOp = iota // node exists
	TestHasNext                     // Next is among the node's next nodes
	TestNextCount                   // node has exactly Count next nodes
	TestIsInGroup                   // node belongs to Group
)

func (t NodeTestOp) String() string {
	switch t {
	case TestIsPresent:
		return "is_present"
	case TestHasNext:
		return "has_next"
	case TestNextCount:
		return "next_count"
	case TestIsInGroup:
		return "is_in_group"
	default:
		return fmt.Sprintf("test(%d)", uint8(t))
	}
}

// NodeTest checks a property of one node. It fails with ErrTestFailed when
// the property does not hold. Tests are synchronous by default.
type NodeTest struct {
	OpBase
	Op    NodeTestOp
	Token NodeToken
	Next  NodeToken
	Count int
	Group string

	// Observed is what the receiver found: the next node count for
	// TestNextCount, 1/0 for the other tests.
	Observed int
}

// NewNodeTest creates a node test.
func NewNodeTest(op NodeTestOp, tok NodeToken) *NodeTest {
	t := &NodeTest{Op: op, Token: tok, Next: TokenNone}
	t.init(true)
	return t
}

func (op *NodeTest) Kind() OpKind             { return KindNodeTest }
func (op *NodeTest) execute(r Receiver) error { return r.ReceiveNodeTest(op) }

// --------------------------------------------------------------------------
// EntryTest
// --------------------------------------------------------------------------

// EntryTestOp is the property an EntryTest checks.
type EntryTestOp uint8

const (
	EntryIsPresent EntryTestOp = iota // entry with the same parent and key exists
	EntryHasNext                      // that entry points to Next
)

func (t EntryTestOp) String() string {
	switch t {
	case EntryIsPresent:
		return "is_present"
	case EntryHasNext:
		return "has_next"
	default:
		return fmt.Sprintf("test(%d)", uint8(t))
	}
}

// EntryTest checks a property of one entry, identified by parent and key of
// Entry.
type EntryTest struct {
	OpBase
	Op    EntryTestOp
	Entry Entry
	Next  NodeToken
}

// NewEntryTest creates an entry test.
func NewEntryTest(op EntryTestOp, e Entry) *EntryTest {
	t := &EntryTest{Op: op, Entry: e, Next: TokenNone}
	t.init(true)
	return t
}

func (op *EntryTest) Kind() OpKind             { return KindEntryTest }
func (op *EntryTest) execute(r Receiver) error { return r.ReceiveEntryTest(op) }
