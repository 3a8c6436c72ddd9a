package aft

// Receiver executes operations. The Sandbox is the reference receiver;
// sessions, replicated sandboxes and remote clients implement it too so they
// can stand in for one another.
//
// Each method returns nil on success. Implementations must not call Complete;
// that is left to whoever drives the operation.
type Receiver interface {
	ReceiveInsert(op *Insert) error
	ReceiveRemove(op *Remove) error
	ReceiveSandboxInfo(op *SandboxInfo) error
	ReceiveSandboxFind(op *SandboxFind) error
	ReceiveNodeInfo(op *NodeInfo) error
	ReceiveNodeActive(op *NodeActive) error
	ReceiveNodeTest(op *NodeTest) error
	ReceiveEntryTest(op *EntryTest) error
}

// Stager is what an Insert needs while it is being built: type resolution and
// token allocation. It is passed in explicitly by the caller.
type Stager interface {
	FindType(name string) (TypeIndex, bool)
	AllocateToken() NodeToken
}

// UnsupportedReceiver can be embedded by receivers that only implement
// Insert and Remove. Every other kind fails with ErrUnsupported.
type UnsupportedReceiver struct{}

func (UnsupportedReceiver) ReceiveSandboxInfo(*SandboxInfo) error { return ErrUnsupported }
func (UnsupportedReceiver) ReceiveSandboxFind(*SandboxFind) error { return ErrUnsupported }
func (UnsupportedReceiver) ReceiveNodeInfo(*NodeInfo) error       { return ErrUnsupported }
func (UnsupportedReceiver) ReceiveNodeActive(*NodeActive) error   { return ErrUnsupported }
func (UnsupportedReceiver) ReceiveNodeTest(*NodeTest) error       { return ErrUnsupported }
func (UnsupportedReceiver) ReceiveEntryTest(*EntryTest) error     { return ErrUnsupported }
