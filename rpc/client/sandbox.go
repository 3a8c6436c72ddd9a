package client

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/codec"
	"github.com/ValentinKolb/dAFT/lib/tables"
	"github.com/ValentinKolb/dAFT/rpc/common"
	"github.com/ValentinKolb/dAFT/rpc/serializer"
	"github.com/ValentinKolb/dAFT/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
)

// DefaultTokenBlock is the number of tokens a RemoteSandbox reserves at once
const DefaultTokenBlock = 64

// NewRemoteSandbox creates a sandbox client of the shard shardId
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It connects the transport and returns the sandbox and an error
func NewRemoteSandbox(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*RemoteSandbox, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &RemoteSandbox{
		rpcClientAdapter: rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
		blockSize: DefaultTokenBlock,
		types:     xsync.NewMapOf[string, aft.TypeIndex](),
	}, nil
}

// RemoteSandbox is a sandbox served by a dAFT server. It is an aft.Receiver,
// an aft.Stager and a codec.Registry, so operations built against it are
// staged with tokens reserved on the server and executed there.
type RemoteSandbox struct {
	rpcClientAdapter
	blockSize uint64

	mu   sync.Mutex // guards next and left
	next aft.NodeToken
	left uint64

	types *xsync.MapOf[string, aft.TypeIndex]
}

// ShardID returns the shard the sandbox is served as.
func (s *RemoteSandbox) ShardID() uint64 { return s.shardId }

// Close closes the transport.
func (s *RemoteSandbox) Close() error { return s.transport.Close() }

// execute runs op on the server and copies the reply back into it
func (s *RemoteSandbox) execute(op aft.Operation) error {
	doc, err := codec.EncodeOperation(op)
	if err != nil {
		return err
	}
	resp, err := s.invoke(common.NewOperationRequest(doc))
	if err != nil {
		return err
	}
	if resp.Doc == nil {
		return aft.NewError(aft.RetCInternalError, fmt.Sprintf("%s response without document", op.Kind()))
	}
	return codec.ApplyResult(*resp.Doc, op)
}

// index sends a request answered with an index or token
func (s *RemoteSandbox) index(req *common.Message) (uint64, error) {
	resp, err := s.invoke(req)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// --------------------------------------------------------------------------
// Tables and tokens
// --------------------------------------------------------------------------

// ReserveTokens reserves n consecutive tokens on the server and returns the
// first one.
func (s *RemoteSandbox) ReserveTokens(n uint64) (aft.NodeToken, error) {
	first, err := s.index(common.NewReserveTokensRequest(n))
	return aft.NodeToken(first), err
}

// MaxToken returns the highest token handed out by the server.
func (s *RemoteSandbox) MaxToken() (aft.NodeToken, error) {
	tok, err := s.index(common.NewMaxTokenRequest())
	return aft.NodeToken(tok), err
}

func (s *RemoteSandbox) InsertType(name string) (aft.TypeIndex, error) {
	idx, err := s.index(common.NewRegisterRequest(common.MsgTInsertType, name, 0))
	if err != nil {
		return tables.IndexNone, err
	}
	s.types.Store(name, aft.TypeIndex(idx))
	return aft.TypeIndex(idx), nil
}

func (s *RemoteSandbox) InsertField(name string, width uint32) (tables.FieldInfo, error) {
	idx, err := s.index(common.NewRegisterRequest(common.MsgTInsertField, name, uint64(width)))
	if err != nil {
		return tables.FieldInfo{}, err
	}
	return tables.FieldInfo{Index: tables.Index(idx), Width: width}, nil
}

func (s *RemoteSandbox) InsertProto(name string) (tables.Index, error) {
	idx, err := s.index(common.NewRegisterRequest(common.MsgTInsertProto, name, 0))
	return tables.Index(idx), err
}

func (s *RemoteSandbox) CreateGroup(name string) (aft.GroupIndex, error) {
	idx, err := s.index(common.NewRegisterRequest(common.MsgTCreateGroup, name, 0))
	return aft.GroupIndex(idx), err
}

// --------------------------------------------------------------------------
// Stager
// --------------------------------------------------------------------------

// FindType resolves a type name on the server. Hits are cached.
func (s *RemoteSandbox) FindType(name string) (aft.TypeIndex, bool) {
	if idx, ok := s.types.Load(name); ok {
		return idx, true
	}
	resp, err := s.invoke(common.NewFindTypeRequest(name))
	if err != nil {
		log.Warningf("shard %d: find type %q: %v", s.shardId, name, err)
		return tables.IndexNone, false
	}
	if resp.Ok {
		s.types.Store(name, aft.TypeIndex(resp.Count))
	}
	return aft.TypeIndex(resp.Count), resp.Ok
}

// AllocateToken hands out the next token of the current block and reserves
// a new block when it is used up. It returns TokenNone when no block could
// be reserved.
func (s *RemoteSandbox) AllocateToken() aft.NodeToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.left == 0 {
		first, err := s.ReserveTokens(s.blockSize)
		if err != nil {
			log.Errorf("shard %d: reserve %d tokens: %v", s.shardId, s.blockSize, err)
			return aft.TokenNone
		}
		s.next, s.left = first, s.blockSize
	}
	tok := s.next
	s.next++
	s.left--
	return tok
}

// --------------------------------------------------------------------------
// Interface Methods (docu see aft.Receiver)
// --------------------------------------------------------------------------

func (s *RemoteSandbox) ReceiveInsert(op *aft.Insert) error           { return s.execute(op) }
func (s *RemoteSandbox) ReceiveRemove(op *aft.Remove) error           { return s.execute(op) }
func (s *RemoteSandbox) ReceiveSandboxInfo(op *aft.SandboxInfo) error { return s.execute(op) }
func (s *RemoteSandbox) ReceiveSandboxFind(op *aft.SandboxFind) error { return s.execute(op) }
func (s *RemoteSandbox) ReceiveNodeInfo(op *aft.NodeInfo) error       { return s.execute(op) }
func (s *RemoteSandbox) ReceiveNodeActive(op *aft.NodeActive) error   { return s.execute(op) }
func (s *RemoteSandbox) ReceiveNodeTest(op *aft.NodeTest) error       { return s.execute(op) }
func (s *RemoteSandbox) ReceiveEntryTest(op *aft.EntryTest) error     { return s.execute(op) }
