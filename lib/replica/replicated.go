package replica

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/codec"
	"github.com/ValentinKolb/dAFT/lib/replica/internal"
	"github.com/ValentinKolb/dAFT/lib/tables"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
	"time"
)

var (
	retries = 5
	log     = logger.GetLogger("replica")
)

// DefaultTokenBlock is the number of tokens a ReplicatedSandbox reserves
// through the log at once.
const DefaultTokenBlock = 64

// NodeHost is the part of *dragonboat.NodeHost a ReplicatedSandbox uses.
type NodeHost interface {
	SyncPropose(ctx context.Context, session *client.Session, cmd []byte) (sm.Result, error)
	SyncRead(ctx context.Context, shardID uint64, query interface{}) (interface{}, error)
	StaleRead(shardID uint64, query interface{}) (interface{}, error)
	GetNoOPSession(shardID uint64) *client.Session
}

// ReplicatedSandbox is a sandbox replicated with raft. It is an aft.Receiver
// and an aft.Stager: Insert, Remove and NodeActive are proposed to the log
// and applied by every replica, all other operations are answered by a
// linearizable read.
//
// Tokens are handed out from blocks reserved through the log, so they are
// unique across every ReplicatedSandbox of the shard and never reused.
type ReplicatedSandbox struct {
	nh        NodeHost
	shardID   uint64
	cs        *client.Session
	timeout   time.Duration
	blockSize uint64

	mu   sync.Mutex // guards next and left
	next aft.NodeToken
	left uint64

	types *xsync.MapOf[string, aft.TypeIndex]
}

// NewReplicatedSandbox creates a client of shardID hosted by nh. Every
// proposal and read is bounded by timeout.
func NewReplicatedSandbox(nh NodeHost, shardID uint64, timeout time.Duration) *ReplicatedSandbox {
	return &ReplicatedSandbox{
		nh:        nh,
		shardID:   shardID,
		cs:        nh.GetNoOPSession(shardID),
		timeout:   timeout,
		blockSize: DefaultTokenBlock,
		types:     xsync.NewMapOf[string, aft.TypeIndex](),
	}
}

// ShardID returns the raft shard the sandbox lives in.
func (s *ReplicatedSandbox) ShardID() uint64 { return s.shardID }

// --------------------------------------------------------------------------
// Internal write and read operations
// --------------------------------------------------------------------------

// write proposes cmd and waits until it was applied. A command the state
// machine could not apply is returned as an *aft.Error.
func (s *ReplicatedSandbox) write(cmd internal.Command) ([]byte, error) {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}
		if errors.Is(err, dragonboat.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, aft.NewError(aft.RetCTimeout, fmt.Sprintf("%s: %v", cmd.Type, err))
		}
		if err != nil {
			return nil, aft.NewError(aft.RetCInternalError, err.Error())
		}
		if res.Value != uint64(aft.RetCSuccess) {
			return nil, aft.NewError(aft.RetCode(res.Value), string(res.Data))
		}
		return res.Data, nil
	}
	return nil, aft.NewError(aft.RetCTimeout, "system busy")
}

// writeIndex proposes a command whose result is a single number.
func (s *ReplicatedSandbox) writeIndex(cmd internal.Command) (uint64, error) {
	data, err := s.write(cmd)
	if err != nil {
		return 0, err
	}
	if len(data) != 8 {
		return 0, aft.NewError(aft.RetCInternalError, fmt.Sprintf("%s: malformed result", cmd.Type))
	}
	return binary.BigEndian.Uint64(data), nil
}

// read queries the state machine and converts the response into R.
//
// SyncRead is used by default; stale selects the faster StaleRead when
// linearizability is not required. System busy errors are retried.
func read[R any](s *ReplicatedSandbox, q internal.Query, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {
		var res interface{}
		var err error

		if stale {
			res, err = s.nh.StaleRead(s.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			res, err = s.nh.SyncRead(ctx, s.shardID, q)
			cancel()
		}

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}
		if err != nil {
			var ae *aft.Error
			if errors.As(err, &ae) {
				return zero, ae
			}
			return zero, aft.NewError(aft.RetCInternalError, err.Error())
		}

		casted, ok := res.(R)
		if !ok {
			return zero, aft.NewError(aft.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, aft.NewError(aft.RetCTimeout, "system busy")
}

// execute sends op through the log and copies the reply back into it.
func (s *ReplicatedSandbox) execute(op aft.Operation) error {
	doc, err := codec.EncodeOperation(op)
	if err != nil {
		return err
	}
	payload, err := payloads.Serialize(doc)
	if err != nil {
		return err
	}
	data, err := s.write(internal.Command{Type: internal.CommandTExecute, Payload: payload})
	if err != nil {
		return err
	}
	var reply codec.OperationDoc
	if err := payloads.Deserialize(data, &reply); err != nil {
		return aft.NewError(aft.RetCInternalError, fmt.Sprintf("decode reply: %v", err))
	}
	return codec.ApplyResult(reply, op)
}

// query answers op with a linearizable read.
func (s *ReplicatedSandbox) query(op aft.Operation) error {
	doc, err := codec.EncodeOperation(op)
	if err != nil {
		return err
	}
	reply, err := read[codec.OperationDoc](s, internal.Query{Type: internal.QueryTRead, Doc: doc}, false)
	if err != nil {
		return err
	}
	return codec.ApplyResult(reply, op)
}

// --------------------------------------------------------------------------
// Tables and tokens
// --------------------------------------------------------------------------

// ReserveTokens reserves n consecutive tokens cluster wide and returns the
// first one.
func (s *ReplicatedSandbox) ReserveTokens(n uint64) (aft.NodeToken, error) {
	first, err := s.writeIndex(internal.Command{Type: internal.CommandTReserveTokens, Count: n})
	return aft.NodeToken(first), err
}

// MaxToken returns the highest token reserved so far.
func (s *ReplicatedSandbox) MaxToken() (aft.NodeToken, error) {
	return read[aft.NodeToken](s, internal.Query{Type: internal.QueryTMaxToken}, false)
}

// InsertType registers a node type on every replica.
func (s *ReplicatedSandbox) InsertType(name string) (aft.TypeIndex, error) {
	idx, err := s.writeIndex(internal.Command{Type: internal.CommandTInsertType, Name: name})
	if err != nil {
		return tables.IndexNone, err
	}
	s.types.Store(name, aft.TypeIndex(idx))
	return aft.TypeIndex(idx), nil
}

// InsertField registers a field on every replica.
func (s *ReplicatedSandbox) InsertField(name string, width uint32) (tables.FieldInfo, error) {
	idx, err := s.writeIndex(internal.Command{Type: internal.CommandTInsertField, Name: name, Count: uint64(width)})
	if err != nil {
		return tables.FieldInfo{}, err
	}
	return tables.FieldInfo{Index: tables.Index(idx), Width: width}, nil
}

// InsertProto registers a protocol name on every replica.
func (s *ReplicatedSandbox) InsertProto(name string) (tables.Index, error) {
	idx, err := s.writeIndex(internal.Command{Type: internal.CommandTInsertProto, Name: name})
	return tables.Index(idx), err
}

// CreateGroup creates a node group on every replica.
func (s *ReplicatedSandbox) CreateGroup(name string) (aft.GroupIndex, error) {
	idx, err := s.writeIndex(internal.Command{Type: internal.CommandTCreateGroup, Name: name})
	return aft.GroupIndex(idx), err
}

// --------------------------------------------------------------------------
// Stager
// --------------------------------------------------------------------------

// FindType resolves a type name. Hits are cached; type indices never change
// once assigned.
func (s *ReplicatedSandbox) FindType(name string) (aft.TypeIndex, bool) {
	if idx, ok := s.types.Load(name); ok {
		return idx, true
	}
	res, err := read[internal.TypeResult](s, internal.Query{Type: internal.QueryTFindType, Name: name}, false)
	if err != nil {
		log.Warningf("shard %d: find type %q: %v", s.shardID, name, err)
		return tables.IndexNone, false
	}
	if res.Ok {
		s.types.Store(name, res.Index)
	}
	return res.Index, res.Ok
}

// AllocateToken hands out the next token of the current block and reserves
// a new block when it is used up. It returns TokenNone when no block could
// be reserved; an Insert carrying it is rejected on commit.
func (s *ReplicatedSandbox) AllocateToken() aft.NodeToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.left == 0 {
		first, err := s.ReserveTokens(s.blockSize)
		if err != nil {
			log.Errorf("shard %d: reserve %d tokens: %v", s.shardID, s.blockSize, err)
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
// Receiver (docu see aft.Receiver)
// --------------------------------------------------------------------------

func (s *ReplicatedSandbox) ReceiveInsert(op *aft.Insert) error           { return s.execute(op) }
func (s *ReplicatedSandbox) ReceiveRemove(op *aft.Remove) error           { return s.execute(op) }
func (s *ReplicatedSandbox) ReceiveNodeActive(op *aft.NodeActive) error   { return s.execute(op) }
func (s *ReplicatedSandbox) ReceiveSandboxInfo(op *aft.SandboxInfo) error { return s.query(op) }
func (s *ReplicatedSandbox) ReceiveSandboxFind(op *aft.SandboxFind) error { return s.query(op) }
func (s *ReplicatedSandbox) ReceiveNodeInfo(op *aft.NodeInfo) error       { return s.query(op) }
func (s *ReplicatedSandbox) ReceiveNodeTest(op *aft.NodeTest) error       { return s.query(op) }
func (s *ReplicatedSandbox) ReceiveEntryTest(op *aft.EntryTest) error     { return s.query(op) }
