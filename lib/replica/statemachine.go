package replica

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/codec"
	"github.com/ValentinKolb/dAFT/lib/replica/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"io"
	"sync/atomic"
	"time"
)

// payloads are the operation documents carried by Execute commands and their
// replies.
var payloads = codec.NewGOBSerializer()

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// SandboxStateMachine hosts one aft.Sandbox as a Dragonboat state machine.
//
// The sandbox serializes its own mutations and lets queries run in
// parallel, which is what IConcurrentStateMachine needs: Update and Lookup
// may be called concurrently.
type SandboxStateMachine struct {
	replicaID uint64
	shardID   uint64
	cfg       aft.Config
	sandbox   atomic.Pointer[aft.Sandbox]
}

// CreateStateMachineFactory returns a function that dragonboat uses to create
// the state machine of a shard. Every sandbox is configured with cfg; its
// name is replaced by "shard-<id>".
func CreateStateMachineFactory(cfg aft.Config) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return NewSandboxStateMachine(shardID, replicaID, cfg)
	}
}

// NewSandboxStateMachine creates the state machine of one replica.
func NewSandboxStateMachine(shardID, replicaID uint64, cfg aft.Config) *SandboxStateMachine {
	cfg.Name = fmt.Sprintf("shard-%d", shardID)
	fsm := &SandboxStateMachine{
		replicaID: replicaID,
		shardID:   shardID,
		cfg:       cfg,
	}
	fsm.sandbox.Store(aft.NewSandbox(cfg))
	return fsm
}

// Sandbox returns the sandbox currently hosted by the state machine. It is
// replaced when the replica recovers from a snapshot.
func (fsm *SandboxStateMachine) Sandbox() *aft.Sandbox {
	return fsm.sandbox.Load()
}

// Lookup handles read-only queries. Operations that would change the sandbox
// are refused; they have to go through the log.
func (fsm *SandboxStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, aft.NewError(aft.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}
	sb := fsm.Sandbox()

	switch q.Type {
	case internal.QueryTFindType:
		idx, ok := sb.FindType(q.Name)
		return internal.TypeResult{Ok: ok, Index: idx}, nil
	case internal.QueryTMaxToken:
		return sb.MaxToken(), nil
	case internal.QueryTRead:
		switch q.Doc.Kind {
		case aft.KindSandboxInfo.String(), aft.KindSandboxFind.String(), aft.KindNodeInfo.String(),
			aft.KindNodeTest.String(), aft.KindEntryTest.String():
		default:
			return nil, aft.NewError(aft.RetCInvalidOperation, fmt.Sprintf("%q is not a read operation", q.Doc.Kind))
		}
		op, err := codec.DecodeOperation(q.Doc, sb)
		if err != nil {
			return nil, aft.ToError(err)
		}
		sb.Send(op)
		doc := q.Doc
		if doc.Reply, err = codec.EncodeReply(op); err != nil {
			return nil, aft.ToError(err)
		}
		return doc, nil
	default:
		return nil, aft.NewError(aft.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %s", q.Type))
	}
}

// Update applies the commands of the log entries in order.
//
// The Value of a result is the RetCode of the command itself. The outcome of
// an executed operation travels in the reply document held by Data, so a
// rejected Insert is still a successfully applied command.
func (fsm *SandboxStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()
	sb := fsm.Sandbox()
	cmd := internal.Command{}

	for idx, e := range entries {
		if len(e.Cmd) == 0 {
			entries[idx].Result = failed(aft.RetCInvalidOperation, "empty command ignored")
			continue
		}
		if err := cmd.Deserialize(e.Cmd); err != nil {
			entries[idx].Result = failed(aft.RetCInternalError, fmt.Sprintf("failed to deserialize command: %v", err))
			continue
		}
		entries[idx].Result = fsm.apply(sb, &cmd)
	}

	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("shard %d: update of %d entries took %.2fms", fsm.shardID, len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

func (fsm *SandboxStateMachine) apply(sb *aft.Sandbox, cmd *internal.Command) sm.Result {
	switch cmd.Type {
	case internal.CommandTExecute:
		return fsm.execute(sb, cmd.Payload)
	case internal.CommandTReserveTokens:
		first := sb.ReserveTokens(cmd.Count)
		return succeeded(uint64(first))
	case internal.CommandTInsertType:
		idx, err := sb.InsertType(cmd.Name)
		return indexResult(uint64(idx), err)
	case internal.CommandTInsertField:
		info, err := sb.InsertField(cmd.Name, uint32(cmd.Count))
		return indexResult(uint64(info.Index), err)
	case internal.CommandTCreateGroup:
		idx, err := sb.CreateGroup(cmd.Name)
		return indexResult(uint64(idx), err)
	case internal.CommandTInsertProto:
		idx, err := sb.InsertProto(cmd.Name)
		return indexResult(uint64(idx), err)
	default:
		return failed(aft.RetCInvalidOperation, fmt.Sprintf("unknown Command operation: %s", cmd.Type))
	}
}

func (fsm *SandboxStateMachine) execute(sb *aft.Sandbox, payload []byte) sm.Result {
	var doc codec.OperationDoc
	if err := payloads.Deserialize(payload, &doc); err != nil {
		return failed(aft.RetCInternalError, fmt.Sprintf("failed to decode operation: %v", err))
	}
	op, err := codec.DecodeOperation(doc, sb)
	if err != nil {
		return failed(aft.CodeOf(err), err.Error())
	}
	switch op.Kind() {
	case aft.KindInsert, aft.KindRemove, aft.KindNodeActive:
	default:
		return failed(aft.RetCInvalidOperation, fmt.Sprintf("%s does not go through the log", op.Kind()))
	}

	if !sb.Send(op) {
		log.Debugf("shard %d: %s #%d rejected: %v", fsm.shardID, op.Kind(), doc.Sequence, op.Base().Err())
	}
	if doc.Reply, err = codec.EncodeReply(op); err != nil {
		return failed(aft.RetCInternalError, err.Error())
	}
	b, err := payloads.Serialize(doc)
	if err != nil {
		return failed(aft.RetCInternalError, err.Error())
	}
	return sm.Result{Value: uint64(aft.RetCSuccess), Data: b}
}

// PrepareSnapshot captures the sandbox state at the current log index.
func (fsm *SandboxStateMachine) PrepareSnapshot() (interface{}, error) {
	return fsm.Sandbox().ExportState(), nil
}

// SaveSnapshot writes the state captured by PrepareSnapshot.
func (fsm *SandboxStateMachine) SaveSnapshot(ctx interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	st, ok := ctx.(*aft.State)
	if !ok {
		return fmt.Errorf("unexpected snapshot context %T", ctx)
	}
	return codec.SaveState(writer, st)
}

// RecoverFromSnapshot replaces the hosted sandbox by the one in r.
func (fsm *SandboxStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	sb, err := codec.LoadSandbox(r, fsm.cfg)
	if err != nil {
		return err
	}
	fsm.sandbox.Store(sb)
	log.Infof("shard %d: replica %d recovered %d nodes from snapshot", fsm.shardID, fsm.replicaID, sb.NodeCount())
	return nil
}

// Close performs any necessary cleanup.
func (fsm *SandboxStateMachine) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Results
// --------------------------------------------------------------------------

func succeeded(v uint64) sm.Result {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, v)
	return sm.Result{Value: uint64(aft.RetCSuccess), Data: data}
}

func failed(code aft.RetCode, msg string) sm.Result {
	return sm.Result{Value: uint64(code), Data: []byte(msg)}
}

func indexResult(idx uint64, err error) sm.Result {
	if err != nil {
		return failed(aft.CodeOf(err), err.Error())
	}
	return succeeded(idx)
}
