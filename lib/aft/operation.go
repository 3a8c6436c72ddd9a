package aft

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/util"
	"github.com/VictoriaMetrics/metrics"
	"sync"
	"sync/atomic"
	"time"
)

// --------------------------------------------------------------------------
// Operation kinds and states
// --------------------------------------------------------------------------

// OpKind identifies the concrete operation type.
type OpKind uint8

const (
	KindInsert OpKind = iota
	KindRemove
	KindSandboxInfo
	KindSandboxFind
	KindNodeInfo
	KindNodeActive
	KindNodeTest
	KindEntryTest
)

func (k OpKind) String() string {
	switch k {
	case KindInsert:
		return "Insert"
	case KindRemove:
		return "Remove"
	case KindSandboxInfo:
		return "SandboxInfo"
	case KindSandboxFind:
		return "SandboxFind"
	case KindNodeInfo:
		return "NodeInfo"
	case KindNodeActive:
		return "NodeActive"
	case KindNodeTest:
		return "NodeTest"
	case KindEntryTest:
		return "EntryTest"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// ParseOpKind is the inverse of OpKind.String.
func ParseOpKind(s string) (OpKind, error) {
	for k := KindInsert; k <= KindEntryTest; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation kind %q", s)
}

// OpState is the lifecycle position of an operation.
type OpState uint32

const (
	StateCreated OpState = iota
	StateSubmitted
	StateExecuting
	StateCompleted
)

func (s OpState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateSubmitted:
		return "Submitted"
	case StateExecuting:
		return "Executing"
	case StateCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("Unknown(%d)", uint32(s))
	}
}

// --------------------------------------------------------------------------
// Operation
// --------------------------------------------------------------------------

// Operation is the closed set of units of work a Receiver executes.
type Operation interface {
	Kind() OpKind
	Base() *OpBase

	// execute dispatches to the matching Receive method.
	execute(r Receiver) error
}

// OpBase is the lifecycle state shared by every operation kind. It is
// embedded in each concrete operation.
type OpBase struct {
	Sequence    uint64
	Synchronous bool
	Timeout     time.Duration

	state      atomic.Uint32
	completing atomic.Bool
	done       util.Completion

	mu       sync.Mutex
	status   bool
	err      error
	response func(Operation)
}

func (b *OpBase) init(synchronous bool) {
	b.Synchronous = synchronous
	b.Timeout = DefaultTimeout * time.Millisecond
}

// Base returns b itself; it lets generic code reach the shared state.
func (b *OpBase) Base() *OpBase { return b }

// State returns the lifecycle position.
func (b *OpBase) State() OpState { return OpState(b.state.Load()) }

// MarkSubmitted moves a created operation to Submitted. Transports and
// sessions call it when they accept an operation.
func (b *OpBase) MarkSubmitted() {
	b.state.CompareAndSwap(uint32(StateCreated), uint32(StateSubmitted))
}

// Status reports whether execution succeeded. It is false until then.
func (b *OpBase) Status() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// Err returns why execution failed, nil on success or before execution.
func (b *OpBase) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// SetResult records the outcome of an execution that happened elsewhere,
// e.g. on a remote sandbox.
func (b *OpBase) SetResult(err error) {
	b.mu.Lock()
	b.status = err == nil
	b.err = err
	b.mu.Unlock()
}

// OnResponse registers fn to be called by Complete before waiters are
// released. It must be set before the operation is submitted.
func (b *OpBase) OnResponse(fn func(Operation)) {
	b.mu.Lock()
	b.response = fn
	b.mu.Unlock()
}

// IsComplete reports whether Complete was called.
func (b *OpBase) IsComplete() bool { return b.done.IsDone() }

// Done returns a channel that is closed when the operation completes.
func (b *OpBase) Done() <-chan struct{} { return b.done.Done() }

// Wait blocks until the operation completes or timeout elapses and reports
// whether it completed. A timeout of 0 waits without bound. A timed out wait
// does not change the operation: it may still complete later.
func (b *OpBase) Wait(timeout time.Duration) bool {
	return b.done.Wait(timeout)
}

// WaitContext is like Wait but bounded by ctx.
func (b *OpBase) WaitContext(ctx context.Context) error {
	return b.done.WaitContext(ctx)
}

// --------------------------------------------------------------------------
// Execution
// --------------------------------------------------------------------------

// Execute runs op against r and records the outcome. It does not complete
// the operation, see Complete.
func Execute(r Receiver, op Operation) bool {
	b := op.Base()
	b.state.Store(uint32(StateExecuting))

	err := op.execute(r)
	b.SetResult(err)

	status := "ok"
	if err != nil {
		status = CodeOf(err).String()
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`daft_operations_total{kind=%q,status=%q}`, op.Kind(), status)).Inc()
	return err == nil
}

// Complete invokes the response callback of op, if any, and then releases
// every waiter. Only the first call has an effect; it returns false for
// every later one.
func Complete(op Operation) bool {
	b := op.Base()
	if !b.completing.CompareAndSwap(false, true) {
		return false
	}

	b.mu.Lock()
	fn := b.response
	b.mu.Unlock()
	if fn != nil {
		fn(op)
	}

	b.state.Store(uint32(StateCompleted))
	return b.done.Signal()
}

// Run executes and completes op. It returns the execution status.
func Run(r Receiver, op Operation) bool {
	ok := Execute(r, op)
	Complete(op)
	return ok
}
