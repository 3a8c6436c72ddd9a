package aft

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dAFT/lib/data"
)

// countingReceiver records how often it was asked to execute.
type countingReceiver struct {
	UnsupportedReceiver
	inserts atomic.Int32
	fail    error
}

func (r *countingReceiver) ReceiveInsert(*Insert) error {
	r.inserts.Add(1)
	return r.fail
}

func (r *countingReceiver) ReceiveRemove(*Remove) error { return r.fail }

func TestOperationLifecycle(t *testing.T) {
	r := &countingReceiver{}
	op := NewInsert(NewSandbox(DefaultConfig(t.Name())))

	if op.State() != StateCreated || op.Timeout != DefaultTimeout*time.Millisecond {
		t.Fatalf("new operation: state %s timeout %s", op.State(), op.Timeout)
	}
	op.MarkSubmitted()
	if op.State() != StateSubmitted {
		t.Errorf("State() = %s, want Submitted", op.State())
	}

	if !Execute(r, op) || !op.Status() || op.IsComplete() {
		t.Fatalf("Execute() did not record success or completed early")
	}
	if op.State() != StateExecuting {
		t.Errorf("State() after Execute = %s, want Executing", op.State())
	}
	if !Complete(op) {
		t.Error("first Complete() = false")
	}
	if Complete(op) {
		t.Error("second Complete() = true")
	}
	if op.State() != StateCompleted || !op.IsComplete() {
		t.Errorf("State() = %s after Complete", op.State())
	}
	if r.inserts.Load() != 1 {
		t.Errorf("receiver called %d times, want 1", r.inserts.Load())
	}
}

func TestOperationFailureStatus(t *testing.T) {
	r := &countingReceiver{fail: invalid(7, ErrUnknownToken, "")}
	op := NewRemove()
	if Run(r, op) {
		t.Fatal("Run() = true for a failing receiver")
	}
	if op.Status() || !errors.Is(op.Err(), ErrUnknownToken) {
		t.Errorf("Status() = %v, Err() = %v", op.Status(), op.Err())
	}
	if CodeOf(op.Err()) != RetCValidationFailed {
		t.Errorf("CodeOf() = %s, want ValidationFailed", CodeOf(op.Err()))
	}

	info := NewSandboxInfo(InfoHeartbeat)
	if Run(r, info) || !errors.Is(info.Err(), ErrUnsupported) {
		t.Errorf("unsupported kind: Err() = %v, want %v", info.Err(), ErrUnsupported)
	}
}

func TestOperationWait(t *testing.T) {
	tests := []struct {
		name     string
		complete bool
		timeout  time.Duration
		want     bool
	}{
		{"completed before wait", true, 10 * time.Millisecond, true},
		{"timeout elapses", false, 20 * time.Millisecond, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			op := NewNodeTest(TestIsPresent, TokenDiscard)
			if tc.complete {
				Complete(op)
			}
			start := time.Now()
			if got := op.Wait(tc.timeout); got != tc.want {
				t.Errorf("Wait(%s) = %v, want %v", tc.timeout, got, tc.want)
			}
			if tc.complete && time.Since(start) > tc.timeout {
				t.Error("Wait() on a completed operation blocked")
			}
			if !tc.complete && op.State() != StateCreated {
				t.Errorf("timed out Wait() changed state to %s", op.State())
			}
		})
	}

	t.Run("unbounded", func(t *testing.T) {
		op := NewNodeTest(TestIsPresent, TokenDiscard)
		go func() {
			time.Sleep(10 * time.Millisecond)
			Complete(op)
		}()
		if !op.Wait(0) {
			t.Error("Wait(0) = false")
		}
	})

	t.Run("complete after timeout", func(t *testing.T) {
		op := NewNodeTest(TestIsPresent, TokenDiscard)
		if op.Wait(10 * time.Millisecond) {
			t.Fatal("Wait() on a pending operation = true")
		}
		if !Complete(op) {
			t.Error("Complete() after a timed out Wait() = false")
		}
		if op.State() != StateCompleted {
			t.Errorf("State() = %s, want %s", op.State(), StateCompleted)
		}
		if !op.Wait(0) {
			t.Error("Wait(0) after Complete() = false")
		}
		if Complete(op) {
			t.Error("second Complete() = true")
		}
	})

	t.Run("context", func(t *testing.T) {
		op := NewNodeTest(TestIsPresent, TokenDiscard)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := op.WaitContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("WaitContext() error = %v, want %v", err, context.DeadlineExceeded)
		}
	})
}

func TestOperationResponseBeforeWaiters(t *testing.T) {
	op := NewSandboxFind(FindByToken, TokenDiscard, "")
	var called atomic.Bool
	op.OnResponse(func(o Operation) {
		if o.Base().IsComplete() {
			t.Error("response ran after waiters were released")
		}
		called.Store(true)
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !op.Wait(time.Second) {
				t.Error("Wait() timed out")
			}
			if !called.Load() {
				t.Error("waiter released before the response ran")
			}
		}()
	}

	sb := NewSandbox(DefaultConfig(t.Name()))
	sb.Send(op)
	wg.Wait()
}

func TestSynchronousDefaults(t *testing.T) {
	if !NewNodeTest(TestIsPresent, 1).Synchronous || !NewEntryTest(EntryIsPresent, NewIndexEntry(1, 0, 2)).Synchronous {
		t.Error("tests should be synchronous by default")
	}
	if NewInsert(NewSandbox(DefaultConfig(t.Name()))).Synchronous || NewRemove().Synchronous {
		t.Error("insert and remove should not be synchronous by default")
	}
}

func TestParseOpKind(t *testing.T) {
	for k := KindInsert; k <= KindEntryTest; k++ {
		got, err := ParseOpKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseOpKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseOpKind("Upsert"); err == nil {
		t.Error("ParseOpKind(Upsert) succeeded")
	}
}

func TestRemoveFromInsertOrder(t *testing.T) {
	sb := NewSandbox(DefaultConfig(t.Name()))
	ins := NewInsert(sb)
	a, _ := ins.Push(NewNode(&Counter{}))
	b, _ := ins.Push(NewNode(&Counter{}))
	list, _ := ins.Push(NewNode(&IndexedList{MaxIndex: 4}))
	e1 := NewIndexEntry(list, 0, a)
	e2 := NewIndexEntry(list, 1, b)
	ins.PushEntry(e1)
	ins.PushEntry(e2)
	ins.PushEntry(DeleteOf(NewIndexEntry(list, 3, a)))
	ins.PushName("a", a)

	rm := NewRemoveFromInsert(ins)
	toks := rm.Tokens()
	if len(toks) != 3 || toks[0] != list || toks[2] != a {
		t.Errorf("Tokens() = %v, want [%d %d %d]", toks, list, b, a)
	}
	entries := rm.Entries()
	if len(entries) != 2 || entries[0] != Entry(e2) || entries[1] != Entry(e1) {
		t.Errorf("Entries() = %v, want reversed adds only", entries)
	}
	if names := rm.Names(); len(names) != 1 || names[0] != "a" {
		t.Errorf("Names() = %v", names)
	}
}

func TestRemoveUpdate(t *testing.T) {
	older := NewRemove()
	older.Push(1)
	older.Push(2)
	older.PushEntry(NewIndexEntry(5, 0, 1))
	older.PushEntry(NewIndexEntry(5, 1, 2))
	older.PushName("keep")
	older.PushName("drop")

	newer := NewRemove()
	newer.Push(2)
	newer.PushEntry(&DeleteIndex{EntryHeader: newHeader(5), Key: 1})
	newer.PushName("drop")

	older.Update(newer)
	if toks := older.Tokens(); len(toks) != 1 || toks[0] != 1 {
		t.Errorf("Tokens() = %v, want [1]", toks)
	}
	if es := older.Entries(); len(es) != 1 || KeyOf(es[0]).Index != 0 {
		t.Errorf("Entries() = %v, want index 0 only", es)
	}
	if ns := older.Names(); len(ns) != 1 || ns[0] != "keep" {
		t.Errorf("Names() = %v, want [keep]", ns)
	}
}

func TestErrorConversion(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code RetCode
		is   error
	}{
		{"validation", invalid(3, ErrOutOfOrderRemove, ""), RetCValidationFailed, ErrOutOfOrderRemove},
		{"illegal type", ErrIllegalType, RetCInvalidOperation, ErrIllegalType},
		{"test failed", ErrTestFailed, RetCTestFailed, ErrTestFailed},
		{"other", errors.New("boom"), RetCInternalError, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := ToError(tc.err)
			if e.Code != tc.code {
				t.Errorf("ToError().Code = %s, want %s", e.Code, tc.code)
			}
			if tc.is != nil && !errors.Is(e, tc.is) {
				t.Errorf("errors.Is(%v, %v) = false", e, tc.is)
			}
		})
	}

	if ToError(nil) != nil {
		t.Error("ToError(nil) != nil")
	}
	// a converted error still matches its class
	if !errors.Is(NewError(RetCValidationFailed, "x"), ErrValidation) {
		t.Error("NewError(ValidationFailed) does not match ErrValidation")
	}
}

func TestEntryKeys(t *testing.T) {
	route := NewRouteEntry(1, data.Uint16(80), 2)
	del := DeleteOf(route)
	if KeyOf(route).String() != KeyOf(del).String() {
		t.Errorf("delete key %s != add key %s", KeyOf(del), KeyOf(route))
	}
	if !IsDelete(del) || IsDelete(route) {
		t.Error("IsDelete() mismatch")
	}
	if EntryValue(del) != TokenNone || len(EntryNextNodes(del)) != 0 {
		t.Error("delete entry has a value")
	}

	a := KeyOf(NewIndexEntry(1, 7, 2)).String()
	b := KeyOf(NewKeyFieldEntry(1, data.NewKey("vrf", data.Uint16(7)), 2)).String()
	if a == b {
		t.Errorf("index and field keys collide: %s", a)
	}

	narrow := KeyOf(NewRouteEntry(1, data.Uint(5, 20), 2)).String()
	wide := KeyOf(NewRouteEntry(1, data.Uint64(5), 3)).String()
	if narrow == wide {
		t.Errorf("keys of different width collide: %s", narrow)
	}
	narrow = KeyOf(NewKeyFieldEntry(1, data.NewKey("label", data.Uint(5, 20)), 2)).String()
	wide = KeyOf(NewKeyFieldEntry(1, data.NewKey("label", data.Uint64(5)), 2)).String()
	if narrow == wide {
		t.Errorf("field keys of different width collide: %s", narrow)
	}
}
