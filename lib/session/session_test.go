package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dAFT/lib/aft"
	afttesting "github.com/ValentinKolb/dAFT/lib/aft/testing"
)

func newSandbox(t *testing.T) *aft.Sandbox {
	t.Helper()
	sb := aft.NewSandbox(aft.DefaultConfig(t.Name()))
	if err := afttesting.RegisterFields(sb); err != nil {
		t.Fatalf("RegisterFields() error = %v", err)
	}
	return sb
}

func TestSessionReceiver(t *testing.T) {
	afttesting.RunReceiverTests(t, "Session", func(t *testing.T) afttesting.Fixture {
		sb := newSandbox(t)
		s := New(sb, Options{Name: t.Name()})
		return afttesting.Fixture{Receiver: s, Stager: sb, Close: s.Close}
	})
}

func TestSubmitAndWait(t *testing.T) {
	sb := newSandbox(t)
	s := New(sb, Options{})
	defer s.Close()

	ins := aft.NewInsert(sb)
	tok, _ := ins.Push(aft.NewNode(&aft.Counter{}))
	ok, err := s.SubmitAndWait(ins, time.Second)
	if !ok || err != nil {
		t.Fatalf("SubmitAndWait() = %v, %v", ok, err)
	}
	if !sb.IsValidToken(tok) {
		t.Errorf("token %d not committed", tok)
	}
	if ins.State() != aft.StateCompleted {
		t.Errorf("State() = %s, want Completed", ins.State())
	}

	bad := aft.NewInsert(sb)
	_, _ = bad.Push(aft.NewNode(&aft.Indirect{Target: tok + 100}))
	ok, err = s.SubmitAndWait(bad, 0)
	if ok || !errors.Is(err, aft.ErrValidation) {
		t.Errorf("SubmitAndWait(invalid) = %v, %v, want false, %v", ok, err, aft.ErrValidation)
	}
}

// TestSessionOrdering checks that every producer's operations are applied
// in the order it submitted them: each producer inserts a node and then
// removes it, which only succeeds if the insert ran first.
func TestSessionOrdering(t *testing.T) {
	sb := newSandbox(t)
	s := New(sb, Options{})
	defer s.Close()

	const producers, rounds = 6, 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	var ops []aft.Operation

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				ins := aft.NewInsert(sb)
				tok, _ := ins.Push(aft.NewNode(&aft.Counter{}))
				rm := aft.NewRemove()
				rm.Push(tok)
				if err := s.Submit(ins); err != nil {
					t.Errorf("Submit() error = %v", err)
				}
				if err := s.Submit(rm); err != nil {
					t.Errorf("Submit() error = %v", err)
				}
				mu.Lock()
				ops = append(ops, ins, rm)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for _, op := range ops {
		if !op.Base().Wait(5 * time.Second) {
			t.Fatalf("%s did not complete", op.Kind())
		}
		if !op.Base().Status() {
			t.Errorf("%s failed: %v", op.Kind(), op.Base().Err())
		}
	}
	if sb.NodeCount() != 0 {
		t.Errorf("NodeCount() = %d, want 0", sb.NodeCount())
	}
}

func TestSubmitAfterClose(t *testing.T) {
	sb := newSandbox(t)
	s := New(sb, Options{})

	queued := make([]*aft.NodeTest, 20)
	for i := range queued {
		queued[i] = aft.NewNodeTest(aft.TestIsPresent, aft.TokenDiscard)
		_ = s.Submit(queued[i])
	}
	s.Close()
	s.Close()

	for i, op := range queued {
		if !op.IsComplete() || !op.Status() {
			t.Errorf("operation %d queued before Close: complete=%v status=%v", i, op.IsComplete(), op.Status())
		}
	}

	late := aft.NewNodeTest(aft.TestIsPresent, aft.TokenDiscard)
	if err := s.Submit(late); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Submit() after Close error = %v, want %v", err, ErrSessionClosed)
	}
	if !late.IsComplete() || late.Status() {
		t.Error("rejected operation should be completed with a failure")
	}
	if err := s.ReceiveInsert(aft.NewInsert(sb)); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("ReceiveInsert() after Close error = %v, want %v", err, ErrSessionClosed)
	}
}

func TestReceiveRacingCloseReturns(t *testing.T) {
	for round := 0; round < 50; round++ {
		sb := newSandbox(t)
		s := New(sb, Options{})

		var wg sync.WaitGroup
		for p := 0; p < 8; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					err := s.ReceiveNodeTest(aft.NewNodeTest(aft.TestIsPresent, aft.TokenDiscard))
					if err != nil && !errors.Is(err, ErrSessionClosed) {
						t.Errorf("ReceiveNodeTest() error = %v", err)
					}
				}
			}()
		}
		s.Close()

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: receivers still blocked after Close", round)
		}
	}
}

func TestSessionTelemetry(t *testing.T) {
	sb := newSandbox(t)
	s := New(sb, Options{Name: "telemetry"})
	defer s.Close()

	for i := 0; i < 3; i++ {
		if ok, err := s.SubmitAndWait(aft.NewNodeTest(aft.TestIsPresent, 12345), time.Second); ok || err == nil {
			t.Fatalf("NodeTest of an unknown token = %v, %v", ok, err)
		}
	}

	info := aft.NewSandboxInfo(aft.InfoTelemetry)
	if ok, err := s.SubmitAndWait(info, time.Second); !ok {
		t.Fatalf("SandboxInfo failed: %v", err)
	}
	if v, ok := info.Reply.Get("session.failures"); !ok || v.AsUint64() != 3 {
		t.Errorf("session.failures = %v, %v, want 3", v, ok)
	}
	if v, ok := info.Reply.Get("session.id"); !ok || v.AsString() != s.ID().String() {
		t.Errorf("session.id = %v, want %s", v, s.ID())
	}
	if _, ok := info.Reply.Get("commits"); !ok {
		t.Error("sandbox telemetry missing from the reply")
	}
}
