package session

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/data"
	"github.com/ValentinKolb/dAFT/lib/util"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"sync"
	"time"
)

var log = logger.GetLogger("session")

// ErrSessionClosed is returned for operations submitted after Close.
var ErrSessionClosed = errors.New("session closed")

// Options configures a session. The zero value is usable.
type Options struct {
	// Name shows up in logs and telemetry. Defaults to the session id.
	Name string
	// Registry receives the per-session metrics. A fresh registry is
	// created when nil.
	Registry gometrics.Registry
}

// job is one unit of work for the worker: either a whole operation whose
// lifecycle the session drives, or a single receive call whose result is
// handed back to the caller.
type job struct {
	op    aft.Operation
	run   func() error
	reply chan error
}

// Session serializes operations onto a receiver. Operations are executed by
// a single worker goroutine in the order they were queued, so the pushes of
// one producer are applied in the order they were made.
//
// Thread-safety: all methods are safe for concurrent use.
type Session struct {
	id     uuid.UUID
	name   string
	direct worker

	queue   *util.MPSC[job]
	stopped chan struct{}
	once    sync.Once

	registry  gometrics.Registry
	ops       gometrics.Counter
	failures  gometrics.Counter
	execute   gometrics.Timer
	queueWait *metrics.Histogram
}

// New starts a session in front of target.
func New(target aft.Receiver, opts Options) *Session {
	s := &Session{
		id:       uuid.New(),
		queue:    util.NewMPSC[job](),
		stopped:  make(chan struct{}),
		registry: opts.Registry,
	}
	s.direct = worker{Receiver: target, s: s}
	s.name = opts.Name
	if s.name == "" {
		s.name = s.id.String()
	}
	if s.registry == nil {
		s.registry = gometrics.NewRegistry()
	}
	s.ops = gometrics.NewRegisteredCounter("operations", s.registry)
	s.failures = gometrics.NewRegisteredCounter("failures", s.registry)
	s.execute = gometrics.NewRegisteredTimer("execute", s.registry)
	s.queueWait = metrics.GetOrCreateHistogram(fmt.Sprintf(`daft_session_queue_wait_seconds{session=%q}`, s.name))

	go s.work()
	log.Infof("session %s (%s) started", s.name, s.id)
	return s
}

// ID returns the unique id of the session.
func (s *Session) ID() uuid.UUID { return s.id }

// Name returns the configured name.
func (s *Session) Name() string { return s.name }

// Registry returns the per-session metric registry.
func (s *Session) Registry() gometrics.Registry { return s.registry }

// Pending returns the number of queued, not yet started jobs.
func (s *Session) Pending() int { return s.queue.Len() }

func (s *Session) work() {
	defer close(s.stopped)
	for q := range s.queue.Recv() {
		s.queueWait.Update(q.Wait.Seconds())
		j := q.Item
		start := time.Now()

		var err error
		if j.op != nil {
			aft.Run(s.direct, j.op)
			err = j.op.Base().Err()
		} else {
			err = j.run()
			j.reply <- err
		}

		s.execute.UpdateSince(start)
		s.ops.Inc(1)
		if err != nil {
			s.failures.Inc(1)
		}
	}
}

// --------------------------------------------------------------------------
// Submitting
// --------------------------------------------------------------------------

// Submit queues op and returns immediately. The operation is completed by
// the worker; use its Wait to block on it.
func (s *Session) Submit(op aft.Operation) error {
	op.Base().MarkSubmitted()
	if !s.queue.Push(&job{op: op}) {
		op.Base().SetResult(ErrSessionClosed)
		aft.Complete(op)
		return ErrSessionClosed
	}
	return nil
}

// SubmitAndWait queues op and waits up to timeout for it to complete. A
// timeout of 0 uses the operation's own timeout. It returns the execution
// status; a wait that timed out returns false and aft.ErrTimeout while the
// operation stays queued.
func (s *Session) SubmitAndWait(op aft.Operation, timeout time.Duration) (bool, error) {
	if err := s.Submit(op); err != nil {
		return false, err
	}
	if timeout == 0 {
		timeout = op.Base().Timeout
	}
	if !op.Base().Wait(timeout) {
		return false, aft.ErrTimeout
	}
	return op.Base().Status(), op.Base().Err()
}

// call runs fn on the worker and waits for its result.
func (s *Session) call(fn func() error) error {
	j := &job{run: fn, reply: make(chan error, 1)}
	if !s.queue.Push(j) {
		return ErrSessionClosed
	}
	select {
	case err := <-j.reply:
		return err
	case <-s.stopped:
		// the worker replies before it stops
		select {
		case err := <-j.reply:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

// Close stops accepting operations, waits until every queued one has been
// executed and stops the worker. It is safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		s.queue.Close()
		<-s.stopped
		log.Infof("session %s closed after %d operations (%d failed)", s.name, s.ops.Count(), s.failures.Count())
	})
}

// --------------------------------------------------------------------------
// Receiver
// --------------------------------------------------------------------------

func (s *Session) ReceiveInsert(op *aft.Insert) error {
	return s.call(func() error { return s.direct.ReceiveInsert(op) })
}

func (s *Session) ReceiveRemove(op *aft.Remove) error {
	return s.call(func() error { return s.direct.ReceiveRemove(op) })
}

func (s *Session) ReceiveSandboxInfo(op *aft.SandboxInfo) error {
	return s.call(func() error { return s.direct.ReceiveSandboxInfo(op) })
}

func (s *Session) ReceiveSandboxFind(op *aft.SandboxFind) error {
	return s.call(func() error { return s.direct.ReceiveSandboxFind(op) })
}

func (s *Session) ReceiveNodeInfo(op *aft.NodeInfo) error {
	return s.call(func() error { return s.direct.ReceiveNodeInfo(op) })
}

func (s *Session) ReceiveNodeActive(op *aft.NodeActive) error {
	return s.call(func() error { return s.direct.ReceiveNodeActive(op) })
}

func (s *Session) ReceiveNodeTest(op *aft.NodeTest) error {
	return s.call(func() error { return s.direct.ReceiveNodeTest(op) })
}

func (s *Session) ReceiveEntryTest(op *aft.EntryTest) error {
	return s.call(func() error { return s.direct.ReceiveEntryTest(op) })
}

// worker is the receiver the worker goroutine executes against: the target
// itself, except that telemetry replies are extended with the session's own
// metrics under the "session." prefix.
type worker struct {
	aft.Receiver
	s *Session
}

func (w worker) ReceiveSandboxInfo(op *aft.SandboxInfo) error {
	if err := w.Receiver.ReceiveSandboxInfo(op); err != nil {
		return err
	}
	if op.Request == aft.InfoTelemetry {
		w.s.telemetry(&op.Reply)
	}
	return nil
}

// telemetry copies a snapshot of the registry into p.
func (s *Session) telemetry(p *data.Parameters) {
	p.Set("session.id", data.String(s.id.String()))
	s.registry.Each(func(name string, m interface{}) {
		switch m := m.(type) {
		case gometrics.Counter:
			p.Set("session."+name, data.Uint64(uint64(m.Count())))
		case gometrics.Timer:
			snap := m.Snapshot()
			p.Set("session."+name+".count", data.Uint64(uint64(snap.Count())))
			p.Set("session."+name+".mean_ns", data.Uint64(uint64(snap.Mean())))
			p.Set("session."+name+".max_ns", data.Uint64(uint64(snap.Max())))
		}
	})
}
