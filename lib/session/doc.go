/*
Package session puts an ordered queue in front of an aft.Receiver.

A Session owns one worker goroutine that drains a multi-producer queue and
executes operations one at a time against its receiver. Submit returns
immediately, SubmitAndWait blocks until the operation completed or the wait
timed out. A Session is itself an aft.Receiver, so it can be used wherever a
sandbox is expected.

Every session keeps a small go-metrics registry (operations, failures and an
execute timer) that is reported in SandboxInfo telemetry replies.

Usage Example:

	sb := aft.NewSandbox(aft.DefaultConfig("S1"))
	s := session.New(sb, session.Options{Name: "S1"})
	defer s.Close()

	ins := aft.NewInsert(sb)
	_, _ = ins.Push(aft.NewNode(&aft.Counter{}))
	ok, err := s.SubmitAndWait(ins, time.Second)
*/
package session
