// Package testing provides a standard test suite for implementations of
// aft.Receiver.
//
// The suite only talks to the receiver through operations, so the local
// sandbox, sessions, replicated sandboxes and remote clients can all be
// checked against the same expectations.
//
// Example usage:
//
//	factory := func(t *testing.T) afttesting.Fixture {
//		sb := aft.NewSandbox(aft.DefaultConfig("test"))
//		afttesting.RegisterFields(sb)
//		return afttesting.Fixture{Receiver: sb, Stager: sb}
//	}
//
//	afttesting.RunReceiverTests(t, "Sandbox", factory)
package testing
