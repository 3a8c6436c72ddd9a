/*
Package aft implements the forwarding graph control plane: nodes, entries,
the sandbox that owns them and the operations that change or query it.

# Key Features

  - Closed node and entry unions, dispatched with exhaustive type switches
  - All-or-nothing Insert and Remove transactions
  - Tokens that are allocated monotonically and never reused
  - Operations with a one-shot completion and bounded waits
  - Validation with a diagnostic writer instead of exceptions

# Thread Safety

A Sandbox serializes Insert, Remove and NodeActive internally; lookups and
queries may run concurrently. An operation must not be submitted twice.

# Usage Example

	sb := aft.NewSandbox(aft.DefaultConfig("S1"))
	_, _ = sb.InsertField("dst_ip", 32)

	ins := aft.NewInsert(sb)
	tree, _ := ins.Push(aft.NewNode(&aft.Tree{Fields: data.Fields("dst_ip"), Default: aft.TokenDiscard}))
	ins.PushEntry(aft.NewRouteEntry(tree, data.Prefix(netip.MustParsePrefix("10.0.0.0/8")), aft.TokenDiscard))
	if !sb.Send(ins) {
		log.Fatal(ins.Err())
	}

	route, ok := sb.LongestMatch(tree, data.Addr(netip.MustParseAddr("10.1.2.3")))
*/
package aft
