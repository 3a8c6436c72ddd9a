package testing

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/data"
	"github.com/ValentinKolb/dAFT/lib/tables"
)

// Fixture is one receiver under test together with the stager inserts are
// built against. Close may be nil.
type Fixture struct {
	Receiver aft.Receiver
	Stager   aft.Stager
	Close    func()
}

// Factory creates a fresh, empty fixture.
type Factory func(t *testing.T) Fixture

// FieldRegistry is anything fields can be registered with.
type FieldRegistry interface {
	InsertField(name string, width uint32) (tables.FieldInfo, error)
}

// Fields are the fields the suite builds nodes with. Factories must register
// them, see RegisterFields.
var Fields = map[string]uint32{
	"dst_ip":     32,
	"vrf":        16,
	"proto":      8,
	"mpls.label": 20,
}

// RegisterFields registers Fields with r.
func RegisterFields(r FieldRegistry) error {
	for name, width := range Fields {
		if _, err := r.InsertField(name, width); err != nil {
			return err
		}
	}
	return nil
}

// RunReceiverTests runs the standard test suite against receivers created by
// factory.
func RunReceiverTests(t *testing.T, name string, factory Factory) {
	t.Run(name, func(t *testing.T) {
		t.Run("InsertAndFind", func(t *testing.T) {
			testInsertAndFind(t, open(t, factory))
		})

		t.Run("InsertIsAtomic", func(t *testing.T) {
			testInsertIsAtomic(t, open(t, factory))
		})

		t.Run("RouteEntryLifecycle", func(t *testing.T) {
			testRouteEntryLifecycle(t, open(t, factory))
		})

		t.Run("RemoveInverse", func(t *testing.T) {
			testRemoveInverse(t, open(t, factory))
		})

		t.Run("OutOfOrderRemove", func(t *testing.T) {
			testOutOfOrderRemove(t, open(t, factory))
		})

		t.Run("IndexedList", func(t *testing.T) {
			testIndexedList(t, open(t, factory))
		})

		t.Run("NamesAndGroups", func(t *testing.T) {
			testNamesAndGroups(t, open(t, factory))
		})

		t.Run("ActiveAndInfo", func(t *testing.T) {
			testActiveAndInfo(t, open(t, factory))
		})

		t.Run("Heartbeat", func(t *testing.T) {
			testHeartbeat(t, open(t, factory))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func open(t *testing.T, factory Factory) Fixture {
	f := factory(t)
	if f.Close != nil {
		t.Cleanup(f.Close)
	}
	return f
}

func send(f Fixture, op aft.Operation) bool {
	op.Base().MarkSubmitted()
	return aft.Run(f.Receiver, op)
}

func push(t *testing.T, ins *aft.Insert, d aft.NodeData) aft.NodeToken {
	t.Helper()
	tok, err := ins.Push(aft.NewNode(d))
	if err != nil {
		t.Fatalf("Push(%s) error = %v", d.TypeName(), err)
	}
	return tok
}

func mustSend(t *testing.T, f Fixture, op aft.Operation) {
	t.Helper()
	if !send(f, op) {
		t.Fatalf("%s failed: %v", op.Kind(), op.Base().Err())
	}
}

func isPresent(f Fixture, tok aft.NodeToken) bool {
	return send(f, aft.NewNodeTest(aft.TestIsPresent, tok))
}

func prefix(s string) data.TypedValue {
	return data.Prefix(netip.MustParsePrefix(s))
}

func newTree(t *testing.T, f Fixture) aft.NodeToken {
	t.Helper()
	ins := aft.NewInsert(f.Stager)
	tree := push(t, ins, &aft.Tree{Fields: data.Fields("dst_ip"), Default: aft.TokenDiscard})
	mustSend(t, f, ins)
	return tree
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertAndFind(t *testing.T, f Fixture) {
	ins := aft.NewInsert(f.Stager)
	tree := push(t, ins, &aft.Tree{Fields: data.Fields("dst_ip"), Default: aft.TokenDiscard})
	counter, err := ins.Push(aft.NewNode(&aft.Counter{}).WithNext(tree))
	if err != nil {
		t.Fatalf("Push(Counter) error = %v", err)
	}
	mustSend(t, f, ins)

	if !ins.IsComplete() || ins.State() != aft.StateCompleted {
		t.Errorf("Insert state = %s, want completed", ins.State())
	}
	if counter <= tree {
		t.Errorf("tokens = %d, %d, want increasing", tree, counter)
	}

	find := aft.NewSandboxFind(aft.FindByToken, tree, "")
	mustSend(t, f, find)
	if len(find.Results) != 1 || find.Results[0].TypeName != aft.TypeTree {
		t.Fatalf("Find(%d) = %+v, want one Tree", tree, find.Results)
	}

	byType := aft.NewSandboxFind(aft.FindByType, aft.TokenNone, aft.TypeCounter)
	mustSend(t, f, byType)
	if toks := byType.Tokens(); len(toks) != 1 || toks[0] != counter {
		t.Errorf("Find(type Counter) = %v, want [%d]", toks, counter)
	}

	hasNext := aft.NewNodeTest(aft.TestHasNext, counter)
	hasNext.Next = tree
	if !send(f, hasNext) {
		t.Errorf("HasNext(%d, %d) = false: %v", counter, tree, hasNext.Err())
	}
	count := aft.NewNodeTest(aft.TestNextCount, counter)
	count.Count = 1
	if !send(f, count) {
		t.Errorf("NextCount(%d) = %d, want 1", counter, count.Observed)
	}

	missing := aft.NewSandboxFind(aft.FindByToken, counter+1000, "")
	mustSend(t, f, missing)
	if len(missing.Results) != 0 {
		t.Errorf("Find(unknown) = %+v, want nothing", missing.Results)
	}
}

func testInsertIsAtomic(t *testing.T, f Fixture) {
	dangling := f.Stager.AllocateToken()

	ins := aft.NewInsert(f.Stager)
	counter := push(t, ins, &aft.Counter{})
	push(t, ins, &aft.Match{
		Field:     data.NewField("proto"),
		Op:        aft.MatchEqual,
		Value:     data.Uint32(6),
		TrueNode:  dangling,
		FalseNode: aft.TokenNone,
	})

	if send(f, ins) {
		t.Fatal("Insert with a dangling reference succeeded")
	}
	if !errors.Is(ins.Err(), aft.ErrValidation) {
		t.Errorf("Err() = %v, want %v", ins.Err(), aft.ErrValidation)
	}
	if !ins.IsComplete() {
		t.Error("failed Insert was not completed")
	}
	if isPresent(f, counter) {
		t.Errorf("node %d of a failed Insert is present", counter)
	}

	// a later push may refer to an earlier one
	ins = aft.NewInsert(f.Stager)
	tail := push(t, ins, &aft.Counter{})
	head := push(t, ins, &aft.Match{
		Field:     data.NewField("proto"),
		Value:     data.Uint32(17),
		TrueNode:  tail,
		FalseNode: aft.TokenNone,
	})
	mustSend(t, f, ins)
	if !isPresent(f, head) || !isPresent(f, tail) {
		t.Error("Insert of a dependency ordered subgraph did not commit")
	}

	// so may an earlier push to a token allocated up front
	ins = aft.NewInsert(f.Stager)
	ahead := f.Stager.AllocateToken()
	front := push(t, ins, &aft.Match{
		Field:     data.NewField("proto"),
		Value:     data.Uint32(6),
		TrueNode:  ahead,
		FalseNode: aft.TokenNone,
	})
	if _, err := ins.PushWithToken(aft.NewNode(&aft.Counter{}), ahead); err != nil {
		t.Fatalf("PushWithToken(Counter) error = %v", err)
	}
	mustSend(t, f, ins)
	if !isPresent(f, front) || !isPresent(f, ahead) {
		t.Error("Insert referring to a token pushed further down did not commit")
	}

	next := f.Stager.AllocateToken()
	if next <= dangling || next <= head {
		t.Errorf("AllocateToken() = %d, want a token above %d", next, head)
	}
}

func testRouteEntryLifecycle(t *testing.T, f Fixture) {
	tree := newTree(t, f)
	route := aft.NewRouteEntry(tree, prefix("10.0.0.0/8"), aft.TokenDiscard)

	ins := aft.NewInsert(f.Stager)
	ins.PushEntry(route)
	mustSend(t, f, ins)

	if !send(f, aft.NewEntryTest(aft.EntryIsPresent, route)) {
		t.Fatal("route entry not present after Insert")
	}
	hasNext := aft.NewEntryTest(aft.EntryHasNext, route)
	hasNext.Next = aft.TokenDiscard
	if !send(f, hasNext) {
		t.Errorf("EntryHasNext(discard) failed: %v", hasNext.Err())
	}

	rm := aft.NewRemove()
	rm.PushEntry(route)
	mustSend(t, f, rm)

	test := aft.NewEntryTest(aft.EntryIsPresent, route)
	if send(f, test) {
		t.Error("route entry still present after Remove")
	}
	if !errors.Is(test.Err(), aft.ErrTestFailed) {
		t.Errorf("EntryTest Err() = %v, want %v", test.Err(), aft.ErrTestFailed)
	}

	// entries need a container parent
	counterIns := aft.NewInsert(f.Stager)
	counter := push(t, counterIns, &aft.Counter{})
	mustSend(t, f, counterIns)

	bad := aft.NewInsert(f.Stager)
	bad.PushEntry(aft.NewRouteEntry(counter, prefix("192.168.0.0/16"), aft.TokenDiscard))
	if send(f, bad) || !errors.Is(bad.Err(), aft.ErrValidation) {
		t.Errorf("entry on a non-container: Err() = %v, want %v", bad.Err(), aft.ErrValidation)
	}
}

func testRemoveInverse(t *testing.T, f Fixture) {
	ins := aft.NewInsert(f.Stager)
	tree := push(t, ins, &aft.Tree{Fields: data.Fields("dst_ip"), Default: aft.TokenDiscard})
	counter := push(t, ins, &aft.Counter{})
	ins.PushEntry(aft.NewRouteEntry(tree, prefix("10.1.0.0/16"), counter))
	ins.PushName("fib", tree)
	mustSend(t, f, ins)

	rm := aft.NewRemoveFromInsert(ins)
	mustSend(t, f, rm)

	for _, tok := range []aft.NodeToken{tree, counter} {
		if isPresent(f, tok) {
			t.Errorf("token %d present after inverse Remove", tok)
		}
	}
	byName := aft.NewSandboxFind(aft.FindByName, aft.TokenNone, "fib")
	mustSend(t, f, byName)
	if len(byName.Results) != 0 {
		t.Errorf("name fib still bound: %+v", byName.Results)
	}

	again := aft.NewInsert(f.Stager)
	fresh := push(t, again, &aft.Counter{})
	mustSend(t, f, again)
	if fresh <= counter {
		t.Errorf("token after Remove = %d, want above %d (tokens are not reused)", fresh, counter)
	}

	twice := aft.NewRemove()
	twice.Push(tree)
	if send(f, twice) || !errors.Is(twice.Err(), aft.ErrUnknownToken) {
		t.Errorf("Remove of a removed token: Err() = %v, want %v", twice.Err(), aft.ErrUnknownToken)
	}
}

func testOutOfOrderRemove(t *testing.T, f Fixture) {
	ins := aft.NewInsert(f.Stager)
	tree := push(t, ins, &aft.Tree{Fields: data.Fields("dst_ip"), Default: aft.TokenDiscard})
	counter := push(t, ins, &aft.Counter{})
	route := aft.NewRouteEntry(tree, prefix("172.16.0.0/12"), counter)
	ins.PushEntry(route)
	mustSend(t, f, ins)

	container := aft.NewRemove()
	container.Push(tree)
	if send(f, container) || !errors.Is(container.Err(), aft.ErrOutOfOrderRemove) {
		t.Errorf("Remove of a container with entries: Err() = %v, want %v", container.Err(), aft.ErrOutOfOrderRemove)
	}

	value := aft.NewRemove()
	value.Push(counter)
	if send(f, value) || !errors.Is(value.Err(), aft.ErrOutOfOrderRemove) {
		t.Errorf("Remove of an entry value: Err() = %v, want %v", value.Err(), aft.ErrOutOfOrderRemove)
	}

	if !isPresent(f, tree) || !isPresent(f, counter) || !send(f, aft.NewEntryTest(aft.EntryIsPresent, route)) {
		t.Fatal("rejected Remove changed state")
	}

	ordered := aft.NewRemove()
	ordered.PushEntry(route)
	ordered.Push(tree)
	ordered.Push(counter)
	mustSend(t, f, ordered)
}

func testIndexedList(t *testing.T, f Fixture) {
	cnt := aft.NewInsert(f.Stager)
	a := push(t, cnt, &aft.Counter{})
	b := push(t, cnt, &aft.Counter{})
	mustSend(t, f, cnt)

	entries := []aft.IndexEntry{*aft.NewIndexEntry(aft.TokenNone, 0, a), *aft.NewIndexEntry(aft.TokenNone, 1, b)}

	tests := []struct {
		name     string
		maxIndex uint32
		want     bool
	}{
		{"max below entry count", 1, false},
		{"max equal to entry count", 2, true},
		{"max above entry count", 8, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ins := aft.NewInsert(f.Stager)
			push(t, ins, &aft.IndexedList{MaxIndex: tc.maxIndex, Entries: entries})
			if got := send(f, ins); got != tc.want {
				t.Errorf("Insert(IndexedList max=%d) = %v, want %v (%v)", tc.maxIndex, got, tc.want, ins.Err())
			}
		})
	}

	ins := aft.NewInsert(f.Stager)
	list := push(t, ins, &aft.IndexedList{MaxIndex: 4})
	mustSend(t, f, ins)

	out := aft.NewInsert(f.Stager)
	out.PushEntry(aft.NewIndexEntry(list, 4, a))
	if send(f, out) {
		t.Error("IndexEntry at max index accepted")
	}
	in := aft.NewInsert(f.Stager)
	in.PushEntry(aft.NewIndexEntry(list, 3, a))
	mustSend(t, f, in)
}

func testNamesAndGroups(t *testing.T, f Fixture) {
	ins := aft.NewInsert(f.Stager)
	eth0 := push(t, ins, &aft.Counter{})
	eth1 := push(t, ins, &aft.Counter{})
	lo := push(t, ins, &aft.Counter{})
	ins.PushName("eth0", eth0)
	ins.PushName("eth1", eth1)
	ins.PushName("lo", lo)
	ins.PushGroup(aft.GroupBinding{Group: "uplinks", Token: eth0})
	ins.PushGroup(aft.GroupBinding{Group: "uplinks", Token: eth1})
	mustSend(t, f, ins)

	regex := aft.NewSandboxFind(aft.FindByRegex, aft.TokenNone, "^eth")
	mustSend(t, f, regex)
	if toks := regex.Tokens(); len(toks) != 2 || toks[0] != eth0 || toks[1] != eth1 {
		t.Errorf("Find(^eth) = %v, want [%d %d]", toks, eth0, eth1)
	}

	group := aft.NewSandboxFind(aft.FindByGroup, aft.TokenNone, "uplinks")
	mustSend(t, f, group)
	if len(group.Results) != 2 {
		t.Errorf("Find(group uplinks) = %v, want 2 results", group.Tokens())
	}

	inGroup := aft.NewNodeTest(aft.TestIsInGroup, lo)
	inGroup.Group = "uplinks"
	if send(f, inGroup) {
		t.Error("lo reported in group uplinks")
	}

	rm := aft.NewRemove()
	rm.PushGroup(aft.GroupBinding{Group: "uplinks", Token: eth1})
	rm.PushName("lo")
	mustSend(t, f, rm)

	inGroup = aft.NewNodeTest(aft.TestIsInGroup, eth1)
	inGroup.Group = "uplinks"
	if send(f, inGroup) {
		t.Error("eth1 still in group uplinks after Remove")
	}
	if !isPresent(f, lo) {
		t.Error("removing a name removed its node")
	}

	bad := aft.NewInsert(f.Stager)
	bad.PushName("ghost", lo+1000)
	if send(f, bad) {
		t.Error("name bound to an unknown token")
	}
}

func testActiveAndInfo(t *testing.T, f Fixture) {
	ins := aft.NewInsert(f.Stager)
	tok := push(t, ins, &aft.Policer{Burst: 1000, Rate: 10000})
	mustSend(t, f, ins)

	act := aft.NewNodeActive(aft.ActiveRequest{Token: tok, Active: false})
	mustSend(t, f, act)
	if len(act.Replies) != 1 || !act.Replies[0].Found || act.Replies[0].Active {
		t.Errorf("NodeActive replies = %+v", act.Replies)
	}

	info := aft.NewNodeInfo(tok)
	mustSend(t, f, info)
	got, ok := info.Pull()
	if !ok || got.Token != tok || got.TypeName != aft.TypePolicer || got.Active {
		t.Errorf("NodeInfo = %+v, %v", got, ok)
	}
	if _, ok := info.Pull(); ok {
		t.Error("NodeInfo returned more replies than requested")
	}

	unknown := aft.NewNodeActive(aft.ActiveRequest{Token: tok + 1000, Active: true})
	if send(f, unknown) {
		t.Error("NodeActive of an unknown token succeeded")
	}
	if len(unknown.Replies) != 1 || unknown.Replies[0].Found {
		t.Errorf("NodeActive(unknown) replies = %+v", unknown.Replies)
	}
}

func testHeartbeat(t *testing.T, f Fixture) {
	hb := aft.NewSandboxInfo(aft.InfoHeartbeat)
	mustSend(t, f, hb)
	if v, ok := hb.Reply.Get("alive"); !ok || !v.AsBool() {
		t.Errorf("heartbeat reply = %s", hb.Reply)
	}
}
