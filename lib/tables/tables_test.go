package tables

import (
	"regexp"
	"sync"
	"testing"
)

func TestTokenAllocateIsMonotonic(t *testing.T) {
	tt := NewTokenTable[string](TokenDiscard, true)

	var prev Token
	for i := 0; i < 100; i++ {
		tok := tt.Allocate()
		if tok <= prev {
			t.Fatalf("Allocate() = %d after %d, want strictly increasing", tok, prev)
		}
		if tok == TokenDiscard || tok == TokenNone {
			t.Fatalf("Allocate() returned reserved token %d", tok)
		}
		prev = tok
	}
}

func TestTokenNeverReused(t *testing.T) {
	tt := NewTokenTable[string](TokenDiscard, true)
	seen := make(map[Token]bool)

	for cycle := 0; cycle < 50; cycle++ {
		tok := tt.Allocate()
		if seen[tok] {
			t.Fatalf("token %d handed out twice", tok)
		}
		seen[tok] = true
		tt.Insert(tok, "Counter", false, "c")
		maxBefore := tt.Max()
		if !tt.Remove(tok) {
			t.Fatalf("Remove(%d) = false", tok)
		}
		if tt.Max() != maxBefore {
			t.Errorf("Remove() changed Max() from %d to %d", maxBefore, tt.Max())
		}
	}
}

func TestTokenConcurrentAllocate(t *testing.T) {
	tt := NewTokenTable[string](100, false)
	const workers, perWorker = 8, 250

	var mu sync.Mutex
	seen := make(map[Token]bool)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				tok := tt.Allocate()
				mu.Lock()
				if seen[tok] {
					t.Errorf("token %d allocated twice", tok)
				}
				seen[tok] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if got := tt.Max(); got != 100+workers*perWorker {
		t.Errorf("Max() = %d, want %d", got, 100+workers*perWorker)
	}
}

func TestTokenRaise(t *testing.T) {
	tt := NewTokenTable[string](TokenDiscard, true)
	tt.Raise(41)
	if got := tt.Allocate(); got != 42 {
		t.Errorf("Allocate() after Raise(41) = %d, want 42", got)
	}
	tt.Raise(10)
	if got := tt.Allocate(); got != 43 {
		t.Errorf("Raise() to a smaller token lowered the counter, got %d", got)
	}
	tt.Insert(100, "List", true, "l")
	if got := tt.Allocate(); got != 101 {
		t.Errorf("Allocate() after Insert(100) = %d, want 101", got)
	}
}

func TestTokenCaching(t *testing.T) {
	tests := []struct {
		name  string
		cache bool
	}{
		{"cached", true},
		{"descriptor only", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tt := NewTokenTable[string](TokenDiscard, tc.cache)
			tok := tt.Allocate()
			tt.Insert(tok, "Tree", true, "payload")

			d, ok := tt.Find(tok)
			if !ok {
				t.Fatalf("Find(%d) not found", tok)
			}
			if d.TypeName != "Tree" || !d.Container {
				t.Errorf("Find() = %+v, want Tree container", d)
			}
			if d.Cached != tc.cache {
				t.Errorf("Cached = %v, want %v", d.Cached, tc.cache)
			}
			if tc.cache && d.Node != "payload" {
				t.Errorf("Node = %q, want payload", d.Node)
			}
			if !tc.cache && d.Node != "" {
				t.Errorf("Node = %q, want empty", d.Node)
			}
			if !tt.IsOfType(tok, "Tree") || tt.IsOfType(tok, "Table") {
				t.Error("IsOfType() mismatch")
			}
		})
	}
}

func TestTokenIteration(t *testing.T) {
	tt := NewTokenTable[string](TokenDiscard, true)
	for _, tok := range []Token{7, 3, 11} {
		tt.Insert(tok, "Counter", false, "")
	}

	got := tt.Tokens()
	want := []Token{3, 7, 11}
	if len(got) != len(want) {
		t.Fatalf("Tokens() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tokens() = %v, want %v", got, want)
			break
		}
	}
}

func TestIndexTable(t *testing.T) {
	it := NewIndexTable()

	if idx, ok := it.Find(NameNone); !ok || idx != IndexNone {
		t.Fatalf("Find(none) = %d, %v, want 0, true", idx, ok)
	}

	a, _ := it.Create("blue")
	b, _ := it.Create("green")
	again, _ := it.Create("blue")
	if a != 1 || b != 2 || again != a {
		t.Errorf("Create() = %d, %d, %d, want 1, 2, 1", a, b, again)
	}

	if err := it.Insert("red", 10); err != nil {
		t.Fatalf("Insert(red, 10) error = %v", err)
	}
	if c, _ := it.Create("yellow"); c != 11 {
		t.Errorf("Create() after Insert(10) = %d, want 11", c)
	}
	if err := it.Insert("other", 10); err == nil {
		t.Error("Insert() of a bound index should fail")
	}
	if _, err := it.Create(""); err != ErrEmptyName {
		t.Errorf("Create(\"\") error = %v, want %v", err, ErrEmptyName)
	}

	if name, _ := it.NameOf(2); name != "green" {
		t.Errorf("NameOf(2) = %q, want green", name)
	}
	if !it.Remove("green") || it.IsValid(2) {
		t.Error("Remove(green) did not unbind index 2")
	}
	if it.Remove(NameNone) {
		t.Error("Remove(none) should fail")
	}
	if c, _ := it.Create("green"); c != 12 {
		t.Errorf("re-Create(green) = %d, want 12 (indices are not reused)", c)
	}

	got := it.Match(regexp.MustCompile("^(blue|red)$"))
	if len(got) != 2 || got[0] != "blue" || got[1] != "red" {
		t.Errorf("Match() = %v, want [blue red]", got)
	}
	if names := it.Names(); names[0] != NameNone {
		t.Errorf("Names()[0] = %q, want none", names[0])
	}
}

func TestStringTable(t *testing.T) {
	st := NewStringTable[Token]()
	if err := st.Insert("", 1); err != ErrEmptyName {
		t.Errorf("Insert(\"\") error = %v, want %v", err, ErrEmptyName)
	}
	_ = st.Insert("eth0", 5)
	_ = st.Insert("eth1", 6)
	_ = st.Insert("lo", 7)

	if tok, ok := st.Find("eth1"); !ok || tok != 6 {
		t.Errorf("Find(eth1) = %d, %v", tok, ok)
	}
	if got := st.Match(regexp.MustCompile("^eth")); len(got) != 2 || got[0] != "eth0" {
		t.Errorf("Match(^eth) = %v", got)
	}

	var order []string
	st.Range(func(name string, _ Token) bool {
		order = append(order, name)
		return len(order) < 2
	})
	if len(order) != 2 || order[0] != "eth0" || order[1] != "eth1" {
		t.Errorf("Range() visited %v, want [eth0 eth1]", order)
	}

	if !st.Remove("lo") || st.IsValid("lo") || st.Len() != 2 {
		t.Error("Remove(lo) failed")
	}
}

func TestFieldTable(t *testing.T) {
	ft := NewFieldTable()
	dst, _ := ft.Add("ip.dst", 32)
	src, _ := ft.Add("ip.src", 32)
	if dst.Index == src.Index {
		t.Errorf("fields share index %d", dst.Index)
	}
	upd, _ := ft.Add("ip.dst", 128)
	if upd.Index != dst.Index || upd.Width != 128 {
		t.Errorf("Add() update = %+v, want index %d width 128", upd, dst.Index)
	}
	_ = ft.Restore("mpls.label", FieldInfo{Index: 9, Width: 20})
	if next, _ := ft.Add("vlan", 12); next.Index != 10 {
		t.Errorf("Add() after Restore(9) index = %d, want 10", next.Index)
	}
}

func TestPortTable(t *testing.T) {
	pt := NewPortTable(4)
	if err := pt.Insert(Port{Index: 4, Name: "eth4"}); err == nil {
		t.Error("Insert() at max index should fail")
	}
	_ = pt.Insert(Port{Index: 1, Name: "eth1", Token: 10})
	_ = pt.Insert(Port{Index: 3, Name: "eth3", Token: 11})

	if p, ok := pt.ByName("eth3"); !ok || p.Token != 11 {
		t.Errorf("ByName(eth3) = %+v, %v", p, ok)
	}
	_ = pt.Insert(Port{Index: 1, Name: "uplink", Token: 12})
	if _, ok := pt.ByName("eth1"); ok {
		t.Error("renamed port still found by its old name")
	}
	if p, _ := pt.ByIndex(1); p.Name != "uplink" {
		t.Errorf("ByIndex(1) = %+v, want uplink", p)
	}

	pt.SetMaxIndex(2)
	if pt.Len() != 1 {
		t.Errorf("Len() after SetMaxIndex(2) = %d, want 1", pt.Len())
	}
	if _, ok := pt.ByName("eth3"); ok {
		t.Error("port above new max still present")
	}
}

func TestPortTableNameMovesToNewIndex(t *testing.T) {
	pt := NewPortTable(8)
	_ = pt.Insert(Port{Index: 1, Name: "uplink", Token: 10})
	_ = pt.Insert(Port{Index: 2, Name: "uplink", Token: 11})

	if p, ok := pt.ByName("uplink"); !ok || p.Index != 2 {
		t.Fatalf("ByName(uplink) = %+v, %v, want index 2", p, ok)
	}
	if n := pt.RemoveToken(10); n != 1 {
		t.Errorf("RemoveToken(10) = %d, want 1", n)
	}
	if p, ok := pt.ByName("uplink"); !ok || p.Token != 11 {
		t.Errorf("ByName(uplink) after removing the old port = %+v, %v", p, ok)
	}

	_ = pt.Insert(Port{Index: 3, Name: "uplink", Token: 12})
	pt.Remove(2)
	if p, ok := pt.ByName("uplink"); !ok || p.Index != 3 {
		t.Errorf("ByName(uplink) after Remove(2) = %+v, %v", p, ok)
	}
}

func TestTokenAllocateBlock(t *testing.T) {
	tt := NewTokenTable[string](TokenDiscard, true)
	first := tt.AllocateBlock(10)
	if first != 1 {
		t.Errorf("AllocateBlock(10) = %d, want 1", first)
	}
	if got := tt.Allocate(); got != 11 {
		t.Errorf("Allocate() after block = %d, want 11", got)
	}
	if got := tt.AllocateBlock(0); got != TokenNone {
		t.Errorf("AllocateBlock(0) = %d, want TokenNone", got)
	}
}

func TestPortTableRemoveToken(t *testing.T) {
	pt := NewPortTable(8)
	_ = pt.Insert(Port{Index: 5, Name: "eth5", Token: 20})
	_ = pt.Insert(Port{Index: 2, Name: "eth2", Token: 21})
	_ = pt.Insert(Port{Index: 3, Name: "eth3", Token: 20})

	if ports := pt.Ports(); len(ports) != 3 || ports[0].Index != 2 || ports[2].Index != 5 {
		t.Errorf("Ports() = %+v, want ordered by index", ports)
	}
	if n := pt.RemoveToken(20); n != 2 {
		t.Errorf("RemoveToken(20) = %d, want 2", n)
	}
	if _, ok := pt.ByName("eth5"); ok {
		t.Error("port of removed token still found by name")
	}
	if pt.Len() != 1 {
		t.Errorf("Len() = %d, want 1", pt.Len())
	}
}
