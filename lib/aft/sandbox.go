package aft

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/data"
	"github.com/ValentinKolb/dAFT/lib/tables"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"sort"
	"sync"
	"sync/atomic"
)

var log = logger.GetLogger("aft")

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config holds the settings of a sandbox.
type Config struct {
	Name           string    // name used in logs and metrics
	TokenBase      NodeToken // allocation starts above this token
	CacheNodes     bool      // keep full nodes, not only type descriptors
	Validation     bool      // validate references on commit
	MaxInputPorts  uint32
	MaxOutputPorts uint32
	PreloadTypes   bool // register every built-in node type on creation
}

// DefaultConfig returns the configuration used when nothing else is given.
func DefaultConfig(name string) Config {
	return Config{
		Name:           name,
		TokenBase:      TokenDiscard,
		CacheNodes:     true,
		Validation:     true,
		MaxInputPorts:  64,
		MaxOutputPorts: 64,
		PreloadTypes:   true,
	}
}

// --------------------------------------------------------------------------
// Sandbox
// --------------------------------------------------------------------------

// Sandbox is one forwarding graph together with its token, name, type,
// group, field and port tables. It is the reference Receiver.
//
// Mutations (Insert, Remove, NodeActive and table inserts) are serialized by
// an internal lock; queries may run concurrently with each other.
type Sandbox struct {
	cfg Config

	mu      sync.RWMutex
	tokens  *tables.TokenTable[*Node]
	names   *tables.StringTable[NodeToken]
	types   *tables.IndexTable
	groups  *tables.IndexTable
	protos  *tables.IndexTable
	encaps  *tables.IndexTable
	decaps  *tables.IndexTable
	fields  *tables.FieldTable
	inputs  *tables.PortTable
	outputs *tables.PortTable

	entries   map[NodeToken]map[string]Entry // container -> canonical key -> entry
	valueRefs map[NodeToken]int              // number of entries pointing at a token
	groupOf   map[NodeToken]GroupIndex
	inactive  map[NodeToken]bool

	commits    atomic.Uint64
	rejections atomic.Uint64
	tokenGauge *metrics.Counter
}

// NewSandbox creates an empty sandbox.
func NewSandbox(cfg Config) *Sandbox {
	s := &Sandbox{
		cfg:        cfg,
		tokens:     tables.NewTokenTable[*Node](cfg.TokenBase, cfg.CacheNodes),
		names:      tables.NewStringTable[NodeToken](),
		types:      tables.NewIndexTable(),
		groups:     tables.NewIndexTable(),
		protos:     tables.NewIndexTable(),
		encaps:     tables.NewIndexTable(),
		decaps:     tables.NewIndexTable(),
		fields:     tables.NewFieldTable(),
		inputs:     tables.NewPortTable(cfg.MaxInputPorts),
		outputs:    tables.NewPortTable(cfg.MaxOutputPorts),
		entries:    make(map[NodeToken]map[string]Entry),
		valueRefs:  make(map[NodeToken]int),
		groupOf:    make(map[NodeToken]GroupIndex),
		inactive:   make(map[NodeToken]bool),
		tokenGauge: metrics.GetOrCreateCounter(fmt.Sprintf(`daft_sandbox_tokens{sandbox=%q}`, cfg.Name)),
	}
	if cfg.PreloadTypes {
		for _, name := range builtinTypes {
			_, _ = s.types.Create(name)
		}
	}
	log.Debugf("sandbox %q created (cache=%t, validation=%t)", cfg.Name, cfg.CacheNodes, cfg.Validation)
	return s
}

// Name returns the configured name.
func (s *Sandbox) Name() string { return s.cfg.Name }

// Config returns the configuration the sandbox was created with.
func (s *Sandbox) Config() Config { return s.cfg }

// --------------------------------------------------------------------------
// Registries
// --------------------------------------------------------------------------

// InsertType registers a node type name and returns its index. Registering a
// name twice returns the same index.
func (s *Sandbox) InsertType(name string) (TypeIndex, error) {
	return s.types.Create(name)
}

// InsertTypes registers several type names.
func (s *Sandbox) InsertTypes(names ...string) error {
	for _, n := range names {
		if _, err := s.types.Create(n); err != nil {
			return err
		}
	}
	return nil
}

// InsertField registers a field. A width of 0 leaves the width open.
func (s *Sandbox) InsertField(name string, width uint32) (tables.FieldInfo, error) {
	return s.fields.Add(name, width)
}

// InsertProto registers a protocol name.
func (s *Sandbox) InsertProto(name string) (tables.Index, error) { return s.protos.Create(name) }

// InsertEncap registers an encapsulation name.
func (s *Sandbox) InsertEncap(name string) (tables.Index, error) { return s.encaps.Create(name) }

// InsertDecap registers a decapsulation name.
func (s *Sandbox) InsertDecap(name string) (tables.Index, error) { return s.decaps.Create(name) }

// CreateGroup registers a group name.
func (s *Sandbox) CreateGroup(name string) (GroupIndex, error) { return s.groups.Create(name) }

// CreateName binds name to an existing token.
func (s *Sandbox) CreateName(name string, tok NodeToken) error {
	if !s.IsValidToken(tok) {
		return fmt.Errorf("%w: %d", ErrUnknownToken, tok)
	}
	return s.names.Insert(name, tok)
}

// FindType returns the index of a node type name.
func (s *Sandbox) FindType(name string) (TypeIndex, bool) { return s.types.Find(name) }

// FindName returns the token bound to name.
func (s *Sandbox) FindName(name string) (NodeToken, bool) { return s.names.Find(name) }

// FindGroup returns the index of a group.
func (s *Sandbox) FindGroup(name string) (GroupIndex, bool) { return s.groups.Find(name) }

// FindProto returns the index of a protocol.
func (s *Sandbox) FindProto(name string) (tables.Index, bool) { return s.protos.Find(name) }

// FindEncap returns the index of an encapsulation.
func (s *Sandbox) FindEncap(name string) (tables.Index, bool) { return s.encaps.Find(name) }

// FindDecap returns the index of a decapsulation.
func (s *Sandbox) FindDecap(name string) (tables.Index, bool) { return s.decaps.Find(name) }

// FindField returns index and width of a field.
func (s *Sandbox) FindField(name string) (tables.FieldInfo, bool) { return s.fields.Find(name) }

// IsValidToken reports whether tok names a committed node or is TokenDiscard.
func (s *Sandbox) IsValidToken(tok NodeToken) bool {
	return tok == TokenDiscard || s.tokens.IsValid(tok)
}

// IsValidType reports whether idx is a registered type.
func (s *Sandbox) IsValidType(idx TypeIndex) bool { return idx != tables.IndexNone && s.types.IsValid(idx) }

// IsValidGroup reports whether idx is a registered group (or GroupNone).
func (s *Sandbox) IsValidGroup(idx GroupIndex) bool { return s.groups.IsValid(idx) }

// IsValidProto reports whether idx is a registered protocol.
func (s *Sandbox) IsValidProto(idx tables.Index) bool { return s.protos.IsValid(idx) }

// IsValidField reports whether the named field is registered.
func (s *Sandbox) IsValidField(name string) bool { return s.fields.IsValid(name) }

// IsOfType reports whether tok is committed with the named type.
func (s *Sandbox) IsOfType(tok NodeToken, typeName string) bool {
	return s.tokens.IsOfType(tok, typeName)
}

// AllocateToken hands out a fresh token. Tokens are never reused, not even
// those of failed inserts.
func (s *Sandbox) AllocateToken() NodeToken { return s.tokens.Allocate() }

// ReserveTokens hands out n consecutive fresh tokens and returns the first.
func (s *Sandbox) ReserveTokens(n uint64) NodeToken { return s.tokens.AllocateBlock(n) }

// RaiseToken makes sure later allocations are greater than tok.
func (s *Sandbox) RaiseToken(tok NodeToken) { s.tokens.Raise(tok) }

// MaxToken returns the highest token allocated so far.
func (s *Sandbox) MaxToken() NodeToken { return s.tokens.Max() }

// NodeCount returns the number of committed nodes.
func (s *Sandbox) NodeCount() int { return s.tokens.Len() }

// --------------------------------------------------------------------------
// Lookups
// --------------------------------------------------------------------------

// FindNode returns a copy of the committed node. It reports false for
// unknown tokens and, when node caching is disabled, for every token.
func (s *Sandbox) FindNode(tok NodeToken) (*Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.node(tok)
	if !ok {
		return nil, false
	}
	return n.Clone(), true
}

func (s *Sandbox) node(tok NodeToken) (*Node, bool) {
	d, ok := s.tokens.Find(tok)
	if !ok || !d.Cached {
		return nil, false
	}
	return d.Node, true
}

// FindEntry returns a copy of the entry of parent with the given key.
func (s *Sandbox) FindEntry(parent NodeToken, key EntryKey) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[parent][key.String()]
	if !ok {
		return nil, false
	}
	return e.cloneEntry(), true
}

// Entries returns copies of the entries of a container ordered by key.
func (s *Sandbox) Entries(parent NodeToken) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedEntries(parent, true)
}

func (s *Sandbox) sortedEntries(parent NodeToken, clone bool) []Entry {
	set := s.entries[parent]
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, len(keys))
	for i, k := range keys {
		if clone {
			out[i] = set[k].cloneEntry()
		} else {
			out[i] = set[k]
		}
	}
	return out
}

// EntryCount returns the number of committed entries.
func (s *Sandbox) EntryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, set := range s.entries {
		n += len(set)
	}
	return n
}

// LongestMatch returns the route entry of tree whose key is the longest
// prefix of key.
func (s *Sandbox) LongestMatch(tree NodeToken, key data.TypedValue) (*RouteEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *RouteEntry
	for _, e := range s.entries[tree] {
		r, ok := e.(*RouteEntry)
		if !ok || !key.HasPrefix(r.Key) {
			continue
		}
		if best == nil || r.Key.BitLength() > best.Key.BitLength() {
			best = r
		}
	}
	if best == nil {
		return nil, false
	}
	return best.cloneEntry().(*RouteEntry), true
}

// --------------------------------------------------------------------------
// Ports
// --------------------------------------------------------------------------

// SetMaxInputPort changes the capacity of the input port table.
func (s *Sandbox) SetMaxInputPort(n uint32) { s.inputs.SetMaxIndex(n) }

// SetMaxOutputPort changes the capacity of the output port table.
func (s *Sandbox) SetMaxOutputPort(n uint32) { s.outputs.SetMaxIndex(n) }

// InputPortByIndex returns the input port with the given index.
func (s *Sandbox) InputPortByIndex(index uint32) (tables.Port, bool) { return s.inputs.ByIndex(index) }

// InputPortByName returns the input port with the given name.
func (s *Sandbox) InputPortByName(name string) (tables.Port, bool) { return s.inputs.ByName(name) }

// OutputPortByIndex returns the output port with the given index.
func (s *Sandbox) OutputPortByIndex(index uint32) (tables.Port, bool) { return s.outputs.ByIndex(index) }

// OutputPortByName returns the output port with the given name.
func (s *Sandbox) OutputPortByName(name string) (tables.Port, bool) { return s.outputs.ByName(name) }

// SetInputPortByIndex points the input port with the given index at next.
// The change is an Insert of an updated InputPort node, so it is validated
// like any other insert. A port that does not exist yet is created.
func (s *Sandbox) SetInputPortByIndex(index uint32, next NodeToken) error {
	port, ok := s.inputs.ByIndex(index)
	if !ok {
		port = tables.Port{Index: index, Name: fmt.Sprintf("port%d", index), Token: TokenNone}
	}
	return s.setInputPort(port, next)
}

// SetInputPortByName points the named input port at next.
func (s *Sandbox) SetInputPortByName(name string, next NodeToken) error {
	port, ok := s.inputs.ByName(name)
	if !ok {
		return fmt.Errorf("%w: no input port %q", ErrUnknownToken, name)
	}
	return s.setInputPort(port, next)
}

func (s *Sandbox) setInputPort(port tables.Port, next NodeToken) error {
	var n *Node
	if cur, ok := s.FindNode(port.Token); ok {
		n = cur
	} else {
		n = NewNode(&InputPort{Index: port.Index, Name: port.Name})
	}
	n.Next = next

	ins := NewInsert(s)
	if _, err := ins.PushWithToken(n, port.Token); err != nil {
		return err
	}
	if !s.Send(ins) {
		return ins.Err()
	}
	return nil
}

// --------------------------------------------------------------------------
// Validator (committed state)
// --------------------------------------------------------------------------

// ValidateToken accepts TokenDiscard and committed tokens.
func (s *Sandbox) ValidateToken(t NodeToken, w io.Writer) bool {
	if !s.cfg.Validation || s.IsValidToken(t) {
		return true
	}
	diag(w, "token %s does not exist", tokenString(t))
	return false
}

// ValidateTokens validates every token.
func (s *Sandbox) ValidateTokens(ts []NodeToken, w io.Writer) bool {
	return validateAll(ts, func(t NodeToken) bool { return s.ValidateToken(t, w) })
}

// ValidateField accepts registered fields.
func (s *Sandbox) ValidateField(f data.Field, w io.Writer) bool {
	if !s.cfg.Validation || s.fields.IsValid(f.Name) {
		return true
	}
	diag(w, "field %q is not registered", f.Name)
	return false
}

// ValidateFields validates every field.
func (s *Sandbox) ValidateFields(fs []data.Field, w io.Writer) bool {
	return validateAll(fs, func(f data.Field) bool { return s.ValidateField(f, w) })
}

// ValidateKey accepts keys of registered fields whose value has the width
// of the field, if the field has a fixed width.
func (s *Sandbox) ValidateKey(k data.Key, w io.Writer) bool {
	if !s.cfg.Validation {
		return true
	}
	info, ok := s.fields.Find(k.Field.Name)
	if !ok {
		diag(w, "field %q is not registered", k.Field.Name)
		return false
	}
	if !k.Data.IsValid() {
		diag(w, "key %q has no value", k.Field.Name)
		return false
	}
	if info.Width != 0 {
		want := int((info.Width + data.BitsInByte - 1) / data.BitsInByte)
		if k.Data.ByteLength() != want {
			diag(w, "key %q is %d bytes, field is %d bits", k.Field.Name, k.Data.ByteLength(), info.Width)
			return false
		}
	}
	return true
}

// ValidateKeys validates every key.
func (s *Sandbox) ValidateKeys(ks []data.Key, w io.Writer) bool {
	return validateAll(ks, func(k data.Key) bool { return s.ValidateKey(k, w) })
}

// ValidateNode checks n against the committed state.
func (s *Sandbox) ValidateNode(n *Node, w io.Writer) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return n.IsValid(s, w)
}

// ValidateEntry checks e against the committed state.
func (s *Sandbox) ValidateEntry(e Entry, w io.Writer) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return EntryIsValid(e, s, w)
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// Send executes op against the sandbox and completes it. It returns the
// execution status.
func (s *Sandbox) Send(op Operation) bool {
	op.Base().MarkSubmitted()
	return Run(s, op)
}

// TestNodeIsPresent reports whether tok is committed.
func (s *Sandbox) TestNodeIsPresent(tok NodeToken) bool {
	return s.Send(NewNodeTest(TestIsPresent, tok))
}

// TestNodeIsInGroup reports whether tok belongs to the named group.
func (s *Sandbox) TestNodeIsInGroup(tok NodeToken, group string) bool {
	t := NewNodeTest(TestIsInGroup, tok)
	t.Group = group
	return s.Send(t)
}

// TestNodeHasNext reports whether next is among the next nodes of tok.
func (s *Sandbox) TestNodeHasNext(tok, next NodeToken) bool {
	t := NewNodeTest(TestHasNext, tok)
	t.Next = next
	return s.Send(t)
}

// TestNodeNextCount reports whether tok has exactly count next nodes.
func (s *Sandbox) TestNodeNextCount(tok NodeToken, count int) bool {
	t := NewNodeTest(TestNextCount, tok)
	t.Count = count
	return s.Send(t)
}

// TestEntryIsPresent reports whether an entry with the parent and key of e
// is committed.
func (s *Sandbox) TestEntryIsPresent(e Entry) bool {
	return s.Send(NewEntryTest(EntryIsPresent, e))
}

// TestEntryHasNext reports whether the committed entry matching e points to
// next.
func (s *Sandbox) TestEntryHasNext(e Entry, next NodeToken) bool {
	t := NewEntryTest(EntryHasNext, e)
	t.Next = next
	return s.Send(t)
}

func (s *Sandbox) updateGauge() {
	s.tokenGauge.Set(uint64(s.tokens.Len()))
}
