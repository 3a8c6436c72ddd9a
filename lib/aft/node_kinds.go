package aft

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/data"
	"slices"
	"strings"
)

// --------------------------------------------------------------------------
// Terminal nodes
// --------------------------------------------------------------------------

// Discard drops the packet.
type Discard struct{}

func (*Discard) TypeName() string               { return TypeDiscard }
func (d *Discard) clone() NodeData              { return &Discard{} }
func (d *Discard) describe(sb *strings.Builder) {}

// Continue hands the packet to the header successor.
type Continue struct{}

func (*Continue) TypeName() string               { return TypeContinue }
func (d *Continue) clone() NodeData              { return &Continue{} }
func (d *Continue) describe(sb *strings.Builder) {}

// Receive punts the packet to the host with a reason code and context.
type Receive struct {
	Code    uint32 `json:"code" yaml:"code"`
	Context uint64 `json:"context" yaml:"context"`
}

func (*Receive) TypeName() string  { return TypeReceive }
func (d *Receive) clone() NodeData { c := *d; return &c }
func (d *Receive) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " code=%d context=%d", d.Code, d.Context)
}

// --------------------------------------------------------------------------
// Decisions
// --------------------------------------------------------------------------

// MatchOp is the comparison a Match node applies.
type MatchOp uint8

const (
	MatchEqual MatchOp = iota
	MatchNotEqual
	MatchLess
	MatchGreater
	MatchPrefix
)

func (op MatchOp) String() string {
	switch op {
	case MatchEqual:
		return "eq"
	case MatchNotEqual:
		return "ne"
	case MatchLess:
		return "lt"
	case MatchGreater:
		return "gt"
	case MatchPrefix:
		return "prefix"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

func (op MatchOp) MarshalText() ([]byte, error) { return []byte(op.String()), nil }

func (op *MatchOp) UnmarshalText(b []byte) (err error) {
	*op, err = parseEnum(string(b), MatchPrefix)
	return err
}

// Match compares a field against Value and continues at TrueNode or, when
// set, FalseNode. Bits is the field width the value is compared over; 0
// means the 32 bit default.
type Match struct {
	Field     data.Field      `json:"field" yaml:"field"`
	Op        MatchOp         `json:"op" yaml:"op"`
	Value     data.TypedValue `json:"value" yaml:"value"`
	Bits      uint32          `json:"bits,omitempty" yaml:"bits,omitempty"`
	TrueNode  NodeToken       `json:"true_node" yaml:"true_node"`
	FalseNode NodeToken       `json:"false_node" yaml:"false_node"`
}

func (m *Match) expectedBytes() int {
	if m.Bits == 0 {
		return 4
	}
	return int((m.Bits + data.BitsInByte - 1) / data.BitsInByte)
}

func (*Match) TypeName() string  { return TypeMatch }
func (d *Match) clone() NodeData { c := *d; return &c }
func (d *Match) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " field=%s op=%s value=%s true=%s", d.Field, d.Op, d.Value, tokenString(d.TrueNode))
	if d.FalseNode.IsSet() {
		fmt.Fprintf(sb, " false=%s", tokenString(d.FalseNode))
	}
}

// Switch branches on the integer value of a field.
type Switch struct {
	Field   data.Field           `json:"field" yaml:"field"`
	Default NodeToken            `json:"default" yaml:"default"`
	Cases   map[uint64]NodeToken `json:"cases" yaml:"cases"`
}

func (d *Switch) sortedCases() []uint64 { return sortedKeys(d.Cases) }

func (*Switch) TypeName() string { return TypeSwitch }
func (d *Switch) clone() NodeData {
	c := *d
	if d.Cases != nil {
		c.Cases = make(map[uint64]NodeToken, len(d.Cases))
		for k, v := range d.Cases {
			c.Cases[k] = v
		}
	}
	return &c
}
func (d *Switch) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " field=%s default=%s cases={", d.Field, tokenString(d.Default))
	for i, k := range d.sortedCases() {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(sb, "%d:%s", k, tokenString(d.Cases[k]))
	}
	sb.WriteString("}")
}

// List visits its nodes in order.
type List struct {
	Nodes []NodeToken `json:"nodes" yaml:"nodes"`
}

func (*List) TypeName() string               { return TypeList }
func (d *List) clone() NodeData              { return &List{Nodes: slices.Clone(d.Nodes)} }
func (d *List) describe(sb *strings.Builder) { fmt.Fprintf(sb, " nodes=%s", tokensString(d.Nodes)) }

// --------------------------------------------------------------------------
// Containers
// --------------------------------------------------------------------------

// IndexedList is a container of index entries, bounded by MaxIndex. Entries
// may be given inline or attached later with IndexEntry pushes.
type IndexedList struct {
	MaxIndex uint32       `json:"max_index" yaml:"max_index"`
	Entries  []IndexEntry `json:"entries,omitempty" yaml:"entries,omitempty"`
}

func (*IndexedList) TypeName() string { return TypeIndexedList }
func (d *IndexedList) clone() NodeData {
	return &IndexedList{MaxIndex: d.MaxIndex, Entries: cloneIndexEntries(d.Entries)}
}
func (d *IndexedList) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " max=%d entries=%d", d.MaxIndex, len(d.Entries))
}

// LoadBalance hashes Fields into one of MaxIndex index entries.
type LoadBalance struct {
	MaxIndex uint32       `json:"max_index" yaml:"max_index"`
	Fields   []data.Field `json:"fields" yaml:"fields"`
}

func (*LoadBalance) TypeName() string { return TypeLoadBalance }
func (d *LoadBalance) clone() NodeData {
	return &LoadBalance{MaxIndex: d.MaxIndex, Fields: slices.Clone(d.Fields)}
}
func (d *LoadBalance) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " max=%d fields=%s", d.MaxIndex, fieldsString(d.Fields))
}

// Tree is a longest-prefix lookup over the concatenation of Fields. Its
// entries are RouteEntry values; misses continue at Default.
type Tree struct {
	Fields  []data.Field `json:"fields" yaml:"fields"`
	Default NodeToken    `json:"default" yaml:"default"`
	Proto   string       `json:"proto,omitempty" yaml:"proto,omitempty"`
}

func (*Tree) TypeName() string { return TypeTree }
func (d *Tree) clone() NodeData {
	return &Tree{Fields: slices.Clone(d.Fields), Default: d.Default, Proto: d.Proto}
}
func (d *Tree) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " fields=%s default=%s", fieldsString(d.Fields), tokenString(d.Default))
	if d.Proto != "" {
		fmt.Fprintf(sb, " proto=%s", d.Proto)
	}
}

// Table is an exact lookup of Fields into MaxIndex slots; misses continue at
// Default.
type Table struct {
	Fields   []data.Field `json:"fields" yaml:"fields"`
	MaxIndex uint32       `json:"max_index" yaml:"max_index"`
	Default  NodeToken    `json:"default" yaml:"default"`
}

func (*Table) TypeName() string { return TypeTable }
func (d *Table) clone() NodeData {
	return &Table{Fields: slices.Clone(d.Fields), MaxIndex: d.MaxIndex, Default: d.Default}
}
func (d *Table) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " fields=%s max=%d default=%s", fieldsString(d.Fields), d.MaxIndex, tokenString(d.Default))
}

// Lookup looks up Fields in another container node.
type Lookup struct {
	Fields    []data.Field `json:"fields" yaml:"fields"`
	Container NodeToken    `json:"container" yaml:"container"`
}

func (*Lookup) TypeName() string { return TypeLookup }
func (d *Lookup) clone() NodeData {
	return &Lookup{Fields: slices.Clone(d.Fields), Container: d.Container}
}
func (d *Lookup) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " fields=%s container=%s", fieldsString(d.Fields), tokenString(d.Container))
}

// --------------------------------------------------------------------------
// Actions
// --------------------------------------------------------------------------

// Counter counts bytes and packets.
type Counter struct {
	InitialBytes   uint64 `json:"initial_bytes,omitempty" yaml:"initial_bytes,omitempty"`
	InitialPackets uint64 `json:"initial_packets,omitempty" yaml:"initial_packets,omitempty"`
	L3Mode         bool   `json:"l3_mode,omitempty" yaml:"l3_mode,omitempty"`
}

func (*Counter) TypeName() string  { return TypeCounter }
func (d *Counter) clone() NodeData { c := *d; return &c }
func (d *Counter) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " bytes=%d packets=%d l3=%t", d.InitialBytes, d.InitialPackets, d.L3Mode)
}

// Policer rate limits traffic.
type Policer struct {
	Burst      uint64 `json:"burst" yaml:"burst"`
	Rate       uint64 `json:"rate" yaml:"rate"`
	PacketMode bool   `json:"packet_mode,omitempty" yaml:"packet_mode,omitempty"`
}

func (*Policer) TypeName() string  { return TypePolicer }
func (d *Policer) clone() NodeData { c := *d; return &c }
func (d *Policer) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " burst=%d rate=%d packet_mode=%t", d.Burst, d.Rate, d.PacketMode)
}

// Indirect forwards to Target. Repointing an Indirect updates every node
// that goes through it at once.
type Indirect struct {
	Target      NodeToken `json:"target" yaml:"target"`
	InstallToHW bool      `json:"install_to_hw,omitempty" yaml:"install_to_hw,omitempty"`
}

func (*Indirect) TypeName() string  { return TypeIndirect }
func (d *Indirect) clone() NodeData { c := *d; return &c }
func (d *Indirect) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " target=%s hw=%t", tokenString(d.Target), d.InstallToHW)
}

// Decap removes the named header.
type Decap struct {
	Name string `json:"name" yaml:"name"`
}

func (*Decap) TypeName() string               { return TypeDecap }
func (d *Decap) clone() NodeData              { c := *d; return &c }
func (d *Decap) describe(sb *strings.Builder) { fmt.Fprintf(sb, " name=%s", d.Name) }

// Encap pushes the named header template, filled in from Keys.
type Encap struct {
	Name string     `json:"name" yaml:"name"`
	Keys []data.Key `json:"keys,omitempty" yaml:"keys,omitempty"`
}

func (*Encap) TypeName() string { return TypeEncap }
func (d *Encap) clone() NodeData {
	return &Encap{Name: d.Name, Keys: slices.Clone(d.Keys)}
}
func (d *Encap) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " name=%s keys=%v", d.Name, d.Keys)
}

// WriteOp is how a Write node combines its key with the field.
type WriteOp uint8

const (
	WriteSet WriteOp = iota
	WriteAdd
	WriteSub
)

func (op WriteOp) String() string {
	switch op {
	case WriteSet:
		return "set"
	case WriteAdd:
		return "add"
	case WriteSub:
		return "sub"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

func (op WriteOp) MarshalText() ([]byte, error) { return []byte(op.String()), nil }

func (op *WriteOp) UnmarshalText(b []byte) (err error) {
	*op, err = parseEnum(string(b), WriteSub)
	return err
}

// Write modifies a packet or metadata field.
type Write struct {
	Key data.Key `json:"key" yaml:"key"`
	Op  WriteOp  `json:"op" yaml:"op"`
}

func (*Write) TypeName() string  { return TypeWrite }
func (d *Write) clone() NodeData { c := *d; return &c }
func (d *Write) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " key=%s op=%s", d.Key, d.Op)
}

// Variable binds a metadata variable.
type Variable struct {
	Key data.Key `json:"key" yaml:"key"`
}

func (*Variable) TypeName() string               { return TypeVariable }
func (d *Variable) clone() NodeData              { c := *d; return &c }
func (d *Variable) describe(sb *strings.Builder) { fmt.Fprintf(sb, " key=%s", d.Key) }

// --------------------------------------------------------------------------
// Multipath
// --------------------------------------------------------------------------

// SelectorKind is the kind of multipath group a Selector models.
type SelectorKind uint8

const (
	SelectorECMP SelectorKind = iota
	SelectorWCMP
	SelectorLAG
)

func (k SelectorKind) String() string {
	switch k {
	case SelectorECMP:
		return "ecmp"
	case SelectorWCMP:
		return "wcmp"
	case SelectorLAG:
		return "lag"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k SelectorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *SelectorKind) UnmarshalText(b []byte) (err error) {
	*k, err = parseEnum(string(b), SelectorLAG)
	return err
}

// Selector picks one of Nodes, optionally weighted.
type Selector struct {
	Nodes    []NodeToken  `json:"nodes" yaml:"nodes"`
	Weights  []uint32     `json:"weights,omitempty" yaml:"weights,omitempty"`
	Balances []uint32     `json:"balances,omitempty" yaml:"balances,omitempty"`
	Sessions []uint64     `json:"sessions,omitempty" yaml:"sessions,omitempty"`
	Kind     SelectorKind `json:"kind" yaml:"kind"`
	Flags    uint64       `json:"flags,omitempty" yaml:"flags,omitempty"`
}

func (*Selector) TypeName() string { return TypeSelector }
func (d *Selector) clone() NodeData {
	return &Selector{
		Nodes:    slices.Clone(d.Nodes),
		Weights:  slices.Clone(d.Weights),
		Balances: slices.Clone(d.Balances),
		Sessions: slices.Clone(d.Sessions),
		Kind:     d.Kind,
		Flags:    d.Flags,
	}
}
func (d *Selector) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " kind=%s nodes=%s", d.Kind, tokensString(d.Nodes))
	if len(d.Weights) > 0 {
		fmt.Fprintf(sb, " weights=%v", d.Weights)
	}
}

// UnilistMode selects how a Unilist uses its members.
type UnilistMode uint8

const (
	UnilistActiveBackup UnilistMode = iota
	UnilistAggregate
)

func (m UnilistMode) String() string {
	if m == UnilistAggregate {
		return "aggregate"
	}
	return "active-backup"
}

func (m UnilistMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *UnilistMode) UnmarshalText(b []byte) (err error) {
	*m, err = parseEnum(string(b), UnilistAggregate)
	return err
}

// Unilist models active/backup paths or an aggregate link.
type Unilist struct {
	Elements    []NodeToken `json:"elements" yaml:"elements"`
	OrderedList NodeToken   `json:"ordered_list" yaml:"ordered_list"`
	Selector    NodeToken   `json:"selector" yaml:"selector"`
	Mode        UnilistMode `json:"mode" yaml:"mode"`
}

func (*Unilist) TypeName() string { return TypeUnilist }
func (d *Unilist) clone() NodeData {
	c := *d
	c.Elements = slices.Clone(d.Elements)
	return &c
}
func (d *Unilist) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " mode=%s elements=%s list=%s selector=%s",
		d.Mode, tokensString(d.Elements), tokenString(d.OrderedList), tokenString(d.Selector))
}

// Replicate copies the packet to every entry.
type Replicate struct {
	Count   uint32       `json:"count" yaml:"count"`
	Flags   uint64       `json:"flags,omitempty" yaml:"flags,omitempty"`
	PathIDs []uint32     `json:"path_ids,omitempty" yaml:"path_ids,omitempty"`
	Entries []IndexEntry `json:"entries,omitempty" yaml:"entries,omitempty"`
}

func (*Replicate) TypeName() string { return TypeReplicate }
func (d *Replicate) clone() NodeData {
	return &Replicate{
		Count:   d.Count,
		Flags:   d.Flags,
		PathIDs: slices.Clone(d.PathIDs),
		Entries: cloneIndexEntries(d.Entries),
	}
}
func (d *Replicate) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " count=%d entries=%d", d.Count, len(d.Entries))
}

// --------------------------------------------------------------------------
// Ports
// --------------------------------------------------------------------------

// InputPort is where packets of a physical or logical port enter the graph.
// Its header Next is the first node they visit.
type InputPort struct {
	Index uint32 `json:"index" yaml:"index"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (*InputPort) TypeName() string  { return TypeInputPort }
func (d *InputPort) clone() NodeData { c := *d; return &c }
func (d *InputPort) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " index=%d name=%s", d.Index, d.Name)
}

// OutputPort transmits on a port.
type OutputPort struct {
	Index uint32 `json:"index" yaml:"index"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

func (*OutputPort) TypeName() string  { return TypeOutputPort }
func (d *OutputPort) clone() NodeData { c := *d; return &c }
func (d *OutputPort) describe(sb *strings.Builder) {
	fmt.Fprintf(sb, " index=%d name=%s", d.Index, d.Name)
}

// parseEnum returns the value in [0, last] whose String is s.
func parseEnum[E interface {
	~uint8
	String() string
}](s string, last E) (E, error) {
	for e := E(0); e <= last; e++ {
		if e.String() == s {
			return e, nil
		}
	}
	var zero E
	return zero, fmt.Errorf("aft: unknown value %q", s)
}
