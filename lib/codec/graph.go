package codec

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/data"
	"github.com/ValentinKolb/dAFT/lib/tables"
	"gopkg.in/yaml.v3"
	"io"
	"sort"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Graph documents
// --------------------------------------------------------------------------

// GraphDoc is a forwarding graph written by hand, usually in YAML:
//
//	sandbox: edge
//	fields:
//	  - {name: ip.dst, width: 32}
//	nodes:
//	  - id: count
//	    type: Counter
//	    next: "@discard"
//	  - id: fib
//	    type: Tree
//	    spec: {fields: [ip.dst], default: "@discard"}
//	entries:
//	  - route: {parent: "@fib", key: {kind: prefix, value: 10.0.0.0/8}, value: "@count"}
//	names:
//	  fib: "@fib"
//
// Nodes are referred to as "@id", where id is the local id of a node of the
// same document, or by their numeric token. "@discard" names the discard
// node.
type GraphDoc struct {
	Sandbox string      `yaml:"sandbox"`
	Types   []string    `yaml:"types,omitempty"`
	Fields  []FieldDoc  `yaml:"fields,omitempty"`
	Groups  []string    `yaml:"groups,omitempty"`
	Protos  []string    `yaml:"protos,omitempty"`
	Nodes   []GraphNode `yaml:"nodes"`
	Entries []yaml.Node `yaml:"entries,omitempty"`

	// Names binds names to references.
	Names map[string]string `yaml:"names,omitempty"`
}

// FieldDoc registers a field. A width of 0 leaves it open.
type FieldDoc struct {
	Name  string `yaml:"name"`
	Width uint32 `yaml:"width,omitempty"`
}

// GraphNode is one node of a GraphDoc. Spec holds the variant fields; token
// fields inside it may use references.
type GraphNode struct {
	ID     string          `yaml:"id"`
	Type   string          `yaml:"type"`
	Next   string          `yaml:"next,omitempty"`
	Mask   *uint64         `yaml:"mask,omitempty"`
	Group  string          `yaml:"group,omitempty"`
	Params data.Parameters `yaml:"params,omitempty"`
	Debug  string          `yaml:"debug,omitempty"`
	Spec   yaml.Node       `yaml:"spec,omitempty"`
}

// ParseGraph reads a YAML graph document.
func ParseGraph(r io.Reader) (*GraphDoc, error) {
	var doc GraphDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	seen := make(map[string]bool, len(doc.Nodes))
	for i, n := range doc.Nodes {
		switch {
		case n.ID == "":
			return nil, fmt.Errorf("parse graph: node %d has no id", i)
		case n.ID == "discard":
			return nil, fmt.Errorf("parse graph: node %d: id %q is reserved", i, n.ID)
		case seen[n.ID]:
			return nil, fmt.Errorf("parse graph: duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
	}
	return &doc, nil
}

// Registry is what a graph needs registered before its nodes can be staged.
type Registry interface {
	InsertType(name string) (aft.TypeIndex, error)
	InsertField(name string, width uint32) (tables.FieldInfo, error)
	InsertProto(name string) (tables.Index, error)
	CreateGroup(name string) (aft.GroupIndex, error)
}

// Register adds the types, fields, protocols and groups of doc to r.
// Registering a name that already exists is not an error.
func (doc *GraphDoc) Register(r Registry) error {
	for _, t := range doc.Types {
		if _, err := r.InsertType(t); err != nil {
			return fmt.Errorf("type %q: %w", t, err)
		}
	}
	for _, f := range doc.Fields {
		if _, err := r.InsertField(f.Name, f.Width); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	for _, p := range doc.Protos {
		if _, err := r.InsertProto(p); err != nil {
			return fmt.Errorf("proto %q: %w", p, err)
		}
	}
	for _, g := range doc.Groups {
		if _, err := r.CreateGroup(g); err != nil {
			return fmt.Errorf("group %q: %w", g, err)
		}
	}
	return nil
}

// BuildInsert stages the nodes, entries and names of doc in one Insert.
// Tokens are allocated through stager in document order before any
// reference is resolved, so nodes may refer to nodes defined further down.
// It returns the insert and the token every id was given.
func BuildInsert(doc *GraphDoc, stager aft.Stager) (*aft.Insert, map[string]aft.NodeToken, error) {
	ids := make(map[string]aft.NodeToken, len(doc.Nodes)+1)
	for _, n := range doc.Nodes {
		ids[n.ID] = stager.AllocateToken()
	}
	ids["discard"] = aft.TokenDiscard
	r := resolver(ids)

	ins := aft.NewInsert(stager)
	for _, gn := range doc.Nodes {
		n, err := r.node(gn)
		if err != nil {
			return nil, nil, fmt.Errorf("node %q: %w", gn.ID, err)
		}
		if _, err := ins.PushWithToken(n, ids[gn.ID]); err != nil {
			return nil, nil, fmt.Errorf("node %q: %w", gn.ID, err)
		}
		if gn.Group != "" {
			ins.PushGroup(aft.GroupBinding{Group: gn.Group, Token: ids[gn.ID]})
		}
	}

	for i := range doc.Entries {
		e, err := r.entry(&doc.Entries[i])
		if err != nil {
			return nil, nil, fmt.Errorf("entry %d: %w", i, err)
		}
		ins.PushEntry(e)
	}

	names := make([]string, 0, len(doc.Names))
	for name := range doc.Names {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tok, err := r.resolve(doc.Names[name])
		if err != nil {
			return nil, nil, fmt.Errorf("name %q: %w", name, err)
		}
		ins.PushName(name, tok)
	}

	delete(ids, "discard")
	return ins, ids, nil
}

// resolver maps node ids to the tokens they were given.
type resolver map[string]aft.NodeToken

// resolve turns a reference into a token. The empty reference is TokenNone.
func (r resolver) resolve(ref string) (aft.NodeToken, error) {
	switch {
	case ref == "":
		return aft.TokenNone, nil
	case strings.HasPrefix(ref, "@"):
		tok, ok := r[ref[1:]]
		if !ok {
			return aft.TokenNone, fmt.Errorf("%w: unknown node id %q", aft.ErrUnknownToken, ref[1:])
		}
		return tok, nil
	default:
		n, err := strconv.ParseUint(ref, 0, 64)
		if err != nil {
			return aft.TokenNone, fmt.Errorf("invalid node reference %q", ref)
		}
		return aft.NodeToken(n), nil
	}
}

// rewrite returns a copy of node in which every "@id" scalar is replaced by
// the token it refers to, so it can be decoded into the token typed fields
// of a variant. node itself is left untouched.
func (r resolver) rewrite(node *yaml.Node) (*yaml.Node, error) {
	c := *node
	if node.Kind == yaml.ScalarNode {
		if node.Tag != "!!str" || !strings.HasPrefix(node.Value, "@") {
			return &c, nil
		}
		tok, err := r.resolve(node.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		c.Tag = "!!int"
		c.Style = 0
		c.Value = strconv.FormatUint(uint64(tok), 10)
		return &c, nil
	}
	c.Content = make([]*yaml.Node, len(node.Content))
	for i, child := range node.Content {
		rc, err := r.rewrite(child)
		if err != nil {
			return nil, err
		}
		c.Content[i] = rc
	}
	return &c, nil
}

func (r resolver) node(gn GraphNode) (*aft.Node, error) {
	d, err := NewVariant(gn.Type)
	if err != nil {
		return nil, err
	}
	if gn.Spec.Kind != 0 {
		spec, err := r.rewrite(&gn.Spec)
		if err != nil {
			return nil, err
		}
		if err := spec.Decode(d); err != nil {
			return nil, err
		}
	}

	n := aft.NewNode(d)
	if n.Next, err = r.resolve(gn.Next); err != nil {
		return nil, err
	}
	if gn.Mask != nil {
		n.Mask = *gn.Mask
	}
	n.Params = gn.Params
	n.Debug = gn.Debug
	return n, nil
}

// entry decodes an entry document. A missing mask means MaskAll.
func (r resolver) entry(node *yaml.Node) (aft.Entry, error) {
	rn, err := r.rewrite(node)
	if err != nil {
		return nil, err
	}
	var doc EntryDoc
	if err := rn.Decode(&doc); err != nil {
		return nil, err
	}
	e, err := DecodeEntry(doc)
	if err != nil {
		return nil, err
	}
	if e.Header().Mask == 0 {
		e.Header().Mask = aft.MaskAll
	}
	return e, nil
}
