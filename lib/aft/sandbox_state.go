package aft

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/tables"
)

// --------------------------------------------------------------------------
// Snapshot state
// --------------------------------------------------------------------------

// IndexBinding is one name of an index table.
type IndexBinding struct {
	Name  string
	Index tables.Index
}

// FieldState is one registered field.
type FieldState struct {
	Name  string
	Index tables.Index
	Width uint32
}

// NodeState is one committed node. Node is nil when the sandbox does not
// cache nodes.
type NodeState struct {
	Token     NodeToken
	TypeName  string
	Container bool
	Group     string
	Inactive  bool
	Node      *Node
}

// State is a complete, self-contained copy of a sandbox. It is what
// snapshots are made of.
type State struct {
	Name     string
	MaxToken NodeToken

	Types  []IndexBinding
	Groups []IndexBinding
	Protos []IndexBinding
	Encaps []IndexBinding
	Decaps []IndexBinding
	Fields []FieldState

	Nodes   []NodeState // token order
	Entries []Entry     // by parent, then key
	Names   []NameBinding

	MaxInputPorts  uint32
	MaxOutputPorts uint32
	Inputs         []tables.Port
	Outputs        []tables.Port
}

// ExportState copies the sandbox into a State.
func (s *Sandbox) ExportState() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &State{
		Name:           s.cfg.Name,
		MaxToken:       s.tokens.Max(),
		Types:          exportIndex(s.types),
		Groups:         exportIndex(s.groups),
		Protos:         exportIndex(s.protos),
		Encaps:         exportIndex(s.encaps),
		Decaps:         exportIndex(s.decaps),
		MaxInputPorts:  s.inputs.MaxIndex(),
		MaxOutputPorts: s.outputs.MaxIndex(),
		Inputs:         s.inputs.Ports(),
		Outputs:        s.outputs.Ports(),
	}

	s.fields.Range(func(name string, info tables.FieldInfo) bool {
		st.Fields = append(st.Fields, FieldState{Name: name, Index: info.Index, Width: info.Width})
		return true
	})

	for _, tok := range s.tokens.Tokens() {
		d, _ := s.tokens.Find(tok)
		ns := NodeState{Token: tok, TypeName: d.TypeName, Container: d.Container, Inactive: s.inactive[tok]}
		if g, ok := s.groupOf[tok]; ok {
			ns.Group, _ = s.groups.NameOf(g)
		}
		if d.Cached {
			ns.Node = d.Node.Clone()
		}
		st.Nodes = append(st.Nodes, ns)
		st.Entries = append(st.Entries, s.sortedEntries(tok, true)...)
	}

	s.names.Range(func(name string, tok NodeToken) bool {
		st.Names = append(st.Names, NameBinding{Name: name, Token: tok})
		return true
	})
	return st
}

func exportIndex(t *tables.IndexTable) []IndexBinding {
	var out []IndexBinding
	for _, name := range t.Names() {
		if name == tables.NameNone {
			continue
		}
		idx, _ := t.Find(name)
		out = append(out, IndexBinding{Name: name, Index: idx})
	}
	return out
}

func importIndex(t *tables.IndexTable, bindings []IndexBinding) error {
	for _, b := range bindings {
		if err := t.Insert(b.Name, b.Index); err != nil {
			return err
		}
	}
	return nil
}

// NewSandboxFromState rebuilds a sandbox from st. The configured name and
// port limits are replaced by those of st. Nothing is validated beyond
// table consistency: st is expected to come from ExportState.
func NewSandboxFromState(cfg Config, st *State) (*Sandbox, error) {
	cfg.Name = st.Name
	cfg.MaxInputPorts = st.MaxInputPorts
	cfg.MaxOutputPorts = st.MaxOutputPorts
	cfg.PreloadTypes = false
	s := NewSandbox(cfg)

	for _, step := range []struct {
		t *tables.IndexTable
		b []IndexBinding
	}{
		{s.types, st.Types}, {s.groups, st.Groups}, {s.protos, st.Protos},
		{s.encaps, st.Encaps}, {s.decaps, st.Decaps},
	} {
		if err := importIndex(step.t, step.b); err != nil {
			return nil, fmt.Errorf("restore %s: %w", st.Name, err)
		}
	}
	for _, f := range st.Fields {
		if err := s.fields.Restore(f.Name, tables.FieldInfo{Index: f.Index, Width: f.Width}); err != nil {
			return nil, fmt.Errorf("restore %s: field %q: %w", st.Name, f.Name, err)
		}
	}

	for _, ns := range st.Nodes {
		n := ns.Node
		if n != nil {
			n = n.Clone()
			n.setToken(ns.Token)
			if idx, ok := s.types.Find(ns.TypeName); ok {
				n.setTypeIndex(idx)
			}
		}
		s.tokens.Insert(ns.Token, ns.TypeName, ns.Container, n)
		if ns.Group != "" {
			idx, ok := s.groups.Find(ns.Group)
			if !ok {
				return nil, fmt.Errorf("restore %s: token %d: %w: group %q", st.Name, ns.Token, ErrUnknownEntry, ns.Group)
			}
			s.groupOf[ns.Token] = idx
		}
		if ns.Inactive {
			s.inactive[ns.Token] = true
		}
	}

	for _, e := range st.Entries {
		id := idOf(e)
		if !s.tokens.IsValid(id.parent) {
			return nil, fmt.Errorf("restore %s: entry %s: %w", st.Name, e, ErrUnknownToken)
		}
		set := s.entries[id.parent]
		if set == nil {
			set = make(map[string]Entry)
			s.entries[id.parent] = set
		}
		set[id.key] = e.cloneEntry()
		if v := EntryValue(e); v.IsSet() {
			s.valueRefs[v]++
		}
	}

	for _, nb := range st.Names {
		if err := s.names.Insert(nb.Name, nb.Token); err != nil {
			return nil, fmt.Errorf("restore %s: %w", st.Name, err)
		}
	}
	for _, p := range st.Inputs {
		if err := s.inputs.Insert(p); err != nil {
			return nil, fmt.Errorf("restore %s: %w", st.Name, err)
		}
	}
	for _, p := range st.Outputs {
		if err := s.outputs.Insert(p); err != nil {
			return nil, fmt.Errorf("restore %s: %w", st.Name, err)
		}
	}

	s.tokens.Raise(st.MaxToken)
	s.updateGauge()
	log.Infof("sandbox %q restored: %d nodes, %d entries, max token %d",
		st.Name, len(st.Nodes), len(st.Entries), st.MaxToken)
	return s, nil
}
