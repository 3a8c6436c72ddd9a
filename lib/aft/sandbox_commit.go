package aft

import (
	"bytes"
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/data"
	"github.com/ValentinKolb/dAFT/lib/tables"
	"io"
)

// --------------------------------------------------------------------------
// Staged view
// --------------------------------------------------------------------------

// stagedView validates against the committed state plus the nodes of the
// insert being committed that are visible at the current position.
type stagedView struct {
	s      *Sandbox
	staged map[NodeToken]*Node
}

func (v *stagedView) known(t NodeToken) bool {
	if t == TokenDiscard {
		return true
	}
	if _, ok := v.staged[t]; ok {
		return true
	}
	return v.s.tokens.IsValid(t)
}

// reasonOf names why n failed its check: ErrUnknownToken when it refers to
// a node that is neither staged nor installed, nil otherwise.
func (v *stagedView) reasonOf(n *Node) error {
	if !v.s.cfg.Validation {
		return nil
	}
	for _, t := range n.NextNodes() {
		if !v.known(t) {
			return ErrUnknownToken
		}
	}
	return nil
}

func (v *stagedView) ValidateToken(t NodeToken, w io.Writer) bool {
	if !v.s.cfg.Validation || v.known(t) {
		return true
	}
	diag(w, "token %s does not exist", tokenString(t))
	return false
}

func (v *stagedView) ValidateTokens(ts []NodeToken, w io.Writer) bool {
	return validateAll(ts, func(t NodeToken) bool { return v.ValidateToken(t, w) })
}

func (v *stagedView) ValidateField(f data.Field, w io.Writer) bool {
	return v.s.ValidateField(f, w)
}

func (v *stagedView) ValidateFields(fs []data.Field, w io.Writer) bool {
	return v.s.ValidateFields(fs, w)
}

func (v *stagedView) ValidateKey(k data.Key, w io.Writer) bool {
	return v.s.ValidateKey(k, w)
}

func (v *stagedView) ValidateKeys(ks []data.Key, w io.Writer) bool {
	return v.s.ValidateKeys(ks, w)
}

// parent describes a container as seen by the commit: either a staged node
// or a committed descriptor. node is nil for committed nodes when caching is
// disabled.
type parent struct {
	typeName  string
	container bool
	node      *Node
}

func (v *stagedView) parent(t NodeToken) (parent, bool) {
	if n, ok := v.staged[t]; ok {
		return parent{typeName: n.TypeName(), container: n.IsContainer(), node: n}, true
	}
	d, ok := v.s.tokens.Find(t)
	if !ok {
		return parent{}, false
	}
	p := parent{typeName: d.TypeName, container: d.Container}
	if d.Cached {
		p.node = d.Node
	}
	return p, true
}

// maxIndexOf returns the slot limit of indexed containers.
func maxIndexOf(n *Node) (uint32, bool) {
	switch d := n.Data.(type) {
	case *IndexedList:
		return d.MaxIndex, true
	case *LoadBalance:
		return d.MaxIndex, true
	case *Table:
		return d.MaxIndex, true
	default:
		return 0, false
	}
}

// --------------------------------------------------------------------------
// Insert
// --------------------------------------------------------------------------

// ReceiveInsert commits op. Either everything staged in op is installed or,
// on the first failed check, nothing is.
func (s *Sandbox) ReceiveInsert(op *Insert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sink bytes.Buffer
	nodes, err := s.checkInsert(op, &sink)
	if err != nil {
		s.rejections.Add(1)
		if ve, ok := err.(*ValidationError); ok {
			ve.Diagnostics = sink.String()
		}
		log.Infof("sandbox %q rejected %s: %v", s.cfg.Name, op, err)
		return err
	}

	s.applyInsert(op, nodes)
	s.commits.Add(1)
	s.updateGauge()
	log.Debugf("sandbox %q committed %s", s.cfg.Name, op)
	return nil
}

// checkInsert runs every check of an insert without touching state. It
// returns the nodes to install, with their type indices resolved against the
// local type table.
func (s *Sandbox) checkInsert(op *Insert, w io.Writer) ([]*Node, error) {
	view := &stagedView{s: s, staged: make(map[NodeToken]*Node, len(op.nodes))}
	nodes := make([]*Node, 0, len(op.nodes))

	for _, n := range op.nodes {
		tok := n.token
		if n.Data == nil {
			return nil, invalid(tok, ErrIllegalType, "")
		}
		idx, ok := s.types.Find(n.TypeName())
		if !ok {
			diag(w, "type %s is not registered", n.TypeName())
			return nil, invalid(tok, ErrIllegalType, "")
		}
		if tok == TokenNone || tok == TokenDiscard {
			diag(w, "node of type %s has no usable token", n.TypeName())
			return nil, invalid(tok, ErrUnknownToken, "")
		}
		if d, ok := s.tokens.Find(tok); ok && d.TypeName != n.TypeName() {
			diag(w, "token %d is a %s, not a %s", tok, d.TypeName, n.TypeName())
			return nil, invalid(tok, ErrTypeChanged, "")
		}
		if prev, ok := view.staged[tok]; ok && prev.TypeName() != n.TypeName() {
			diag(w, "token %d staged as %s and %s", tok, prev.TypeName(), n.TypeName())
			return nil, invalid(tok, ErrTypeChanged, "")
		}

		c := n.Clone()
		c.setToken(tok)
		c.setTypeIndex(idx)
		view.staged[tok] = c
		nodes = append(nodes, c)
	}

	// Nodes are checked once all of them are staged, so they may refer to
	// nodes further down the same insert.
	for _, c := range nodes {
		tok := c.Token()
		if !c.IsValid(view, w) {
			return nil, invalid(tok, view.reasonOf(c), "")
		}
		if c.Group != GroupNone && !s.groups.IsValid(c.Group) {
			diag(w, "group %d does not exist", c.Group)
			return nil, invalid(tok, ErrUnknownGroup, "")
		}
		if err := s.checkPort(c, w); err != nil {
			return nil, invalid(tok, err, "")
		}
	}

	// Entries see every staged node.
	present := make(map[entryID]bool)
	for _, e := range op.entries {
		id := idOf(e)
		p, ok := view.parent(id.parent)
		if !ok {
			diag(w, "entry %s: parent does not exist", e)
			return nil, invalid(id.parent, ErrUnknownToken, "")
		}
		if !p.container {
			diag(w, "entry %s: parent is a %s", e, p.typeName)
			return nil, invalid(id.parent, ErrNotContainer, "")
		}

		if IsDelete(e) {
			exists, staged := present[id]
			if !staged {
				_, exists = s.entries[id.parent][id.key]
			}
			if !exists {
				diag(w, "entry %s does not exist", e)
				return nil, invalid(id.parent, ErrUnknownEntry, "")
			}
			present[id] = false
			continue
		}

		if !EntryIsValid(e, view, w) {
			return nil, invalid(id.parent, nil, "")
		}
		if ie, ok := e.(*IndexEntry); ok && p.node != nil {
			if limit, ok := maxIndexOf(p.node); ok && ie.Key >= limit {
				diag(w, "entry index %d out of range (max %d)", ie.Key, limit)
				return nil, invalid(id.parent, nil, "")
			}
		}
		present[id] = true
	}

	for _, nb := range op.names {
		if nb.Name == "" {
			diag(w, "empty name for token %d", nb.Token)
			return nil, invalid(nb.Token, tables.ErrEmptyName, "")
		}
		if !view.known(nb.Token) {
			diag(w, "name %q: token %s does not exist", nb.Name, tokenString(nb.Token))
			return nil, invalid(nb.Token, ErrUnknownToken, "")
		}
	}
	for _, g := range op.groups {
		if g.Group == "" {
			diag(w, "empty group for token %d", g.Token)
			return nil, invalid(g.Token, tables.ErrEmptyName, "")
		}
		if g.Token == TokenDiscard || !view.known(g.Token) {
			diag(w, "group %q: token %s does not exist", g.Group, tokenString(g.Token))
			return nil, invalid(g.Token, ErrUnknownToken, "")
		}
	}
	return nodes, nil
}

func (s *Sandbox) checkPort(n *Node, w io.Writer) error {
	switch d := n.Data.(type) {
	case *InputPort:
		if limit := s.inputs.MaxIndex(); d.Index >= limit {
			diag(w, "input port %d out of range (max %d)", d.Index, limit)
			return ErrPortOutOfRange
		}
	case *OutputPort:
		if limit := s.outputs.MaxIndex(); d.Index >= limit {
			diag(w, "output port %d out of range (max %d)", d.Index, limit)
			return ErrPortOutOfRange
		}
	}
	return nil
}

// applyInsert installs a checked insert. It must not fail.
func (s *Sandbox) applyInsert(op *Insert, nodes []*Node) {
	for _, n := range nodes {
		tok := n.token
		s.tokens.Insert(tok, n.TypeName(), n.IsContainer(), n)
		if n.Group != GroupNone {
			s.groupOf[tok] = n.Group
		} else {
			delete(s.groupOf, tok)
		}

		switch d := n.Data.(type) {
		case *InputPort:
			s.inputs.RemoveToken(tok)
			_ = s.inputs.Insert(tables.Port{Index: d.Index, Name: d.Name, Token: tok})
		case *OutputPort:
			s.outputs.RemoveToken(tok)
			_ = s.outputs.Insert(tables.Port{Index: d.Index, Name: d.Name, Token: tok})
		}
	}

	for _, e := range op.entries {
		id := idOf(e)
		set := s.entries[id.parent]
		if old, ok := set[id.key]; ok {
			s.unref(EntryValue(old))
			delete(set, id.key)
		}
		if IsDelete(e) {
			continue
		}
		if set == nil {
			set = make(map[string]Entry)
			s.entries[id.parent] = set
		}
		set[id.key] = e.cloneEntry()
		if v := EntryValue(e); v.IsSet() {
			s.valueRefs[v]++
		}
	}

	for _, nb := range op.names {
		_ = s.names.Insert(nb.Name, nb.Token)
	}
	for _, g := range op.groups {
		idx, err := s.groups.Create(g.Group)
		if err != nil {
			continue
		}
		s.groupOf[g.Token] = idx
		if n, ok := s.node(g.Token); ok {
			n.Group = idx
		}
	}
}

func (s *Sandbox) unref(t NodeToken) {
	if !t.IsSet() {
		return
	}
	if s.valueRefs[t] <= 1 {
		delete(s.valueRefs, t)
		return
	}
	s.valueRefs[t]--
}

// --------------------------------------------------------------------------
// Remove
// --------------------------------------------------------------------------

// ReceiveRemove commits op. Entries are removed before nodes. The remove is
// rejected as a whole if anything it names does not exist or if a node
// would leave entries behind that refer to it.
func (s *Sandbox) ReceiveRemove(op *Remove) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sink bytes.Buffer
	if err := s.checkRemove(op, &sink); err != nil {
		s.rejections.Add(1)
		if ve, ok := err.(*ValidationError); ok {
			ve.Diagnostics = sink.String()
		}
		log.Infof("sandbox %q rejected %s: %v", s.cfg.Name, op, err)
		return err
	}

	s.applyRemove(op)
	s.commits.Add(1)
	s.updateGauge()
	log.Debugf("sandbox %q committed %s", s.cfg.Name, op)
	return nil
}

func (s *Sandbox) checkRemove(op *Remove, w io.Writer) error {
	gone := make(map[entryID]bool, len(op.entries))
	unrefs := make(map[NodeToken]int)
	for _, e := range op.entries {
		id := idOf(e)
		cur, ok := s.entries[id.parent][id.key]
		if !ok || gone[id] {
			diag(w, "entry %s does not exist", e)
			return invalid(id.parent, ErrUnknownEntry, "")
		}
		gone[id] = true
		if v := EntryValue(cur); v.IsSet() {
			unrefs[v]++
		}
	}

	removed := make(map[NodeToken]bool, len(op.tokens))
	for _, tok := range op.tokens {
		if removed[tok] || !s.tokens.IsValid(tok) {
			diag(w, "token %s does not exist", tokenString(tok))
			return invalid(tok, ErrUnknownToken, "")
		}
		for key := range s.entries[tok] {
			if !gone[entryID{parent: tok, key: key}] {
				diag(w, "container %d still owns entry %s", tok, key)
				return invalid(tok, ErrOutOfOrderRemove, "")
			}
		}
		if s.valueRefs[tok] > unrefs[tok] {
			diag(w, "token %d is still the value of %d entries", tok, s.valueRefs[tok]-unrefs[tok])
			return invalid(tok, ErrOutOfOrderRemove, "")
		}
		removed[tok] = true
	}

	for _, name := range op.names {
		if !s.names.IsValid(name) {
			diag(w, "name %q does not exist", name)
			return invalid(TokenNone, ErrUnknownEntry, "")
		}
	}
	for _, g := range op.groups {
		idx, ok := s.groups.Find(g.Group)
		if !ok || s.groupOf[g.Token] != idx {
			diag(w, "token %s is not in group %q", tokenString(g.Token), g.Group)
			return invalid(g.Token, ErrUnknownEntry, "")
		}
	}
	return nil
}

func (s *Sandbox) applyRemove(op *Remove) {
	for _, e := range op.entries {
		id := idOf(e)
		set := s.entries[id.parent]
		s.unref(EntryValue(set[id.key]))
		delete(set, id.key)
		if len(set) == 0 {
			delete(s.entries, id.parent)
		}
	}

	removed := make(map[NodeToken]bool, len(op.tokens))
	for _, tok := range op.tokens {
		s.tokens.Remove(tok)
		delete(s.entries, tok)
		delete(s.groupOf, tok)
		delete(s.inactive, tok)
		delete(s.valueRefs, tok)
		s.inputs.RemoveToken(tok)
		s.outputs.RemoveToken(tok)
		removed[tok] = true
	}

	for _, name := range op.names {
		s.names.Remove(name)
	}
	if len(removed) > 0 {
		s.names.Range(func(name string, tok NodeToken) bool {
			if removed[tok] {
				s.names.Remove(name)
			}
			return true
		})
	}

	for _, g := range op.groups {
		delete(s.groupOf, g.Token)
		if n, ok := s.node(g.Token); ok {
			n.Group = GroupNone
		}
	}
}

// Commits returns how many inserts and removes were committed.
func (s *Sandbox) Commits() uint64 { return s.commits.Load() }

// Rejections returns how many inserts and removes were rejected.
func (s *Sandbox) Rejections() uint64 { return s.rejections.Load() }

func (s *Sandbox) String() string {
	return fmt.Sprintf("Sandbox(%s nodes=%d max=%d)", s.cfg.Name, s.tokens.Len(), s.tokens.Max())
}
