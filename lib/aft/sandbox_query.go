package aft

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/data"
	"io"
	"regexp"
	"sort"
	"strings"
)

// --------------------------------------------------------------------------
// Info
// --------------------------------------------------------------------------

// ReceiveSandboxInfo fills the reply of op.
//
// Heartbeat replies carry "alive" and "name". Status replies carry the size
// of every table. Telemetry replies carry commit counters.
func (s *Sandbox) ReceiveSandboxInfo(op *SandboxInfo) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch op.Request {
	case InfoHeartbeat:
		op.Reply.Set("alive", data.Bool(true))
		op.Reply.Set("name", data.String(s.cfg.Name))
	case InfoStatus:
		entries := 0
		for _, set := range s.entries {
			entries += len(set)
		}
		op.Reply.Set("nodes", data.Uint64(uint64(s.tokens.Len())))
		op.Reply.Set("entries", data.Uint64(uint64(entries)))
		op.Reply.Set("names", data.Uint64(uint64(s.names.Len())))
		op.Reply.Set("types", data.Uint64(uint64(s.types.Len())))
		op.Reply.Set("groups", data.Uint64(uint64(s.groups.Len())))
		op.Reply.Set("fields", data.Uint64(uint64(s.fields.Len())))
		op.Reply.Set("input_ports", data.Uint64(uint64(s.inputs.Len())))
		op.Reply.Set("output_ports", data.Uint64(uint64(s.outputs.Len())))
	case InfoTelemetry:
		op.Reply.Set("commits", data.Uint64(s.commits.Load()))
		op.Reply.Set("rejections", data.Uint64(s.rejections.Load()))
		op.Reply.Set("max_token", data.Uint64(uint64(s.tokens.Max())))
		op.Reply.Set("inactive", data.Uint64(uint64(len(s.inactive))))
	default:
		return NewError(RetCInvalidOperation, fmt.Sprintf("unknown info request %s", op.Request))
	}
	return nil
}

// --------------------------------------------------------------------------
// Find
// --------------------------------------------------------------------------

// ReceiveSandboxFind fills the results of op in token order. Finding nothing
// is not an error.
func (s *Sandbox) ReceiveSandboxFind(op *SandboxFind) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	named := s.namesByToken()
	var toks []NodeToken

	switch op.Op {
	case FindByToken:
		if s.tokens.IsValid(op.Token) {
			toks = append(toks, op.Token)
		}
	case FindByName:
		if tok, ok := s.names.Find(op.Value); ok {
			toks = append(toks, tok)
			named[tok] = op.Value
		}
	case FindByRegex:
		re, err := regexp.Compile(op.Value)
		if err != nil {
			return NewError(RetCInvalidOperation, fmt.Sprintf("bad pattern %q: %v", op.Value, err))
		}
		seen := make(map[NodeToken]bool)
		for _, name := range s.names.Match(re) {
			tok, _ := s.names.Find(name)
			if !seen[tok] {
				seen[tok] = true
				toks = append(toks, tok)
				named[tok] = name
			}
		}
	case FindByType:
		for _, tok := range s.tokens.Tokens() {
			if s.tokens.IsOfType(tok, op.Value) {
				toks = append(toks, tok)
			}
		}
	case FindByGroup:
		idx, ok := s.groups.Find(op.Value)
		if !ok {
			break
		}
		for tok, g := range s.groupOf {
			if g == idx && s.tokens.IsValid(tok) {
				toks = append(toks, tok)
			}
		}
	default:
		return NewError(RetCInvalidOperation, fmt.Sprintf("unknown find %s", op.Op))
	}

	sort.Slice(toks, func(i, j int) bool { return toks[i] < toks[j] })
	op.Results = op.Results[:0]
	for _, tok := range toks {
		d, ok := s.tokens.Find(tok)
		if !ok {
			continue
		}
		r := FindResult{Token: tok, TypeName: d.TypeName, Name: named[tok]}
		if d.Cached {
			r.Node = d.Node.Clone()
		}
		op.Results = append(op.Results, r)
	}
	return nil
}

// namesByToken maps every named token to its first name in name order.
func (s *Sandbox) namesByToken() map[NodeToken]string {
	out := make(map[NodeToken]string)
	s.names.Range(func(name string, tok NodeToken) bool {
		if _, ok := out[tok]; !ok {
			out[tok] = name
		}
		return true
	})
	return out
}

// --------------------------------------------------------------------------
// Node info and activation
// --------------------------------------------------------------------------

// ReceiveNodeInfo pushes one Info per known token of op. Unknown tokens are
// skipped and make the operation fail after the others were answered.
func (s *Sandbox) ReceiveNodeInfo(op *NodeInfo) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []NodeToken
	for _, tok := range op.Tokens {
		d, ok := s.tokens.Find(tok)
		if !ok {
			missing = append(missing, tok)
			continue
		}
		info := Info{Token: tok, TypeName: d.TypeName, Description: d.TypeName, Active: !s.inactive[tok]}
		if d.Cached {
			info.Description = d.Node.String()
		}
		op.PushInfo(info)
	}
	if len(missing) > 0 {
		return invalid(missing[0], ErrUnknownToken, fmt.Sprintf("unknown tokens %s", tokensString(missing)))
	}
	return nil
}

// ReceiveNodeActive applies every request of op to the known tokens and
// answers each one. Unknown tokens are answered with Found=false and make
// the operation fail.
func (s *Sandbox) ReceiveNodeActive(op *NodeActive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	op.Replies = op.Replies[:0]
	var missing []NodeToken
	for _, req := range op.Requests {
		if !s.tokens.IsValid(req.Token) {
			op.Replies = append(op.Replies, ActiveReply{Token: req.Token})
			missing = append(missing, req.Token)
			continue
		}
		if req.Active {
			delete(s.inactive, req.Token)
		} else {
			s.inactive[req.Token] = true
		}
		op.Replies = append(op.Replies, ActiveReply{Token: req.Token, Active: req.Active, Found: true})
	}
	if len(missing) > 0 {
		return invalid(missing[0], ErrUnknownToken, fmt.Sprintf("unknown tokens %s", tokensString(missing)))
	}
	return nil
}

// IsActive reports whether tok is committed and active.
func (s *Sandbox) IsActive(tok NodeToken) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.IsValid(tok) && !s.inactive[tok]
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

// ReceiveNodeTest evaluates op. A property that does not hold fails with
// ErrTestFailed.
func (s *Sandbox) ReceiveNodeTest(op *NodeTest) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, present := s.tokens.Find(op.Token)
	op.Observed = 0
	holds := false

	switch op.Op {
	case TestIsPresent:
		holds = present || op.Token == TokenDiscard
	case TestIsInGroup:
		if idx, ok := s.groups.Find(op.Group); ok && present {
			holds = s.groupOf[op.Token] == idx
		}
	case TestHasNext, TestNextCount:
		if !present {
			break
		}
		if !d.Cached {
			return NewError(RetCUnsupportedOperation, "next node tests need node caching")
		}
		next := d.Node.NextNodes()
		if op.Op == TestNextCount {
			op.Observed = len(next)
			holds = len(next) == op.Count
			break
		}
		for _, t := range next {
			if t == op.Next {
				holds = true
				break
			}
		}
	default:
		return NewError(RetCInvalidOperation, fmt.Sprintf("unknown node test %s", op.Op))
	}

	if op.Op != TestNextCount && holds {
		op.Observed = 1
	}
	if !holds {
		return fmt.Errorf("%w: %s on token %s", ErrTestFailed, op.Op, tokenString(op.Token))
	}
	return nil
}

// ReceiveEntryTest evaluates op against the committed entry with the same
// parent and key as op.Entry.
func (s *Sandbox) ReceiveEntryTest(op *EntryTest) error {
	if op.Entry == nil {
		return NewError(RetCInvalidOperation, "entry test without entry")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id := idOf(op.Entry)
	cur, ok := s.entries[id.parent][id.key]
	holds := false
	switch op.Op {
	case EntryIsPresent:
		holds = ok
	case EntryHasNext:
		holds = ok && EntryValue(cur) == op.Next
	default:
		return NewError(RetCInvalidOperation, fmt.Sprintf("unknown entry test %s", op.Op))
	}
	if !holds {
		return fmt.Errorf("%w: entry %s %s", ErrTestFailed, id.key, op.Op)
	}
	return nil
}

// --------------------------------------------------------------------------
// Describe
// --------------------------------------------------------------------------

// Describe writes a human readable dump of the sandbox: every node in token
// order followed by its entries, then names, groups and ports.
func (s *Sandbox) Describe(w io.Writer) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fmt.Fprintf(w, "sandbox %s: %d nodes, max token %d\n", s.cfg.Name, s.tokens.Len(), s.tokens.Max())
	for _, tok := range s.tokens.Tokens() {
		d, _ := s.tokens.Find(tok)
		state := ""
		if s.inactive[tok] {
			state = " (inactive)"
		}
		if d.Cached {
			fmt.Fprintf(w, "  %s%s\n", d.Node, state)
		} else {
			fmt.Fprintf(w, "  %d: %s%s\n", tok, d.TypeName, state)
		}
		for _, e := range s.sortedEntries(tok, false) {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}

	if s.names.Len() > 0 {
		var sb strings.Builder
		s.names.Range(func(name string, tok NodeToken) bool {
			fmt.Fprintf(&sb, " %s=%d", name, tok)
			return true
		})
		fmt.Fprintf(w, "names:%s\n", sb.String())
	}
	for _, p := range s.inputs.Ports() {
		fmt.Fprintf(w, "input %d %s -> %s\n", p.Index, p.Name, tokenString(p.Token))
	}
	for _, p := range s.outputs.Ports() {
		fmt.Fprintf(w, "output %d %s -> %s\n", p.Index, p.Name, tokenString(p.Token))
	}
}
