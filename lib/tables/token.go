package tables

import (
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
	"sync/atomic"
)

// Token is the opaque handle of a node within one sandbox.
type Token uint64

const (
	// TokenDiscard names the implicit drop node. It is always valid and is
	// never handed out by Allocate.
	TokenDiscard Token = 0
	// TokenNone marks an unset reference.
	TokenNone Token = ^Token(0)
)

// IsSet reports whether t is not TokenNone.
func (t Token) IsSet() bool { return t != TokenNone }

// Descriptor is what the token table stores per token. Node is only
// populated when the table caches nodes.
type Descriptor[N any] struct {
	TypeName  string
	Container bool
	Node      N
	Cached    bool
}

// TokenTable allocates tokens and maps them to descriptors.
//
// Allocation is monotonic for the lifetime of the table: a token is never
// handed out twice, even after it was removed.
//
// Thread-safety: all methods are safe for concurrent use. Callers are still
// expected to serialize mutation of the graph itself.
type TokenTable[N any] struct {
	entries *xsync.MapOf[Token, Descriptor[N]]
	max     atomic.Uint64
	cache   bool
}

// NewTokenTable creates an empty table. Allocation starts above base. When
// cache is false, Insert drops the node and keeps only type name and
// container flag.
func NewTokenTable[N any](base Token, cache bool) *TokenTable[N] {
	t := &TokenTable[N]{
		entries: xsync.NewMapOf[Token, Descriptor[N]](),
		cache:   cache,
	}
	t.max.Store(uint64(base))
	return t
}

// Caching reports whether full nodes are kept.
func (t *TokenTable[N]) Caching() bool { return t.cache }

// Allocate returns max+1 and raises max.
func (t *TokenTable[N]) Allocate() Token {
	return Token(t.max.Add(1))
}

// AllocateBlock reserves n consecutive tokens and returns the first one.
func (t *TokenTable[N]) AllocateBlock(n uint64) Token {
	if n == 0 {
		return TokenNone
	}
	return Token(t.max.Add(n) - n + 1)
}

// Raise makes sure that future allocations are greater than tok.
func (t *TokenTable[N]) Raise(tok Token) {
	if tok == TokenNone {
		return
	}
	for {
		cur := t.max.Load()
		if uint64(tok) <= cur || t.max.CompareAndSwap(cur, uint64(tok)) {
			return
		}
	}
}

// Max returns the highest token allocated or raised so far.
func (t *TokenTable[N]) Max() Token {
	return Token(t.max.Load())
}

// Insert stores (or replaces) the descriptor of tok and raises max to tok.
func (t *TokenTable[N]) Insert(tok Token, typeName string, container bool, node N) {
	d := Descriptor[N]{TypeName: typeName, Container: container}
	if t.cache {
		d.Node = node
		d.Cached = true
	}
	t.entries.Store(tok, d)
	t.Raise(tok)
}

// Remove deletes tok and reports whether it was present. The allocation
// counter is not touched.
func (t *TokenTable[N]) Remove(tok Token) bool {
	_, ok := t.entries.LoadAndDelete(tok)
	return ok
}

// Find returns the descriptor of tok.
func (t *TokenTable[N]) Find(tok Token) (Descriptor[N], bool) {
	return t.entries.Load(tok)
}

// IsValid reports whether tok is present.
func (t *TokenTable[N]) IsValid(tok Token) bool {
	_, ok := t.entries.Load(tok)
	return ok
}

// IsOfType reports whether tok is present and of the named type.
func (t *TokenTable[N]) IsOfType(tok Token, typeName string) bool {
	d, ok := t.entries.Load(tok)
	return ok && d.TypeName == typeName
}

// Len returns the number of stored tokens.
func (t *TokenTable[N]) Len() int {
	return t.entries.Size()
}

// Tokens returns all stored tokens in ascending order.
func (t *TokenTable[N]) Tokens() []Token {
	out := make([]Token, 0, t.entries.Size())
	t.entries.Range(func(k Token, _ Descriptor[N]) bool {
		out = append(out, k)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clear drops every descriptor. The allocation counter is kept.
func (t *TokenTable[N]) Clear() {
	t.entries.Clear()
}
