package aft

import (
	"github.com/ValentinKolb/dAFT/lib/tables"
)

// NodeToken is the opaque handle of a node within one sandbox.
type NodeToken = tables.Token

const (
	// TokenDiscard names the implicit drop node. It is valid everywhere a
	// token is expected and is never allocated.
	TokenDiscard = tables.TokenDiscard
	// TokenNone marks an unset token. Pushing a node with TokenNone asks the
	// sandbox to allocate one.
	TokenNone = tables.TokenNone
)

// TypeIndex is the index a node type name is registered under.
type TypeIndex = tables.Index

// GroupIndex is the index of a node group.
type GroupIndex = tables.Index

// GroupNone is the group every node belongs to by default.
const GroupNone GroupIndex = tables.IndexNone

// MaskAll is the default node and entry mask.
const MaskAll uint64 = ^uint64(0)

// DefaultTimeout is how long a synchronous operation is waited for unless
// configured otherwise.
const DefaultTimeout = 2000 // milliseconds

// GroupBinding binds a node to a named group.
type GroupBinding struct {
	Group string    `json:"group" yaml:"group"`
	Token NodeToken `json:"token" yaml:"token"`
}

// NameBinding binds a symbolic name to a node.
type NameBinding struct {
	Name  string    `json:"name" yaml:"name"`
	Token NodeToken `json:"token" yaml:"token"`
}
