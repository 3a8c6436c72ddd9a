package internal

import (
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/codec"
)

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTFindType QueryType = iota // Resolve a node type name.
	QueryTRead                      // Execute a read-only operation document.
	QueryTMaxToken                  // Highest token allocated so far.
)

func (q QueryType) String() string {
	switch q {
	case QueryTFindType:
		return "FindType"
	case QueryTRead:
		return "Read"
	case QueryTMaxToken:
		return "MaxToken"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or StaleRead
type Query struct {
	Type QueryType
	Name string             // type name for QueryTFindType
	Doc  codec.OperationDoc // SandboxInfo, SandboxFind, NodeInfo, NodeTest or EntryTest
}

// TypeResult is the result of a QueryTFindType query.
// QueryTRead returns the executed codec.OperationDoc, QueryTMaxToken an aft.NodeToken.
type TypeResult struct {
	Ok    bool
	Index aft.TypeIndex
}
