package server

import (
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/codec"
	"github.com/ValentinKolb/dAFT/rpc/common"
)

// Shard is a sandbox as it is served over RPC. Both *LocalShard and
// *replica.ReplicatedSandbox implement it.
type Shard interface {
	aft.Receiver
	aft.Stager
	codec.Registry

	// ReserveTokens reserves n consecutive tokens and returns the first one
	ReserveTokens(n uint64) (aft.NodeToken, error)
	// MaxToken returns the highest token handed out so far
	MaxToken() (aft.NodeToken, error)
}

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a Message and the shard it is addressed to as parameters.
	// It returns a Message as a response
	// If an error occurs, it should be set in the response
	Handle(req *common.Message, shard Shard) (resp *common.Message)
}
