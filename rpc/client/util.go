package client

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/rpc/common"
	"github.com/ValentinKolb/dAFT/rpc/serializer"
	"github.com/ValentinKolb/dAFT/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	log = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the RemoteSandbox with composition pattern
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends req to the shard of the adapter, see invokeRPCRequest
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(a.shardId, req, a.transport, a.serializer)
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a shard ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type and id of the response match the request
func invokeRPCRequest(shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the request
	respBytes, err := transport.Send(shardId, reqBytes)
	if err != nil {
		return nil, aft.NewError(aft.RetCTimeout, fmt.Sprintf("RPC %s - %v", req.MsgType, err))
	}

	// Deserialize the response
	resp := &common.Message{}
	if err = serializer.Deserialize(respBytes, resp); err != nil {
		return nil, aft.NewError(aft.RetCInternalError, fmt.Sprintf("RPC %s - invalid response: %v", req.MsgType, err))
	}

	// Check if the response is an error response
	if err := resp.Error(); err != nil {
		return nil, err
	}

	// Check if the response answers the request
	if resp.MsgType != req.MsgType {
		return nil, aft.NewError(aft.RetCInternalError, fmt.Sprintf("RPC - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType))
	}
	if resp.ID != req.ID {
		return nil, aft.NewError(aft.RetCInternalError, fmt.Sprintf("RPC %s - response %s does not match request %s", req.MsgType, resp.ID, req.ID))
	}

	// Return the response
	return resp, nil
}
