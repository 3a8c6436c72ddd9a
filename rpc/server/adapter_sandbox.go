package server

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/codec"
	"github.com/ValentinKolb/dAFT/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

// maxReservation bounds a single ReserveTokens request
const maxReservation = 1 << 20

func NewSandboxServerAdapter() IRPCServerAdapter {
	return &sandboxServerAdapterImpl{}
}

type sandboxServerAdapterImpl struct{}

func (adapter *sandboxServerAdapterImpl) Handle(req *common.Message, shard Shard) *common.Message {
	// Check for nil shard
	if shard == nil {
		return common.NewErrorResponse(req.ID, aft.NewError(aft.RetCInternalError, "handler: shard is nil"))
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`daft_rpc_requests_total{type=%q}`, req.MsgType)).Inc()

	// Handle different message types
	switch req.MsgType {
	case common.MsgTOperation:
		return handleOperation(req, shard)
	case common.MsgTFindType:
		idx, ok := shard.FindType(req.Name)
		return common.NewResponse(req, ok, uint64(idx), nil)
	case common.MsgTReserveTokens:
		if req.Count > maxReservation {
			return common.NewErrorResponse(req.ID, aft.NewError(aft.RetCInvalidOperation,
				fmt.Sprintf("cannot reserve %d tokens at once (max %d)", req.Count, maxReservation)))
		}
		first, err := shard.ReserveTokens(req.Count)
		return common.NewResponse(req, err == nil, uint64(first), err)
	case common.MsgTMaxToken:
		tok, err := shard.MaxToken()
		return common.NewResponse(req, err == nil, uint64(tok), err)
	case common.MsgTInsertType:
		idx, err := shard.InsertType(req.Name)
		return common.NewResponse(req, err == nil, uint64(idx), err)
	case common.MsgTInsertField:
		info, err := shard.InsertField(req.Name, uint32(req.Count))
		return common.NewResponse(req, err == nil, uint64(info.Index), err)
	case common.MsgTInsertProto:
		idx, err := shard.InsertProto(req.Name)
		return common.NewResponse(req, err == nil, uint64(idx), err)
	case common.MsgTCreateGroup:
		idx, err := shard.CreateGroup(req.Name)
		return common.NewResponse(req, err == nil, uint64(idx), err)
	default:
		return common.NewErrorResponse(req.ID, aft.NewError(aft.RetCUnsupportedOperation,
			fmt.Sprintf("RPC SandboxAdapter - Unsupported message type: %s", req.MsgType)))
	}
}

// handleOperation decodes the operation carried by req, runs it against the
// shard and answers with its reply. A rejected operation is still a
// successful response, its outcome travels in the reply.
func handleOperation(req *common.Message, shard Shard) *common.Message {
	if req.Doc == nil {
		return common.NewErrorResponse(req.ID, aft.NewError(aft.RetCInvalidOperation, "operation request without document"))
	}

	op, err := codec.DecodeOperation(*req.Doc, shard)
	if err != nil {
		return common.NewErrorResponse(req.ID, err)
	}

	if !aft.Run(shard, op) {
		log.Debugf("%s #%d rejected: %v", op.Kind(), req.Doc.Sequence, op.Base().Err())
	}

	reply, err := codec.EncodeReply(op)
	if err != nil {
		return common.NewErrorResponse(req.ID, err)
	}
	return common.NewOperationResponse(req, codec.OperationDoc{
		Kind:     req.Doc.Kind,
		Sequence: req.Doc.Sequence,
		Reply:    reply,
	})
}
