package server

import (
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/data"
	"github.com/ValentinKolb/dAFT/rpc/client"
	"github.com/ValentinKolb/dAFT/rpc/common"
	"github.com/ValentinKolb/dAFT/rpc/serializer"
	"github.com/ValentinKolb/dAFT/rpc/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback hands requests straight to the handler of a server
type loopback struct {
	handler transport.ServerHandleFunc
}

func (l *loopback) Connect(common.ClientConfig) error { return nil }
func (l *loopback) Close() error                      { return nil }

func (l *loopback) Send(shardId uint64, req []byte) ([]byte, error) {
	return l.handler(shardId, req), nil
}

var serializers = map[string]serializer.IRPCSerializer{
	"json":   serializer.NewJSONSerializer(),
	"gob":    serializer.NewGOBSerializer(),
	"binary": serializer.NewBinarySerializer(),
}

func newTestServer(t *testing.T, s serializer.IRPCSerializer) (*RPCServer, *LocalShard) {
	t.Helper()
	cfg := common.ServerConfig{Shards: []common.ServerShard{{ShardID: 1, Type: common.ShardTypeLocal}}}
	srv := NewRPCServer(cfg, nil, s)
	shard := NewLocalShard(cfg.SandboxConfig(1))
	srv.AddShard(1, shard)
	t.Cleanup(srv.close)
	return srv, shard
}

func newRemote(t *testing.T, srv *RPCServer, shardId uint64) *client.RemoteSandbox {
	t.Helper()
	rs, err := client.NewRemoteSandbox(shardId, common.ClientConfig{Endpoints: []string{"loopback"}}, &loopback{handler: srv.Handle}, srv.serializer)
	require.NoError(t, err)
	return rs
}

func TestRemoteSandbox(t *testing.T) {
	for name, s := range serializers {
		t.Run(name, func(t *testing.T) {
			srv, shard := newTestServer(t, s)
			rs := newRemote(t, srv, 1)

			info, err := rs.InsertField("dst_ip", 32)
			require.NoError(t, err)
			local, ok := shard.Sandbox().FindField("dst_ip")
			require.True(t, ok)
			assert.Equal(t, local, info)

			ins := aft.NewInsert(rs)
			tree, err := ins.Push(aft.NewNode(&aft.Tree{Fields: data.Fields("dst_ip"), Default: aft.TokenDiscard}))
			require.NoError(t, err)
			ins.PushEntry(aft.NewRouteEntry(tree, data.Prefix(netip.MustParsePrefix("10.0.0.0/8")), aft.TokenDiscard))
			ins.PushName("fib", tree)
			require.True(t, aft.Run(rs, ins), "%v", ins.Err())

			got, ok := shard.Sandbox().FindName("fib")
			require.True(t, ok)
			assert.Equal(t, tree, got)

			find := aft.NewSandboxFind(aft.FindByName, aft.TokenNone, "fib")
			require.True(t, aft.Run(rs, find), "%v", find.Err())
			require.Len(t, find.Results, 1)
			assert.Equal(t, tree, find.Results[0].Token)

			assert.True(t, aft.Run(rs, aft.NewNodeTest(aft.TestIsPresent, tree)))

			maxTok, err := rs.MaxToken()
			require.NoError(t, err)
			assert.GreaterOrEqual(t, maxTok, tree)
		})
	}
}

func TestRemoteRejectionKeepsSentinel(t *testing.T) {
	srv, shard := newTestServer(t, serializer.NewBinarySerializer())
	rs := newRemote(t, srv, 1)
	_, err := rs.InsertField("dst_ip", 32)
	require.NoError(t, err)

	ins := aft.NewInsert(rs)
	_, err = ins.Push(aft.NewNode(&aft.Match{Field: data.NewField("dst_ip"), Value: data.Uint32(1), TrueNode: 999, FalseNode: aft.TokenDiscard}))
	require.NoError(t, err)

	require.False(t, aft.Run(rs, ins))
	assert.True(t, errors.Is(ins.Err(), aft.ErrValidation), "%v", ins.Err())
	assert.True(t, errors.Is(ins.Err(), aft.ErrUnknownToken), "%v", ins.Err())
	assert.Equal(t, 0, shard.Sandbox().NodeCount())
}

func TestRemoteTokensAreUnique(t *testing.T) {
	srv, _ := newTestServer(t, serializer.NewBinarySerializer())
	a := newRemote(t, srv, 1)
	b := newRemote(t, srv, 1)

	seen := make(map[aft.NodeToken]bool)
	for i := 0; i < client.DefaultTokenBlock+10; i++ {
		for _, rs := range []*client.RemoteSandbox{a, b} {
			tok := rs.AllocateToken()
			require.NotEqual(t, aft.TokenNone, tok)
			require.False(t, seen[tok], "token %d handed out twice", tok)
			seen[tok] = true
		}
	}
}

func TestRemoteTypeAndGroupTables(t *testing.T) {
	srv, shard := newTestServer(t, serializer.NewJSONSerializer())
	rs := newRemote(t, srv, 1)

	_, ok := rs.FindType("my-type")
	assert.False(t, ok)

	idx, err := rs.InsertType("my-type")
	require.NoError(t, err)
	got, ok := rs.FindType("my-type")
	require.True(t, ok)
	assert.Equal(t, idx, got)

	group, err := rs.CreateGroup("edge")
	require.NoError(t, err)
	local, ok := shard.Sandbox().FindGroup("edge")
	require.True(t, ok)
	assert.Equal(t, local, group)

	proto, err := rs.InsertProto("ipv4")
	require.NoError(t, err)
	localProto, ok := shard.Sandbox().FindProto("ipv4")
	require.True(t, ok)
	assert.Equal(t, localProto, proto)
}

func TestUnknownShard(t *testing.T) {
	srv, _ := newTestServer(t, serializer.NewBinarySerializer())
	rs := newRemote(t, srv, 9)

	_, err := rs.MaxToken()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "shard 9 not found"), err.Error())
	assert.Equal(t, aft.TokenNone, rs.AllocateToken())
}

func TestAdapterRejectsInvalidRequests(t *testing.T) {
	_, shard := newTestServer(t, serializer.NewBinarySerializer())
	adapter := NewSandboxServerAdapter()

	tests := []struct {
		name string
		req  *common.Message
		code aft.RetCode
	}{
		{"unknown type", &common.Message{MsgType: common.MsgTUnknown}, aft.RetCUnsupportedOperation},
		{"operation without doc", &common.Message{MsgType: common.MsgTOperation}, aft.RetCInvalidOperation},
		{"zero tokens", common.NewReserveTokensRequest(0), aft.RetCInvalidOperation},
		{"too many tokens", common.NewReserveTokensRequest(maxReservation + 1), aft.RetCInvalidOperation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := adapter.Handle(tt.req, shard)
			err := resp.Error()
			require.Error(t, err)
			assert.Equal(t, tt.code, aft.CodeOf(err))
			assert.Equal(t, tt.req.ID, resp.ID)
		})
	}

	resp := adapter.Handle(common.NewMaxTokenRequest(), nil)
	assert.Equal(t, aft.RetCInternalError, aft.CodeOf(resp.Error()))
}
