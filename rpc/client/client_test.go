package client

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/rpc/common"
	"github.com/ValentinKolb/dAFT/rpc/serializer"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted answers every request with respond
type scripted struct {
	s       serializer.IRPCSerializer
	respond func(req common.Message) (*common.Message, error)
	sent    int
}

func (t *scripted) Connect(common.ClientConfig) error { return nil }
func (t *scripted) Close() error                      { return nil }

func (t *scripted) Send(_ uint64, req []byte) ([]byte, error) {
	t.sent++
	var msg common.Message
	if err := t.s.Deserialize(req, &msg); err != nil {
		return nil, err
	}
	resp, err := t.respond(msg)
	if err != nil {
		return nil, err
	}
	return t.s.Serialize(*resp)
}

func newScripted(t *testing.T, respond func(req common.Message) (*common.Message, error)) (*RemoteSandbox, *scripted) {
	t.Helper()
	s := serializer.NewBinarySerializer()
	tr := &scripted{s: s, respond: respond}
	rs, err := NewRemoteSandbox(1, common.ClientConfig{Endpoints: []string{"scripted"}}, tr, s)
	require.NoError(t, err)
	return rs, tr
}

func TestInvokeChecksResponse(t *testing.T) {
	tests := []struct {
		name    string
		respond func(req common.Message) (*common.Message, error)
		code    aft.RetCode
	}{
		{
			name: "wrong id",
			respond: func(req common.Message) (*common.Message, error) {
				resp := common.NewResponse(&req, true, 1, nil)
				resp.ID = uuid.New()
				return resp, nil
			},
			code: aft.RetCInternalError,
		},
		{
			name: "wrong type",
			respond: func(req common.Message) (*common.Message, error) {
				resp := common.NewResponse(&req, true, 1, nil)
				resp.MsgType = common.MsgTFindType
				return resp, nil
			},
			code: aft.RetCInternalError,
		},
		{
			name: "transport failure",
			respond: func(common.Message) (*common.Message, error) {
				return nil, errors.New("connection refused")
			},
			code: aft.RetCTimeout,
		},
		{
			name: "error response",
			respond: func(req common.Message) (*common.Message, error) {
				return common.NewErrorResponse(req.ID, aft.NewError(aft.RetCUnsupportedOperation, "nope")), nil
			},
			code: aft.RetCUnsupportedOperation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, _ := newScripted(t, tt.respond)
			_, err := rs.MaxToken()
			require.Error(t, err)
			assert.Equal(t, tt.code, aft.CodeOf(err), err.Error())
		})
	}
}

func TestAllocateTokenReservesBlocks(t *testing.T) {
	var next uint64 = 1
	rs, tr := newScripted(t, func(req common.Message) (*common.Message, error) {
		require.Equal(t, common.MsgTReserveTokens, req.MsgType)
		first := next
		next += req.Count
		return common.NewResponse(&req, true, first, nil), nil
	})

	for i := 1; i <= 2*DefaultTokenBlock+1; i++ {
		assert.Equal(t, aft.NodeToken(i), rs.AllocateToken())
	}
	assert.Equal(t, 3, tr.sent)
}

func TestFindTypeCachesHits(t *testing.T) {
	rs, tr := newScripted(t, func(req common.Message) (*common.Message, error) {
		return common.NewResponse(&req, req.Name == "known", 4, nil), nil
	})

	for i := 0; i < 3; i++ {
		idx, ok := rs.FindType("known")
		require.True(t, ok)
		assert.Equal(t, aft.TypeIndex(4), idx)
	}
	assert.Equal(t, 1, tr.sent)

	_, ok := rs.FindType("unknown")
	assert.False(t, ok)
	_, ok = rs.FindType("unknown")
	assert.False(t, ok)
	assert.Equal(t, 3, tr.sent)
}
