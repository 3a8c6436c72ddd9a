package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ValentinKolb/dAFT/lib/aft"
)

func TestMessageTypeJSON(t *testing.T) {
	for mt := MsgTUnknown; mt <= MsgTCreateGroup; mt++ {
		b, err := json.Marshal(mt)
		if err != nil {
			t.Fatalf("Marshal(%v) error = %v", mt, err)
		}
		var got MessageType
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", b, err)
		}
		if got != mt {
			t.Errorf("round trip of %v gave %v", mt, got)
		}
	}

	var mt MessageType
	if err := json.Unmarshal([]byte(`"teleport"`), &mt); err == nil {
		t.Errorf("Unmarshal of unknown type succeeded")
	}
}

func TestResponseKeepsRequestID(t *testing.T) {
	req := NewFindTypeRequest("Counter")
	resp := NewResponse(req, true, 4, nil)

	if resp.ID != req.ID {
		t.Errorf("response ID = %v, want %v", resp.ID, req.ID)
	}
	if resp.MsgType != MsgTFindType {
		t.Errorf("response type = %v, want %v", resp.MsgType, MsgTFindType)
	}
	if err := resp.Error(); err != nil {
		t.Errorf("Error() = %v, want nil", err)
	}
}

func TestMessageErrorKeepsSentinel(t *testing.T) {
	req := NewRegisterRequest(MsgTInsertField, "dst_ip", 32)
	cause := fmt.Errorf("field dst_ip: %w", aft.ErrUnknownToken)
	resp := NewResponse(req, false, 0, cause)

	err := resp.Error()
	if err == nil {
		t.Fatalf("Error() = nil, want error")
	}
	if !errors.Is(err, aft.ErrUnknownToken) {
		t.Errorf("errors.Is(%v, ErrUnknownToken) = false", err)
	}

	errResp := NewErrorResponse(req.ID, errors.New("boom"))
	if got := aft.CodeOf(errResp.Error()); got != aft.RetCInternalError {
		t.Errorf("code = %v, want %v", got, aft.RetCInternalError)
	}
}
