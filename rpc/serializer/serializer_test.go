package serializer

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/codec"
	"github.com/ValentinKolb/dAFT/rpc/common"
	"github.com/google/uuid"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	id := uuid.MustParse("6f1c1e0a-3b7d-4c1e-9a55-2f0f5d3c9b11")
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// FindType request
		{
			MsgType: common.MsgTFindType,
			ID:      id,
			Name:    "Counter",
		},

		// FindType response
		{
			MsgType: common.MsgTFindType,
			ID:      id,
			Ok:      true,
			Count:   4,
		},

		// Error response
		{
			MsgType: common.MsgTError,
			ID:      id,
			Code:    aft.RetCValidationFailed,
			Err:     "validation failed for token 7: unknown token",
			Reason:  aft.ErrUnknownToken.Error(),
		},

		// Operation request
		{
			MsgType: common.MsgTOperation,
			ID:      id,
			Doc: &codec.OperationDoc{
				Kind:     aft.KindNodeInfo.String(),
				Sequence: 9,
				Tokens:   []aft.NodeToken{3, 4},
			},
		},

		// Operation response
		{
			MsgType: common.MsgTOperation,
			ID:      id,
			Doc: &codec.OperationDoc{
				Kind:  aft.KindNodeTest.String(),
				Token: 3,
				Test:  1,
				Reply: &codec.ReplyDoc{
					Status:   false,
					Error:    &aft.Error{Code: aft.RetCTestFailed, Msg: "node 3 has 2 next nodes", Reason: aft.ErrTestFailed.Error()},
					Observed: 2,
				},
			},
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTSuccess; msgType <= common.MsgTCreateGroup; msgType++ {
				msg := common.Message{MsgType: msgType, ID: uuid.New()}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType, err)
					continue
				}

				var result common.Message
				if err := serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType, err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s", msgType, result.MsgType)
				}
				if result.ID != msg.ID {
					t.Errorf("ID doesn't match after round trip: Expected %s, got %s", msg.ID, result.ID)
				}
			}
		})
	}
}

// TestDeserializeResetsMessage tests that fields of a reused message do not survive
func TestDeserializeResetsMessage(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(common.Message{MsgType: common.MsgTMaxToken, Count: 12})
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			reused := common.Message{Name: "stale", Err: "stale", Doc: &codec.OperationDoc{Kind: "stale"}}
			if err := serializer.Deserialize(data, &reused); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}
			if reused.Name != "" || reused.Err != "" || reused.Doc != nil {
				t.Errorf("stale fields survived: %+v", reused)
			}
			if reused.Count != 12 {
				t.Errorf("Count = %d, want 12", reused.Count)
			}
		})
	}
}

// TestBinarySerializerFormat tests the header layout of the binary serializer
func TestBinarySerializerFormat(t *testing.T) {
	serializer := NewBinarySerializer()
	id := uuid.New()

	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTReserveTokens, ID: id, Count: 64})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	expected := make([]byte, headerSize+8)
	expected[0] = byte(common.MsgTReserveTokens)
	expected[1] = hasCount
	copy(expected[2:headerSize], id[:])
	binary.BigEndian.PutUint64(expected[headerSize:], 64)

	if !reflect.DeepEqual(data, expected) {
		t.Errorf("Binary format does not match:\nGot:      %v\nExpected: %v", data, expected)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	header := func(flags byte, rest ...byte) []byte {
		data := make([]byte, headerSize, headerSize+len(rest))
		data[0] = byte(common.MsgTFindType)
		data[1] = flags
		return append(data, rest...)
	}

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0, 0, 0},
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        header(0),
			expectError: false,
		},
		{
			name:        "Invalid length for name",
			data:        header(hasName, 0, 0, 0, 5, 'a', 'b', 'c'),
			expectError: true,
		},
		{
			name:        "Missing count",
			data:        header(hasCount, 0, 0),
			expectError: true,
		},
		{
			name:        "Invalid length for document",
			data:        header(hasDoc, 0, 0, 0, 10),
			expectError: true,
		},
		{
			name:        "Document is not gob",
			data:        header(hasDoc, 0, 0, 0, 2, 'n', 'o'),
			expectError: true,
		},
		{
			name:        "Trailing bytes",
			data:        header(0, 1, 2, 3),
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "gob", "binary"} {
		if _, err := ByName(name); err != nil {
			t.Errorf("ByName(%q) error = %v", name, err)
		}
	}
	if _, err := ByName("xml"); err == nil {
		t.Errorf("ByName(%q) succeeded, want error", "xml")
	}
}
