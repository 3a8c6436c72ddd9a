package common

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/codec"
	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// ID correlates a response with its request
	ID uuid.UUID `json:"id"`

	// General fields
	Name  string             `json:"name,omitempty"`  // Used for: FindType, InsertType, InsertField, InsertProto, CreateGroup
	Count uint64             `json:"count,omitempty"` // Used for: ReserveTokens, InsertField (width) and every index or token in responses
	Doc   *codec.OperationDoc `json:"doc,omitempty"`   // Used for: Operation (request and response)

	// Response only fields
	Ok     bool        `json:"ok,omitempty"`     // Used for: FindType responses
	Code   aft.RetCode `json:"code,omitempty"`   // RetCode of Err
	Err    string      `json:"err,omitempty"`    // Empty if no error, otherwise contains the error message
	Reason string      `json:"reason,omitempty"` // The sentinel the error matches, see aft.Error
}

// Error returns the error carried by the message, or nil.
func (m *Message) Error() error {
	if m.Err == "" && m.MsgType != MsgTError {
		return nil
	}
	code := m.Code
	if code == aft.RetCSuccess {
		code = aft.RetCInternalError
	}
	return &aft.Error{Code: code, Msg: m.Err, Reason: m.Reason}
}

// setError stores err in the response fields of m.
func (m *Message) setError(err error) {
	if e := aft.ToError(err); e != nil {
		m.Code, m.Err, m.Reason = e.Code, e.Msg, e.Reason
	}
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewOperationRequest creates a request executing doc on the shard
func NewOperationRequest(doc codec.OperationDoc) *Message {
	return &Message{
		MsgType: MsgTOperation,
		ID:      uuid.New(),
		Doc:     &doc,
	}
}

// NewFindTypeRequest creates a request resolving a type name
func NewFindTypeRequest(name string) *Message {
	return &Message{
		MsgType: MsgTFindType,
		ID:      uuid.New(),
		Name:    name,
	}
}

// NewReserveTokensRequest creates a request reserving n consecutive tokens
func NewReserveTokensRequest(n uint64) *Message {
	return &Message{
		MsgType: MsgTReserveTokens,
		ID:      uuid.New(),
		Count:   n,
	}
}

// NewMaxTokenRequest creates a request for the highest token handed out
func NewMaxTokenRequest() *Message {
	return &Message{
		MsgType: MsgTMaxToken,
		ID:      uuid.New(),
	}
}

// NewRegisterRequest creates a request adding name to one of the tables:
// MsgTInsertType, MsgTInsertField (with the width in count), MsgTInsertProto
// or MsgTCreateGroup
func NewRegisterRequest(t MessageType, name string, count uint64) *Message {
	return &Message{
		MsgType: t,
		ID:      uuid.New(),
		Name:    name,
		Count:   count,
	}
}

// NewResponse creates the response to req
func NewResponse(req *Message, ok bool, count uint64, err error) *Message {
	msg := &Message{
		MsgType: req.MsgType,
		ID:      req.ID,
		Ok:      ok,
		Count:   count,
	}
	msg.setError(err)
	return msg
}

// NewOperationResponse creates the response to an operation request
func NewOperationResponse(req *Message, doc codec.OperationDoc) *Message {
	return &Message{
		MsgType: MsgTOperation,
		ID:      req.ID,
		Doc:     &doc,
	}
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(id uuid.UUID, err error) *Message {
	msg := &Message{
		MsgType: MsgTError,
		ID:      id,
	}
	msg.setError(err)
	return msg
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTUnknown:       "unknown",
	MsgTSuccess:       "success",
	MsgTError:         "error",
	MsgTOperation:     "operation",
	MsgTFindType:      "findType",
	MsgTReserveTokens: "reserveTokens",
	MsgTMaxToken:      "maxToken",
	MsgTInsertType:    "insertType",
	MsgTInsertField:   "insertField",
	MsgTInsertProto:   "insertProto",
	MsgTCreateGroup:   "createGroup",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for mt, name := range messageTypeNames {
		if name == s {
			*t = mt
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Receiver

	MsgTOperation // Execute an operation document

	// Stager

	MsgTFindType      // Resolve a type name
	MsgTReserveTokens // Reserve a block of tokens
	MsgTMaxToken      // Highest token handed out

	// Tables

	MsgTInsertType  // Register a node type
	MsgTInsertField // Register a field and its width
	MsgTInsertProto // Register a protocol
	MsgTCreateGroup // Create a node group
)
