package internal

import (
	"encoding/binary"
	"fmt"
)

// CommandType defines the possible operations for the state machine.
type CommandType uint8

const (
	CommandTExecute       CommandType = iota // Execute an encoded Insert, Remove or NodeActive.
	CommandTReserveTokens                    // Reserve a block of Count tokens.
	CommandTInsertType                       // Register the node type Name.
	CommandTInsertField                      // Register the field Name with width Count.
	CommandTCreateGroup                      // Create the node group Name.
	CommandTInsertProto                      // Register the protocol Name.
)

func (ct CommandType) String() string {
	switch ct {
	case CommandTExecute:
		return "Execute"
	case CommandTReserveTokens:
		return "ReserveTokens"
	case CommandTInsertType:
		return "InsertType"
	case CommandTInsertField:
		return "InsertField"
	case CommandTCreateGroup:
		return "CreateGroup"
	case CommandTInsertProto:
		return "InsertProto"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// Command represents a command to be executed by the state machine (a single entry in the raft log)
type Command struct {
	Type    CommandType
	Count   uint64 // block size for ReserveTokens, width for InsertField
	Name    string
	Payload []byte // encoded operation document for Execute
}

// headerSize is Type + Count + NameLen
const headerSize = 1 + 8 + 4

// SizeBytes returns the exact number of bytes needed to serialize this command
func (command *Command) SizeBytes() int {
	return headerSize + len(command.Name) + len(command.Payload)
}

// Serialize serializes a command into a byte array with the format:
// 1 byte for the command type,
// 8 bytes for count (big endian),
// 4 bytes for name length (big endian),
// N bytes for the name,
// N bytes for the payload (optional)
func (command *Command) Serialize() []byte {
	result := make([]byte, command.SizeBytes())

	result[0] = byte(command.Type)
	binary.BigEndian.PutUint64(result[1:9], command.Count)
	binary.BigEndian.PutUint32(result[9:13], uint32(len(command.Name)))

	n := copy(result[headerSize:], command.Name)
	copy(result[headerSize+n:], command.Payload)

	return result
}

// Deserialize extracts all Command fields from a byte array.
func (command *Command) Deserialize(data []byte) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for command")
	}

	command.Type = CommandType(data[0])
	command.Count = binary.BigEndian.Uint64(data[1:9])
	nameLen := binary.BigEndian.Uint32(data[9:13])

	if len(data) < headerSize+int(nameLen) {
		return fmt.Errorf("data too short for name of length %d", nameLen)
	}
	command.Name = string(data[headerSize : headerSize+int(nameLen)])

	rest := data[headerSize+int(nameLen):]
	if len(rest) == 0 {
		command.Payload = nil
		return nil
	}
	// Reuse existing buffer if possible to reduce allocations
	if cap(command.Payload) < len(rest) {
		command.Payload = make([]byte, len(rest))
	} else {
		command.Payload = command.Payload[:len(rest)]
	}
	copy(command.Payload, rest)
	return nil
}
