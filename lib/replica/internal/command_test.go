package internal

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestCommandSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name:     "Command with name and payload",
			command:  Command{Type: CommandTExecute, Name: "edge", Payload: []byte("document")},
			expected: 1 + 8 + 4 + 4 + 8, // Type + Count + NameLen + Name + Payload
		},
		{
			name:     "Command without name or payload",
			command:  Command{Type: CommandTReserveTokens, Count: 64},
			expected: 1 + 8 + 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if size := tt.command.SizeBytes(); size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

func TestCommandSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name:    "Execute with payload",
			command: Command{Type: CommandTExecute, Payload: []byte{0, 1, 2, 254, 255}},
		},
		{
			name:    "Reserve a large block",
			command: Command{Type: CommandTReserveTokens, Count: 18446744073709551615},
		},
		{
			name:    "Field with width",
			command: Command{Type: CommandTInsertField, Name: "ip.dst", Count: 32},
		},
		{
			name:    "Unicode group name",
			command: Command{Type: CommandTCreateGroup, Name: "grüppe"},
		},
		{
			name:    "Name and empty payload",
			command: Command{Type: CommandTInsertProto, Name: "ipv6", Payload: []byte{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()

			var got Command
			if err := got.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}

			if got.Type != tt.command.Type {
				t.Errorf("Type mismatch: got %v, want %v", got.Type, tt.command.Type)
			}
			if got.Count != tt.command.Count {
				t.Errorf("Count mismatch: got %v, want %v", got.Count, tt.command.Count)
			}
			if got.Name != tt.command.Name {
				t.Errorf("Name mismatch: got %q, want %q", got.Name, tt.command.Name)
			}
			if !bytes.Equal(got.Payload, tt.command.Payload) {
				t.Errorf("Payload mismatch: got %v, want %v", got.Payload, tt.command.Payload)
			}
			if tt.command.SizeBytes() != len(data) {
				t.Errorf("SizeBytes() = %d, but serialized data length = %d", tt.command.SizeBytes(), len(data))
			}
		})
	}
}

func TestCommandDeserializeErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectedErr string
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectedErr: "data too short for command",
		},
		{
			name: "Invalid name length",
			data: func() []byte {
				data := make([]byte, headerSize)
				data[0] = byte(CommandTInsertType)
				binary.BigEndian.PutUint32(data[9:13], 1000)
				return data
			}(),
			expectedErr: "data too short for name of length 1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if err.Error() != tt.expectedErr {
				t.Errorf("Expected error %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}

func TestCommandBinaryFormat(t *testing.T) {
	cmd := Command{Type: CommandTInsertField, Count: 48, Name: "mac", Payload: []byte("x")}

	expected := make([]byte, cmd.SizeBytes())
	expected[0] = byte(CommandTInsertField)
	binary.BigEndian.PutUint64(expected[1:9], 48)
	binary.BigEndian.PutUint32(expected[9:13], 3)
	copy(expected[13:16], "mac")
	expected[16] = 'x'

	if got := cmd.Serialize(); !bytes.Equal(got, expected) {
		t.Errorf("Binary format does not match:\nGot:      %v\nExpected: %v", got, expected)
	}
}

func TestCommandPayloadReuse(t *testing.T) {
	cmd := Command{Type: CommandTExecute, Payload: []byte("original payload")}
	short := Command{Type: CommandTExecute, Payload: []byte("short")}

	if err := cmd.Deserialize(short.Serialize()); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if string(cmd.Payload) != "short" {
		t.Errorf("Payload = %q, want %q", cmd.Payload, "short")
	}

	none := Command{Type: CommandTCreateGroup, Name: "g"}
	if err := cmd.Deserialize(none.Serialize()); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if cmd.Payload != nil {
		t.Errorf("Payload = %v, want nil", cmd.Payload)
	}
}
