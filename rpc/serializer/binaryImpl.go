package serializer

import (
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/codec"
	"github.com/ValentinKolb/dAFT/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format.
// Operation documents are embedded as gob.
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{docs: codec.NewGOBSerializer()}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
	docs codec.ISerializer
}

// Bit flags to indicate which optional fields are present
const (
	hasName   byte = 1 << 0
	hasCount  byte = 1 << 1
	hasDoc    byte = 1 << 2
	hasOk     byte = 1 << 3
	hasErr    byte = 1 << 4
	hasReason byte = 1 << 5
)

// headerSize is MsgType + flags + ID
const headerSize = 1 + 1 + 16

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Encode the document first, its size is needed for the buffer
	var doc []byte
	if msg.Doc != nil {
		var err error
		if doc, err = b.docs.Serialize(msg.Doc); err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}
	}

	result := make([]byte, sizeBytes(msg, doc))

	// Write message type and ID
	result[0] = byte(msg.MsgType)
	copy(result[2:headerSize], msg.ID[:])

	var flags byte = 0
	pos := headerSize

	if msg.Name != "" {
		flags |= hasName
		pos = putString(result, pos, msg.Name)
	}

	if msg.Count != 0 {
		flags |= hasCount
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.Count)
		pos += 8
	}

	if doc != nil {
		flags |= hasDoc
		binary.BigEndian.PutUint32(result[pos:pos+4], uint32(len(doc)))
		pos += 4
		copy(result[pos:], doc)
		pos += len(doc)
	}

	// The presence of the flag is the value
	if msg.Ok {
		flags |= hasOk
	}

	// Handle Err (code + text)
	if msg.Err != "" || msg.Code != aft.RetCSuccess {
		flags |= hasErr
		binary.BigEndian.PutUint64(result[pos:pos+8], uint64(msg.Code))
		pos += 8
		pos = putString(result, pos, msg.Err)
	}

	if msg.Reason != "" {
		flags |= hasReason
		pos = putString(result, pos, msg.Reason)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	copy(msg.ID[:], data[2:headerSize])
	flags := data[1]
	pos := headerSize

	var err error
	if flags&hasName != 0 {
		if msg.Name, pos, err = getString(data, pos, "name"); err != nil {
			return err
		}
	}

	if flags&hasCount != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for count")
		}
		msg.Count = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	}

	if flags&hasDoc != 0 {
		if pos+4 > len(data) {
			return fmt.Errorf("data too short for document length")
		}
		docLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+docLen > len(data) {
			return fmt.Errorf("data too short for document data")
		}
		msg.Doc = &codec.OperationDoc{}
		if err := b.docs.Deserialize(data[pos:pos+docLen], msg.Doc); err != nil {
			return fmt.Errorf("failed to decode document: %w", err)
		}
		pos += docLen
	}

	msg.Ok = flags&hasOk != 0

	if flags&hasErr != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for error code")
		}
		msg.Code = aft.RetCode(binary.BigEndian.Uint64(data[pos : pos+8]))
		pos += 8
		if msg.Err, pos, err = getString(data, pos, "error"); err != nil {
			return err
		}
	}

	if flags&hasReason != 0 {
		if msg.Reason, pos, err = getString(data, pos, "reason"); err != nil {
			return err
		}
	}

	if pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-pos)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// sizeBytes calculates the exact size of the serialized message
func sizeBytes(msg common.Message, doc []byte) int {
	size := headerSize

	if msg.Name != "" {
		size += 4 + len(msg.Name)
	}
	if msg.Count != 0 {
		size += 8
	}
	if doc != nil {
		size += 4 + len(doc)
	}
	if msg.Err != "" || msg.Code != aft.RetCSuccess {
		size += 8 + 4 + len(msg.Err)
	}
	if msg.Reason != "" {
		size += 4 + len(msg.Reason)
	}

	return size
}

// putString writes a length prefixed string at pos and returns the position
// after it
func putString(buf []byte, pos int, s string) int {
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(s)))
	pos += 4
	return pos + copy(buf[pos:], s)
}

// getString reads a length prefixed string at pos
func getString(data []byte, pos int, field string) (string, int, error) {
	if pos+4 > len(data) {
		return "", pos, fmt.Errorf("data too short for %s length", field)
	}
	n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4
	if pos+n > len(data) {
		return "", pos, fmt.Errorf("data too short for %s data", field)
	}
	return string(data[pos : pos+n]), pos + n, nil
}
