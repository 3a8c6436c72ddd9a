// Package serializer provides message serialization for the dAFT RPC system.
// It defines a common interface and multiple implementations for serializing
// and deserializing messages between client and server.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format. A fixed header (type, flags,
//     request id) is followed by the fields present, as announced by the flags.
//     Operation documents are embedded as length prefixed gob.
//
//   - docSerializerImpl: encodes the whole message with a document serializer
//     of lib/codec, either JSON (human readable, useful for debugging with
//     curl) or gob.
//
// The binary format gives the smallest messages for table and token requests;
// for operation requests the embedded document dominates the size.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(*common.NewFindTypeRequest("Counter"))
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(receivedData, &resp)
package serializer
