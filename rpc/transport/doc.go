// Package transport defines the interfaces for RPC communication between dAFT
// clients and servers. Transports move opaque byte slices addressed to a
// shard; what the bytes mean is up to the serializer.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receives requests and routes them to appropriate handlers.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
// The http subpackage holds the implementation.
package transport
